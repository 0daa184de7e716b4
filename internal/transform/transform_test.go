package transform

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/testutil"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunner_Success(t *testing.T) {
	requireShell(t)
	r := NewRunner(config.TransformConfig{
		Command: "sh",
		Args:    []string{"-c", "echo models built"},
		Timeout: 10 * time.Second,
	}, testutil.TestLogger(t))

	assert.NoError(t, r.Run(context.Background()))
}

func TestRunner_NonZeroExit(t *testing.T) {
	requireShell(t)
	r := NewRunner(config.TransformConfig{
		Command: "sh",
		Args:    []string{"-c", "echo compilation error; exit 3"},
		Timeout: 10 * time.Second,
	}, testutil.TestLogger(t))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindStorage, errors.KindOf(err))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 3, e.Details["exit_code"])
	assert.Equal(t, []string{"compilation error"}, e.Details["output"])
}

func TestRunner_Timeout(t *testing.T) {
	requireShell(t)
	r := NewRunner(config.TransformConfig{
		Command: "sh",
		Args:    []string{"-c", "exec sleep 5"},
		Timeout: 50 * time.Millisecond,
	}, nil)

	err := r.Run(context.Background())
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "50ms", e.Details["timeout"])
}

func TestRunner_MissingCommand(t *testing.T) {
	r := NewRunner(config.TransformConfig{Command: "gdi-no-such-binary", Timeout: time.Second}, nil)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestRun_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Transform.Enabled = false
	cfg.Transform.Command = "gdi-no-such-binary"

	assert.NoError(t, Run(context.Background(), cfg, nil))
}

func TestTail(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("line\n\n")
	}
	b.WriteString("last\n")

	lines := tail(b.String(), 3)
	assert.Equal(t, []string{"line", "line", "last"}, lines)
}
