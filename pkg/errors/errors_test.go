package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindStorage, "commit"))
}

func TestWrap_PreservesStackAndDetails(t *testing.T) {
	inner := New(KindTransport, "status 503").WithDetail("status", 503)
	outer := Wrap(inner, KindStorage, "archive raw payload")

	require.NotNil(t, outer)
	assert.Equal(t, KindStorage, outer.Kind)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.Equal(t, 503, outer.Details["status"])
	assert.True(t, IsKind(outer, KindTransport))
	assert.True(t, IsKind(outer, KindStorage))
	assert.Equal(t, KindStorage, KindOf(outer))
}

func TestKindOf_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("ingest: %w", New(KindEmptyDataset, "no rows"))
	assert.Equal(t, KindEmptyDataset, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", New(KindTransport, "timeout"), true},
		{"empty dataset", New(KindEmptyDataset, "no rows"), true},
		{"storage", New(KindStorage, "connection refused"), true},
		{"validation failed", New(KindValidationFailed, "value > 0"), false},
		{"invalid record", New(KindInvalidRecord, "empty code"), false},
		{"config", New(KindConfig, "missing host"), false},
		{"referential gap", New(KindReferentialGap, "no country"), false},
		{"plain error", stderrors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Wrap(stderrors.New("dial tcp: refused"), KindStorage, "open warehouse")
	assert.Equal(t, "storage: open warehouse: dial tcp: refused", err.Error())
	assert.Equal(t, "config: bad port", Newf(KindConfig, "bad %s", "port").Error())
}
