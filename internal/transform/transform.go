// Package transform runs the warehouse transformation command (dbt by
// default) after ingestion and quality checks have passed.
package transform

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/metrics"
)

const (
	// maxOutputLines bounds the command output kept on error details.
	maxOutputLines = 50
	// waitDelay bounds how long output pipes are drained after the command is killed.
	waitDelay = 5 * time.Second
)

// Runner executes the configured command.
type Runner struct {
	cfg    config.TransformConfig
	logger *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg config.TransformConfig, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: log.With(zap.String("component", "transform"))}
}

// Run executes the command and waits for it within the configured timeout.
// A missing executable is a config error; a non-zero exit or timeout is a
// storage error, since the models run against the warehouse.
func (r *Runner) Run(ctx context.Context) error {
	log := logger.FromContext(ctx, r.logger)
	args := r.cfg.CommandArgs()

	path, err := exec.LookPath(r.cfg.Command)
	if err != nil {
		return errors.Wrap(err, errors.KindConfig, "transformation command not found").
			WithDetail("command", r.cfg.Command)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	log.Info("running transformations",
		zap.String("command", r.cfg.Command),
		zap.Strings("args", args))

	timer := metrics.NewTimer()
	err = cmd.Run()
	lines := tail(out.String(), maxOutputLines)
	for _, line := range lines {
		log.Debug(line)
	}

	if err != nil {
		e := errors.Wrap(err, errors.KindStorage, "transformation command failed").
			WithDetail("command", r.cfg.Command).
			WithDetail("args", args).
			WithDetail("output", lines)
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			e.WithDetail("exit_code", exitErr.ExitCode())
		}
		if ctx.Err() != nil {
			e.WithDetail("timeout", r.cfg.Timeout.String())
		}
		return e
	}

	log.Info("transformations completed", zap.Duration("duration", timer.Elapsed()))
	return nil
}

// Run executes the transformation command described by cfg unless it is disabled.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if !cfg.Transform.Enabled {
		if log != nil {
			log.Info("transformations disabled")
		}
		return nil
	}
	return NewRunner(cfg.Transform, log).Run(ctx)
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
