// Package scheduler runs the daily chain ingestion → quality → transformations.
//
// Steps run strictly in order. A failed step is retried up to the configured
// number of times with a fixed delay, unless its error is not retryable, and
// a step that finally fails stops the chain. Jobs run in singleton mode: a
// tick that fires while a chain is still running is skipped.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/internal/pipeline"
	"github.com/ajitpratap0/gdi/internal/quality"
	"github.com/ajitpratap0/gdi/internal/transform"
	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/metrics"
)

// Step names.
const (
	StepIngest    = "ingest"
	StepQuality   = "quality"
	StepTransform = "transform"
)

// Step is one unit of the chain.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// DefaultSteps returns ingestion, quality checks and transformations over cfg.
func DefaultSteps(cfg *config.Config, log *zap.Logger) []Step {
	return []Step{
		{Name: StepIngest, Run: func(ctx context.Context) error {
			_, err := pipeline.Ingest(ctx, cfg, log)
			return err
		}},
		{Name: StepQuality, Run: func(ctx context.Context) error {
			_, err := quality.Run(ctx, cfg, log)
			return err
		}},
		{Name: StepTransform, Run: func(ctx context.Context) error {
			return transform.Run(ctx, cfg, log)
		}},
	}
}

// Scheduler runs a chain of steps on a cron schedule.
type Scheduler struct {
	cfg    config.ScheduleConfig
	steps  []Step
	logger *zap.Logger
}

// New creates a scheduler.
func New(cfg config.ScheduleConfig, steps []Step, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, steps: steps, logger: log.With(zap.String("component", "scheduler"))}
}

// RunOnce runs the chain once and returns the error of the first step that
// failed after its retries.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	timer := metrics.NewTimer()
	for _, step := range s.steps {
		if err := s.runStep(ctx, step); err != nil {
			s.logger.Error("chain stopped",
				zap.String("step", step.Name),
				zap.Duration("duration", timer.Elapsed()),
				zap.Error(err))
			return err
		}
	}
	s.logger.Info("chain completed", zap.Duration("duration", timer.Elapsed()))
	return nil
}

func (s *Scheduler) runStep(ctx context.Context, step Step) error {
	ctx = logger.ContextWithStep(ctx, step.Name)
	log := logger.FromContext(ctx, s.logger)

	attempts := s.cfg.Retries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = step.Run(ctx)
		metrics.StepRuns.WithLabelValues(step.Name, metrics.Status(err)).Inc()
		if err == nil {
			log.Info("step succeeded", zap.Int("attempt", attempt))
			return nil
		}

		if !errors.IsRetryable(err) {
			log.Error("step failed, not retryable",
				zap.Int("attempt", attempt),
				zap.String("kind", string(errors.KindOf(err))),
				zap.Error(err))
			return err
		}
		if attempt == attempts {
			break
		}

		log.Warn("step failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", s.cfg.RetryDelay),
			zap.Error(err))
		if werr := wait(ctx, s.cfg.RetryDelay); werr != nil {
			return err
		}
	}

	log.Error("step failed, retries exhausted", zap.Int("attempts", attempts), zap.Error(err))
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start registers the chain on the cron schedule and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return errors.Wrap(err, errors.KindConfig, "invalid schedule timezone").WithDetail("timezone", s.cfg.Timezone)
	}

	sched := gocron.NewScheduler(loc)
	sched.Cron(s.cfg.Cron).SingletonMode()
	if s.cfg.RunOnStart {
		sched.StartImmediately()
	}
	job, err := sched.Do(func() {
		_ = s.RunOnce(ctx)
	})
	if err != nil {
		return errors.Wrap(err, errors.KindConfig, "invalid schedule").WithDetail("cron", s.cfg.Cron)
	}

	sched.StartAsync()
	s.logger.Info("scheduler started",
		zap.String("cron", s.cfg.Cron),
		zap.String("timezone", loc.String()),
		zap.Time("next_run", job.NextRun()))

	<-ctx.Done()

	sched.Stop()
	s.logger.Info("scheduler stopped")
	return nil
}
