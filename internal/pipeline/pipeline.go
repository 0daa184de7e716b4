// Package pipeline runs one ingestion: fetch every enabled source, combine
// the records, then resolve dimensions and append facts inside a single
// warehouse transaction.
//
// # Overview
//
// A run moves through four stages:
//   - Fetch: each source is called in order; the first failure aborts the run
//   - Combine: outputs are concatenated and validated (Combine)
//   - Resolve: dimension members are ensured and keys looked up (DimensionResolver)
//   - Load: one fact per resolved record is appended (FactLoader)
//
// Resolve and Load share one transaction. Either every dimension change and
// fact of the run is committed or none is. Records whose keys cannot be
// resolved are logged and skipped; they never fail the run.
//
// # Basic Usage
//
//	wh := memory.NewStore()
//	p := pipeline.New([]core.Source{src}, wh, pipeline.WithLogger(log))
//	result, err := p.Run(ctx)
//
// Ingest builds sources and the warehouse from a *config.Config and is the
// entry point used by the CLI and the scheduler.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/connector/core"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/metrics"
	"github.com/ajitpratap0/gdi/pkg/models"
	"github.com/ajitpratap0/gdi/pkg/observability"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

// Pipeline wires sources to a warehouse.
type Pipeline struct {
	sources  []core.Source
	wh       warehouse.Warehouse
	resolver *DimensionResolver
	loader   *FactLoader
	logger   *zap.Logger
	newRunID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for the run.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = log
	}
}

// WithRunIDGenerator replaces the uuid run id generator.
func WithRunIDGenerator(fn func() string) Option {
	return func(p *Pipeline) {
		p.newRunID = fn
	}
}

// RunResult summarizes a committed run.
type RunResult struct {
	RunID string `json:"run_id"`
	// Fetched is the number of records each source returned
	Fetched  map[string]int `json:"fetched"`
	Records  int            `json:"records"`
	Inserted int64          `json:"inserted"`
	// Skipped counts records dropped for unresolved dimension keys
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// New creates a pipeline over sources and wh. Sources are fetched in slice order.
func New(sources []core.Source, wh warehouse.Warehouse, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:  sources,
		wh:       wh,
		logger:   zap.NewNop(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resolver = NewDimensionResolver(p.logger)
	p.loader = NewFactLoader(p.logger)
	return p
}

// Run executes one ingestion. The result is returned only when the run
// committed, or when there was nothing to load.
func (p *Pipeline) Run(ctx context.Context) (_ *RunResult, err error) {
	timer := metrics.NewTimer()
	runID := p.newRunID()
	ctx = logger.ContextWithRunID(ctx, runID)
	log := logger.FromContext(ctx, p.logger)

	ctx, span := observability.StartSpan(ctx, "pipeline.run",
		attribute.String("run_id", runID),
		attribute.Int("sources", len(p.sources)))
	defer func() {
		observability.EndSpan(span, err)
		metrics.PipelineRuns.WithLabelValues(metrics.Status(err)).Inc()
		metrics.PipelineRunDuration.Observe(timer.Seconds())
		if err != nil {
			log.Error("ingestion run failed",
				zap.String("kind", string(errors.KindOf(err))),
				zap.Bool("retryable", errors.IsRetryable(err)),
				zap.Error(err))
		}
	}()

	log.Info("ingestion run started", zap.Int("sources", len(p.sources)))

	result := &RunResult{RunID: runID, Fetched: make(map[string]int, len(p.sources))}
	outputs := make([][]*models.Record, 0, len(p.sources))
	for _, src := range p.sources {
		records, err := p.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		result.Fetched[src.Name()] = len(records)
		outputs = append(outputs, records)
	}

	records, err := Combine(outputs)
	if err != nil {
		return nil, err
	}
	result.Records = len(records)

	if len(records) == 0 {
		result.Duration = timer.Elapsed()
		log.Info("nothing to load")
		return result, nil
	}

	var stats LoadStats
	err = p.wh.InTx(ctx, func(ctx context.Context, tx warehouse.Tx) error {
		keys, err := p.resolver.Resolve(ctx, tx, records)
		if err != nil {
			return err
		}
		stats, err = p.loader.Load(ctx, tx, records, keys)
		return err
	})
	if err != nil {
		return nil, asStorage(err, "load transaction failed")
	}

	metrics.Facts.WithLabelValues(metrics.OutcomeInserted).Add(float64(stats.Inserted))
	metrics.Facts.WithLabelValues(metrics.OutcomeSkipped).Add(float64(stats.Skipped))

	result.Inserted = stats.Inserted
	result.Skipped = stats.Skipped
	result.Duration = timer.Elapsed()

	span.SetAttributes(
		attribute.Int("records", result.Records),
		attribute.Int64("inserted", result.Inserted),
		attribute.Int("skipped", result.Skipped))
	log.Info("ingestion run committed",
		zap.Int("records", result.Records),
		zap.Int64("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (p *Pipeline) fetch(ctx context.Context, src core.Source) (_ []*models.Record, err error) {
	name := src.Name()
	ctx = logger.ContextWithSource(ctx, name)
	ctx, span := observability.StartSpan(ctx, "source.fetch", attribute.String("source", name))
	timer := metrics.NewTimer()
	defer func() {
		observability.EndSpan(span, err)
		metrics.SourceFetchDuration.WithLabelValues(name, metrics.Status(err)).Observe(timer.Seconds())
	}()

	records, err := src.Fetch(ctx)
	if err != nil {
		if errors.KindOf(err) == "" {
			return nil, errors.Wrap(err, errors.KindTransport, "source fetch failed").WithDetail("source", name)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	logger.FromContext(ctx, p.logger).Debug("source fetched",
		zap.Int("records", len(records)),
		zap.Duration("duration", timer.Elapsed()))
	return records, nil
}
