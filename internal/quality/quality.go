// Package quality checks the loaded warehouse against column expectations.
//
// The checks read the joined fact view (value, indicator_code, country_code,
// date) and fail with a validation_failed error when any expectation has
// unexpected rows. Nothing is written back.
package quality

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/metrics"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
	"github.com/ajitpratap0/gdi/pkg/warehouse/postgres"
)

// Column names of the fact view.
const (
	ColumnValue         = "value"
	ColumnIndicatorCode = "indicator_code"
	ColumnCountryCode   = "country_code"
	ColumnDate          = "date"
)

// maxSamples bounds the row indexes kept per failed expectation.
const maxSamples = 20

// RowSource provides the fact view.
type RowSource interface {
	FactRows(ctx context.Context) ([]warehouse.FactRow, error)
}

// Expectation is a per-row predicate over one column. Rows for which Applies
// is false are not evaluated.
type Expectation struct {
	Name    string
	Column  string
	Applies func(row warehouse.FactRow) bool
	Check   func(row warehouse.FactRow) bool
}

// NotNull expects column to be non-NULL on every row.
func NotNull(column string) Expectation {
	return Expectation{
		Name:   "expect_column_values_to_not_be_null(" + column + ")",
		Column: column,
		Check:  func(row warehouse.FactRow) bool { return !isNull(row, column) },
	}
}

// GreaterThan expects the value column to be strictly greater than min.
// NULL values are ignored.
func GreaterThan(min float64) Expectation {
	return Expectation{
		Name:    fmt.Sprintf("expect_column_values_to_be_greater_than(%s, %g)", ColumnValue, min),
		Column:  ColumnValue,
		Applies: func(row warehouse.FactRow) bool { return row.Value != nil },
		Check:   func(row warehouse.FactRow) bool { return *row.Value > min },
	}
}

func isNull(row warehouse.FactRow, column string) bool {
	switch column {
	case ColumnValue:
		return row.Value == nil
	case ColumnIndicatorCode:
		return row.IndicatorCode == nil
	case ColumnCountryCode:
		return row.CountryCode == nil
	case ColumnDate:
		return row.Date == nil
	default:
		return true
	}
}

// Result is the outcome of one expectation.
type Result struct {
	Expectation string `json:"expectation"`
	Evaluated   int    `json:"evaluated"`
	Unexpected  int    `json:"unexpected"`
	// Samples holds the indexes of the first unexpected rows
	Samples []int `json:"samples,omitempty"`
	Success bool  `json:"success"`
}

// Report is the outcome of a suite.
type Report struct {
	Rows    int      `json:"rows"`
	Results []Result `json:"results"`
	Success bool     `json:"success"`
}

// Failed returns the names of the failed expectations.
func (r *Report) Failed() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Success {
			names = append(names, res.Expectation)
		}
	}
	return names
}

// Err returns a validation_failed error when the report did not succeed.
func (r *Report) Err() error {
	if r.Success {
		return nil
	}
	failed := r.Failed()
	return errors.Newf(errors.KindValidationFailed, "quality checks failed: %s", strings.Join(failed, ", ")).
		WithDetail("failed", failed).
		WithDetail("rows", r.Rows)
}

// Suite is an ordered list of expectations.
type Suite struct {
	expectations []Expectation
	logger       *zap.Logger
}

// NewSuite creates a suite.
func NewSuite(log *zap.Logger, expectations ...Expectation) *Suite {
	if log == nil {
		log = zap.NewNop()
	}
	return &Suite{expectations: expectations, logger: log}
}

// DefaultSuite returns the standard fact checks: no NULL in any column and
// values strictly above cfg.MinValue.
func DefaultSuite(cfg config.QualityConfig, log *zap.Logger) *Suite {
	return NewSuite(log,
		NotNull(ColumnValue),
		NotNull(ColumnIndicatorCode),
		NotNull(ColumnCountryCode),
		NotNull(ColumnDate),
		GreaterThan(cfg.MinValue),
	)
}

// Evaluate loads the rows once and applies every expectation. The report is
// returned even when checks fail; the error is then validation_failed.
func (s *Suite) Evaluate(ctx context.Context, src RowSource) (*Report, error) {
	log := logger.FromContext(ctx, s.logger)

	rows, err := src.FactRows(ctx)
	if err != nil {
		if errors.KindOf(err) == "" {
			err = errors.Wrap(err, errors.KindStorage, "failed to read fact view")
		}
		return nil, err
	}

	report := &Report{Rows: len(rows), Success: true}
	for _, exp := range s.expectations {
		res := Result{Expectation: exp.Name}
		for i, row := range rows {
			if exp.Applies != nil && !exp.Applies(row) {
				continue
			}
			res.Evaluated++
			if !exp.Check(row) {
				res.Unexpected++
				if len(res.Samples) < maxSamples {
					res.Samples = append(res.Samples, i)
				}
			}
		}
		res.Success = res.Unexpected == 0
		if !res.Success {
			report.Success = false
			metrics.QualityFailures.WithLabelValues(exp.Name).Inc()
			log.Warn("expectation failed",
				zap.String("expectation", exp.Name),
				zap.Int("unexpected", res.Unexpected),
				zap.Int("evaluated", res.Evaluated))
		}
		report.Results = append(report.Results, res)
	}

	if report.Success {
		log.Info("quality checks passed",
			zap.Int("rows", report.Rows),
			zap.Int("expectations", len(report.Results)))
	}
	return report, report.Err()
}

// Run evaluates the default suite against the configured Postgres warehouse.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Quality.Enabled {
		log.Info("quality checks disabled")
		return &Report{Success: true}, nil
	}
	if cfg.Warehouse.Driver == config.DriverMemory {
		return nil, errors.New(errors.KindConfig, "quality checks need a persistent warehouse, the memory driver keeps no data between commands")
	}

	store, err := postgres.Open(ctx, cfg.Warehouse, log)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return DefaultSuite(cfg.Quality, log).Evaluate(ctx, NewSQLSource(store.DB()))
}
