// Package csv implements a source that reads canonical records from a CSV file.
//
// The file must carry a header naming the canonical columns in any order:
//
//	country_code,country_name,date,indicator_code,indicator_name,value,unit,domain_name
//
// date is YYYY-MM-DD, or a bare year which maps to December 31st. Extra
// columns are ignored.
package csv

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/connector/core"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/metrics"
	"github.com/ajitpratap0/gdi/pkg/models"
)

// SourceName is the registry name of the source.
const SourceName = config.SourceCSV

// Columns lists the canonical header names.
var Columns = []string{
	"country_code", "country_name", "date", "indicator_code",
	"indicator_name", "value", "unit", "domain_name",
}

// Source reads records from a local CSV file.
type Source struct {
	cfg    config.CSVConfig
	logger *zap.Logger
}

var _ core.Source = (*Source)(nil)

// New creates a CSV source.
func New(cfg config.CSVConfig, log *zap.Logger) *Source {
	return &Source{cfg: cfg, logger: log.With(zap.String("source", SourceName))}
}

func newFromConfig(cfg *config.Config, deps core.Deps) (core.Source, error) {
	if cfg.Sources.CSV.Path == "" {
		return nil, errors.New(errors.KindConfig, "sources.csv.path is required")
	}
	return New(cfg.Sources.CSV, deps.Logger), nil
}

// Name returns the registry name
func (s *Source) Name() string {
	return SourceName
}

// Fetch reads the whole file.
func (s *Source) Fetch(ctx context.Context) ([]*models.Record, error) {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "failed to open csv file").WithDetail("path", s.cfg.Path)
	}
	defer f.Close()

	records, filtered, err := s.Read(ctx, f)
	if err != nil {
		return nil, err
	}

	metrics.SourceRecords.WithLabelValues(SourceName, metrics.OutcomeEmitted).Add(float64(len(records)))
	metrics.SourceRecords.WithLabelValues(SourceName, metrics.OutcomeFiltered).Add(float64(filtered))

	if len(records) == 0 {
		return nil, errors.New(errors.KindEmptyDataset, "csv file has no usable rows").
			WithDetail("path", s.cfg.Path).
			WithDetail("filtered", filtered)
	}

	logger.FromContext(ctx, s.logger).Info("csv read completed",
		zap.String("path", s.cfg.Path),
		zap.Int("records", len(records)),
		zap.Int("filtered", filtered))
	return records, nil
}

// Read parses r and returns the usable records and the number of rows
// dropped for a missing or unparsable field.
func (s *Source) Read(ctx context.Context, r io.Reader) ([]*models.Record, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, errors.Wrap(err, errors.KindTransport, "failed to read csv header")
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, 0, err
	}

	var (
		records  []*models.Record
		filtered int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, errors.Wrap(err, errors.KindTransport, "csv read cancelled")
		}
		row, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.KindTransport, "failed to read csv row")
		}

		rec, ok := s.toRecord(row, index)
		if !ok {
			filtered++
			continue
		}
		records = append(records, rec)
	}
	return records, filtered, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.KindInvalidRecord, "csv header is missing canonical columns").
			WithDetail("missing", missing)
	}
	return index, nil
}

func (s *Source) toRecord(row []string, index map[string]int) (*models.Record, bool) {
	field := func(name string) string {
		i := index[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	value, err := strconv.ParseFloat(field("value"), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, false
	}
	date, ok := parseDate(field("date"))
	if !ok {
		return nil, false
	}

	domain := field("domain_name")
	if s.cfg.Domain != "" {
		domain = s.cfg.Domain
	}

	rec := &models.Record{
		CountryCode:   field("country_code"),
		CountryName:   field("country_name"),
		Date:          date,
		IndicatorCode: field("indicator_code"),
		IndicatorName: field("indicator_name"),
		Value:         value,
		Unit:          field("unit"),
		DomainName:    domain,
	}
	if rec.Validate() != nil {
		return nil, false
	}
	return rec, true
}

func parseDate(s string) (models.Date, bool) {
	if d, err := models.ParseDate(s); err == nil {
		return d, true
	}
	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil {
			return models.YearEnd(y), true
		}
	}
	return models.Date{}, false
}
