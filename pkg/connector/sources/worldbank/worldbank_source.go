// Package worldbank implements the macro-indicator source backed by the
// World Bank v2 indicators API.
package worldbank

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/archive"
	"github.com/ajitpratap0/gdi/pkg/clients"
	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/connector/core"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/metrics"
	"github.com/ajitpratap0/gdi/pkg/models"
)

// SourceName is the registry name of the source.
const SourceName = config.SourceWorldBank

// pageMeta is the first element of every response array.
type pageMeta struct {
	Page    int          `json:"page"`
	Pages   int          `json:"pages"`
	Total   int          `json:"total"`
	Message []apiMessage `json:"message"`
}

// apiMessage is the error payload the API returns instead of data.
type apiMessage struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type labelled struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// observation is one element of the data array.
type observation struct {
	Indicator   labelled `json:"indicator"`
	Country     labelled `json:"country"`
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// Source fetches configured indicators for every tracked country.
type Source struct {
	cfg     config.WorldBankConfig
	client  *clients.HTTPClient
	archive archive.Sink
	logger  *zap.Logger
}

var _ core.Source = (*Source)(nil)

// New creates a World Bank source.
func New(cfg config.WorldBankConfig, client *clients.HTTPClient, sink archive.Sink, log *zap.Logger) *Source {
	return &Source{
		cfg:     cfg,
		client:  client,
		archive: sink,
		logger:  log.With(zap.String("source", SourceName)),
	}
}

func newFromConfig(cfg *config.Config, deps core.Deps) (core.Source, error) {
	return New(cfg.Sources.WorldBank, deps.HTTP, deps.Archive, deps.Logger), nil
}

// Name returns the registry name
func (s *Source) Name() string {
	return SourceName
}

// Fetch requests every country and indicator in configuration order. Rows
// with a null value, an unparsable year or no country label are dropped.
func (s *Source) Fetch(ctx context.Context) ([]*models.Record, error) {
	var (
		records  []*models.Record
		filtered int
	)
	for _, country := range s.cfg.Countries {
		for _, indicator := range s.cfg.Indicators {
			got, dropped, err := s.fetchSeries(ctx, country, indicator)
			if err != nil {
				return nil, err
			}
			records = append(records, got...)
			filtered += dropped
		}
	}

	metrics.SourceRecords.WithLabelValues(SourceName, metrics.OutcomeEmitted).Add(float64(len(records)))
	metrics.SourceRecords.WithLabelValues(SourceName, metrics.OutcomeFiltered).Add(float64(filtered))

	if len(records) == 0 {
		return nil, errors.New(errors.KindEmptyDataset, "world bank returned no usable rows").
			WithDetail("countries", s.cfg.Countries).
			WithDetail("filtered", filtered)
	}

	logger.FromContext(ctx, s.logger).Info("world bank fetch completed",
		zap.Int("records", len(records)),
		zap.Int("filtered", filtered))
	return records, nil
}

// fetchSeries follows the pagination of one country and indicator.
func (s *Source) fetchSeries(ctx context.Context, country string, indicator config.IndicatorConfig) ([]*models.Record, int, error) {
	log := logger.FromContext(ctx, s.logger).With(
		zap.String("country", country),
		zap.String("indicator", indicator.Code))

	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		url.PathEscape(country),
		url.PathEscape(indicator.Code))

	var (
		records  []*models.Record
		filtered int
	)
	for page := 1; ; page++ {
		params := url.Values{
			"format":   {"json"},
			"per_page": {strconv.Itoa(s.cfg.PerPage)},
			"date":     {fmt.Sprintf("%d:%d", s.cfg.StartYear, s.cfg.EndYear)},
			"page":     {strconv.Itoa(page)},
		}

		var raw []json.RawMessage
		body, err := s.client.GetJSON(ctx, endpoint, params, &raw)
		if err != nil {
			return nil, 0, err
		}
		name := fmt.Sprintf("%s_%s_p%d", country, indicator.Code, page)
		if err := archive.Store(ctx, s.archive, SourceName, name, body); err != nil {
			return nil, 0, err
		}

		meta, rows, err := decodePage(raw)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.KindTransport, "unexpected world bank response").
				WithDetail("country", country).
				WithDetail("indicator", indicator.Code)
		}
		if rows == nil {
			if page == 1 {
				log.Warn("no data for country")
				return nil, 0, nil
			}
			log.Warn("page returned no data, keeping earlier pages", zap.Int("page", page))
			break
		}

		for _, o := range rows {
			rec, ok := s.toRecord(country, indicator, o)
			if !ok {
				filtered++
				continue
			}
			records = append(records, rec)
		}

		if page >= meta.Pages {
			break
		}
	}

	log.Debug("series fetched", zap.Int("records", len(records)), zap.Int("filtered", filtered))
	return records, filtered, nil
}

// decodePage splits a [meta, rows] response. rows is nil when the API has
// no data for the request.
func decodePage(raw []json.RawMessage) (pageMeta, []observation, error) {
	var meta pageMeta
	if len(raw) == 0 {
		return meta, nil, fmt.Errorf("empty response array")
	}
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return meta, nil, fmt.Errorf("decode page metadata: %w", err)
	}
	if len(meta.Message) > 0 {
		m := meta.Message[0]
		return meta, nil, fmt.Errorf("api error %s: %s %s", m.ID, m.Key, m.Value)
	}
	if len(raw) < 2 || bytes.Equal(bytes.TrimSpace(raw[1]), []byte("null")) {
		return meta, nil, nil
	}

	rows := []observation{}
	if err := json.Unmarshal(raw[1], &rows); err != nil {
		return meta, nil, fmt.Errorf("decode observations: %w", err)
	}
	return meta, rows, nil
}

func (s *Source) toRecord(country string, indicator config.IndicatorConfig, o observation) (*models.Record, bool) {
	if o.Value == nil || math.IsNaN(*o.Value) || math.IsInf(*o.Value, 0) {
		return nil, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(o.Date))
	if err != nil {
		return nil, false
	}
	name := strings.TrimSpace(o.Country.Value)
	if name == "" {
		return nil, false
	}

	return &models.Record{
		CountryCode:   country,
		CountryName:   name,
		Date:          models.YearEnd(year),
		IndicatorCode: indicator.Code,
		IndicatorName: indicator.Name,
		Value:         *o.Value,
		Unit:          indicator.Unit,
		DomainName:    s.cfg.Domain,
	}, true
}
