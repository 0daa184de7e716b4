// Package market implements the market-index source backed by the Yahoo
// Finance chart API.
package market

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

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
const SourceName = config.SourceMarket

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Currency             string `json:"currency"`
		Symbol               string `json:"symbol"`
		GMTOffset            int    `json:"gmtoffset"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// Source fetches the daily closing series of one ticker.
type Source struct {
	cfg     config.MarketConfig
	client  *clients.HTTPClient
	archive archive.Sink
	logger  *zap.Logger
}

var _ core.Source = (*Source)(nil)

// New creates a market source.
func New(cfg config.MarketConfig, client *clients.HTTPClient, sink archive.Sink, log *zap.Logger) *Source {
	return &Source{
		cfg:     cfg,
		client:  client,
		archive: sink,
		logger:  log.With(zap.String("source", SourceName)),
	}
}

func newFromConfig(cfg *config.Config, deps core.Deps) (core.Source, error) {
	return New(cfg.Sources.Market, deps.HTTP, deps.Archive, deps.Logger), nil
}

// Name returns the registry name
func (s *Source) Name() string {
	return SourceName
}

// IndicatorCode is the indicator code emitted for ticker.
func IndicatorCode(ticker string) string {
	return strings.ToUpper(ticker) + "_CLOSE"
}

// Fetch requests the configured range and emits one record per trading day
// with a close. Days without a close are dropped.
func (s *Source) Fetch(ctx context.Context) ([]*models.Record, error) {
	ticker := strings.ToUpper(s.cfg.Ticker)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(ticker))
	params := url.Values{
		"range":    {s.cfg.Range},
		"interval": {s.cfg.Interval},
	}

	var resp chartResponse
	body, err := s.client.GetJSON(ctx, endpoint, params, &resp)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "market chart request failed").WithDetail("ticker", ticker)
	}
	if err := archive.Store(ctx, s.archive, SourceName, ticker, body); err != nil {
		return nil, err
	}

	if e := resp.Chart.Error; e != nil {
		return nil, errors.Newf(errors.KindTransport, "market provider error %s: %s", e.Code, e.Description).
			WithDetail("ticker", ticker)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, errors.New(errors.KindEmptyDataset, "market provider returned no series").WithDetail("ticker", ticker)
	}

	records, filtered := s.toRecords(ticker, resp.Chart.Result[0])

	metrics.SourceRecords.WithLabelValues(SourceName, metrics.OutcomeEmitted).Add(float64(len(records)))
	metrics.SourceRecords.WithLabelValues(SourceName, metrics.OutcomeFiltered).Add(float64(filtered))

	if len(records) == 0 {
		return nil, errors.New(errors.KindEmptyDataset, "market provider returned no closing prices").
			WithDetail("ticker", ticker).
			WithDetail("filtered", filtered)
	}

	logger.FromContext(ctx, s.logger).Info("market fetch completed",
		zap.String("ticker", ticker),
		zap.Int("records", len(records)),
		zap.Int("filtered", filtered))
	return records, nil
}

func (s *Source) toRecords(ticker string, res chartResult) ([]*models.Record, int) {
	var closes []*float64
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}

	loc := exchangeLocation(res.Meta.ExchangeTimezoneName, res.Meta.GMTOffset)
	unit := res.Meta.Currency
	if unit == "" {
		unit = s.cfg.Unit
	}

	records := make([]*models.Record, 0, len(res.Timestamp))
	filtered := 0
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil || math.IsNaN(*closes[i]) || math.IsInf(*closes[i], 0) {
			filtered++
			continue
		}
		records = append(records, &models.Record{
			CountryCode:   s.cfg.CountryCode,
			CountryName:   s.cfg.CountryName,
			Date:          models.DateOf(time.Unix(ts, 0).In(loc)),
			IndicatorCode: IndicatorCode(ticker),
			IndicatorName: ticker + " Closing Price",
			Value:         *closes[i],
			Unit:          unit,
			DomainName:    s.cfg.Domain,
		})
	}
	return records, filtered
}

// exchangeLocation resolves the exchange time zone so timestamps land on
// their trading day. It falls back to a fixed zone at gmtoffset seconds.
func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}
