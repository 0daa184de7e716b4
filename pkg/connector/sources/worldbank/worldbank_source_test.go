package worldbank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/gdi/pkg/archive"
	"github.com/ajitpratap0/gdi/pkg/clients"
	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/models"
)

const (
	franceP1 = `[{"page":1,"pages":2,"per_page":"2","total":3},[
		{"indicator":{"id":"NY.GDP.PCAP.CD","value":"GDP per capita (current US$)"},"country":{"id":"FR","value":"France"},"countryiso3code":"FRA","date":"2023","value":45000.0},
		{"indicator":{"id":"NY.GDP.PCAP.CD","value":"GDP per capita (current US$)"},"country":{"id":"FR","value":"France"},"countryiso3code":"FRA","date":"2022","value":null}
	]]`
	franceP2 = `[{"page":2,"pages":2,"per_page":"2","total":3},[
		{"indicator":{"id":"NY.GDP.PCAP.CD","value":"GDP per capita (current US$)"},"country":{"id":"FR","value":"France"},"countryiso3code":"FRA","date":"2021","value":43500.25}
	]]`
	usaP1 = `[{"page":1,"pages":1,"per_page":"2","total":2},[
		{"indicator":{"id":"NY.GDP.PCAP.CD","value":"GDP per capita (current US$)"},"country":{"id":"US","value":"United States"},"countryiso3code":"USA","date":"2023","value":80000.0},
		{"indicator":{"id":"NY.GDP.PCAP.CD","value":"GDP per capita (current US$)"},"country":{"id":"US","value":""},"countryiso3code":"USA","date":"2022","value":76000.0}
	]]`
	noData   = `[{"page":1,"pages":0,"per_page":"2","total":0},null]`
	apiError = `[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`
)

func newTestSource(t *testing.T, handler http.HandlerFunc, countries []string, sink archive.Sink) *Source {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Sources.WorldBank
	cfg.BaseURL = srv.URL + "/v2"
	cfg.Countries = countries
	cfg.PerPage = 2

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RateLimit = 0
	httpCfg.EnableHTTP2 = false
	log := zaptest.NewLogger(t)
	return New(cfg, clients.NewHTTPClient(httpCfg, log), sink, log)
}

func routes(t *testing.T, pages map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "2000:2023", r.URL.Query().Get("date"))
		key := fmt.Sprintf("%s?page=%s", r.URL.Path, r.URL.Query().Get("page"))
		body, ok := pages[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}
}

func TestSource_Fetch(t *testing.T) {
	src := newTestSource(t, routes(t, map[string]string{
		"/v2/country/FRA/indicator/NY.GDP.PCAP.CD?page=1": franceP1,
		"/v2/country/FRA/indicator/NY.GDP.PCAP.CD?page=2": franceP2,
		"/v2/country/USA/indicator/NY.GDP.PCAP.CD?page=1": usaP1,
		"/v2/country/DEU/indicator/NY.GDP.PCAP.CD?page=1": noData,
	}), []string{"FRA", "USA", "DEU"}, nil)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, &models.Record{
		CountryCode:   "FRA",
		CountryName:   "France",
		Date:          models.YearEnd(2023),
		IndicatorCode: "NY.GDP.PCAP.CD",
		IndicatorName: "GDP per capita (current US$)",
		Value:         45000.0,
		Unit:          "USD",
		DomainName:    "economy",
	}, records[0])
	assert.Equal(t, models.YearEnd(2021), records[1].Date)
	assert.Equal(t, "USA", records[2].CountryCode)
	assert.Equal(t, "United States", records[2].CountryName)

	for _, r := range records {
		assert.NoError(t, r.Validate())
	}
}

func TestSource_Fetch_KeepsEarlierPagesWhenLaterPageIsNull(t *testing.T) {
	src := newTestSource(t, routes(t, map[string]string{
		"/v2/country/FRA/indicator/NY.GDP.PCAP.CD?page=1": franceP1,
		"/v2/country/FRA/indicator/NY.GDP.PCAP.CD?page=2": `[{"page":2,"pages":2,"per_page":"2","total":3},null]`,
	}), []string{"FRA"}, nil)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "FRA", records[0].CountryCode)
	assert.Equal(t, models.YearEnd(2023), records[0].Date)
	assert.Equal(t, 45000.0, records[0].Value)
}

func TestSource_Fetch_EmptyDataset(t *testing.T) {
	src := newTestSource(t, routes(t, map[string]string{
		"/v2/country/DEU/indicator/NY.GDP.PCAP.CD?page=1": noData,
	}), []string{"DEU"}, nil)

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindEmptyDataset))
}

func TestSource_Fetch_TransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"api error payload", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(apiError)) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"not an array", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"oops":true}`)) }},
		{"empty array", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`[]`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, tt.handler, []string{"FRA"}, nil)
			_, err := src.Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindTransport))
		})
	}
}

func TestSource_Fetch_ArchivesPages(t *testing.T) {
	dir := t.TempDir()
	src := newTestSource(t, routes(t, map[string]string{
		"/v2/country/USA/indicator/NY.GDP.PCAP.CD?page=1": usaP1,
	}), []string{"USA"}, archive.NewFileSink(dir, archive.CodecNone))

	ctx := logger.ContextWithRunID(context.Background(), "run-7")
	_, err := src.Fetch(ctx)
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(dir, "worldbank", "run-7", "USA_NY.GDP.PCAP.CD_p1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, usaP1, string(body))
}

func TestToRecord_Filtering(t *testing.T) {
	src := &Source{cfg: config.Default().Sources.WorldBank}
	ind := src.cfg.Indicators[0]
	v := 1.5

	tests := []struct {
		name string
		obs  observation
		ok   bool
	}{
		{"valid", observation{Country: labelled{Value: "France"}, Date: "2020", Value: &v}, true},
		{"null value", observation{Country: labelled{Value: "France"}, Date: "2020"}, false},
		{"quarterly date", observation{Country: labelled{Value: "France"}, Date: "2020Q1", Value: &v}, false},
		{"blank label", observation{Country: labelled{Value: "  "}, Date: "2020", Value: &v}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := src.toRecord("FRA", ind, tt.obs)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
