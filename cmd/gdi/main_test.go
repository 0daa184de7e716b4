package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gdi/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "facts.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"country_code,country_name,date,indicator_code,indicator_name,value,unit,domain_name\n"+
			"FRA,France,2023-12-31,NY.GDP.PCAP.CD,GDP per capita (current US$),45000,USD,economy\n"), 0o600))

	cfgPath := filepath.Join(dir, "gdi.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
warehouse:
  password: s3cret
sources:
  enabled: [csv]
  csv:
    path: `+csvPath+`
observability:
  log_level: error
`), 0o600))
	return cfgPath
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gdi v"+version)
}

func TestSourcesCommand(t *testing.T) {
	out, err := execute(t, "sources")
	require.NoError(t, err)
	for _, name := range []string{"worldbank", "market", "csv"} {
		assert.Contains(t, out, name)
	}
}

func TestConfigCommand_RedactsPassword(t *testing.T) {
	out, err := execute(t, "config", "--config", writeConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "****")
	assert.NotContains(t, out, "s3cret")
}

func TestConfigCommand_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effective.yaml")
	out, err := execute(t, "config", "--config", writeConfig(t), "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "****")
	assert.NotContains(t, string(data), "s3cret")
	assert.Contains(t, string(data), "csv")
}

func TestConfigCommand_WriteFailureIsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "effective.yaml")
	_, err := execute(t, "config", "--config", writeConfig(t), "--out", path)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestRunCommand_DryRun(t *testing.T) {
	out, err := execute(t, "run", "--dry-run", "--config", writeConfig(t))
	require.NoError(t, err)

	var result struct {
		RunID    string         `json:"run_id"`
		Fetched  map[string]int `json:"fetched"`
		Inserted int64          `json:"inserted"`
	}
	require.NoError(t, json.Unmarshal([]byte(out[bytes.IndexByte([]byte(out), '{'):]), &result))
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, map[string]int{"csv": 1}, result.Fetched)
	assert.EqualValues(t, 1, result.Inserted)
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMigrateCommand_RejectsUnknownAction(t *testing.T) {
	_, err := execute(t, "migrate", "sideways")
	require.Error(t, err)
}

func TestMetricsRouter(t *testing.T) {
	srv := httptest.NewServer(newMetricsRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
