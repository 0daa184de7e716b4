// Package testutil provides testing utilities for gdi
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/gdi/pkg/models"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WriteFile writes content to name inside a per-test temp directory and returns the path.
func WriteFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

// EconomyRecord returns a GDP per capita record for France.
func EconomyRecord(year int, value float64) *models.Record {
	return &models.Record{
		CountryCode:   "FRA",
		CountryName:   "France",
		Date:          models.YearEnd(year),
		IndicatorCode: "NY.GDP.PCAP.CD",
		IndicatorName: "GDP per capita (current US$)",
		Value:         value,
		Unit:          "USD",
		DomainName:    "economy",
	}
}

// FinanceRecord returns a SPY closing price record.
func FinanceRecord(day models.Date, value float64) *models.Record {
	return &models.Record{
		CountryCode:   "WLD",
		CountryName:   "Global",
		Date:          day,
		IndicatorCode: "SPY_CLOSE",
		IndicatorName: "SPY Closing Price",
		Value:         value,
		Unit:          "USD",
		DomainName:    "finance",
	}
}
