package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
)

func TestStorageError_SQLState(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "fact_indicator_country_id_fkey"}
	err := storageError(fmt.Errorf("copy: %w", pgErr), "failed to insert facts", "fact_indicator")

	assert.Equal(t, errors.KindStorage, err.Kind)
	assert.Equal(t, "fact_indicator", err.Details["table"])
	assert.Equal(t, "23503", err.Details["sqlstate"])
	assert.Equal(t, "fact_indicator_country_id_fkey", err.Details["constraint"])
}

func TestOpen_Unreachable(t *testing.T) {
	cfg := config.Default().Warehouse
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.ConnectTimeout = 500 * time.Millisecond

	_, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStorage))
	assert.True(t, errors.IsRetryable(err))
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := migrations.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	for _, table := range []string{"dim_domain", "dim_country", "dim_date", "fact_indicator"} {
		assert.Contains(t, string(body), table)
	}
}
