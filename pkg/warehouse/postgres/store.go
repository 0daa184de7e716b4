// Package postgres implements the warehouse on PostgreSQL using pgx.
package postgres

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

var _ warehouse.Warehouse = (*Store)(nil)

// Store is a pgx-backed Warehouse.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	dbOnce sync.Once
	db     *sql.DB
}

// Open creates the connection pool and verifies connectivity.
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (*Store, error) {
	logger = logger.With(zap.String("component", "warehouse"))

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to parse connection string")
	}

	poolConfig.MaxConns = cfg.MaxConns
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = 4
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, storageError(err, "failed to create connection pool", "")
	}

	pingCtx, cancel := context.WithTimeout(ctx, poolConfig.ConnConfig.ConnectTimeout+time.Second)
	defer cancel()

	var version string
	if err := pool.QueryRow(pingCtx, "SELECT version()").Scan(&version); err != nil {
		pool.Close()
		return nil, storageError(err, "failed to connect to warehouse", "").
			WithDetail("host", cfg.Host).
			WithDetail("database", cfg.Database)
	}

	logger.Info("connected to warehouse",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("version", version),
		zap.Int32("max_connections", poolConfig.MaxConns))

	return &Store{pool: pool, logger: logger}, nil
}

// InTx runs fn in a read-committed transaction. Errors that already carry a
// kind are returned unchanged; driver errors become storage errors.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx warehouse.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &transaction{tx: tx})
	})
	if err == nil {
		return nil
	}
	if errors.KindOf(err) != "" {
		return err
	}
	return storageError(err, "transaction failed", "")
}

// DB returns a database/sql handle sharing the pool, for goose and quality checks.
func (s *Store) DB() *sql.DB {
	s.dbOnce.Do(func() {
		s.db = stdlib.OpenDBFromPool(s.pool)
	})
	return s.db
}

// Pool exposes the underlying pgx pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases every connection.
func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	s.pool.Close()
	s.logger.Debug("warehouse connections closed")
}

// storageError wraps a driver error, attaching the SQLSTATE when present.
func storageError(err error, msg, table string) *errors.Error {
	e := errors.Wrap(err, errors.KindStorage, msg)
	if table != "" {
		e.WithDetail("table", table)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		e.WithDetail("sqlstate", pgErr.Code).WithDetail("constraint", pgErr.ConstraintName)
	}
	return e
}
