package postgres

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/ajitpratap0/gdi/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

func withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, errors.KindStorage, "failed to set migration dialect")
	}
	return fn()
}

// Migrate applies all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return MigrateDB(ctx, s.DB())
}

// MigrateDB applies all pending migrations using db.
func MigrateDB(ctx context.Context, db *sql.DB) error {
	return withGoose(func() error {
		if err := goose.UpContext(ctx, db, "migrations"); err != nil {
			return errors.Wrap(err, errors.KindStorage, "failed to run migrations")
		}
		return nil
	})
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown(ctx context.Context) error {
	return withGoose(func() error {
		if err := goose.DownContext(ctx, s.DB(), "migrations"); err != nil {
			return errors.Wrap(err, errors.KindStorage, "failed to roll back migration")
		}
		return nil
	})
}

// MigrationVersion returns the current schema version.
func (s *Store) MigrationVersion(ctx context.Context) (int64, error) {
	var version int64
	err := withGoose(func() error {
		v, err := goose.GetDBVersionContext(ctx, s.DB())
		if err != nil {
			return errors.Wrap(err, errors.KindStorage, "failed to read migration version")
		}
		version = v
		return nil
	})
	return version, err
}
