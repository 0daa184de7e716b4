package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/archive"
	"github.com/ajitpratap0/gdi/pkg/clients"
	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/connector/core"
	"github.com/ajitpratap0/gdi/pkg/connector/registry"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
	"github.com/ajitpratap0/gdi/pkg/warehouse/memory"
	"github.com/ajitpratap0/gdi/pkg/warehouse/postgres"

	// Register the built-in sources
	_ "github.com/ajitpratap0/gdi/pkg/connector/sources"
)

// Ingest runs one ingestion described by cfg. The warehouse is opened for
// the duration of the run and closed on every exit path.
func Ingest(ctx context.Context, cfg *config.Config, log *zap.Logger) (*RunResult, error) {
	if log == nil {
		log = zap.NewNop()
	}

	sink, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}

	httpClient := clients.NewHTTPClient(clients.HTTPConfigFrom(cfg.HTTP), log)
	defer httpClient.Close()

	sources, err := registry.CreateEnabled(cfg, core.Deps{
		HTTP:    httpClient,
		Archive: sink,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	wh, err := OpenWarehouse(ctx, cfg.Warehouse, log)
	if err != nil {
		return nil, err
	}
	defer wh.Close()

	return New(sources, wh, WithLogger(log)).Run(ctx)
}

// OpenWarehouse opens the configured warehouse driver, applying migrations
// to Postgres when auto_migrate is set.
func OpenWarehouse(ctx context.Context, cfg config.WarehouseConfig, log *zap.Logger) (warehouse.Warehouse, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverPostgres, "":
		store, err := postgres.Open(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, errors.Newf(errors.KindConfig, "unknown warehouse driver %q", cfg.Driver)
	}
}
