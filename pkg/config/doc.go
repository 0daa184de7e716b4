// Package config provides the configuration value object for gdi.
//
// A single Config is built once per process and threaded explicitly into
// every component. Nothing in gdi reads the environment on its own.
//
// # Sources of configuration
//
// Values are layered, lowest priority first:
//
//   - Defaults from Default()
//   - An optional YAML file, with ${VAR_NAME} substitution
//   - Environment variables
//
// Warehouse connection parameters use the conventional Postgres variables
// POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DB, POSTGRES_HOST and
// POSTGRES_PORT. Every other key is reachable as GDI_<SECTION>_<KEY>, for
// example GDI_SOURCES_WORLDBANK_COUNTRIES=FRA,USA or GDI_HTTP_REQUEST_TIMEOUT=10s.
//
// # Usage
//
//	cfg, err := config.Load("gdi.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	pool, err := pgxpool.New(ctx, cfg.Warehouse.DSN())
//
// Load validates the result; call Validate again after mutating a Config by hand.
package config
