// Package gdi ingests economic and financial indicators into a Postgres
// star schema.
//
// Each run pulls macro indicators from the World Bank v2 API and daily index
// closing prices from the Yahoo Finance chart API (optionally canonical rows
// from a CSV file), maps them to one canonical record shape, and loads them
// into fact_indicator keyed by dim_domain, dim_country and dim_date. All
// dimension and fact writes of a run commit in a single transaction.
//
// # Architecture
//
// A run moves through four components:
//
//  1. Sources (pkg/connector/sources/...) fetch a provider and emit
//     canonical records, filtering rows with missing values.
//  2. The normalizer (internal/pipeline.Combine) concatenates and validates
//     the outputs in source order.
//  3. The dimension resolver ensures domains, countries and dates exist and
//     resolves each record to surrogate keys in one batch.
//  4. The fact loader appends one fact per resolved record.
//
// Ingestion is followed by quality checks (internal/quality) and the
// warehouse transformation command (internal/transform). The bundled
// scheduler (internal/scheduler) runs the three in order every day.
//
// # Quick Start
//
//	gdi migrate up
//	gdi run
//	gdi check
//	gdi pipeline          # run, check and transform in order
//	gdi schedule          # the same chain on schedule.cron
//
// A dry run loads into an in-memory warehouse:
//
//	gdi run --dry-run
//
// # Key Packages
//
//	pkg/connector    - Source contract, registry and the built-in sources
//	pkg/warehouse    - Warehouse contract, Postgres and in-memory stores
//	pkg/archive      - Raw payload archiving to a directory or S3
//	pkg/config       - YAML and environment configuration
//	pkg/errors       - Structured error kinds
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus collectors
//	pkg/observability - OpenTelemetry tracing
//
// # Configuration
//
// Warehouse credentials come from POSTGRES_USER, POSTGRES_PASSWORD,
// POSTGRES_DB, POSTGRES_HOST and POSTGRES_PORT. Every other key can be set in
// a YAML file passed with --config, which supports ${VAR_NAME} substitution,
// or overridden with GDI_-prefixed variables such as GDI_HTTP_REQUEST_TIMEOUT.
// A .env file in the working directory is loaded first when present.
//
// # Development
//
//	go test -short ./...   # unit tests
//	go test ./...          # includes Postgres integration tests (needs Docker)
package gdi
