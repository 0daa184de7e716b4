// Package warehouse defines the persistence contract of the star schema.
//
// A Warehouse hands out units of work. Everything done through one Tx is
// committed together or not at all: dimension upserts and fact inserts of a
// run never become visible independently.
//
// Implementations live in sub-packages: postgres for the real warehouse and
// memory for tests and dry runs.
package warehouse

import (
	"context"
	"time"

	"github.com/ajitpratap0/gdi/pkg/models"
)

// Table names of the star schema.
const (
	TableDomain  = "dim_domain"
	TableCountry = "dim_country"
	TableDate    = "dim_date"
	TableFact    = "fact_indicator"
)

// Warehouse opens transactional units of work.
type Warehouse interface {
	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise, including on panic.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Close releases the underlying connections.
	Close()
}

// Tx is the repository view of a single transaction.
type Tx interface {
	DimensionRepository
	FactRepository
}

// DimensionRepository maintains dimension rows and resolves natural keys.
type DimensionRepository interface {
	// EnsureDomains inserts missing domain names. Existing rows are never modified.
	EnsureDomains(ctx context.Context, names []string) error

	// UpsertCountries inserts missing countries and overwrites the name of existing codes.
	UpsertCountries(ctx context.Context, countries []models.Country) error

	// EnsureDates inserts missing calendar dates.
	EnsureDates(ctx context.Context, dates []models.Date) error

	// ResolveBatch returns the surrogate keys of every natural key whose three
	// dimension members exist. Keys with any missing member are absent from the result.
	ResolveBatch(ctx context.Context, keys []models.NaturalKey) (map[models.NaturalKey]models.SurrogateKey, error)
}

// FactRepository appends fact rows.
type FactRepository interface {
	// InsertFacts appends facts without checking for existing rows and returns the number written.
	InsertFacts(ctx context.Context, facts []models.Fact) (int64, error)
}

// FactRow is one row of the joined fact view inspected by quality checks.
// Pointer fields are nil when the column is NULL.
type FactRow struct {
	Value         *float64
	IndicatorCode *string
	CountryCode   *string
	Date          *time.Time
}

// FactViewQuery selects the joined fact view.
const FactViewQuery = `SELECT f.value, f.indicator_code, c.country_code, d.date
FROM fact_indicator f
JOIN dim_country c ON f.country_id = c.country_id
JOIN dim_date d ON f.date_id = d.date_id`
