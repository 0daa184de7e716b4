package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/gdi/pkg/models"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

var _ warehouse.Tx = (*transaction)(nil)

const (
	insertDomainSQL = `INSERT INTO dim_domain (domain_name) VALUES ($1)
ON CONFLICT (domain_name) DO NOTHING`

	upsertCountrySQL = `INSERT INTO dim_country (country_code, country_name) VALUES ($1, $2)
ON CONFLICT (country_code) DO UPDATE SET country_name = EXCLUDED.country_name`

	insertDateSQL = `INSERT INTO dim_date (date) VALUES ($1)
ON CONFLICT (date) DO NOTHING`

	selectDomainsSQL   = `SELECT domain_id, domain_name FROM dim_domain WHERE domain_name = ANY($1)`
	selectCountriesSQL = `SELECT country_id, country_code FROM dim_country WHERE country_code = ANY($1)`
	selectDatesSQL     = `SELECT date_id, date FROM dim_date WHERE date = ANY($1::date[])`
)

var factColumns = []string{
	"domain_id", "country_id", "date_id",
	"indicator_code", "indicator_name", "value", "unit",
}

type transaction struct {
	tx pgx.Tx
}

func (t *transaction) EnsureDomains(ctx context.Context, names []string) error {
	batch := &pgx.Batch{}
	for _, name := range names {
		batch.Queue(insertDomainSQL, name)
	}
	return t.execBatch(ctx, batch, warehouse.TableDomain)
}

func (t *transaction) UpsertCountries(ctx context.Context, countries []models.Country) error {
	batch := &pgx.Batch{}
	for _, c := range countries {
		batch.Queue(upsertCountrySQL, c.Code, c.Name)
	}
	return t.execBatch(ctx, batch, warehouse.TableCountry)
}

func (t *transaction) EnsureDates(ctx context.Context, dates []models.Date) error {
	batch := &pgx.Batch{}
	for _, d := range dates {
		batch.Queue(insertDateSQL, d.Time())
	}
	return t.execBatch(ctx, batch, warehouse.TableDate)
}

func (t *transaction) execBatch(ctx context.Context, batch *pgx.Batch, table string) error {
	if batch.Len() == 0 {
		return nil
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return storageError(err, "failed to upsert dimension rows", table)
	}
	return nil
}

func (t *transaction) ResolveBatch(ctx context.Context, keys []models.NaturalKey) (map[models.NaturalKey]models.SurrogateKey, error) {
	out := make(map[models.NaturalKey]models.SurrogateKey, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var (
		names []string
		codes []string
		dates []time.Time
		seenN = map[string]bool{}
		seenC = map[string]bool{}
		seenD = map[models.Date]bool{}
	)
	for _, k := range keys {
		if !seenN[k.DomainName] {
			seenN[k.DomainName] = true
			names = append(names, k.DomainName)
		}
		if !seenC[k.CountryCode] {
			seenC[k.CountryCode] = true
			codes = append(codes, k.CountryCode)
		}
		if !seenD[k.Date] {
			seenD[k.Date] = true
			dates = append(dates, k.Date.Time())
		}
	}

	domainIDs, err := t.lookupText(ctx, selectDomainsSQL, names, warehouse.TableDomain)
	if err != nil {
		return nil, err
	}
	countryIDs, err := t.lookupText(ctx, selectCountriesSQL, codes, warehouse.TableCountry)
	if err != nil {
		return nil, err
	}
	dateIDs, err := t.lookupDates(ctx, dates)
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		domainID, ok := domainIDs[k.DomainName]
		if !ok {
			continue
		}
		countryID, ok := countryIDs[k.CountryCode]
		if !ok {
			continue
		}
		dateID, ok := dateIDs[k.Date]
		if !ok {
			continue
		}
		out[k] = models.SurrogateKey{DomainID: domainID, CountryID: countryID, DateID: dateID}
	}
	return out, nil
}

func (t *transaction) lookupText(ctx context.Context, query string, values []string, table string) (map[string]int64, error) {
	rows, err := t.tx.Query(ctx, query, values)
	if err != nil {
		return nil, storageError(err, "failed to resolve dimension keys", table)
	}
	defer rows.Close()

	ids := make(map[string]int64, len(values))
	for rows.Next() {
		var (
			id  int64
			key string
		)
		if err := rows.Scan(&id, &key); err != nil {
			return nil, storageError(err, "failed to scan dimension key", table)
		}
		ids[key] = id
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "failed to resolve dimension keys", table)
	}
	return ids, nil
}

func (t *transaction) lookupDates(ctx context.Context, dates []time.Time) (map[models.Date]int64, error) {
	rows, err := t.tx.Query(ctx, selectDatesSQL, dates)
	if err != nil {
		return nil, storageError(err, "failed to resolve dimension keys", warehouse.TableDate)
	}
	defer rows.Close()

	ids := make(map[models.Date]int64, len(dates))
	for rows.Next() {
		var (
			id int64
			d  time.Time
		)
		if err := rows.Scan(&id, &d); err != nil {
			return nil, storageError(err, "failed to scan dimension key", warehouse.TableDate)
		}
		ids[models.DateOf(d)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "failed to resolve dimension keys", warehouse.TableDate)
	}
	return ids, nil
}

func (t *transaction) InsertFacts(ctx context.Context, facts []models.Fact) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{warehouse.TableFact}, factColumns,
		pgx.CopyFromSlice(len(facts), func(i int) ([]any, error) {
			f := facts[i]
			return []any{f.DomainID, f.CountryID, f.DateID, f.IndicatorCode, f.IndicatorName, f.Value, f.Unit}, nil
		}))
	if err != nil {
		return n, storageError(err, "failed to insert facts", warehouse.TableFact)
	}
	return n, nil
}
