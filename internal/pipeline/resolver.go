package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/metrics"
	"github.com/ajitpratap0/gdi/pkg/models"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

// KeyMap maps a record's index in the combined batch to its surrogate keys.
// Records whose keys could not be resolved are absent.
type KeyMap map[int]models.SurrogateKey

// DimensionResolver ensures the dimension members referenced by a batch
// exist and resolves each record to surrogate keys.
type DimensionResolver struct {
	logger *zap.Logger
}

// NewDimensionResolver creates a resolver.
func NewDimensionResolver(log *zap.Logger) *DimensionResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &DimensionResolver{logger: log}
}

// Resolve upserts domains, countries and dates, then looks up every
// distinct natural key in one batch. It must run inside the load
// transaction so dimension changes commit with the facts.
//
// Domains and dates are insert-only. A country code seen with several
// names in one batch is stored under the last one.
func (r *DimensionResolver) Resolve(ctx context.Context, repo warehouse.DimensionRepository, records []*models.Record) (KeyMap, error) {
	log := logger.FromContext(ctx, r.logger)

	var (
		domains      []string
		seenDomain   = map[string]bool{}
		countries    []models.Country
		countryIndex = map[string]int{}
		dates        []models.Date
		seenDate     = map[models.Date]bool{}
		keys         []models.NaturalKey
		seenKey      = map[models.NaturalKey]bool{}
	)
	for _, rec := range records {
		if !seenDomain[rec.DomainName] {
			seenDomain[rec.DomainName] = true
			domains = append(domains, rec.DomainName)
		}
		if i, ok := countryIndex[rec.CountryCode]; ok {
			countries[i].Name = rec.CountryName
		} else {
			countryIndex[rec.CountryCode] = len(countries)
			countries = append(countries, models.Country{Code: rec.CountryCode, Name: rec.CountryName})
		}
		if !seenDate[rec.Date] {
			seenDate[rec.Date] = true
			dates = append(dates, rec.Date)
		}
		if k := rec.Key(); !seenKey[k] {
			seenKey[k] = true
			keys = append(keys, k)
		}
	}

	if err := repo.EnsureDomains(ctx, domains); err != nil {
		return nil, asStorage(err, "failed to ensure domains")
	}
	if err := repo.UpsertCountries(ctx, countries); err != nil {
		return nil, asStorage(err, "failed to upsert countries")
	}
	if err := repo.EnsureDates(ctx, dates); err != nil {
		return nil, asStorage(err, "failed to ensure dates")
	}

	metrics.DimensionRows.WithLabelValues(warehouse.TableDomain).Add(float64(len(domains)))
	metrics.DimensionRows.WithLabelValues(warehouse.TableCountry).Add(float64(len(countries)))
	metrics.DimensionRows.WithLabelValues(warehouse.TableDate).Add(float64(len(dates)))

	resolved, err := repo.ResolveBatch(ctx, keys)
	if err != nil {
		return nil, asStorage(err, "failed to resolve dimension keys")
	}

	out := make(KeyMap, len(records))
	for i, rec := range records {
		sk, ok := resolved[rec.Key()]
		if !ok {
			gap := errors.New(errors.KindReferentialGap, "dimension keys not found, skipping fact").
				WithDetail("domain_name", rec.DomainName).
				WithDetail("country_code", rec.CountryCode).
				WithDetail("date", rec.Date.String())
			log.Warn("referential gap",
				zap.Int("index", i),
				zap.String("indicator_code", rec.IndicatorCode),
				zap.Error(gap))
			continue
		}
		out[i] = sk
	}

	log.Debug("dimensions resolved",
		zap.Int("domains", len(domains)),
		zap.Int("countries", len(countries)),
		zap.Int("dates", len(dates)),
		zap.Int("resolved", len(out)))
	return out, nil
}

// asStorage keeps an already classified error and classifies the rest as storage.
func asStorage(err error, msg string) error {
	if errors.KindOf(err) != "" {
		return err
	}
	return errors.Wrap(err, errors.KindStorage, msg)
}
