package pipeline

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/models"
	"github.com/ajitpratap0/gdi/pkg/testutil"
)

// recordingRepo captures what the resolver asks the warehouse for.
type recordingRepo struct {
	domains   []string
	countries []models.Country
	dates     []models.Date
	keys      []models.NaturalKey
	err       error
}

func (r *recordingRepo) EnsureDomains(_ context.Context, names []string) error {
	r.domains = names
	return r.err
}

func (r *recordingRepo) UpsertCountries(_ context.Context, countries []models.Country) error {
	r.countries = countries
	return nil
}

func (r *recordingRepo) EnsureDates(_ context.Context, dates []models.Date) error {
	r.dates = dates
	return nil
}

func (r *recordingRepo) ResolveBatch(_ context.Context, keys []models.NaturalKey) (map[models.NaturalKey]models.SurrogateKey, error) {
	r.keys = keys
	out := make(map[models.NaturalKey]models.SurrogateKey, len(keys))
	for i, k := range keys {
		out[k] = models.SurrogateKey{DomainID: 1, CountryID: 2, DateID: int64(i + 10)}
	}
	return out, nil
}

func TestDimensionResolver_DistinctMembers(t *testing.T) {
	renamed := testutil.EconomyRecord(2023, 2)
	renamed.CountryName = "French Republic"
	spy := testutil.FinanceRecord(models.NewDate(2024, time.January, 2), 3)

	records := []*models.Record{
		testutil.EconomyRecord(2023, 1),
		spy,
		renamed,
		testutil.EconomyRecord(2023, 4),
	}

	repo := &recordingRepo{}
	keys, err := NewDimensionResolver(testutil.TestLogger(t)).Resolve(context.Background(), repo, records)
	require.NoError(t, err)

	assert.Equal(t, []string{"economy", "finance"}, repo.domains)
	assert.Equal(t, []models.Country{
		{Code: "FRA", Name: "French Republic"},
		{Code: "WLD", Name: "Global"},
	}, repo.countries)
	assert.Equal(t, []models.Date{models.YearEnd(2023), models.NewDate(2024, time.January, 2)}, repo.dates)
	assert.Len(t, repo.keys, 2)

	require.Len(t, keys, 4)
	assert.Equal(t, keys[0], keys[2])
	assert.Equal(t, keys[0], keys[3])
	assert.NotEqual(t, keys[0], keys[1])
}

func TestDimensionResolver_RepositoryError(t *testing.T) {
	repo := &recordingRepo{err: stderrors.New("connection reset")}

	_, err := NewDimensionResolver(nil).Resolve(context.Background(), repo, []*models.Record{testutil.EconomyRecord(2023, 1)})
	require.Error(t, err)
	assert.Equal(t, errors.KindStorage, errors.KindOf(err))
}
