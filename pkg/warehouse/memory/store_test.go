package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gdierrors "github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/models"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

var (
	day  = models.YearEnd(2023)
	fact = models.Fact{IndicatorCode: "NY.GDP.PCAP.CD", IndicatorName: "GDP", Value: 45000, Unit: "USD"}
)

func seed(ctx context.Context, tx warehouse.Tx) error {
	if err := tx.EnsureDomains(ctx, []string{"economy"}); err != nil {
		return err
	}
	if err := tx.UpsertCountries(ctx, []models.Country{{Code: "FRA", Name: "France"}}); err != nil {
		return err
	}
	return tx.EnsureDates(ctx, []models.Date{day})
}

func TestStore_InTx_Commit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.InTx(ctx, func(ctx context.Context, tx warehouse.Tx) error {
		require.NoError(t, seed(ctx, tx))
		keys, err := tx.ResolveBatch(ctx, []models.NaturalKey{{DomainName: "economy", CountryCode: "FRA", Date: day}})
		require.NoError(t, err)
		require.Len(t, keys, 1)
		for _, k := range keys {
			f := fact
			f.DomainID, f.CountryID, f.DateID = k.DomainID, k.CountryID, k.DateID
			_, err = tx.InsertFacts(ctx, []models.Fact{f})
		}
		return err
	})
	require.NoError(t, err)

	assert.Len(t, s.Domains(), 1)
	assert.Equal(t, []CountryRow{{ID: 2, Code: "FRA", Name: "France"}}, s.Countries())
	assert.Equal(t, []models.Date{day}, s.Dates())
	require.Len(t, s.Facts(), 1)

	rows, err := s.FactRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FRA", *rows[0].CountryCode)
	assert.Equal(t, 45000.0, *rows[0].Value)
	assert.Equal(t, day.Time(), *rows[0].Date)
}

func TestStore_InTx_Rollback(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx warehouse.Tx) error {
		require.NoError(t, seed(ctx, tx))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Domains())
	assert.Empty(t, s.Countries())
	assert.Empty(t, s.Dates())
}

func TestStore_InTx_Panic(t *testing.T) {
	s := NewStore()
	err := s.InTx(context.Background(), func(ctx context.Context, tx warehouse.Tx) error {
		require.NoError(t, seed(ctx, tx))
		panic("driver exploded")
	})
	require.Error(t, err)
	assert.True(t, gdierrors.IsKind(err, gdierrors.KindStorage))
	assert.Empty(t, s.Domains())
}

func TestStore_UpsertSemantics(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for _, name := range []string{"France", "French Republic"} {
		err := s.InTx(ctx, func(ctx context.Context, tx warehouse.Tx) error {
			if err := tx.EnsureDomains(ctx, []string{"economy", "economy"}); err != nil {
				return err
			}
			if err := tx.EnsureDates(ctx, []models.Date{day, day}); err != nil {
				return err
			}
			return tx.UpsertCountries(ctx, []models.Country{{Code: "FRA", Name: name}})
		})
		require.NoError(t, err)
	}

	assert.Len(t, s.Domains(), 1)
	assert.Len(t, s.Dates(), 1)
	countries := s.Countries()
	require.Len(t, countries, 1)
	assert.Equal(t, "French Republic", countries[0].Name)
}

func TestStore_ResolveBatch_PartialMiss(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.InTx(ctx, func(ctx context.Context, tx warehouse.Tx) error {
		require.NoError(t, seed(ctx, tx))
		keys, err := tx.ResolveBatch(ctx, []models.NaturalKey{
			{DomainName: "economy", CountryCode: "FRA", Date: day},
			{DomainName: "economy", CountryCode: "DEU", Date: day},
			{DomainName: "finance", CountryCode: "FRA", Date: day},
			{DomainName: "economy", CountryCode: "FRA", Date: models.YearEnd(2022)},
		})
		require.NoError(t, err)
		assert.Len(t, keys, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_Closed(t *testing.T) {
	s := NewStore()
	s.Close()
	err := s.InTx(context.Background(), func(ctx context.Context, tx warehouse.Tx) error { return nil })
	require.Error(t, err)
	assert.True(t, gdierrors.IsKind(err, gdierrors.KindStorage))
}
