package models

import (
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gdi/pkg/errors"
)

func validRecord() Record {
	return Record{
		CountryCode:   "FRA",
		CountryName:   "France",
		Date:          YearEnd(2023),
		IndicatorCode: "NY.GDP.PCAP.CD",
		IndicatorName: "GDP per capita (current US$)",
		Value:         45000.0,
		Unit:          "USD",
		DomainName:    "economy",
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
		ok     bool
	}{
		{"valid", func(r *Record) {}, true},
		{"negative value is still a valid record", func(r *Record) { r.Value = -1 }, true},
		{"empty country code", func(r *Record) { r.CountryCode = "" }, false},
		{"empty country name", func(r *Record) { r.CountryName = "" }, false},
		{"empty indicator code", func(r *Record) { r.IndicatorCode = "" }, false},
		{"empty unit", func(r *Record) { r.Unit = "" }, false},
		{"empty domain", func(r *Record) { r.DomainName = "" }, false},
		{"zero date", func(r *Record) { r.Date = Date{} }, false},
		{"NaN value", func(r *Record) { r.Value = math.NaN() }, false},
		{"infinite value", func(r *Record) { r.Value = math.Inf(1) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindInvalidRecord))
		})
	}
}

func TestRecord_KeyAndFact(t *testing.T) {
	r := validRecord()
	assert.Equal(t, NaturalKey{DomainName: "economy", CountryCode: "FRA", Date: YearEnd(2023)}, r.Key())

	f := NewFact(&r, SurrogateKey{DomainID: 1, CountryID: 2, DateID: 3})
	assert.Equal(t, Fact{
		DomainID: 1, CountryID: 2, DateID: 3,
		IndicatorCode: "NY.GDP.PCAP.CD", IndicatorName: "GDP per capita (current US$)",
		Value: 45000.0, Unit: "USD",
	}, f)
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2023-12-31")
	require.NoError(t, err)
	assert.Equal(t, YearEnd(2023), d)
	assert.Equal(t, "2023-12-31", d.String())
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), d.Time())
	assert.Equal(t, Date{Year: 2024, Month: time.January, Day: 1}, NewDate(2023, 13, 1))
	assert.True(t, NewDate(2023, 1, 1).Before(d))

	_, err = ParseDate("2023")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	r := validRecord()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"date":"2023-12-31"`)

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
}
