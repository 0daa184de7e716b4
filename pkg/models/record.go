// Package models defines the canonical shapes that flow through the
// ingestion pipeline: the source-agnostic Record emitted by every source,
// the natural and surrogate keys used to resolve dimensions, and the Fact
// row appended to the warehouse.
package models

import (
	"math"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/gdi/pkg/errors"
)

// Record is one observation in canonical form. Every source maps its raw
// payload into this shape before anything touches the warehouse.
type Record struct {
	// CountryCode is the entity identifier (ISO alpha-3 or a synthetic code such as WLD)
	CountryCode string `json:"country_code" validate:"required"`

	// CountryName is the human-readable entity label
	CountryName string `json:"country_name" validate:"required"`

	// Date is the observation day
	Date Date `json:"date"`

	// IndicatorCode identifies the metric, e.g. NY.GDP.PCAP.CD
	IndicatorCode string `json:"indicator_code" validate:"required"`

	// IndicatorName is the human-readable metric label
	IndicatorName string `json:"indicator_name" validate:"required"`

	// Value is the observed measurement
	Value float64 `json:"value"`

	// Unit is the measurement unit, e.g. USD
	Unit string `json:"unit" validate:"required"`

	// DomainName groups indicators, e.g. economy or finance
	DomainName string `json:"domain_name" validate:"required"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that every field is populated, the date is set and the
// value is finite.
func (r *Record) Validate() error {
	if err := recordValidator().Struct(r); err != nil {
		return errors.Wrap(err, errors.KindInvalidRecord, "record has empty fields").
			WithDetail("country_code", r.CountryCode).
			WithDetail("indicator_code", r.IndicatorCode)
	}
	if r.Date.IsZero() {
		return errors.New(errors.KindInvalidRecord, "record has no date").
			WithDetail("country_code", r.CountryCode).
			WithDetail("indicator_code", r.IndicatorCode)
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return errors.New(errors.KindInvalidRecord, "record value is not finite").
			WithDetail("country_code", r.CountryCode).
			WithDetail("indicator_code", r.IndicatorCode).
			WithDetail("date", r.Date.String())
	}
	return nil
}

// Key returns the natural key triple used for dimension resolution.
func (r *Record) Key() NaturalKey {
	return NaturalKey{
		DomainName:  r.DomainName,
		CountryCode: r.CountryCode,
		Date:        r.Date,
	}
}

// Country is an entity row of dim_country.
type Country struct {
	Code string
	Name string
}

// NaturalKey identifies the dimension rows a record refers to.
type NaturalKey struct {
	DomainName  string
	CountryCode string
	Date        Date
}

// SurrogateKey holds the warehouse-assigned ids for a NaturalKey.
type SurrogateKey struct {
	DomainID  int64
	CountryID int64
	DateID    int64
}

// Fact is one row of fact_indicator.
type Fact struct {
	DomainID      int64
	CountryID     int64
	DateID        int64
	IndicatorCode string
	IndicatorName string
	Value         float64
	Unit          string
}

// NewFact builds the fact row for r under the resolved key.
func NewFact(r *Record, key SurrogateKey) Fact {
	return Fact{
		DomainID:      key.DomainID,
		CountryID:     key.CountryID,
		DateID:        key.DateID,
		IndicatorCode: r.IndicatorCode,
		IndicatorName: r.IndicatorName,
		Value:         r.Value,
		Unit:          r.Unit,
	}
}
