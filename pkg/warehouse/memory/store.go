// Package memory provides an in-memory transactional warehouse.
//
// Each unit of work operates on a private copy of the state that replaces
// the committed state only when the unit of work succeeds. It backs unit
// tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/models"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

// Compile-time contract assertions.
var (
	_ warehouse.Warehouse = (*Store)(nil)
	_ warehouse.Tx        = (*transaction)(nil)
)

// CountryRow is a committed dim_country row.
type CountryRow struct {
	ID   int64
	Code string
	Name string
}

// FactRow is a committed fact_indicator row.
type FactRow = models.Fact

type state struct {
	nextID    int64
	domains   map[string]int64
	countries map[string]CountryRow
	dates     map[models.Date]int64
	facts     []models.Fact
}

func newState() state {
	return state{
		domains:   map[string]int64{},
		countries: map[string]CountryRow{},
		dates:     map[models.Date]int64{},
	}
}

func (s state) clone() state {
	cp := state{
		nextID:    s.nextID,
		domains:   make(map[string]int64, len(s.domains)),
		countries: make(map[string]CountryRow, len(s.countries)),
		dates:     make(map[models.Date]int64, len(s.dates)),
		facts:     append([]models.Fact(nil), s.facts...),
	}
	for k, v := range s.domains {
		cp.domains[k] = v
	}
	for k, v := range s.countries {
		cp.countries[k] = v
	}
	for k, v := range s.dates {
		cp.dates[k] = v
	}
	return cp
}

func (s *state) newID() int64 {
	s.nextID++
	return s.nextID
}

// Store is an in-memory Warehouse. Units of work are serialized.
type Store struct {
	mu     sync.Mutex
	state  state
	closed bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// InTx runs fn against a private copy of the state and publishes it on success.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx warehouse.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.KindStorage, "warehouse is closed")
	}

	tx := &transaction{state: s.state.clone()}
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.KindStorage, fmt.Sprintf("transaction panicked: %v", p))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.KindStorage, "transaction aborted")
	}
	s.state = tx.state
	return nil
}

// Close marks the store closed; later units of work fail.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Domains returns the committed domain names and ids.
func (s *Store) Domains() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone().domains
}

// Countries returns the committed countries ordered by code.
func (s *Store) Countries() []CountryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CountryRow, 0, len(s.state.countries))
	for _, c := range s.state.countries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Dates returns the committed dates in ascending order.
func (s *Store) Dates() []models.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Date, 0, len(s.state.dates))
	for d := range s.state.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Facts returns the committed facts in insertion order.
func (s *Store) Facts() []FactRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FactRow(nil), s.state.facts...)
}

// FactRows returns the joined fact view used by quality checks.
func (s *Store) FactRows(ctx context.Context) ([]warehouse.FactRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make(map[int64]string, len(s.state.countries))
	for _, c := range s.state.countries {
		codes[c.ID] = c.Code
	}
	dates := make(map[int64]models.Date, len(s.state.dates))
	for d, id := range s.state.dates {
		dates[id] = d
	}

	rows := make([]warehouse.FactRow, 0, len(s.state.facts))
	for _, f := range s.state.facts {
		code, ok := codes[f.CountryID]
		if !ok {
			continue
		}
		d, ok := dates[f.DateID]
		if !ok {
			continue
		}
		value := f.Value
		indicator := f.IndicatorCode
		t := d.Time()
		rows = append(rows, warehouse.FactRow{
			Value:         &value,
			IndicatorCode: &indicator,
			CountryCode:   &code,
			Date:          &t,
		})
	}
	return rows, nil
}

type transaction struct {
	state state
}

func (tx *transaction) EnsureDomains(_ context.Context, names []string) error {
	for _, name := range names {
		if _, ok := tx.state.domains[name]; ok {
			continue
		}
		tx.state.domains[name] = tx.state.newID()
	}
	return nil
}

func (tx *transaction) UpsertCountries(_ context.Context, countries []models.Country) error {
	for _, c := range countries {
		row, ok := tx.state.countries[c.Code]
		if !ok {
			row = CountryRow{ID: tx.state.newID(), Code: c.Code}
		}
		row.Name = c.Name
		tx.state.countries[c.Code] = row
	}
	return nil
}

func (tx *transaction) EnsureDates(_ context.Context, dates []models.Date) error {
	for _, d := range dates {
		if _, ok := tx.state.dates[d]; ok {
			continue
		}
		tx.state.dates[d] = tx.state.newID()
	}
	return nil
}

func (tx *transaction) ResolveBatch(_ context.Context, keys []models.NaturalKey) (map[models.NaturalKey]models.SurrogateKey, error) {
	out := make(map[models.NaturalKey]models.SurrogateKey, len(keys))
	for _, k := range keys {
		domainID, ok := tx.state.domains[k.DomainName]
		if !ok {
			continue
		}
		country, ok := tx.state.countries[k.CountryCode]
		if !ok {
			continue
		}
		dateID, ok := tx.state.dates[k.Date]
		if !ok {
			continue
		}
		out[k] = models.SurrogateKey{DomainID: domainID, CountryID: country.ID, DateID: dateID}
	}
	return out, nil
}

func (tx *transaction) InsertFacts(_ context.Context, facts []models.Fact) (int64, error) {
	tx.state.facts = append(tx.state.facts, facts...)
	return int64(len(facts)), nil
}
