package quality

import (
	"context"
	"database/sql"

	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

// SQLSource reads the fact view through database/sql.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource creates a source over db.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// FactRows runs warehouse.FactViewQuery.
func (s *SQLSource) FactRows(ctx context.Context) ([]warehouse.FactRow, error) {
	rows, err := s.db.QueryContext(ctx, warehouse.FactViewQuery)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStorage, "failed to query fact view")
	}
	defer rows.Close()

	var out []warehouse.FactRow
	for rows.Next() {
		var (
			value     sql.NullFloat64
			indicator sql.NullString
			country   sql.NullString
			date      sql.NullTime
		)
		if err := rows.Scan(&value, &indicator, &country, &date); err != nil {
			return nil, errors.Wrap(err, errors.KindStorage, "failed to scan fact view row")
		}

		var row warehouse.FactRow
		if value.Valid {
			row.Value = &value.Float64
		}
		if indicator.Valid {
			row.IndicatorCode = &indicator.String
		}
		if country.Valid {
			row.CountryCode = &country.String
		}
		if date.Valid {
			row.Date = &date.Time
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindStorage, "failed to iterate fact view")
	}
	return out, nil
}
