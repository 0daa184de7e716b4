package pipeline

import (
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/models"
)

// Combine concatenates source outputs in source order, keeping each
// source's emission order. Records are neither deduplicated nor sorted.
// A record that violates the canonical invariants fails the whole batch.
func Combine(outputs [][]*models.Record) ([]*models.Record, error) {
	total := 0
	for _, out := range outputs {
		total += len(out)
	}

	combined := make([]*models.Record, 0, total)
	for si, out := range outputs {
		for ri, rec := range out {
			if rec == nil {
				return nil, errors.New(errors.KindInvalidRecord, "nil record").
					WithDetail("source_index", si).
					WithDetail("row_index", ri)
			}
			if err := rec.Validate(); err != nil {
				return nil, errors.Wrap(err, errors.KindInvalidRecord, "invalid record").
					WithDetail("source_index", si).
					WithDetail("row_index", ri)
			}
			combined = append(combined, rec)
		}
	}
	return combined, nil
}
