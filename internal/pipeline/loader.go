package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/models"
	"github.com/ajitpratap0/gdi/pkg/warehouse"
)

// LoadStats summarizes one load.
type LoadStats struct {
	Inserted int64
	Skipped  int
}

// FactLoader appends one fact per resolved record.
type FactLoader struct {
	logger *zap.Logger
}

// NewFactLoader creates a loader.
func NewFactLoader(log *zap.Logger) *FactLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &FactLoader{logger: log}
}

// Load writes a fact for every record present in keys and skips the rest.
// Facts are appended as they are; loading the same batch twice stores it twice.
func (l *FactLoader) Load(ctx context.Context, repo warehouse.FactRepository, records []*models.Record, keys KeyMap) (LoadStats, error) {
	facts := make([]models.Fact, 0, len(keys))
	for i, rec := range records {
		sk, ok := keys[i]
		if !ok {
			continue
		}
		facts = append(facts, models.NewFact(rec, sk))
	}

	stats := LoadStats{Skipped: len(records) - len(facts)}
	if len(facts) == 0 {
		return stats, nil
	}

	n, err := repo.InsertFacts(ctx, facts)
	if err != nil {
		return LoadStats{}, asStorage(err, "failed to insert facts")
	}
	stats.Inserted = n

	logger.FromContext(ctx, l.logger).Debug("facts loaded",
		zap.Int64("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}
