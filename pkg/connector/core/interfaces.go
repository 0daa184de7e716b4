package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/archive"
	"github.com/ajitpratap0/gdi/pkg/clients"
	"github.com/ajitpratap0/gdi/pkg/models"
)

// Source fetches one provider and maps its payload to canonical records.
//
// Fetch returns every usable record or an error: a transport error when the
// provider cannot be reached or answers with a protocol error, and an empty
// dataset error when nothing survives filtering. Sources never write to the
// warehouse.
type Source interface {
	// Name returns the registry name of the source
	Name() string

	// Fetch retrieves and maps the provider data
	Fetch(ctx context.Context) ([]*models.Record, error)
}

// Deps are the shared collaborators handed to source factories.
type Deps struct {
	// HTTP is the provider client; required by HTTP sources
	HTTP *clients.HTTPClient

	// Archive receives raw payloads; nil disables archiving
	Archive archive.Sink

	Logger *zap.Logger
}
