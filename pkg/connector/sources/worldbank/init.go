package worldbank

import (
	"github.com/ajitpratap0/gdi/pkg/connector/registry"
)

func init() {
	registry.MustRegisterSource(registry.Info{
		Name:        SourceName,
		Description: "World Bank v2 indicators API, one series per country and indicator",
		Domain:      "economy",
		NeedsHTTP:   true,
	}, newFromConfig)
}
