package csv

import "github.com/ajitpratap0/gdi/pkg/connector/registry"

func init() {
	registry.MustRegisterSource(registry.Info{
		Name:        SourceName,
		Description: "Canonical records from a local CSV file",
		Domain:      "any",
	}, newFromConfig)
}
