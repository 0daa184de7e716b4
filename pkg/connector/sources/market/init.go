package market

import "github.com/ajitpratap0/gdi/pkg/connector/registry"

func init() {
	registry.MustRegisterSource(registry.Info{
		Name:        SourceName,
		Description: "Daily closing prices of a market index from the Yahoo Finance chart API",
		Domain:      "finance",
		NeedsHTTP:   true,
	}, newFromConfig)
}
