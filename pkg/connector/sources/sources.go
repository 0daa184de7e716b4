// Package sources links every built-in source into the registry.
//
// Import it for side effects:
//
//	import _ "github.com/ajitpratap0/gdi/pkg/connector/sources"
package sources

import (
	// Import all source connectors to trigger init() registration
	_ "github.com/ajitpratap0/gdi/pkg/connector/sources/csv"
	_ "github.com/ajitpratap0/gdi/pkg/connector/sources/market"
	_ "github.com/ajitpratap0/gdi/pkg/connector/sources/worldbank"
)
