// Package connector groups the source side of gdi.
//
// # Layout
//
//   - core: the Source interface and the dependencies handed to sources
//   - registry: name based factories; sources register themselves in init()
//   - sources: provider implementations (worldbank, market, csv)
//
// # Adding a source
//
// Implement core.Source, map provider rows to models.Record, filter rows
// with missing values, and return errors.KindEmptyDataset when nothing is
// left. Register a factory in the package's init():
//
//	func init() {
//		registry.MustRegisterSource(registry.Info{Name: "fred", Domain: "economy"}, NewFredSource)
//	}
//
// Then blank-import the package from sources/sources.go.
package connector
