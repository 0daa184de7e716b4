// Package registry maps source names to factories.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/connector/core"
	"github.com/ajitpratap0/gdi/pkg/errors"
)

// SourceFactory creates a source from the application config.
type SourceFactory func(cfg *config.Config, deps core.Deps) (core.Source, error)

// Info describes a registered source.
type Info struct {
	Name        string
	Description string
	// Domain is the default domain_name of the records the source emits
	Domain string
	// NeedsHTTP reports whether the factory requires Deps.HTTP
	NeedsHTTP bool
}

type entry struct {
	info    Info
	factory SourceFactory
}

// Registry manages source registration and instantiation
type Registry struct {
	sources map[string]entry
	mu      sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]entry)}
}

// RegisterSource registers a source factory
func (r *Registry) RegisterSource(info Info, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[info.Name]; exists {
		return errors.Newf(errors.KindConfig, "source %s already registered", info.Name)
	}

	r.sources[info.Name] = entry{info: info, factory: factory}
	return nil
}

// CreateSource creates a source instance by name
func (r *Registry) CreateSource(name string, cfg *config.Config, deps core.Deps) (core.Source, error) {
	r.mu.RLock()
	e, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.KindConfig, "source %s not found", name)
	}
	if e.info.NeedsHTTP && deps.HTTP == nil {
		return nil, errors.Newf(errors.KindConfig, "source %s requires an HTTP client", name)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	source, err := e.factory(cfg, deps)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to create source "+name)
	}
	return source, nil
}

// CreateEnabled creates every source listed in cfg.Sources.Enabled, in order.
func (r *Registry) CreateEnabled(cfg *config.Config, deps core.Deps) ([]core.Source, error) {
	sources := make([]core.Source, 0, len(cfg.Sources.Enabled))
	for _, name := range cfg.Sources.Enabled {
		src, err := r.CreateSource(name, cfg, deps)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ListSources returns the registered sources sorted by name
func (r *Registry) ListSources() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sources))
	for _, e := range r.sources {
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// HasSource checks if a source is registered
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// Global registry functions

// RegisterSource registers a source in the global registry
func RegisterSource(info Info, factory SourceFactory) error {
	return globalRegistry.RegisterSource(info, factory)
}

// MustRegisterSource registers a source in the global registry and panics on duplicates.
func MustRegisterSource(info Info, factory SourceFactory) {
	if err := RegisterSource(info, factory); err != nil {
		panic(err)
	}
}

// CreateSource creates a source from the global registry
func CreateSource(name string, cfg *config.Config, deps core.Deps) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg, deps)
}

// CreateEnabled creates the enabled sources from the global registry
func CreateEnabled(cfg *config.Config, deps core.Deps) ([]core.Source, error) {
	return globalRegistry.CreateEnabled(cfg, deps)
}

// ListSources returns registered sources from the global registry
func ListSources() []Info {
	return globalRegistry.ListSources()
}

// HasSource checks if a source is registered in the global registry
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}
