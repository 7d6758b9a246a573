// Package provider builds per-catalog Iceberg handles and selects the
// process-wide catalog provider by name.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"icegate/internal/domain"
)

// Short names accepted in configuration and the canonical ids they resolve to.
const (
	ConfigBasedName   = "config-based"
	RegistryBasedName = "registry-based"

	ConfigBasedID   = "provider.ConfigBased"
	RegistryBasedID = "provider.RegistryBased"
)

var shortNames = map[string]string{
	ConfigBasedName:   ConfigBasedID,
	RegistryBasedName: RegistryBasedID,
}

// Options carries the collaborators shared by every handle a provider builds.
type Options struct {
	Logger *slog.Logger
	// Loader opens backend catalogs; defaults to LoadBackend.
	Loader BackendLoader
	// Now is the clock used for credential expiry; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Loader == nil {
		o.Loader = LoadBackend
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Factory creates an uninitialised provider.
type Factory func(opts Options) domain.CatalogProvider

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

func init() {
	Register(ConfigBasedID, func(opts Options) domain.CatalogProvider { return NewConfigBased(opts) })
	Register(RegistryBasedID, func(opts Options) domain.CatalogProvider { return NewRegistryBased(opts) })
}

// Register makes a provider available under its canonical id. External
// providers call it from an init function and are then selected by that id.
// It panics if id is empty, f is nil, or id is already registered.
func Register(id string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if id == "" || f == nil {
		panic("provider: Register requires an id and a factory")
	}
	if _, dup := factories[id]; dup {
		panic("provider: Register called twice for " + id)
	}
	factories[id] = f
}

// Registered returns the canonical ids of all registered providers.
func Registered() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve maps a configured provider name to its canonical id. Names absent
// from the short-name table are already canonical. An empty name selects the
// config-based provider.
func Resolve(name string) string {
	if name == "" {
		return ConfigBasedID
	}
	if id, ok := shortNames[name]; ok {
		return id
	}
	return name
}

// New instantiates the provider configured as name without initialising it.
func New(name string, opts Options) (domain.CatalogProvider, error) {
	id := Resolve(name)

	factoriesMu.RLock()
	f, ok := factories[id]
	factoriesMu.RUnlock()
	if !ok {
		return nil, domain.ErrConfiguration("unknown catalog provider %q (resolved to %q)", name, id)
	}

	p := f(opts.withDefaults())
	if p == nil {
		return nil, domain.ErrConfiguration("catalog provider %q could not be instantiated", id)
	}
	return p, nil
}

// Open instantiates and initialises the provider configured as name. Any
// failure here must stop the gateway from starting.
func Open(ctx context.Context, name string, props map[string]string, opts Options) (domain.CatalogProvider, error) {
	opts = opts.withDefaults()
	p, err := New(name, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("load catalog provider", "provider", Resolve(name))
	if err := p.Initialize(ctx, props); err != nil {
		return nil, fmt.Errorf("initialize catalog provider %q: %w", Resolve(name), err)
	}
	return p, nil
}
