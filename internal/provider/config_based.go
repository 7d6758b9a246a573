package provider

import (
	"context"
	"maps"
	"strings"

	"icegate/internal/domain"
)

// CatalogPropertyPrefix introduces per-catalog keys: catalog.<name>.<key>.
const CatalogPropertyPrefix = "catalog."

// ConfigBasedProvider builds handles from the static properties it was
// initialised with. Keys without the catalog prefix configure the default
// catalog and are inherited by every named catalog; catalog.<name>.<key>
// overrides them for one catalog.
type ConfigBasedProvider struct {
	opts     Options
	base     map[string]string
	catalogs map[string]map[string]string
}

var _ domain.CatalogProvider = (*ConfigBasedProvider)(nil)

// NewConfigBased creates an uninitialised ConfigBasedProvider.
func NewConfigBased(opts Options) *ConfigBasedProvider {
	return &ConfigBasedProvider{opts: opts.withDefaults()}
}

// Initialize implements domain.CatalogProvider.
func (p *ConfigBasedProvider) Initialize(_ context.Context, props map[string]string) error {
	base, catalogs, err := splitCatalogProperties(props)
	if err != nil {
		return err
	}
	p.base = base
	p.catalogs = catalogs
	p.opts.Logger.Info("config-based provider initialized", "catalogs", len(catalogs))
	return nil
}

// BuildHandle implements domain.CatalogProvider.
func (p *ConfigBasedProvider) BuildHandle(ctx context.Context, catalogName string) (domain.CatalogHandle, error) {
	props := maps.Clone(p.base)
	if props == nil {
		props = make(map[string]string)
	}
	if catalogName != domain.DefaultCatalog {
		overrides, ok := p.catalogs[catalogName]
		if !ok {
			return nil, domain.ErrNotFound("catalog %q is not configured", catalogName)
		}
		maps.Copy(props, overrides)
	}
	return OpenHandle(ctx, catalogName, props, p.opts)
}

func splitCatalogProperties(props map[string]string) (map[string]string, map[string]map[string]string, error) {
	base := make(map[string]string)
	catalogs := make(map[string]map[string]string)
	for k, v := range props {
		rest, ok := strings.CutPrefix(k, CatalogPropertyPrefix)
		if !ok {
			base[k] = v
			continue
		}
		name, key, ok := strings.Cut(rest, ".")
		if !ok || name == "" || key == "" {
			return nil, nil, domain.ErrConfiguration("malformed catalog property %q: want catalog.<name>.<key>", k)
		}
		if name == domain.DefaultCatalog {
			return nil, nil, domain.ErrConfiguration("catalog name %q is reserved; configure it with unprefixed keys", name)
		}
		if catalogs[name] == nil {
			catalogs[name] = make(map[string]string)
		}
		catalogs[name][key] = v
	}
	return base, catalogs, nil
}
