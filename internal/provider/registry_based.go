package provider

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"strings"
	"sync"

	"icegate/internal/db"
	"icegate/internal/db/repository"
	"icegate/internal/domain"
)

// Registry properties.
const (
	PropRegistryDBPath     = "registry.db-path"
	registryPropertyPrefix = "registry."
)

// RegistryBasedProvider builds handles from catalog definitions stored in the
// SQLite registry. Definitions are read on every build, so a catalog
// registered while the gateway runs is served on its first request and a
// changed definition takes effect once its cached handle expires.
type RegistryBasedProvider struct {
	opts Options

	mu   sync.Mutex
	db   *sql.DB
	repo domain.CatalogConfigRepository
	base map[string]string
}

var _ domain.CatalogProvider = (*RegistryBasedProvider)(nil)

// NewRegistryBased creates an uninitialised RegistryBasedProvider.
func NewRegistryBased(opts Options) *RegistryBasedProvider {
	return &RegistryBasedProvider{opts: opts.withDefaults()}
}

// Initialize implements domain.CatalogProvider. It opens the registry
// database named by registry.db-path and applies pending migrations.
func (p *RegistryBasedProvider) Initialize(_ context.Context, props map[string]string) error {
	path := strings.TrimSpace(props[PropRegistryDBPath])
	if path == "" {
		return domain.ErrConfiguration("%s is required for the registry-based provider", PropRegistryDBPath)
	}

	conn, err := db.OpenSQLite(path, db.ModeWrite)
	if err != nil {
		return fmt.Errorf("open catalog registry: %w", err)
	}
	if err := db.RunMigrations(conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("migrate catalog registry: %w", err)
	}

	base := make(map[string]string)
	for k, v := range props {
		if !strings.HasPrefix(k, registryPropertyPrefix) {
			base[k] = v
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.db = conn
	p.repo = repository.NewCatalogConfigRepo(conn)
	p.base = base
	p.opts.Logger.Info("registry-based provider initialized", "path", path)
	return nil
}

// BuildHandle implements domain.CatalogProvider. The default catalog is built
// from the provider's own properties; every other catalog must be registered.
func (p *RegistryBasedProvider) BuildHandle(ctx context.Context, catalogName string) (domain.CatalogHandle, error) {
	p.mu.Lock()
	repo, base := p.repo, p.base
	p.mu.Unlock()
	if repo == nil {
		return nil, domain.ErrConfiguration("registry-based provider is not initialized")
	}

	props := maps.Clone(base)
	if catalogName != domain.DefaultCatalog {
		cfg, err := repo.GetByName(ctx, catalogName)
		if err != nil {
			return nil, err
		}
		maps.Copy(props, cfg.Properties)
	}
	return OpenHandle(ctx, catalogName, props, p.opts)
}

// Close releases the registry database.
func (p *RegistryBasedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.repo = nil
	return err
}
