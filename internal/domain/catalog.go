package domain

import (
	"context"
	"strings"
	"time"
)

// DefaultCatalog is the reserved catalog name used when a request carries no
// prefix. Callers can never address it explicitly.
const DefaultCatalog = "default"

// CatalogHandle is an open session against one tenant's backend catalog.
// Handles are safe for concurrent use; only the handle cache may close them.
type CatalogHandle interface {
	// Name returns the catalog name the handle was built for.
	Name() string
	// RefreshCredentials renews any time-limited credential material.
	RefreshCredentials(ctx context.Context) error
	// Close releases the handle's connections.
	Close() error
}

// CatalogProvider builds catalog handles from configuration. A provider is a
// process-wide factory; it keeps no per-catalog state. Providers that own
// shared resources also implement io.Closer.
type CatalogProvider interface {
	Initialize(ctx context.Context, props map[string]string) error
	BuildHandle(ctx context.Context, catalogName string) (CatalogHandle, error)
}

// CachedCatalog describes a live entry of the handle cache.
type CachedCatalog struct {
	Name      string    `json:"name"`
	WrittenAt time.Time `json:"written_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CatalogConfig is a catalog definition persisted in the registry store.
type CatalogConfig struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
	Comment    string            `json:"comment,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// CatalogConfigRepository persists registry catalog definitions.
type CatalogConfigRepository interface {
	Create(ctx context.Context, cfg *CatalogConfig) (*CatalogConfig, error)
	Update(ctx context.Context, name string, props map[string]string, comment *string) (*CatalogConfig, error)
	GetByName(ctx context.Context, name string) (*CatalogConfig, error)
	List(ctx context.Context) ([]CatalogConfig, error)
	Delete(ctx context.Context, name string) error
}

// ResolveCatalogName maps a raw path prefix of the form "name/" to a catalog
// name. A blank prefix selects DefaultCatalog; a prefix naming DefaultCatalog
// explicitly is rejected so it cannot collide with the implicit default.
func ResolveCatalogName(rawPrefix string) (string, error) {
	prefix := rawPrefix
	if strings.TrimSpace(rawPrefix) != "" {
		if !strings.HasSuffix(rawPrefix, "/") {
			return "", ErrConfiguration("catalog prefix %q is malformed: must end with /", rawPrefix)
		}
		prefix = strings.TrimSuffix(rawPrefix, "/")
	}
	if prefix == DefaultCatalog {
		return "", ErrConfiguration("%s conflicts with the reserved catalog name, please replace it", prefix)
	}
	if strings.TrimSpace(prefix) == "" {
		return DefaultCatalog, nil
	}
	return prefix, nil
}
