package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/table"
	"github.com/google/uuid"

	"icegate/internal/domain"
)

// IcebergHandle is a catalog handle backed by an iceberg-go catalog. The
// backend is swapped under the handle's lock whenever the credential source
// hands out material the current backend was not loaded with.
type IcebergHandle struct {
	name   string
	id     string
	props  iceberg.Properties
	creds  CredentialSource
	loader BackendLoader
	logger *slog.Logger

	// refreshMu serialises RefreshCredentials so one rotation reloads once.
	refreshMu sync.Mutex

	mu       sync.RWMutex
	backend  Backend
	loadedAs iceberg.Properties
	closed   bool
}

var _ domain.CatalogHandle = (*IcebergHandle)(nil)

// OpenHandle builds a handle for catalogName. Credential properties are
// resolved first so that the initial backend connects with fresh material.
func OpenHandle(ctx context.Context, catalogName string, props map[string]string, opts Options) (*IcebergHandle, error) {
	opts = opts.withDefaults()

	creds, err := NewCredentialSource(catalogName, props, opts.Now)
	if err != nil {
		return nil, err
	}

	h := &IcebergHandle{
		name:   catalogName,
		id:     uuid.NewString(),
		props:  backendProperties(props),
		creds:  creds,
		loader: opts.Loader,
	}
	h.logger = opts.Logger.With("catalog", catalogName, "handle_id", h.id)

	credProps, _, err := creds.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	backend, err := h.loader(ctx, catalogName, h.merged(credProps))
	if err != nil {
		return nil, err
	}
	h.backend = backend
	h.loadedAs = credProps
	h.logger.Info("catalog handle opened")
	return h, nil
}

// Name implements domain.CatalogHandle.
func (h *IcebergHandle) Name() string { return h.name }

// ID returns the handle's unique instance id.
func (h *IcebergHandle) ID() string { return h.id }

// RefreshCredentials implements domain.CatalogHandle. The backend is
// reloaded whenever the credential source returns material that differs from
// what the current backend was loaded with. A failed reload leaves the old
// backend in place and is retried on the next call.
func (h *IcebergHandle) RefreshCredentials(ctx context.Context) error {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	credProps, _, err := h.creds.Refresh(ctx)
	if err != nil {
		return err
	}

	h.mu.RLock()
	closed, current := h.closed, h.loadedAs
	h.mu.RUnlock()
	if closed {
		return domain.ErrHandleClosed
	}
	if maps.Equal(credProps, current) {
		return nil
	}

	next, err := h.loader(ctx, h.name, h.merged(credProps))
	if err != nil {
		return fmt.Errorf("reload catalog %q with refreshed credentials: %w", h.name, err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = closeBackend(next)
		return domain.ErrHandleClosed
	}
	prev := h.backend
	h.backend = next
	h.loadedAs = credProps
	h.mu.Unlock()

	if err := closeBackend(prev); err != nil {
		h.logger.Warn("close superseded backend", "error", err)
	}
	h.logger.Debug("catalog credentials refreshed")
	return nil
}

// Close implements domain.CatalogHandle. Closing twice is a no-op.
func (h *IcebergHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	backend := h.backend
	h.backend = nil
	h.mu.Unlock()

	h.logger.Info("catalog handle closed")
	return closeBackend(backend)
}

// ListNamespaces lists the namespaces below parent.
func (h *IcebergHandle) ListNamespaces(ctx context.Context, parent table.Identifier) ([]table.Identifier, error) {
	backend, err := h.current()
	if err != nil {
		return nil, err
	}
	return backend.ListNamespaces(ctx, parent)
}

// ListTables collects the tables of namespace.
func (h *IcebergHandle) ListTables(ctx context.Context, namespace table.Identifier) ([]table.Identifier, error) {
	backend, err := h.current()
	if err != nil {
		return nil, err
	}
	var out []table.Identifier
	for ident, err := range backend.ListTables(ctx, namespace) {
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
	}
	return out, nil
}

// LoadSchema returns the current schema of a table.
func (h *IcebergHandle) LoadSchema(ctx context.Context, identifier table.Identifier) (*iceberg.Schema, error) {
	backend, err := h.current()
	if err != nil {
		return nil, err
	}
	tbl, err := backend.LoadTable(ctx, identifier, nil)
	if err != nil {
		return nil, err
	}
	return tbl.Schema(), nil
}

func (h *IcebergHandle) current() (Backend, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, domain.ErrHandleClosed
	}
	return h.backend, nil
}

func (h *IcebergHandle) merged(credProps iceberg.Properties) iceberg.Properties {
	out := make(iceberg.Properties, len(h.props)+len(credProps))
	maps.Copy(out, h.props)
	maps.Copy(out, credProps)
	return out
}

// backendProperties drops gateway-only keys (credential.*) so secrets used to
// mint credentials never reach the backend.
func backendProperties(props map[string]string) iceberg.Properties {
	out := make(iceberg.Properties, len(props))
	for k, v := range props {
		if strings.HasPrefix(k, credentialPropertyRoot) {
			continue
		}
		out[k] = v
	}
	return out
}

func closeBackend(b Backend) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
