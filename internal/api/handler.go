// Package api serves the gateway's Iceberg-REST-shaped read surface and its
// admin endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/table"
	"github.com/go-chi/chi/v5"

	"icegate/internal/domain"
	"icegate/internal/typebridge"
)

// namespaceSeparator joins multi-level namespaces in a path segment.
const namespaceSeparator = "\x1f"

// maxTypeBodyBytes bounds POST /v1/types/physical payloads.
const maxTypeBodyBytes = 1 << 20

// HandleCache is the part of catalogcache.Manager the API uses.
type HandleCache interface {
	Get(ctx context.Context, name string) (domain.CatalogHandle, error)
	Entries() []domain.CachedCatalog
	Invalidate(name string) bool
}

// CatalogSession is implemented by handles that can read catalog metadata.
// provider.IcebergHandle satisfies it.
type CatalogSession interface {
	ListNamespaces(ctx context.Context, parent table.Identifier) ([]table.Identifier, error)
	ListTables(ctx context.Context, namespace table.Identifier) ([]table.Identifier, error)
	LoadSchema(ctx context.Context, identifier table.Identifier) (*iceberg.Schema, error)
}

// Handler serves the gateway endpoints.
type Handler struct {
	cache  HandleCache
	logger *slog.Logger
}

// NewHandler creates a Handler backed by cache.
func NewHandler(cache HandleCache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cache: cache, logger: logger.With("component", "api")}
}

type configResponse struct {
	Defaults  map[string]string `json:"defaults"`
	Overrides map[string]string `json:"overrides"`
}

type listNamespacesResponse struct {
	Namespaces []table.Identifier `json:"namespaces"`
}

type tableIdentifier struct {
	Namespace table.Identifier `json:"namespace"`
	Name      string           `json:"name"`
}

type listTablesResponse struct {
	Identifiers []tableIdentifier `json:"identifiers"`
}

type schemaResponse struct {
	Identifier tableIdentifier       `json:"identifier"`
	Logical    json.RawMessage       `json:"logical"`
	Physical   typebridge.SchemaJSON `json:"physical"`
}

type convertTypeRequest struct {
	Type     json.RawMessage `json:"type"`
	SchemaID int             `json:"schema-id"`
}

type convertTypeResponse struct {
	Schema *typebridge.SchemaJSON `json:"schema,omitempty"`
	Type   any                    `json:"type,omitempty"`
}

type cachedCatalogsResponse struct {
	Catalogs []domain.CachedCatalog `json:"catalogs"`
}

func (h *Handler) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{Defaults: map[string]string{}, Overrides: map[string]string{}})
}

func (h *Handler) listNamespaces(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var parent table.Identifier
	if p := r.URL.Query().Get("parent"); p != "" {
		parent = splitNamespace(p)
	}
	namespaces, err := session.ListNamespaces(r.Context(), parent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if namespaces == nil {
		namespaces = []table.Identifier{}
	}
	writeJSON(w, http.StatusOK, listNamespacesResponse{Namespaces: namespaces})
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	namespace := splitNamespace(pathParam(r, "namespace"))
	tables, err := session.ListTables(r.Context(), namespace)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := listTablesResponse{Identifiers: make([]tableIdentifier, 0, len(tables))}
	for _, ident := range tables {
		out.Identifiers = append(out.Identifiers, identifierToAPI(ident))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getTableSchema(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ident := append(splitNamespace(pathParam(r, "namespace")), pathParam(r, "table"))
	schema, err := session.LoadSchema(r.Context(), ident)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logical, err := typebridge.FromSchema(schema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	encoded, err := domain.MarshalType(logical)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Identifier: identifierToAPI(ident),
		Logical:    encoded,
		Physical:   typebridge.EncodeSchema(schema),
	})
}

func (h *Handler) convertType(w http.ResponseWriter, r *http.Request) {
	var req convertTypeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTypeBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	if len(req.Type) == 0 {
		h.writeError(w, r, domain.ErrValidation("type is required"))
		return
	}
	logical, err := domain.UnmarshalType(req.Type)
	if err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid type: %v", err))
		return
	}

	if st, ok := logical.(*domain.StructType); ok {
		schema, err := typebridge.ToSchema(req.SchemaID, st)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out := typebridge.EncodeSchema(schema)
		writeJSON(w, http.StatusOK, convertTypeResponse{Schema: &out})
		return
	}

	physical, err := typebridge.ToPhysical(logical)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convertTypeResponse{Type: typebridge.EncodeType(physical)})
}

func (h *Handler) listCachedCatalogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cachedCatalogsResponse{Catalogs: h.cache.Entries()})
}

func (h *Handler) invalidateCatalog(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if !h.cache.Invalidate(name) {
		h.writeError(w, r, domain.ErrNotFound("catalog %q is not cached", name))
		return
	}
	h.logger.InfoContext(r.Context(), "catalog handle invalidated", "catalog", name)
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the request's catalog prefix and returns its live handle.
func (h *Handler) session(r *http.Request) (CatalogSession, error) {
	var raw string
	if prefix := pathParam(r, "prefix"); prefix != "" {
		raw = prefix + "/"
	}
	name, err := domain.ResolveCatalogName(raw)
	if err != nil {
		return nil, err
	}
	handle, err := h.cache.Get(r.Context(), name)
	if err != nil {
		return nil, err
	}
	session, ok := handle.(CatalogSession)
	if !ok {
		return nil, fmt.Errorf("catalog %q does not support metadata reads", name)
	}
	return session, nil
}

func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func splitNamespace(s string) table.Identifier {
	return strings.Split(s, namespaceSeparator)
}

func identifierToAPI(ident table.Identifier) tableIdentifier {
	if len(ident) == 0 {
		return tableIdentifier{Namespace: table.Identifier{}}
	}
	ns := append(table.Identifier{}, ident[:len(ident)-1]...)
	return tableIdentifier{Namespace: ns, Name: ident[len(ident)-1]}
}
