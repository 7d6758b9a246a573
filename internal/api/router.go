package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"icegate/internal/middleware"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Logger *slog.Logger
	// RateLimiter is optional.
	RateLimiter *middleware.RateLimiter
}

// NewRouter mounts h on a chi router with the gateway middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Recoverer)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/config", h.getConfig)
		r.Post("/types/physical", h.convertType)
		mountCatalogRoutes(r, h)
		r.Route("/{prefix}", func(r chi.Router) {
			mountCatalogRoutes(r, h)
		})
	})

	r.Route("/admin/catalogs", func(r chi.Router) {
		r.Get("/", h.listCachedCatalogs)
		r.Delete("/{name}", h.invalidateCatalog)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func mountCatalogRoutes(r chi.Router, h *Handler) {
	r.Get("/namespaces", h.listNamespaces)
	r.Get("/namespaces/{namespace}/tables", h.listTables)
	r.Get("/namespaces/{namespace}/tables/{table}/schema", h.getTableSchema)
}
