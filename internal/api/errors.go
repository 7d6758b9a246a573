package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"icegate/internal/domain"
)

// errorResponse is the Iceberg REST error envelope.
type errorResponse struct {
	Error errorModel `json:"error"`
}

type errorModel struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes and
// Iceberg REST error types. Order matters: a ConstructionError that wraps a
// NotFoundError is reported as not found.
func httpStatusFromDomainError(err error) (int, string) {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var configuration *domain.ConfigurationError
	var conflict *domain.ConflictError
	var unsupported *domain.UnsupportedTypeError
	var construction *domain.ConstructionError
	var refresh *domain.RefreshError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "NoSuchCatalogException"
	case errors.As(err, &validation), errors.As(err, &configuration):
		return http.StatusBadRequest, "BadRequestException"
	case errors.As(err, &conflict):
		return http.StatusConflict, "AlreadyExistsException"
	case errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity, "UnsupportedTypeException"
	case errors.As(err, &construction), errors.As(err, &refresh):
		return http.StatusBadGateway, "CatalogUnavailableException"
	case errors.Is(err, domain.ErrManagerClosed):
		return http.StatusServiceUnavailable, "ServiceUnavailableException"
	default:
		return http.StatusInternalServerError, "InternalServerError"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, typ := httpStatusFromDomainError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal server error"
	} else {
		h.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errorModel{Message: msg, Type: typ, Code: status}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("encode response", "error", err)
	}
}
