package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// validator is implemented by request bodies that can check themselves
// before the caller is resolved.
type validator interface {
	Validate() error
}

// readJSON decodes a JSON request body with a size limit. An empty body
// decodes to the zero value.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	if vr, ok := any(&v).(validator); ok {
		if err := vr.Validate(); err != nil {
			writeDomainError(w, err, "")
			return v, false
		}
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps domain sentinels onto HTTP statuses. resource names
// the entity in not-found, conflict and forbidden messages.
func writeDomainError(w http.ResponseWriter, err error, resource string) {
	if resource == "" {
		resource = "resource"
	}
	switch {
	case errors.Is(err, tool.ErrNoAPIURL):
		writeError(w, http.StatusBadRequest, "Tool does not have an API URL configured")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, domain.Message(err))
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, domain.Message(err))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "you do not own this "+resource)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, resource+" not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, resource+" already exists")
	case errors.Is(err, domain.ErrUpstream):
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			writeError(w, http.StatusBadGateway, upstream.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "External API Error")
	default:
		writeInternalError(w, err)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
