package http

import (
	"context"
	"net/http"
)

// ---------------------------------------------------------------------------
// Generic CRUD handler factories
//
// Each handler decodes and validates the body, resolves the caller from the
// client IP, then runs fn on behalf of that caller.
// ---------------------------------------------------------------------------

// handleListByParam lists resources scoped by a URL parameter.
func handleListByParam[T any](h *Handlers, param, resource string, listFn func(ctx context.Context, callerID, paramVal string) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := h.caller(w, r)
		if !ok {
			return
		}
		items, err := listFn(r.Context(), callerID, urlParam(r, param))
		if err != nil {
			writeDomainError(w, err, resource)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleGet retrieves a single resource by URL param "id".
func handleGet[T any](h *Handlers, resource string, getFn func(ctx context.Context, callerID, id string) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := h.caller(w, r)
		if !ok {
			return
		}
		item, err := getFn(r.Context(), callerID, urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, resource)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleCreateIn creates a resource under the parent named by URL param "id".
func handleCreateIn[Req any, Res any](h *Handlers, resource string, createFn func(ctx context.Context, callerID, parentID string, req Req) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r, h.bodyLimit())
		if !ok {
			return
		}
		callerID, ok := h.caller(w, r)
		if !ok {
			return
		}
		res, err := createFn(r.Context(), callerID, urlParam(r, "id"), req)
		if err != nil {
			writeDomainError(w, err, resource)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// handleUpdate decodes a JSON body and updates a resource by URL param "id".
func handleUpdate[Req any, Res any](h *Handlers, resource string, updateFn func(ctx context.Context, callerID, id string, req Req) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r, h.bodyLimit())
		if !ok {
			return
		}
		callerID, ok := h.caller(w, r)
		if !ok {
			return
		}
		res, err := updateFn(r.Context(), callerID, urlParam(r, "id"), req)
		if err != nil {
			writeDomainError(w, err, resource)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleDelete deletes a resource by URL param "id".
func handleDelete(h *Handlers, resource string, deleteFn func(ctx context.Context, callerID, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := h.caller(w, r)
		if !ok {
			return
		}
		if err := deleteFn(r.Context(), callerID, urlParam(r, "id")); err != nil {
			writeDomainError(w, err, resource)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
