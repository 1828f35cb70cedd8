// Package blob serves object URL handles to the page.
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zeebo/xxh3"

	"Threadview/internal/api/handlers"
	"Threadview/internal/core/objecturl"
)

// Registry resolves and releases handles.
type Registry interface {
	Lookup(id string) (*objecturl.Object, error)
	Revoke(idOrURL string)
}

// Handler serves blobs behind object URL handles.
type Handler struct {
	registry Registry
}

// NewHandler creates a blob handler.
func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

// HandleGet handles GET /blob/{id}
// Range requests and If-None-Match are honored so video elements can seek.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Missing blob id")
		return
	}

	obj, err := h.registry.Lookup(id)
	if err != nil {
		if errors.Is(err, objecturl.ErrNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "NotFound", "Blob was released or never existed")
			return
		}
		slog.Error("[BLOB] lookup failed", "id", id, "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", ETag(obj.Data))
	w.Header().Set("Cache-Control", "private, no-cache")

	http.ServeContent(w, r, "", obj.Created, bytes.NewReader(obj.Data))
}

// HandleLoaded handles POST /blob/{id}/loaded
// The page calls it once the element displaying the blob has loaded.
// Releasing an unknown handle is not an error.
func (h *Handler) HandleLoaded(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Missing blob id")
		return
	}
	h.registry.Revoke(id)
	w.WriteHeader(http.StatusNoContent)
}

// ETag returns a strong entity tag for data.
func ETag(data []byte) string {
	return fmt.Sprintf(`"%016x"`, xxh3.Hash(data))
}
