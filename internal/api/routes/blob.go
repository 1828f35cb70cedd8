package routes

import (
	"github.com/go-chi/chi/v5"

	blobhandlers "Threadview/internal/api/handlers/blob"
)

// RegisterBlobRoutes registers object URL endpoints under prefix, which
// must match the registry's URL prefix (for example "/blob").
func RegisterBlobRoutes(r chi.Router, prefix string, handler *blobhandlers.Handler) {
	r.Get(prefix+"/{id}", handler.HandleGet)
	r.Post(prefix+"/{id}/loaded", handler.HandleLoaded)
}
