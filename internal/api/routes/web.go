package routes

import (
	"github.com/go-chi/chi/v5"

	"Threadview/internal/web"
)

// RegisterWebRoutes registers the viewer page at "/".
func RegisterWebRoutes(r chi.Router, handlers *web.Handlers) {
	r.Get("/", handlers.ViewerHandler)
}
