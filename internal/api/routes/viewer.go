package routes

import (
	"github.com/go-chi/chi/v5"

	viewerhandlers "Threadview/internal/api/handlers/viewer"
)

// RegisterViewerRoutes registers the viewer session endpoints.
//
// Routes:
//   - GET  /api/view                       full render (?format=html for markup only)
//   - POST /api/signals/{name}             data-updated, display-cleared, toggle-visibility
//   - POST /api/viewport                   visibility observations for embeds and videos
//   - POST /api/embeds/{id}/activate       keyboard or click activation of a placeholder
//   - POST /api/messages/{id}/select       toggle the selected message
//   - POST /api/messages/{id}/scroll       wait for a message to be rendered
func RegisterViewerRoutes(r chi.Router, handler *viewerhandlers.Handler) {
	r.Get("/api/view", handler.HandleView)
	r.Post("/api/signals/{name}", handler.HandleSignal)
	r.Post("/api/viewport", handler.HandleViewport)
	r.Post("/api/embeds/{id}/activate", handler.HandleActivate)
	r.Post("/api/messages/{id}/select", handler.HandleSelect)
	r.Post("/api/messages/{id}/scroll", handler.HandleScroll)
}
