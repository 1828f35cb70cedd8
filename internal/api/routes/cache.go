package routes

import (
	"github.com/go-chi/chi/v5"

	cachehandlers "Threadview/internal/api/handlers/cache"
)

// RegisterCacheRoutes registers GET /api/cache/stats.
func RegisterCacheRoutes(r chi.Router, handler *cachehandlers.Handler) {
	r.Get("/api/cache/stats", handler.HandleStats)
}
