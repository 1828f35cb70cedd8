package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the board pages listed in origins to call the viewer API.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match", "Range"},
		ExposedHeaders:   []string{"ETag", "Content-Range", "Accept-Ranges"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
