package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the storefront frontend origin to call the API directly from
// the browser. The configured origin is normalized without a trailing slash
// so FRONTEND_URL values like "http://localhost:5173/" still match.
func (h *Handlers) CORS(next http.Handler) http.Handler {
	origins := []string{"*"}
	if allowed := strings.TrimRight(h.config.FrontendURL, "/"); allowed != "" {
		origins = []string{allowed}
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	}).Handler(next)
}
