package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// corsMaxAge is how long browsers may cache a preflight response, in seconds.
const corsMaxAge = 600

// CORS allows the configured comma-separated origins to call the API with
// credentials, so session cookies travel on cross-origin requests. With no
// origins configured no CORS headers are sent at all.
func CORS(origins string) func(http.Handler) http.Handler {
	allowed := splitOrigins(origins)
	if len(allowed) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
