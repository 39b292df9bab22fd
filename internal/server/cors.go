package server

import (
	"net/http"
	"regexp"
	"slices"

	"github.com/go-chi/cors"

	"github.com/howard-nolan/blogsmith/internal/config"
)

// devOriginPattern lets a frontend dev server on any local port through,
// whatever the configured origin list says.
var devOriginPattern = regexp.MustCompile(`^http://(localhost|127\.0\.0\.1):\d{4,5}$`)

// OriginAllowed reports whether a browser origin may call the API: it is in
// the configured list (or the list holds "*"), or it is a local dev origin.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	if slices.Contains(allowed, config.WildcardOrigin) || slices.Contains(allowed, origin) {
		return true
	}
	return devOriginPattern.MatchString(origin)
}

func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		// With AllowOriginFunc set, go-chi/cors ignores AllowedOrigins and
		// echoes the request origin, which credentials require anyway.
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return OriginAllowed(allowed, origin)
		},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
