package middleware

import (
	"net/http"
	"strings"
)

// CacheControl adds cache headers to responses.
type CacheControl struct{}

// NewCacheControl creates a new cache control middleware.
func NewCacheControl() *CacheControl {
	return &CacheControl{}
}

// Apply adds cache headers based on the request path. Nothing served by the
// API is safe to share between users, so only probe endpoints may be cached
// at all, and only with revalidation.
func (c *CacheControl) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case strings.HasPrefix(path, "/api/"):
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
			w.Header().Set("Pragma", "no-cache")

		case isProbePath(path):
			w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		case path == "/ws":
			// Upgrade responses carry no cacheable body.

		default:
			w.Header().Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}

func isProbePath(path string) bool {
	switch path {
	case "/health", "/ready", "/live":
		return true
	}
	return false
}
