package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"

	pstrings "repoharvest/internal/platform/strings"
)

// RequestID attaches or propagates X-Request-ID and stores it on context
func RequestID() func(http.Handler) http.Handler { return chimw.RequestID }

// RealIP sets RemoteAddr to the upstream IP based on X-Forwarded-For headers
func RealIP() func(http.Handler) http.Handler { return chimw.RealIP }

// Timeout cancels the request context after d
func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

// NoCache sets headers to disable client and proxy caching
func NoCache() func(http.Handler) http.Handler { return chimw.NoCache }

// CORSOptions is a narrow surface over go-chi/cors
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	MaxAge         int
}

// CORS wraps go-chi/cors for read-only dashboards; methods default to GET and OPTIONS
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins: o.AllowedOrigins,
		AllowedMethods: pstrings.IfEmpty(o.AllowedMethods, []string{http.MethodGet, http.MethodOptions}),
		AllowedHeaders: []string{"Accept", "X-Request-ID"},
		MaxAge:         o.MaxAge,
	})
}
