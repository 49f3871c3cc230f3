package middlewares

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORSOption adjusts the go-chi/cors options behind CORS.
type CORSOption func(*cors.Options)

func corsDefaults() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         int((12 * time.Hour).Seconds()),
	}
}

// WithAllowOrigins replaces the origin list. Entries may use one wildcard,
// as in "https://*.example.com".
func WithAllowOrigins(origins ...string) CORSOption {
	return func(o *cors.Options) { o.AllowedOrigins = origins }
}

// WithAllowOriginFunc decides origins dynamically and takes precedence over
// the origin list.
func WithAllowOriginFunc(fn func(origin string) bool) CORSOption {
	return func(o *cors.Options) {
		if fn == nil {
			o.AllowOriginFunc = nil
			return
		}
		o.AllowOriginFunc = func(_ *http.Request, origin string) bool { return fn(origin) }
	}
}

func WithAllowMethods(methods ...string) CORSOption {
	return func(o *cors.Options) { o.AllowedMethods = methods }
}

func WithAllowHeaders(headers ...string) CORSOption {
	return func(o *cors.Options) { o.AllowedHeaders = headers }
}

func WithExposeHeaders(headers ...string) CORSOption {
	return func(o *cors.Options) { o.ExposedHeaders = headers }
}

// WithAllowCredentials lets browsers send cookies, which the session scope
// needs on cross-origin calls. Browsers refuse it with a "*" origin.
func WithAllowCredentials() CORSOption {
	return func(o *cors.Options) { o.AllowCredentials = true }
}

// WithMaxAge sets how long browsers may cache a preflight answer.
func WithMaxAge(d time.Duration) CORSOption {
	return func(o *cors.Options) { o.MaxAge = int(d.Seconds()) }
}

// CORS answers preflight requests itself. Installed below the scope binder
// priority, a preflight never opens a request or session scope.
func CORS(opts ...CORSOption) func(http.Handler) http.Handler {
	o := corsDefaults()
	for _, opt := range opts {
		opt(&o)
	}
	return cors.Handler(o)
}
