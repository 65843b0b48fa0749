package security

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	// AllowedOrigins lists exact origins; "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// DefaultCORSConfig allows any origin to read the API.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         600,
	}
}

// CORS answers preflight requests and decorates actual requests with the
// Access-Control headers for allowed origins. Requests from other origins
// pass through without CORS headers and the browser blocks them.
type CORS struct {
	config   CORSConfig
	allowAny bool
	origins  map[string]struct{}
	methods  string
	headers  string
}

// NewCORS builds the middleware from config.
func NewCORS(config CORSConfig) *CORS {
	c := &CORS{
		config:  config,
		origins: make(map[string]struct{}, len(config.AllowedOrigins)),
		methods: strings.Join(config.AllowedMethods, ", "),
		headers: strings.Join(config.AllowedHeaders, ", "),
	}
	for _, o := range config.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			c.allowAny = true
			continue
		}
		if o != "" {
			c.origins[strings.ToLower(o)] = struct{}{}
		}
	}
	return c
}

func (c *CORS) allowed(origin string) bool {
	if c.allowAny {
		return true
	}
	_, ok := c.origins[strings.ToLower(origin)]
	return ok
}

// Middleware returns the HTTP middleware function
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Add("Vary", "Origin")
		if !c.allowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		if c.allowAny {
			headers.Set("Access-Control-Allow-Origin", "*")
		} else {
			headers.Set("Access-Control-Allow-Origin", origin)
		}
		headers.Set("Access-Control-Expose-Headers", "X-Request-ID")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			headers.Set("Access-Control-Allow-Methods", c.methods)
			headers.Set("Access-Control-Allow-Headers", c.headers)
			if c.config.MaxAge > 0 {
				headers.Set("Access-Control-Max-Age", strconv.Itoa(c.config.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
