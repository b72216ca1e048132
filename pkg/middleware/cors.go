package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists the origins permitted to call the API. A single
	// "*" entry allows any origin, which is only acceptable in development.
	AllowedOrigins []string

	// AllowedMethods lists the permitted HTTP methods. Empty means the
	// standard read/write set.
	AllowedMethods []string

	// AllowedHeaders lists the permitted request headers. Empty means the
	// headers the review API actually reads.
	AllowedHeaders []string

	// ExposedHeaders lists response headers the browser may read.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Zero means 3600.
	MaxAge int

	// AllowCredentials enables cookies and Authorization headers on
	// cross-origin requests.
	AllowCredentials bool

	// Environment gates the wildcard: "*" origins are honored only in
	// development, or when AllowedOrigins names "*" explicitly.
	Environment string
}

// DefaultCORSConfig returns a permissive configuration for local development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-User-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// corsHeaders holds the precomputed header values shared by every request.
type corsHeaders struct {
	methods       string
	headers       string
	exposed       string
	maxAge        string
	credentials   bool
	wildcard      bool
	originAllowed map[string]struct{}
}

func buildCORSHeaders(cfg CORSConfig) corsHeaders {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-User-ID"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	h := corsHeaders{
		methods:       strings.Join(cfg.AllowedMethods, ", "),
		headers:       strings.Join(cfg.AllowedHeaders, ", "),
		exposed:       strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:        strconv.Itoa(cfg.MaxAge),
		credentials:   cfg.AllowCredentials,
		wildcard:      cfg.Environment == "development",
		originAllowed: make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			h.wildcard = true
			continue
		}
		h.originAllowed[o] = struct{}{}
	}
	return h
}

// CORS returns middleware that answers preflight requests and sets
// Cross-Origin Resource Sharing headers on every response.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	h := buildCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch origin := r.Header.Get("Origin"); {
			case h.wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := h.originAllowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", h.methods)
			w.Header().Set("Access-Control-Allow-Headers", h.headers)
			w.Header().Set("Access-Control-Max-Age", h.maxAge)
			if h.exposed != "" {
				w.Header().Set("Access-Control-Expose-Headers", h.exposed)
			}
			if h.credentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
