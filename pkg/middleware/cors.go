package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/verve-web/verve/pkg/common"
)

// CORSConfig defines configuration for cross-origin resource sharing.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests.
	// "*" allows any origin.
	AllowOrigins []string

	// AllowMethods lists methods advertised on preflight responses.
	// Defaults to the simple methods plus PUT, PATCH, and DELETE.
	AllowMethods []string

	// AllowHeaders lists request headers advertised on preflight responses.
	AllowHeaders []string

	// ExposeHeaders lists response headers readable by browser scripts.
	ExposeHeaders []string

	// AllowCredentials advertises support for credentialed requests. When
	// set, the allowed origin is echoed back instead of "*".
	AllowCredentials bool

	// MaxAge is how long preflight results may be cached.
	MaxAge time.Duration
}

var defaultCORSMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost,
	http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// CORS is a middleware that applies the CORS protocol for the configured
// origins: preflight requests are answered directly, and allowed simple
// requests are annotated with the response headers browsers require.
func CORS(config *CORSConfig) common.Middleware {
	methods := config.AllowMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			allowed := originAllowed(origin, config.AllowOrigins)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
					return
				}
				setAllowOrigin(w, origin, config)
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
				if len(config.AllowHeaders) > 0 {
					w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
				} else if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				}
				if config.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
				}
				w.WriteHeader(http.StatusOK)
				return
			}

			if allowed {
				setAllowOrigin(w, origin, config)
				if len(config.ExposeHeaders) > 0 {
					w.Header().Set("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setAllowOrigin(w http.ResponseWriter, origin string, config *CORSConfig) {
	value := origin
	if !config.AllowCredentials {
		for _, o := range config.AllowOrigins {
			if o == "*" {
				value = "*"
				break
			}
		}
	} else {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Access-Control-Allow-Origin", value)
}

func originAllowed(origin string, allowed []string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
