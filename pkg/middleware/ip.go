// Package middleware provides the built-in HTTP middleware components of the
// Verve framework, plus the boundary layers the application stack builder
// installs around user middleware.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/verve-web/verve/pkg/common"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for client IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For.
	// If false, RemoteAddr is used regardless of Source.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

type clientIPKey struct{}

// ClientIP extracts the client IP from the request context.
// Returns an empty string if the middleware did not run.
func ClientIP(r *http.Request) string {
	ip, _ := r.Context().Value(clientIPKey{}).(string)
	return ip
}

// ClientIPMiddleware creates a middleware that extracts the client IP from
// the request per the configuration and stores it in the request context.
func ClientIPMiddleware(config *IPConfig) common.Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractClientIP(r, config)
			ctx := context.WithValue(r.Context(), clientIPKey{}, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractClientIP resolves the client IP from the configured source,
// falling back to RemoteAddr when the source header is absent.
func extractClientIP(r *http.Request, config *IPConfig) string {
	if config.TrustProxy {
		switch config.Source {
		case IPSourceXForwardedFor:
			// The first entry is the originating client.
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				return strings.TrimSpace(strings.Split(fwd, ",")[0])
			}
		case IPSourceXRealIP:
			if ip := r.Header.Get("X-Real-IP"); ip != "" {
				return ip
			}
		case IPSourceCustomHeader:
			if ip := r.Header.Get(config.CustomHeader); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
