package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/verve-web/verve/pkg/common"
)

// TrustedHostConfig defines configuration for the host allow-list validator.
type TrustedHostConfig struct {
	// AllowedHosts lists host patterns accepted by the application. A pattern
	// is an exact hostname, "*" for any host, or "*.example.com" to match any
	// subdomain of example.com.
	AllowedHosts []string
}

// TrustedHost is a middleware that rejects requests whose Host header does
// not match the allow list. Rejected requests receive a 400 response.
func TrustedHost(config *TrustedHostConfig) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hostAllowed(r.Host, config.AllowedHosts) {
				http.Error(w, "Invalid host header", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(host string, patterns []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, pattern := range patterns {
		if pattern == "*" || pattern == host {
			return true
		}
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
	}
	return false
}
