// Package metadata extracts client-facing request details (IP, User-Agent,
// coarse device descriptor) into the context so audit records can carry them
// without handlers touching the http.Request.
package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"kinlink/pkg/requestcontext"
)

// ClientMetadata extracts client IP address, User-Agent, and a parsed
// browser/os descriptor from the request and adds them to the context.
// Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		rawUA := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, rawUA, describeDevice(rawUA))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// describeDevice reduces a User-Agent to "browser/os" for audit attribution.
func describeDevice(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser == "" && os == "":
		return "unknown"
	case browser == "":
		return os
	case os == "":
		return browser
	default:
		return browser + "/" + os
	}
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs; the first is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" (IPv6: "[::1]:port")
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
