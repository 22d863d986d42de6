package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPCtxKey struct{}

// ClientIP stores the caller's IP address in the request context. The IP is
// the caller's identity. With trustProxy, X-Real-IP and then the first
// X-Forwarded-For entry win over RemoteAddr; without it those headers are
// ignored because any client can set them.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			if trustProxy {
				if fwd := proxiedIP(r); fwd != "" {
					ip = fwd
				}
			}
			ctx := context.WithValue(r.Context(), clientIPCtxKey{}, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromContext returns the IP stored by ClientIP, or "" if absent.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPCtxKey{}).(string)
	return ip
}

// RequestIP returns the IP stored by ClientIP, falling back to RemoteAddr.
func RequestIP(r *http.Request) string {
	if ip := ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteIP(r)
}

func proxiedIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return parseIP(first)
	}
	return ""
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
