package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Middleware rate-limits requests by client IP. It protects the anonymous
// auth endpoints (login, register) from brute force and enumeration. Each
// onReject hook is invoked once per rejected request.
func Middleware(l *Limiter, onReject ...func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				for _, fn := range onReject {
					fn()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "rate_limited",
						"message": "too many requests, slow down",
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP picks the originating address, preferring the first entry of
// X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
