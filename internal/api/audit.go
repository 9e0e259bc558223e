package api

import (
	"log/slog"
	"net/http"

	"github.com/crewkit/crewkit/internal/auth"
)

// auditLog emits a structured audit log entry for an admin/leader action.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", clientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	if id := auth.IdentityFromContext(r.Context()); id != nil {
		attrs = append(attrs, "user_id", id.ID, "user_email", id.Email, "user_role", id.Role)
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
