package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/crewkit/crewkit/internal/user"
)

type contextKey int

const identityContextKey contextKey = iota

// ContextWithIdentity returns a new context carrying the given identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the caller identity, or nil if unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

// SessionMiddleware validates the bearer session token and injects the caller
// identity into the request context. Blocked accounts are rejected.
func SessionMiddleware(sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r)
			if token == "" {
				writeUnauthorized(w, "missing or malformed authorization header")
				return
			}

			u, err := sessions.GetSessionUser(r.Context(), token)
			if err != nil || u == nil {
				writeUnauthorized(w, "invalid or expired session")
				return
			}
			if u.Role == user.RoleBlocked {
				writeForbidden(w, "account is blocked")
				return
			}

			ctx := ContextWithIdentity(r.Context(), &Identity{
				ID:     u.ID,
				Name:   u.Name,
				Email:  u.Email,
				Role:   u.Role,
				TeamID: u.TeamID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers without the ADMIN role. It must run after
// SessionMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil {
			writeUnauthorized(w, "not authenticated")
			return
		}
		if !id.IsAdmin() {
			writeForbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractBearerToken extracts the bearer token from the Authorization header.
func ExtractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: "unauthorized", Message: message},
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: "forbidden", Message: message},
	})
}
