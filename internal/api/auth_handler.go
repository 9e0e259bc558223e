package api

import (
	"net/http"

	"github.com/crewkit/crewkit/internal/auth"
	"github.com/crewkit/crewkit/internal/metrics"
	"github.com/crewkit/crewkit/internal/signup"
	"github.com/crewkit/crewkit/internal/user"
)

// authHandler groups registration and session HTTP handlers.
type authHandler struct {
	users   *user.Store
	binder  *signup.Binder
	metrics *metrics.Metrics
}

func newAuthHandler(users *user.Store, binder *signup.Binder, m *metrics.Metrics) *authHandler {
	return &authHandler{users: users, binder: binder, metrics: m}
}

// Register handles POST /api/v1/auth/register.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req signup.Input
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	u, err := h.binder.Register(r.Context(), req)
	if err != nil {
		writeFault(w, r, err)
		return
	}

	h.metrics.IncRegistration(req.ReferralCode != "")
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.metrics.IncAuthFailure("unknown_email")
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	if !user.CheckPassword(u, req.Password) {
		h.metrics.IncAuthFailure("bad_password")
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	if u.Role == user.RoleBlocked {
		h.metrics.IncAuthFailure("blocked")
		writeError(w, http.StatusForbidden, "forbidden", "account is blocked")
		return
	}

	token, _, err := h.users.CreateSession(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	h.metrics.IncAuthSuccess("password")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id.ID,
		"name":    id.Name,
		"email":   id.Email,
		"role":    id.Role,
		"team_id": id.TeamID,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractBearerToken(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_ = h.users.DeleteSession(r.Context(), token)
	w.WriteHeader(http.StatusNoContent)
}
