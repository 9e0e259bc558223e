package api

import (
	"net/http"

	"github.com/crewkit/crewkit/internal/user"
)

// usersHandler groups user administration HTTP handlers.
type usersHandler struct {
	users *user.Store
}

func newUsersHandler(users *user.Store) *usersHandler {
	return &usersHandler{users: users}
}

// ListUsers handles GET /api/v1/admin/users. An optional ?role= query narrows
// the listing; admins use role=USER to pick team leader candidates.
func (h *usersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && !user.KnownRole(role) {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "unknown role filter")
		return
	}

	users, err := h.users.List(r.Context(), role)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	if users == nil {
		users = []*user.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
