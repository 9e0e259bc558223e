package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/metrics"
	"github.com/crewkit/crewkit/internal/team"
)

// membersHandler groups membership HTTP handlers.
type membersHandler struct {
	membership *team.Membership
	teams      *team.Store
	metrics    *metrics.Metrics
}

func newMembersHandler(membership *team.Membership, teams *team.Store, m *metrics.Metrics) *membersHandler {
	return &membersHandler{membership: membership, teams: teams, metrics: m}
}

// AddMember handles POST /api/v1/teams/{teamID}/members.
func (h *membersHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	if authorizeTeam(w, r, h.teams, teamID) == nil {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email is required")
		return
	}

	if err := h.membership.AddMember(r.Context(), teamID, req.Email); err != nil {
		if fault.Is(err, fault.KindLimitExceeded) {
			h.metrics.IncCapRejection("add_member")
		}
		writeFault(w, r, err)
		return
	}

	auditLog(r, "team.member_add", "team", teamID, "member_email", req.Email)

	members, err := h.teams.Members(r.Context(), teamID)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"members": members})
}

// RemoveMember handles DELETE /api/v1/teams/{teamID}/members/{userID}.
func (h *membersHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID := chi.URLParam(r, "userID")
	if authorizeTeam(w, r, h.teams, teamID) == nil {
		return
	}

	if err := h.membership.RemoveMember(r.Context(), teamID, userID); err != nil {
		writeFault(w, r, err)
		return
	}

	auditLog(r, "team.member_remove", "team", teamID, "member_id", userID)
	w.WriteHeader(http.StatusNoContent)
}
