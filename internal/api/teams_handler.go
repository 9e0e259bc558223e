package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crewkit/crewkit/internal/auth"
	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/metrics"
	"github.com/crewkit/crewkit/internal/team"
)

// teamsHandler groups team HTTP handlers.
type teamsHandler struct {
	lifecycle  *team.Lifecycle
	membership *team.Membership
	teams      *team.Store
	metrics    *metrics.Metrics
}

func newTeamsHandler(lifecycle *team.Lifecycle, membership *team.Membership, teams *team.Store, m *metrics.Metrics) *teamsHandler {
	return &teamsHandler{lifecycle: lifecycle, membership: membership, teams: teams, metrics: m}
}

// teamDetail is the full read view of a team for detail responses.
type teamDetail struct {
	Team    *team.Team           `json:"team"`
	Members []*team.MemberDetail `json:"members"`
	ProSum  float64              `json:"pro_sum"`
}

func (h *teamsHandler) detail(ctx context.Context, teamID string) (*teamDetail, error) {
	t, err := h.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members, err := h.teams.Members(ctx, teamID)
	if err != nil {
		return nil, err
	}
	sum, err := h.teams.ProSum(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &teamDetail{Team: t, Members: members, ProSum: sum}, nil
}

// CreateTeam handles POST /api/v1/admin/teams.
func (h *teamsHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req team.CreateTeamInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	t, err := h.lifecycle.CreateTeam(r.Context(), req)
	if err != nil {
		writeFault(w, r, err)
		return
	}

	h.metrics.TeamsCreatedTotal.Inc()
	auditLog(r, "team.create", "team", t.ID, "name", t.Name, "leader_id", t.LeaderID)
	writeJSON(w, http.StatusCreated, t)
}

// ListTeams handles GET /api/v1/admin/teams.
func (h *teamsHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context())
	if err != nil {
		writeFault(w, r, err)
		return
	}
	if teams == nil {
		teams = []*team.Team{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// GetTeamAdmin handles GET /api/v1/admin/teams/{teamID}.
func (h *teamsHandler) GetTeamAdmin(w http.ResponseWriter, r *http.Request) {
	d, err := h.detail(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SaveTeamDetails handles PUT /api/v1/admin/teams/{teamID}. The compound edit
// (rename, new limit, member adds and removes) is all-or-nothing.
func (h *teamsHandler) SaveTeamDetails(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	var req team.SaveTeamDetailsInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if err := h.membership.SaveTeamDetails(r.Context(), teamID, req); err != nil {
		if fault.Is(err, fault.KindLimitExceeded) {
			h.metrics.IncCapRejection("save_team_details")
		}
		writeFault(w, r, err)
		return
	}

	auditLog(r, "team.save_details", "team", teamID,
		"name", req.Name, "amount_limit", req.AmountLimit,
		"added", len(req.AddEmails), "removed", len(req.RemoveUserIDs))

	d, err := h.detail(r.Context(), teamID)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteTeam handles DELETE /api/v1/admin/teams/{teamID}.
func (h *teamsHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	if err := h.lifecycle.DeleteTeam(r.Context(), teamID); err != nil {
		writeFault(w, r, err)
		return
	}

	h.metrics.TeamsDeletedTotal.Inc()
	auditLog(r, "team.delete", "team", teamID)
	w.WriteHeader(http.StatusNoContent)
}

// GetTeam handles GET /api/v1/teams/{teamID} for leaders managing their own
// team; admins may read any team through it as well.
func (h *teamsHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	t, err := h.teams.GetByID(r.Context(), teamID)
	if err != nil {
		writeFault(w, r, err)
		return
	}

	id := auth.IdentityFromContext(r.Context())
	if id == nil || !id.CanManageTeam(t.LeaderID) {
		writeError(w, http.StatusForbidden, "forbidden", "not the leader of this team")
		return
	}

	d, err := h.detail(r.Context(), teamID)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// authorizeTeam loads the team and checks that the caller may manage it.
// Returns nil (after writing the response) when access is denied.
func authorizeTeam(w http.ResponseWriter, r *http.Request, teams *team.Store, teamID string) *team.Team {
	t, err := teams.GetByID(r.Context(), teamID)
	if err != nil {
		writeFault(w, r, err)
		return nil
	}
	id := auth.IdentityFromContext(r.Context())
	if id == nil || !id.CanManageTeam(t.LeaderID) {
		writeError(w, http.StatusForbidden, "forbidden", "not the leader of this team")
		return nil
	}
	return t
}
