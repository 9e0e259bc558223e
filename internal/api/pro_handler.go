package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/metrics"
	"github.com/crewkit/crewkit/internal/team"
)

// proHandler groups Pro grant HTTP handlers.
type proHandler struct {
	pro     *team.Pro
	teams   *team.Store
	metrics *metrics.Metrics
}

func newProHandler(pro *team.Pro, teams *team.Store, m *metrics.Metrics) *proHandler {
	return &proHandler{pro: pro, teams: teams, metrics: m}
}

// Upgrade handles POST /api/v1/teams/{teamID}/members/{userID}/pro.
func (h *proHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID := chi.URLParam(r, "userID")
	if authorizeTeam(w, r, h.teams, teamID) == nil {
		return
	}
	if !h.memberOfTeam(w, r, teamID, userID) {
		return
	}

	var req struct {
		AmountLimit float64            `json:"amount_limit"`
		Products    []team.ProductSpec `json:"products"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if err := h.pro.Upgrade(r.Context(), userID, req.AmountLimit, req.Products); err != nil {
		if fault.Is(err, fault.KindLimitExceeded) {
			h.metrics.IncCapRejection("pro_upgrade")
		}
		writeFault(w, r, err)
		return
	}

	h.metrics.ProUpgradesTotal.WithLabelValues("upgrade").Inc()
	auditLog(r, "team.pro_upgrade", "team", teamID, "member_id", userID, "amount_limit", req.AmountLimit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"role":         "PRO",
		"amount_limit": req.AmountLimit,
	})
}

// Downgrade handles DELETE /api/v1/teams/{teamID}/members/{userID}/pro.
func (h *proHandler) Downgrade(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID := chi.URLParam(r, "userID")
	if authorizeTeam(w, r, h.teams, teamID) == nil {
		return
	}
	if !h.memberOfTeam(w, r, teamID, userID) {
		return
	}

	if err := h.pro.Downgrade(r.Context(), userID); err != nil {
		writeFault(w, r, err)
		return
	}

	h.metrics.ProUpgradesTotal.WithLabelValues("downgrade").Inc()
	auditLog(r, "team.pro_downgrade", "team", teamID, "member_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// memberOfTeam checks that userID belongs to the team named in the URL, so a
// leader cannot grant credits to members of other teams.
func (h *proHandler) memberOfTeam(w http.ResponseWriter, r *http.Request, teamID, userID string) bool {
	members, err := h.teams.Members(r.Context(), teamID)
	if err != nil {
		writeFault(w, r, err)
		return false
	}
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "member not found in the team")
	return false
}
