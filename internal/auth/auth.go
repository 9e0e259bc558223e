// Package auth supplies the caller identity for every request: who is
// calling and with which role. Sessions are opaque tokens resolved through a
// SessionLookup.
package auth

import (
	"context"

	"github.com/crewkit/crewkit/internal/user"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	ID     string
	Name   string
	Email  string
	Role   string
	TeamID *string
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (i *Identity) IsAdmin() bool {
	return i.Role == user.RoleAdmin
}

// IsLeader reports whether the caller holds the LEADER role.
func (i *Identity) IsLeader() bool {
	return i.Role == user.RoleLeader
}

// CanManageTeam reports whether the caller may mutate the team led by
// leaderID: admins manage every team, a leader manages their own.
func (i *Identity) CanManageTeam(leaderID string) bool {
	return i.IsAdmin() || (i.IsLeader() && i.ID == leaderID)
}

// SessionLookup resolves a plaintext session token to its user.
type SessionLookup interface {
	GetSessionUser(ctx context.Context, token string) (*user.User, error)
}
