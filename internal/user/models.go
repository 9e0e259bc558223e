package user

import "time"

// Role values a user can hold. A user has exactly one role at a time.
const (
	RoleAdmin   = "ADMIN"
	RoleLeader  = "LEADER"
	RolePro     = "PRO"
	RoleUser    = "USER"
	RoleBlocked = "BLOCKED"
)

// KnownRole reports whether role is one of the defined role values.
func KnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleLeader, RolePro, RoleUser, RoleBlocked:
		return true
	}
	return false
}

// User is an account in the system. TeamID is a cached back-reference to the
// team a non-leader member belongs to; team_members rows are authoritative.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Number       string    `json:"number"`
	Role         string    `json:"role"`
	TeamID       *string   `json:"team_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an opaque login session. Only the SHA-256 hash of the token is
// stored.
type Session struct {
	TokenHash string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
