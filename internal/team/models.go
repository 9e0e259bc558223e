package team

import "time"

// ProductSpec is one entry of the catalog snapshot copied onto a team at
// creation time. The snapshot is stored as structured JSON, not a relational
// join, so the terms a team signed up under never drift with the catalog.
type ProductSpec struct {
	Name       string  `json:"name"`
	MinProduct int     `json:"minProduct"`
	MaxProduct int     `json:"maxProduct"`
	Price      float64 `json:"price"`
}

// Team is a group of users led by a single leader, with a wallet cap that
// bounds the summed credit limits of its Pro members.
type Team struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	LeaderID    string        `json:"leader_id"`
	RefCode     string        `json:"ref_code"`
	AmountLimit float64       `json:"amount_limit"`
	Products    []ProductSpec `json:"products"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TeamMember is the membership join row. Exactly one row per team carries
// IsLeader = true, and its UserID equals Team.LeaderID.
type TeamMember struct {
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	IsLeader  bool      `json:"is_leader"`
	CreatedAt time.Time `json:"created_at"`
}

// ProUser is a credit grant attached to a member promoted to PRO. A row
// exists if and only if the owning user's role is PRO.
type ProUser struct {
	UserID      string        `json:"user_id"`
	AmountLimit float64       `json:"amount_limit"`
	Products    []ProductSpec `json:"products"`
}

// MemberDetail is the read view of a membership joined with its user and any
// Pro grant, for team detail responses.
type MemberDetail struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IsLeader bool      `json:"is_leader"`
	ProLimit *float64  `json:"pro_limit,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// CreateTeamInput holds the fields required to create a team.
type CreateTeamInput struct {
	Name         string        `json:"name"`
	LeaderUserID string        `json:"leader_user_id"`
	AmountLimit  float64       `json:"amount_limit"`
	Products     []ProductSpec `json:"products"`
}

// SaveTeamDetailsInput is the compound edit applied to a team in one
// transaction: rename, recap, add members by email, remove members by id.
type SaveTeamDetailsInput struct {
	Name          string   `json:"name"`
	AmountLimit   float64  `json:"amount_limit"`
	AddEmails     []string `json:"add_emails"`
	RemoveUserIDs []string `json:"remove_user_ids"`
}
