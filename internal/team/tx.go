package team

import (
	"context"

	"github.com/crewkit/crewkit/internal/user"
)

// TxStore is the set of persistence operations the team services run inside a
// single transaction. The pgx-backed implementation lives in Store; tests
// supply an in-memory fake.
type TxStore interface {
	// LockTeam acquires the per-team row lock that serializes concurrent
	// membership and cap mutations. Returns a not_found fault if the team
	// does not exist.
	LockTeam(ctx context.Context, teamID string) error
	GetTeam(ctx context.Context, teamID string) (*Team, error)
	TeamNameExists(ctx context.Context, name, excludeTeamID string) (bool, error)
	RefCodeExists(ctx context.Context, code string) (bool, error)
	InsertTeam(ctx context.Context, in CreateTeamInput, refCode string) (*Team, error)
	UpdateTeamDetails(ctx context.Context, teamID, name string, amountLimit float64) error
	DeleteTeam(ctx context.Context, teamID string) error

	GetUserByID(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	SetUserRole(ctx context.Context, userID, role string) error
	SetUserTeam(ctx context.Context, userID string, teamID *string) error
	// ClearTeamRefs nulls the cached users.team_id for every member of the team.
	ClearTeamRefs(ctx context.Context, teamID string) error

	GetMember(ctx context.Context, teamID, userID string) (*TeamMember, error)
	GetMembershipForUser(ctx context.Context, userID string) (*TeamMember, error)
	ListMembers(ctx context.Context, teamID string) ([]*TeamMember, error)
	InsertMember(ctx context.Context, teamID, userID string, isLeader bool) error
	DeleteMember(ctx context.Context, teamID, userID string) error
	DeleteMembers(ctx context.Context, teamID string) error

	SumProLimits(ctx context.Context, userIDs []string) (float64, error)
	UpsertProUser(ctx context.Context, userID string, amount float64, products []ProductSpec) error
	DeleteProUser(ctx context.Context, userID string) error

	// LinkProduct appends the team to the named catalog product's team set.
	// Unknown product names are skipped silently.
	LinkProduct(ctx context.Context, productName, teamID string) error
}

// TxRunner executes fn atomically: every TxStore call inside fn commits or
// rolls back as one unit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(TxStore) error) error
}
