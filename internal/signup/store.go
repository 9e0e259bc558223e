package signup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/user"
)

// PgStore is the pgx-backed registration store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a registration store backed by the given connection pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// constraintFault maps constraint violations from the registration inserts
// onto the faults the binder reports: a duplicate email, or a referral team
// deleted between code resolution and commit. Returns nil for other errors.
func constraintFault(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23505": // unique violation on users.email
		return fault.New(fault.KindConflict, "Email already in use!")
	case "23503": // foreign key violation on team_members.team_id
		return fault.New(fault.KindNotFound, "Invalid referral code!")
	}
	return nil
}

// EmailExists reports whether a user with the given email is registered.
func (s *PgStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return exists, nil
}

// CreateUserWithMembership inserts the user and, when TeamID is set, the
// non-leader membership row in one transaction.
func (s *PgStore) CreateUserWithMembership(ctx context.Context, in NewUser) (*user.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	u := &user.User{}
	err = tx.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, number, team_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, name, email, password_hash, number, role, team_id, created_at`,
		in.Name, in.Email, in.PasswordHash, in.Number, in.TeamID,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Number, &u.Role, &u.TeamID, &u.CreatedAt)
	if err != nil {
		if cf := constraintFault(err); cf != nil {
			return nil, cf
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if in.TeamID != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO team_members (team_id, user_id, is_leader) VALUES ($1, $2, false)`,
			*in.TeamID, u.ID,
		)
		if err != nil {
			if cf := constraintFault(err); cf != nil {
				return nil, cf
			}
			return nil, fmt.Errorf("enrolling referred user: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}
	return u, nil
}
