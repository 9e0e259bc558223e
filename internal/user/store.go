package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/crewkit/crewkit/internal/fault"
)

// Store provides database operations for users and sessions.
type Store struct {
	pool       *pgxpool.Pool
	sessionTTL time.Duration
}

// NewStore creates a new user store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, sessionTTL time.Duration) *Store {
	return &Store{pool: pool, sessionTTL: sessionTTL}
}

const userColumns = `id, name, email, password_hash, number, role, team_id, created_at`

// scanUser scans a user row.
func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Number, &u.Role, &u.TeamID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.New(fault.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.New(fault.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// List returns all users ordered by created_at DESC. When role is non-empty
// only users with that role are returned.
func (s *Store) List(ctx context.Context, role string) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	args := []any{}
	if role != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at DESC`
		args = append(args, role)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// CreateSession creates a new session for the given user. It returns the
// opaque plaintext token (to be sent to the client) and the stored session.
func (s *Store) CreateSession(ctx context.Context, userID string) (string, *Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, fmt.Errorf("generating session token: %w", err)
	}
	plaintext := hex.EncodeToString(b)
	tokenHash := HashToken(plaintext)

	now := time.Now()
	expiresAt := now.Add(s.sessionTTL)

	sess := &Session{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING token_hash, user_id, created_at, expires_at`,
		tokenHash, userID, now, expiresAt,
	).Scan(&sess.TokenHash, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}

	return plaintext, sess, nil
}

// GetSessionUser looks up a session by its plaintext token and returns the
// associated user. Expired or unknown sessions yield a not_found fault.
func (s *Store) GetSessionUser(ctx context.Context, plaintext string) (*User, error) {
	tokenHash := HashToken(plaintext)

	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.number, u.role, u.team_id, u.created_at
		 FROM sessions s JOIN users u ON s.user_id = u.id
		 WHERE s.token_hash = $1 AND s.expires_at > now()`,
		tokenHash,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.New(fault.KindNotFound, "session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("getting session user: %w", err)
	}
	return u, nil
}

// DeleteSession removes a session by its plaintext token.
func (s *Store) DeleteSession(ctx context.Context, plaintext string) error {
	tokenHash := HashToken(plaintext)
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CleanExpiredSessions deletes all sessions that have expired.
func (s *Store) CleanExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HashToken returns the hex-encoded SHA-256 hash of a plaintext token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
