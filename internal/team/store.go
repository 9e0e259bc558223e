package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/user"
)

// Store provides database operations for teams, memberships, Pro grants, and
// catalog links. It implements TxRunner; the transactional surface is Tx.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new team store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn inside a single transaction. Any error rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(TxStore) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Tx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Tx is the pgx implementation of TxStore.
type Tx struct {
	q querier
}

const teamColumns = `id, name, leader_id, ref_code, amount_limit, products, created_at`

func scanTeam(row pgx.Row) (*Team, error) {
	t := &Team{}
	var productsJSON []byte
	err := row.Scan(&t.ID, &t.Name, &t.LeaderID, &t.RefCode, &t.AmountLimit, &productsJSON, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(productsJSON) > 0 {
		if err := json.Unmarshal(productsJSON, &t.Products); err != nil {
			return nil, fmt.Errorf("unmarshaling products: %w", err)
		}
	}
	if t.Products == nil {
		t.Products = []ProductSpec{}
	}
	return t, nil
}

// notFoundOn converts no-rows and malformed-uuid errors into a not_found
// fault so bogus identifiers from the URL do not surface as server errors.
func notFoundOn(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.New(fault.KindNotFound, message)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" { // invalid text representation
		return fault.New(fault.KindNotFound, message)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LockTeam acquires a FOR UPDATE lock on the team row, serializing concurrent
// cap checks and membership mutations on the same team.
func (t *Tx) LockTeam(ctx context.Context, teamID string) error {
	var id string
	err := t.q.QueryRow(ctx, `SELECT id FROM teams WHERE id = $1 FOR UPDATE`, teamID).Scan(&id)
	if err != nil {
		if nf := notFoundOn(err, "team not found"); nf != nil {
			return nf
		}
		return fmt.Errorf("locking team: %w", err)
	}
	return nil
}

func (t *Tx) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	tm, err := scanTeam(t.q.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, teamID))
	if err != nil {
		if nf := notFoundOn(err, "team not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting team: %w", err)
	}
	return tm, nil
}

func (t *Tx) TeamNameExists(ctx context.Context, name, excludeTeamID string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM teams WHERE name = $1 AND ($2 = '' OR id::text <> $2))`,
		name, excludeTeamID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking team name: %w", err)
	}
	return exists, nil
}

func (t *Tx) RefCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE ref_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking ref code: %w", err)
	}
	return exists, nil
}

func (t *Tx) InsertTeam(ctx context.Context, in CreateTeamInput, refCode string) (*Team, error) {
	productsJSON, err := json.Marshal(in.Products)
	if err != nil {
		return nil, fmt.Errorf("marshaling products: %w", err)
	}

	tm, err := scanTeam(t.q.QueryRow(ctx,
		`INSERT INTO teams (name, leader_id, ref_code, amount_limit, products)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+teamColumns,
		in.Name, in.LeaderUserID, refCode, in.AmountLimit, productsJSON,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fault.New(fault.KindConflict, "team name or referral code already exists")
		}
		return nil, fmt.Errorf("inserting team: %w", err)
	}
	return tm, nil
}

func (t *Tx) UpdateTeamDetails(ctx context.Context, teamID, name string, amountLimit float64) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE teams SET name = $2, amount_limit = $3 WHERE id = $1`,
		teamID, name, amountLimit,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.Newf(fault.KindConflict, "team name %q already exists", name)
		}
		return fmt.Errorf("updating team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "team not found")
	}
	return nil
}

func (t *Tx) DeleteTeam(ctx context.Context, teamID string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "team not found")
	}
	return nil
}

const txUserColumns = `id, name, email, password_hash, number, role, team_id, created_at`

func (t *Tx) scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Number, &u.Role, &u.TeamID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (t *Tx) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	u, err := t.scanUser(t.q.QueryRow(ctx, `SELECT `+txUserColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if nf := notFoundOn(err, "user not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

func (t *Tx) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := t.scanUser(t.q.QueryRow(ctx, `SELECT `+txUserColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if nf := notFoundOn(err, "user not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

func (t *Tx) SetUserRole(ctx context.Context, userID, role string) error {
	_, err := t.q.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("setting user role: %w", err)
	}
	return nil
}

func (t *Tx) SetUserTeam(ctx context.Context, userID string, teamID *string) error {
	_, err := t.q.Exec(ctx, `UPDATE users SET team_id = $2 WHERE id = $1`, userID, teamID)
	if err != nil {
		return fmt.Errorf("setting user team: %w", err)
	}
	return nil
}

func (t *Tx) ClearTeamRefs(ctx context.Context, teamID string) error {
	_, err := t.q.Exec(ctx, `UPDATE users SET team_id = NULL WHERE team_id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("clearing team refs: %w", err)
	}
	return nil
}

func scanMember(row pgx.Row) (*TeamMember, error) {
	m := &TeamMember{}
	if err := row.Scan(&m.TeamID, &m.UserID, &m.IsLeader, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

const memberColumns = `team_id, user_id, is_leader, created_at`

func (t *Tx) GetMember(ctx context.Context, teamID, userID string) (*TeamMember, error) {
	m, err := scanMember(t.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	))
	if err != nil {
		if nf := notFoundOn(err, "member not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return m, nil
}

func (t *Tx) GetMembershipForUser(ctx context.Context, userID string) (*TeamMember, error) {
	m, err := scanMember(t.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM team_members WHERE user_id = $1`, userID,
	))
	if err != nil {
		if nf := notFoundOn(err, "membership not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting membership for user: %w", err)
	}
	return m, nil
}

func (t *Tx) ListMembers(ctx context.Context, teamID string) ([]*TeamMember, error) {
	rows, err := t.q.Query(ctx,
		`SELECT `+memberColumns+` FROM team_members WHERE team_id = $1 ORDER BY created_at`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []*TeamMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (t *Tx) InsertMember(ctx context.Context, teamID, userID string, isLeader bool) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, is_leader) VALUES ($1, $2, $3)`,
		teamID, userID, isLeader,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.New(fault.KindConflict, "user is already a team member")
		}
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

func (t *Tx) DeleteMember(ctx context.Context, teamID, userID string) error {
	_, err := t.q.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	return nil
}

func (t *Tx) DeleteMembers(ctx context.Context, teamID string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("deleting members: %w", err)
	}
	return nil
}

func (t *Tx) SumProLimits(ctx context.Context, userIDs []string) (float64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	var sum float64
	err := t.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_limit), 0) FROM pro_users WHERE user_id = ANY($1)`,
		userIDs,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing pro limits: %w", err)
	}
	return sum, nil
}

func (t *Tx) UpsertProUser(ctx context.Context, userID string, amount float64, products []ProductSpec) error {
	productsJSON, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshaling pro products: %w", err)
	}
	_, err = t.q.Exec(ctx,
		`INSERT INTO pro_users (user_id, amount_limit, products)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id)
		 DO UPDATE SET amount_limit = EXCLUDED.amount_limit, products = EXCLUDED.products`,
		userID, amount, productsJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting pro user: %w", err)
	}
	return nil
}

func (t *Tx) DeleteProUser(ctx context.Context, userID string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM pro_users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting pro user: %w", err)
	}
	return nil
}

// LinkProduct records teamID in the named product's team set. The ANY guard
// keeps team_ids a set under repeated linking; unknown names match no row.
func (t *Tx) LinkProduct(ctx context.Context, productName, teamID string) error {
	_, err := t.q.Exec(ctx,
		`UPDATE products
		 SET team_ids = array_append(team_ids, $2::uuid)
		 WHERE product_name = $1 AND NOT ($2::uuid = ANY(team_ids))`,
		productName, teamID,
	)
	if err != nil {
		return fmt.Errorf("linking product to team: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Non-transactional reads used by the HTTP layer.
// ---------------------------------------------------------------------------

// GetByID retrieves a team by primary key.
func (s *Store) GetByID(ctx context.Context, teamID string) (*Team, error) {
	return (&Tx{q: s.pool}).GetTeam(ctx, teamID)
}

// GetByRefCode resolves a referral code to its team.
func (s *Store) GetByRefCode(ctx context.Context, code string) (*Team, error) {
	t, err := scanTeam(s.pool.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE ref_code = $1`, code))
	if err != nil {
		if nf := notFoundOn(err, "Invalid referral code!"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting team by ref code: %w", err)
	}
	return t, nil
}

// List returns all teams ordered by created_at DESC.
func (s *Store) List(ctx context.Context) ([]*Team, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+teamColumns+` FROM teams ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// Members returns the team's membership joined with user details and Pro
// grants, leader first.
func (s *Store) Members(ctx context.Context, teamID string) ([]*MemberDetail, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.user_id, u.name, u.email, u.role, m.is_leader, p.amount_limit, m.created_at
		 FROM team_members m
		 JOIN users u ON u.id = m.user_id
		 LEFT JOIN pro_users p ON p.user_id = m.user_id
		 WHERE m.team_id = $1
		 ORDER BY m.is_leader DESC, m.created_at`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing member details: %w", err)
	}
	defer rows.Close()

	var members []*MemberDetail
	for rows.Next() {
		d := &MemberDetail{}
		if err := rows.Scan(&d.UserID, &d.Name, &d.Email, &d.Role, &d.IsLeader, &d.ProLimit, &d.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning member detail: %w", err)
		}
		members = append(members, d)
	}
	return members, rows.Err()
}

// ProSum returns the current total of Pro limits across the team's members.
func (s *Store) ProSum(ctx context.Context, teamID string) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(p.amount_limit), 0)
		 FROM team_members m
		 JOIN pro_users p ON p.user_id = m.user_id
		 WHERE m.team_id = $1`,
		teamID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing team pro limits: %w", err)
	}
	return sum, nil
}
