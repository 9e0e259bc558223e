// Package signup implements registration with optional referral-code team
// enrollment.
package signup

import (
	"context"
	"strings"
	"unicode"

	"github.com/badoux/checkmail"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/user"
)

const (
	minPasswordLength = 6
	minNumberDigits   = 10
)

// Input is a registration request.
type Input struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Number          string `json:"number"`
	ReferralCode    string `json:"referral_code,omitempty"`
}

// TeamResolver resolves a referral code to its team.
type TeamResolver interface {
	GetByRefCode(ctx context.Context, code string) (*team.Team, error)
}

// Store persists the new user and, when a team was resolved, the membership
// row in the same transaction.
type Store interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUserWithMembership(ctx context.Context, in NewUser) (*user.User, error)
}

// NewUser is the persisted shape of a validated registration.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Number       string
	TeamID       *string
}

// Binder registers users and binds them to a team via referral code. A
// referred user always enters as a rank-and-file member, never Pro or leader.
type Binder struct {
	store Store
	teams TeamResolver
}

// NewBinder creates the registration binder.
func NewBinder(store Store, teams TeamResolver) *Binder {
	return &Binder{store: store, teams: teams}
}

// Register validates the input, resolves the referral code if present, and
// creates the user plus optional membership atomically. It never
// authenticates the new user.
func (b *Binder) Register(ctx context.Context, in Input) (*user.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))

	exists, err := b.store.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindConflict, "Email already in use!")
	}

	var teamID *string
	if in.ReferralCode != "" {
		t, err := b.teams.GetByRefCode(ctx, in.ReferralCode)
		if err != nil {
			if fault.Is(err, fault.KindNotFound) {
				return nil, fault.New(fault.KindNotFound, "Invalid referral code!")
			}
			return nil, err
		}
		teamID = &t.ID
	}

	hash, err := user.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	return b.store.CreateUserWithMembership(ctx, NewUser{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Number:       strings.TrimSpace(in.Number),
		TeamID:       teamID,
	})
}

func validate(in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return fault.New(fault.KindValidation, "name is required")
	}
	if err := checkmail.ValidateFormat(strings.TrimSpace(in.Email)); err != nil {
		return fault.New(fault.KindValidation, "a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return fault.Newf(fault.KindValidation, "password must be at least %d characters", minPasswordLength)
	}
	if in.Password != in.ConfirmPassword {
		return fault.New(fault.KindValidation, "passwords do not match")
	}
	if digitCount(in.Number) < minNumberDigits {
		return fault.Newf(fault.KindValidation, "phone number must have at least %d digits", minNumberDigits)
	}
	return nil
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
