package team

import (
	"context"
	"strings"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/refcode"
	"github.com/crewkit/crewkit/internal/user"
)

// Lifecycle creates and destroys teams. Creation installs the leader as the
// team's single is_leader member and snapshots the submitted catalog;
// deletion cascades membership cleanup and reverts the leader's role.
type Lifecycle struct {
	store TxRunner

	// maxCodeAttempts bounds referral code regeneration before a
	// collision surfaces as a conflict.
	maxCodeAttempts int
}

// NewLifecycle creates the team lifecycle service.
func NewLifecycle(store TxRunner, maxCodeAttempts int) *Lifecycle {
	if maxCodeAttempts < 1 {
		maxCodeAttempts = 1
	}
	return &Lifecycle{store: store, maxCodeAttempts: maxCodeAttempts}
}

// CreateTeam creates a team, its leader membership row, the catalog links,
// and the leader role promotion in one transaction.
func (l *Lifecycle) CreateTeam(ctx context.Context, in CreateTeamInput) (*Team, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.New(fault.KindValidation, "team name is required")
	}
	if in.LeaderUserID == "" {
		return nil, fault.New(fault.KindValidation, "team leader is required")
	}
	if in.AmountLimit < 0 {
		return nil, fault.New(fault.KindValidation, "amount limit must not be negative")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Products == nil {
		in.Products = []ProductSpec{}
	}

	var created *Team
	err := l.store.InTx(ctx, func(tx TxStore) error {
		leader, err := tx.GetUserByID(ctx, in.LeaderUserID)
		if err != nil {
			if fault.Is(err, fault.KindNotFound) {
				return fault.New(fault.KindNotFound, "selected team leader not found")
			}
			return err
		}

		taken, err := tx.TeamNameExists(ctx, in.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return fault.Newf(fault.KindConflict, "team name %q already exists", in.Name)
		}

		code, err := l.uniqueRefCode(ctx, tx)
		if err != nil {
			return err
		}

		t, err := tx.InsertTeam(ctx, in, code)
		if err != nil {
			return err
		}

		if err := tx.InsertMember(ctx, t.ID, in.LeaderUserID, true); err != nil {
			return err
		}

		// Lenient catalog linking: a product name with no catalog row is
		// skipped, not an error.
		for _, p := range in.Products {
			if err := tx.LinkProduct(ctx, p.Name, t.ID); err != nil {
				return err
			}
		}

		if leader.Role != user.RoleLeader {
			if err := tx.SetUserRole(ctx, in.LeaderUserID, user.RoleLeader); err != nil {
				return err
			}
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// uniqueRefCode generates referral codes until one is unused, up to the
// configured attempt budget.
func (l *Lifecycle) uniqueRefCode(ctx context.Context, tx TxStore) (string, error) {
	for i := 0; i < l.maxCodeAttempts; i++ {
		code, err := refcode.Generate()
		if err != nil {
			return "", err
		}
		taken, err := tx.RefCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fault.New(fault.KindConflict, "could not allocate a unique referral code")
}

// DeleteTeam removes the team, all its membership rows, and reverts the
// leader's role to USER, as one atomic cascade.
func (l *Lifecycle) DeleteTeam(ctx context.Context, teamID string) error {
	return l.store.InTx(ctx, func(tx TxStore) error {
		if err := tx.LockTeam(ctx, teamID); err != nil {
			return err
		}
		t, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}

		if err := tx.SetUserRole(ctx, t.LeaderID, user.RoleUser); err != nil {
			return err
		}
		if err := tx.ClearTeamRefs(ctx, teamID); err != nil {
			return err
		}
		if err := tx.DeleteMembers(ctx, teamID); err != nil {
			return err
		}
		return tx.DeleteTeam(ctx, teamID)
	})
}
