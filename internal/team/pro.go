package team

import (
	"context"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/user"
)

// Pro grants and revokes Pro credit limits. A grant counts against the
// member's team wallet cap; the upgrade re-validates the aggregate including
// the new amount under the team lock.
type Pro struct {
	store TxRunner
}

// NewPro creates the pro-upgrade service.
func NewPro(store TxRunner) *Pro {
	return &Pro{store: store}
}

// Upgrade creates or overwrites a Pro grant of amount for the user and flips
// the role USER -> PRO. Overwriting replaces the previous amount; the old
// grant does not count toward the cap check.
func (p *Pro) Upgrade(ctx context.Context, userID string, amount float64, products []ProductSpec) error {
	if amount <= 0 {
		return fault.New(fault.KindValidation, "amount limit must be positive")
	}
	if products == nil {
		products = []ProductSpec{}
	}

	return p.store.InTx(ctx, func(tx TxStore) error {
		u, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.Role != user.RoleUser && u.Role != user.RolePro {
			return fault.Newf(fault.KindInvalidState, "cannot upgrade a user with role %q", u.Role)
		}

		member, err := tx.GetMembershipForUser(ctx, userID)
		if err != nil {
			if fault.Is(err, fault.KindNotFound) {
				return fault.New(fault.KindInvalidState, "user is not a member of any team")
			}
			return err
		}

		if err := tx.LockTeam(ctx, member.TeamID); err != nil {
			return err
		}

		// The membership row picked the lock target, but it was read before
		// the lock was granted; a concurrent remove or re-enrollment may have
		// committed in between. Re-verify the row and the role under the lock
		// so the cap check below counts the right team.
		if _, err := tx.GetMember(ctx, member.TeamID, userID); err != nil {
			if fault.Is(err, fault.KindNotFound) {
				return fault.New(fault.KindInvalidState, "team membership changed, retry the upgrade")
			}
			return err
		}
		u, err = tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.Role != user.RoleUser && u.Role != user.RolePro {
			return fault.Newf(fault.KindInvalidState, "cannot upgrade a user with role %q", u.Role)
		}

		t, err := tx.GetTeam(ctx, member.TeamID)
		if err != nil {
			return err
		}
		members, err := tx.ListMembers(ctx, member.TeamID)
		if err != nil {
			return err
		}
		others := make([]string, 0, len(members))
		for _, mem := range members {
			if mem.UserID != userID {
				others = append(others, mem.UserID)
			}
		}
		sum, err := tx.SumProLimits(ctx, others)
		if err != nil {
			return err
		}
		if sum+amount > t.AmountLimit {
			return fault.Newf(fault.KindLimitExceeded,
				"pro limits would total %.2f, exceeding the team limit %.2f", sum+amount, t.AmountLimit)
		}

		if err := tx.UpsertProUser(ctx, userID, amount, products); err != nil {
			return err
		}
		if u.Role != user.RolePro {
			return tx.SetUserRole(ctx, userID, user.RolePro)
		}
		return nil
	})
}

// Downgrade deletes the user's Pro grant and reverts the role PRO -> USER.
func (p *Pro) Downgrade(ctx context.Context, userID string) error {
	return p.store.InTx(ctx, func(tx TxStore) error {
		u, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.Role != user.RolePro {
			return fault.New(fault.KindInvalidState, "user is not a Pro member")
		}
		if err := tx.DeleteProUser(ctx, userID); err != nil {
			return err
		}
		return tx.SetUserRole(ctx, userID, user.RoleUser)
	})
}
