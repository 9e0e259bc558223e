package team

import (
	"context"
	"strings"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/user"
)

// Membership mutates team membership under the aggregate credit cap: the sum
// of Pro members' limits within a team never exceeds the team's wallet limit
// after a committed operation.
type Membership struct {
	store TxRunner
}

// NewMembership creates the membership service.
func NewMembership(store TxRunner) *Membership {
	return &Membership{store: store}
}

// AddMember enrolls the user with the given email as a plain (non-Pro,
// non-leader) member. The cap check sums existing Pro members' limits only:
// it guards against adding anyone to a team that is already over-committed.
func (m *Membership) AddMember(ctx context.Context, teamID, email string) error {
	return m.store.InTx(ctx, func(tx TxStore) error {
		if err := tx.LockTeam(ctx, teamID); err != nil {
			return err
		}
		u, err := tx.GetUserByEmail(ctx, email)
		if err != nil {
			if fault.Is(err, fault.KindNotFound) {
				return fault.Newf(fault.KindNotFound, "user with email %q not found", email)
			}
			return err
		}
		if _, err := tx.GetMember(ctx, teamID, u.ID); err == nil {
			return fault.Newf(fault.KindConflict, "user with email %q is already a team member", email)
		} else if !fault.Is(err, fault.KindNotFound) {
			return err
		}

		if err := m.checkAggregateCap(ctx, tx, teamID, nil); err != nil {
			return err
		}

		if err := tx.InsertMember(ctx, teamID, u.ID, false); err != nil {
			return err
		}
		return tx.SetUserTeam(ctx, u.ID, &teamID)
	})
}

// RemoveMember removes a non-leader member. A PRO member's credit grant is
// revoked in the same transaction and the role reverts to USER.
func (m *Membership) RemoveMember(ctx context.Context, teamID, userID string) error {
	return m.store.InTx(ctx, func(tx TxStore) error {
		if err := tx.LockTeam(ctx, teamID); err != nil {
			return err
		}
		return m.removeLocked(ctx, tx, teamID, userID, false)
	})
}

// removeLocked implements the guarded remove shared by RemoveMember and
// SaveTeamDetails. The caller must hold the team lock. When lenient is true a
// missing membership row is skipped instead of failing.
func (m *Membership) removeLocked(ctx context.Context, tx TxStore, teamID, userID string, lenient bool) error {
	member, err := tx.GetMember(ctx, teamID, userID)
	if err != nil {
		if lenient && fault.Is(err, fault.KindNotFound) {
			return nil
		}
		if fault.Is(err, fault.KindNotFound) {
			return fault.Newf(fault.KindNotFound, "member %q not found in the team", userID)
		}
		return err
	}
	if member.IsLeader {
		return fault.New(fault.KindForbidden, "cannot remove the team leader")
	}

	u, err := tx.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	switch u.Role {
	case user.RoleUser, user.RoleLeader:
	case user.RolePro:
		if err := tx.DeleteProUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.SetUserRole(ctx, userID, user.RoleUser); err != nil {
			return err
		}
	default:
		return fault.Newf(fault.KindInvalidState, "cannot remove user with unknown role %q", u.Role)
	}

	if err := tx.DeleteMember(ctx, teamID, userID); err != nil {
		return err
	}
	return tx.SetUserTeam(ctx, userID, nil)
}

// SaveTeamDetails applies a compound edit — rename, new wallet limit, member
// additions and removals — as one all-or-nothing transaction. The aggregate
// cap is re-validated against the new limit before commit.
func (m *Membership) SaveTeamDetails(ctx context.Context, teamID string, in SaveTeamDetailsInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fault.New(fault.KindValidation, "team name is required")
	}
	if in.AmountLimit < 0 {
		return fault.New(fault.KindValidation, "amount limit must not be negative")
	}
	name := strings.TrimSpace(in.Name)

	return m.store.InTx(ctx, func(tx TxStore) error {
		if err := tx.LockTeam(ctx, teamID); err != nil {
			return err
		}

		taken, err := tx.TeamNameExists(ctx, name, teamID)
		if err != nil {
			return err
		}
		if taken {
			return fault.Newf(fault.KindConflict, "team name %q already exists", name)
		}

		// Add-if-absent for each submitted email. An unknown email fails
		// the whole transaction.
		for _, email := range in.AddEmails {
			email = strings.TrimSpace(email)
			if email == "" {
				continue
			}
			u, err := tx.GetUserByEmail(ctx, email)
			if err != nil {
				if fault.Is(err, fault.KindNotFound) {
					return fault.Newf(fault.KindNotFound, "user with email %q not found", email)
				}
				return err
			}
			if _, err := tx.GetMember(ctx, teamID, u.ID); err == nil {
				continue
			} else if !fault.Is(err, fault.KindNotFound) {
				return err
			}
			if err := tx.InsertMember(ctx, teamID, u.ID, false); err != nil {
				return err
			}
			if err := tx.SetUserTeam(ctx, u.ID, &teamID); err != nil {
				return err
			}
		}

		for _, userID := range in.RemoveUserIDs {
			userID = strings.TrimSpace(userID)
			if userID == "" {
				continue
			}
			if err := m.removeLocked(ctx, tx, teamID, userID, true); err != nil {
				return err
			}
		}

		if err := tx.UpdateTeamDetails(ctx, teamID, name, in.AmountLimit); err != nil {
			return err
		}

		// The new limit must still cover the remaining Pro grants.
		members, err := tx.ListMembers(ctx, teamID)
		if err != nil {
			return err
		}
		sum, err := tx.SumProLimits(ctx, memberIDs(members))
		if err != nil {
			return err
		}
		if sum > in.AmountLimit {
			return fault.Newf(fault.KindLimitExceeded,
				"pro limits total %.2f exceeds the new team limit %.2f", sum, in.AmountLimit)
		}
		return nil
	})
}

// checkAggregateCap fails with limit_exceeded when existing Pro members'
// limits already exceed the team's wallet limit. excluding, when non-nil,
// names a user whose current grant is left out of the sum.
func (m *Membership) checkAggregateCap(ctx context.Context, tx TxStore, teamID string, excluding *string) error {
	t, err := tx.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	members, err := tx.ListMembers(ctx, teamID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(members))
	for _, mem := range members {
		if excluding != nil && mem.UserID == *excluding {
			continue
		}
		ids = append(ids, mem.UserID)
	}
	sum, err := tx.SumProLimits(ctx, ids)
	if err != nil {
		return err
	}
	if sum > t.AmountLimit {
		return fault.Newf(fault.KindLimitExceeded,
			"pro limits total %.2f exceeds the team limit %.2f", sum, t.AmountLimit)
	}
	return nil
}

func memberIDs(members []*TeamMember) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids
}
