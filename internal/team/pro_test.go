package team

import (
	"context"
	"testing"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/user"
)

func TestUpgradeCapLadder(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addUser("b", "b@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	f.addMember("t1", "b")
	p := NewPro(f)
	ctx := context.Background()

	// 600 fits under the 1000 cap.
	if err := p.Upgrade(ctx, "a", 600, nil); err != nil {
		t.Fatalf("first upgrade failed: %v", err)
	}
	if f.users["a"].Role != user.RolePro {
		t.Errorf("expected role PRO, got %q", f.users["a"].Role)
	}

	// 600 + 500 > 1000: rejected, no state change.
	err := p.Upgrade(ctx, "b", 500, nil)
	if !fault.Is(err, fault.KindLimitExceeded) {
		t.Fatalf("expected limit_exceeded fault, got %v", err)
	}
	if _, ok := f.pros["b"]; ok {
		t.Error("rejected upgrade must not create a grant")
	}
	if f.users["b"].Role != user.RoleUser {
		t.Errorf("rejected upgrade must not change the role, got %q", f.users["b"].Role)
	}

	// 600 + 300 fits again.
	if err := p.Upgrade(ctx, "b", 300, nil); err != nil {
		t.Fatalf("third upgrade failed: %v", err)
	}
	if f.pros["a"].AmountLimit+f.pros["b"].AmountLimit != 900 {
		t.Errorf("expected committed grants to total 900, got %v",
			f.pros["a"].AmountLimit+f.pros["b"].AmountLimit)
	}
}

func TestUpgradeBoundaryExactCap(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	p := NewPro(f)

	// Exactly at the cap is allowed; only strictly greater is rejected.
	if err := p.Upgrade(context.Background(), "a", 1000, nil); err != nil {
		t.Fatalf("upgrade at exact cap should succeed: %v", err)
	}
}

func TestUpgradeOverwriteExcludesOldGrant(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	p := NewPro(f)
	ctx := context.Background()

	if err := p.Upgrade(ctx, "a", 600, nil); err != nil {
		t.Fatalf("initial upgrade failed: %v", err)
	}

	// Raising the own grant to 900 is fine: the old 600 does not count.
	if err := p.Upgrade(ctx, "a", 900, nil); err != nil {
		t.Fatalf("overwrite upgrade failed: %v", err)
	}
	if f.pros["a"].AmountLimit != 900 {
		t.Errorf("expected grant 900, got %v", f.pros["a"].AmountLimit)
	}

	// 1100 exceeds the cap even with the old grant excluded.
	err := p.Upgrade(ctx, "a", 1100, nil)
	if !fault.Is(err, fault.KindLimitExceeded) {
		t.Fatalf("expected limit_exceeded fault, got %v", err)
	}
	if f.pros["a"].AmountLimit != 900 {
		t.Errorf("rejected overwrite must keep the old grant, got %v", f.pros["a"].AmountLimit)
	}
}

func TestUpgradeProductsSnapshot(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	p := NewPro(f)

	products := []ProductSpec{{Name: "Starter Pack", MinProduct: 1, MaxProduct: 5, Price: 9.99}}
	if err := p.Upgrade(context.Background(), "a", 100, products); err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	got := f.pros["a"].Products
	if len(got) != 1 || got[0] != products[0] {
		t.Errorf("grant should carry the submitted snapshot, got %+v", got)
	}
}

func TestUpgradeValidation(t *testing.T) {
	f := newFakeStore()
	p := NewPro(f)

	for _, amount := range []float64{0, -10} {
		if err := p.Upgrade(context.Background(), "a", amount, nil); !fault.Is(err, fault.KindValidation) {
			t.Errorf("amount %v: expected validation fault, got %v", amount, err)
		}
	}
}

func TestUpgradeWithoutMembership(t *testing.T) {
	f := newFakeStore()
	f.addUser("a", "a@example.com", user.RoleUser)
	p := NewPro(f)

	err := p.Upgrade(context.Background(), "a", 100, nil)
	if !fault.Is(err, fault.KindInvalidState) {
		t.Fatalf("expected invalid_state fault, got %v", err)
	}
}

func TestUpgradeIneligibleRole(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	p := NewPro(f)

	// The leader's own role is LEADER; only USER and PRO are eligible.
	err := p.Upgrade(context.Background(), "u1", 100, nil)
	if !fault.Is(err, fault.KindInvalidState) {
		t.Fatalf("expected invalid_state fault, got %v", err)
	}
}

func TestUpgradeMemberRemovedBeforeLock(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	p := NewPro(f)

	// A concurrent removal commits between the membership read and the lock.
	f.onLockTeam = func(string) {
		_ = f.DeleteMember(context.Background(), "t1", "a")
	}

	err := p.Upgrade(context.Background(), "a", 100, nil)
	if !fault.Is(err, fault.KindInvalidState) {
		t.Fatalf("expected invalid_state fault, got %v", err)
	}
	if _, ok := f.pros["a"]; ok {
		t.Error("no grant may be created for a removed member")
	}
	if f.users["a"].Role == user.RolePro {
		t.Error("role must not be promoted for a removed member")
	}
}

func TestUpgradeMemberSwitchedTeamsBeforeLock(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader1@example.com", user.RoleUser)
	f.addUser("u2", "leader2@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addTeam("t2", "Beta", "u2", 50)
	f.addMember("t1", "a")
	p := NewPro(f)

	// A concurrent edit moves the member to the tightly capped second team
	// while the first team's lock is still being acquired. Committing the
	// grant against the first team would skip the second team's cap entirely.
	f.onLockTeam = func(string) {
		_ = f.DeleteMember(context.Background(), "t1", "a")
		_ = f.InsertMember(context.Background(), "t2", "a", false)
	}

	err := p.Upgrade(context.Background(), "a", 100, nil)
	if !fault.Is(err, fault.KindInvalidState) {
		t.Fatalf("expected invalid_state fault, got %v", err)
	}
	if _, ok := f.pros["a"]; ok {
		t.Error("no grant may bypass the new team's cap check")
	}
}

func TestUpgradeRoleChangedBeforeLock(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	p := NewPro(f)

	f.onLockTeam = func(string) {
		f.users["a"].Role = user.RoleBlocked
	}

	err := p.Upgrade(context.Background(), "a", 100, nil)
	if !fault.Is(err, fault.KindInvalidState) {
		t.Fatalf("expected invalid_state fault, got %v", err)
	}
	if _, ok := f.pros["a"]; ok {
		t.Error("no grant may be created for a blocked user")
	}
}

func TestUpgradeUnknownUser(t *testing.T) {
	f := newFakeStore()
	p := NewPro(f)

	err := p.Upgrade(context.Background(), "ghost", 100, nil)
	if !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("expected not_found fault, got %v", err)
	}
}

func TestDowngrade(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	f.addPro("a", 400)
	p := NewPro(f)

	if err := p.Downgrade(context.Background(), "a"); err != nil {
		t.Fatalf("Downgrade failed: %v", err)
	}
	if _, ok := f.pros["a"]; ok {
		t.Error("grant should be deleted")
	}
	if f.users["a"].Role != user.RoleUser {
		t.Errorf("role should revert to USER, got %q", f.users["a"].Role)
	}

	// Membership survives the downgrade.
	if _, err := f.GetMember(context.Background(), "t1", "a"); err != nil {
		t.Error("membership row should survive a downgrade")
	}
}

func TestDowngradeNonPro(t *testing.T) {
	f := newFakeStore()
	f.addUser("a", "a@example.com", user.RoleUser)
	p := NewPro(f)

	err := p.Downgrade(context.Background(), "a")
	if !fault.Is(err, fault.KindInvalidState) {
		t.Fatalf("expected invalid_state fault, got %v", err)
	}
}

func TestDowngradeFreesCapForOthers(t *testing.T) {
	f := newFakeStore()
	f.addUser("u1", "leader@example.com", user.RoleUser)
	f.addUser("a", "a@example.com", user.RoleUser)
	f.addUser("b", "b@example.com", user.RoleUser)
	f.addTeam("t1", "Alpha", "u1", 1000)
	f.addMember("t1", "a")
	f.addMember("t1", "b")
	f.addPro("a", 800)
	p := NewPro(f)
	ctx := context.Background()

	if err := p.Upgrade(ctx, "b", 500, nil); !fault.Is(err, fault.KindLimitExceeded) {
		t.Fatalf("expected limit_exceeded while a holds 800, got %v", err)
	}
	if err := p.Downgrade(ctx, "a"); err != nil {
		t.Fatalf("Downgrade failed: %v", err)
	}
	if err := p.Upgrade(ctx, "b", 500, nil); err != nil {
		t.Fatalf("upgrade should succeed after the cap was freed: %v", err)
	}
}
