package team

import (
	"context"
	"fmt"
	"time"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/user"
)

// fakeStore is an in-memory TxStore/TxRunner for service tests. InTx snapshots
// the state and restores it on error, mirroring transaction rollback.
type fakeStore struct {
	teams   map[string]*Team
	users   map[string]*user.User
	members []*TeamMember
	pros    map[string]*ProUser
	catalog map[string]bool     // known product names
	links   map[string][]string // product name -> linked team ids

	nextID int

	// refCodeDenials makes the first N RefCodeExists calls report a
	// collision, to exercise regeneration.
	refCodeDenials int
	refCodeChecks  int

	// onLockTeam runs when a team lock is granted, letting tests apply
	// mutations a concurrent transaction committed while the lock was
	// contended. Cleared after firing once.
	onLockTeam func(teamID string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:   make(map[string]*Team),
		users:   make(map[string]*user.User),
		pros:    make(map[string]*ProUser),
		catalog: make(map[string]bool),
		links:   make(map[string][]string),
	}
}

func (f *fakeStore) addUser(id, email, role string) *user.User {
	u := &user.User{ID: id, Name: id, Email: email, Role: role, CreatedAt: time.Now()}
	f.users[id] = u
	return u
}

// addTeam seeds a team with its leader membership row; the leader user must
// already exist.
func (f *fakeStore) addTeam(id, name, leaderID string, limit float64) *Team {
	t := &Team{
		ID:          id,
		Name:        name,
		LeaderID:    leaderID,
		RefCode:     "CODE" + id,
		AmountLimit: limit,
		Products:    []ProductSpec{},
		CreatedAt:   time.Now(),
	}
	f.teams[id] = t
	f.members = append(f.members, &TeamMember{TeamID: id, UserID: leaderID, IsLeader: true, CreatedAt: time.Now()})
	f.users[leaderID].Role = user.RoleLeader
	return t
}

// addMember seeds a plain membership row and the team_id cache.
func (f *fakeStore) addMember(teamID, userID string) {
	f.members = append(f.members, &TeamMember{TeamID: teamID, UserID: userID, CreatedAt: time.Now()})
	id := teamID
	f.users[userID].TeamID = &id
}

// addPro seeds a Pro grant and flips the user's role.
func (f *fakeStore) addPro(userID string, limit float64) {
	f.pros[userID] = &ProUser{UserID: userID, AmountLimit: limit, Products: []ProductSpec{}}
	f.users[userID].Role = user.RolePro
}

func (f *fakeStore) snapshot() *fakeStore {
	s := newFakeStore()
	for k, v := range f.teams {
		c := *v
		s.teams[k] = &c
	}
	for k, v := range f.users {
		c := *v
		s.users[k] = &c
	}
	for _, m := range f.members {
		c := *m
		s.members = append(s.members, &c)
	}
	for k, v := range f.pros {
		c := *v
		s.pros[k] = &c
	}
	for k, v := range f.catalog {
		s.catalog[k] = v
	}
	for k, v := range f.links {
		s.links[k] = append([]string(nil), v...)
	}
	s.nextID = f.nextID
	s.refCodeDenials = f.refCodeDenials
	s.refCodeChecks = f.refCodeChecks
	return s
}

func (f *fakeStore) restore(s *fakeStore) {
	f.teams = s.teams
	f.users = s.users
	f.members = s.members
	f.pros = s.pros
	f.catalog = s.catalog
	f.links = s.links
	f.nextID = s.nextID
	// refCodeChecks advances even on rollback.
}

func (f *fakeStore) InTx(_ context.Context, fn func(TxStore) error) error {
	before := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(before)
		return err
	}
	return nil
}

func (f *fakeStore) LockTeam(_ context.Context, teamID string) error {
	if _, ok := f.teams[teamID]; !ok {
		return fault.New(fault.KindNotFound, "team not found")
	}
	if hook := f.onLockTeam; hook != nil {
		f.onLockTeam = nil
		hook(teamID)
	}
	return nil
}

func (f *fakeStore) GetTeam(_ context.Context, teamID string) (*Team, error) {
	t, ok := f.teams[teamID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "team not found")
	}
	c := *t
	return &c, nil
}

func (f *fakeStore) TeamNameExists(_ context.Context, name, excludeTeamID string) (bool, error) {
	for _, t := range f.teams {
		if t.Name == name && t.ID != excludeTeamID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RefCodeExists(_ context.Context, code string) (bool, error) {
	f.refCodeChecks++
	if f.refCodeChecks <= f.refCodeDenials {
		return true, nil
	}
	for _, t := range f.teams {
		if t.RefCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertTeam(_ context.Context, in CreateTeamInput, refCode string) (*Team, error) {
	f.nextID++
	t := &Team{
		ID:          fmt.Sprintf("team-%d", f.nextID),
		Name:        in.Name,
		LeaderID:    in.LeaderUserID,
		RefCode:     refCode,
		AmountLimit: in.AmountLimit,
		Products:    in.Products,
		CreatedAt:   time.Now(),
	}
	f.teams[t.ID] = t
	c := *t
	return &c, nil
}

func (f *fakeStore) UpdateTeamDetails(_ context.Context, teamID, name string, amountLimit float64) error {
	t, ok := f.teams[teamID]
	if !ok {
		return fault.New(fault.KindNotFound, "team not found")
	}
	t.Name = name
	t.AmountLimit = amountLimit
	return nil
}

func (f *fakeStore) DeleteTeam(_ context.Context, teamID string) error {
	if _, ok := f.teams[teamID]; !ok {
		return fault.New(fault.KindNotFound, "team not found")
	}
	delete(f.teams, teamID)
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "user not found")
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, fault.New(fault.KindNotFound, "user not found")
}

func (f *fakeStore) SetUserRole(_ context.Context, userID, role string) error {
	u, ok := f.users[userID]
	if !ok {
		return fault.New(fault.KindNotFound, "user not found")
	}
	u.Role = role
	return nil
}

func (f *fakeStore) SetUserTeam(_ context.Context, userID string, teamID *string) error {
	u, ok := f.users[userID]
	if !ok {
		return fault.New(fault.KindNotFound, "user not found")
	}
	u.TeamID = teamID
	return nil
}

func (f *fakeStore) ClearTeamRefs(_ context.Context, teamID string) error {
	for _, u := range f.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			u.TeamID = nil
		}
	}
	return nil
}

func (f *fakeStore) GetMember(_ context.Context, teamID, userID string) (*TeamMember, error) {
	for _, m := range f.members {
		if m.TeamID == teamID && m.UserID == userID {
			c := *m
			return &c, nil
		}
	}
	return nil, fault.New(fault.KindNotFound, "member not found")
}

func (f *fakeStore) GetMembershipForUser(_ context.Context, userID string) (*TeamMember, error) {
	for _, m := range f.members {
		if m.UserID == userID {
			c := *m
			return &c, nil
		}
	}
	return nil, fault.New(fault.KindNotFound, "membership not found")
}

func (f *fakeStore) ListMembers(_ context.Context, teamID string) ([]*TeamMember, error) {
	var out []*TeamMember
	for _, m := range f.members {
		if m.TeamID == teamID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMember(_ context.Context, teamID, userID string, isLeader bool) error {
	for _, m := range f.members {
		if m.TeamID == teamID && m.UserID == userID {
			return fault.New(fault.KindConflict, "user is already a team member")
		}
	}
	f.members = append(f.members, &TeamMember{TeamID: teamID, UserID: userID, IsLeader: isLeader, CreatedAt: time.Now()})
	return nil
}

func (f *fakeStore) DeleteMember(_ context.Context, teamID, userID string) error {
	for i, m := range f.members {
		if m.TeamID == teamID && m.UserID == userID {
			f.members = append(f.members[:i], f.members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) DeleteMembers(_ context.Context, teamID string) error {
	var kept []*TeamMember
	for _, m := range f.members {
		if m.TeamID != teamID {
			kept = append(kept, m)
		}
	}
	f.members = kept
	return nil
}

func (f *fakeStore) SumProLimits(_ context.Context, userIDs []string) (float64, error) {
	var sum float64
	for _, id := range userIDs {
		if p, ok := f.pros[id]; ok {
			sum += p.AmountLimit
		}
	}
	return sum, nil
}

func (f *fakeStore) UpsertProUser(_ context.Context, userID string, amount float64, products []ProductSpec) error {
	f.pros[userID] = &ProUser{UserID: userID, AmountLimit: amount, Products: products}
	return nil
}

func (f *fakeStore) DeleteProUser(_ context.Context, userID string) error {
	delete(f.pros, userID)
	return nil
}

func (f *fakeStore) LinkProduct(_ context.Context, productName, teamID string) error {
	if !f.catalog[productName] {
		return nil
	}
	for _, id := range f.links[productName] {
		if id == teamID {
			return nil
		}
	}
	f.links[productName] = append(f.links[productName], teamID)
	return nil
}

// memberCount counts membership rows for a team.
func (f *fakeStore) memberCount(teamID string) int {
	n := 0
	for _, m := range f.members {
		if m.TeamID == teamID {
			n++
		}
	}
	return n
}
