package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used in development mode and tests. All
// methods are safe for concurrent use; Mutate serialises read-check-write
// cycles under the write lock.
type MemStore struct {
	mu      sync.RWMutex
	users   map[string]*User
	orgs    map[string]*Organisation
	tokens  map[string]*Token
	invites map[string]*InviteCode
	now     func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]*User),
		orgs:    make(map[string]*Organisation),
		tokens:  make(map[string]*Token),
		invites: make(map[string]*InviteCode),
		now:     time.Now,
	}
}

func (m *MemStore) Users(ctx context.Context) UserStore     { return (*memUsers)(m) }
func (m *MemStore) Orgs(ctx context.Context) OrgStore       { return (*memOrgs)(m) }
func (m *MemStore) Tokens(ctx context.Context) TokenStore   { return (*memTokens)(m) }
func (m *MemStore) Invites(ctx context.Context) InviteStore { return (*memInvites)(m) }

type memUsers MemStore

func (m *memUsers) Create(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.UserID]; ok {
		return fmt.Errorf("%w: user %q already exists", ErrConflict, user.UserID)
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: email %q already registered", ErrConflict, user.Email)
		}
	}
	now := m.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *memUsers) Find(ctx context.Context, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, userID)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user with email %q", ErrNotFound, email)
}

func (m *memUsers) List(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memUsers) ListByOrg(ctx context.Context, orgID string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*User
	for _, u := range m.users {
		if u.MemberOf == orgID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memUsers) Update(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, userID)
	}
	if upd.UserID != nil && *upd.UserID != userID {
		if _, taken := m.users[*upd.UserID]; taken {
			return nil, fmt.Errorf("%w: user %q already exists", ErrConflict, *upd.UserID)
		}
	}
	if upd.Email != nil && *upd.Email != u.Email {
		for _, other := range m.users {
			if other.Email == *upd.Email {
				return nil, fmt.Errorf("%w: email %q already registered", ErrConflict, *upd.Email)
			}
		}
	}
	cp := *u
	if upd.UserID != nil {
		cp.UserID = *upd.UserID
	}
	if upd.UserName != nil {
		cp.UserName = *upd.UserName
	}
	if upd.Email != nil {
		cp.Email = *upd.Email
	}
	if upd.MemberOf != nil {
		cp.MemberOf = *upd.MemberOf
	}
	if upd.Level != nil {
		cp.LevelOfAccess = *upd.Level
	}
	cp.UpdatedAt = m.now()
	delete(m.users, userID)
	m.users[cp.UserID] = &cp
	if cp.UserID != userID {
		for _, t := range m.tokens {
			if t.UserID == userID {
				t.UserID = cp.UserID
			}
		}
	}
	out := cp
	return &out, nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %q", ErrNotFound, userID)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = m.now()
	return nil
}

func (m *memUsers) Mutate(ctx context.Context, userID string, fn func(*User) error) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, userID)
	}
	cp := *u
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.UserID = u.UserID
	cp.UpdatedAt = m.now()
	*u = cp
	out := cp
	return &out, nil
}

func (m *memUsers) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("%w: user %q", ErrNotFound, userID)
	}
	delete(m.users, userID)
	return nil
}

type memOrgs MemStore

func (m *memOrgs) Create(ctx context.Context, org *Organisation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[org.OrgID]; ok {
		return fmt.Errorf("%w: organisation %q already exists", ErrConflict, org.OrgID)
	}
	now := m.now()
	org.CreatedAt = now
	org.UpdatedAt = now
	cp := *org
	m.orgs[org.OrgID] = &cp
	return nil
}

func (m *memOrgs) Find(ctx context.Context, orgID string) (*Organisation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("%w: organisation %q", ErrNotFound, orgID)
	}
	cp := *o
	return &cp, nil
}

func (m *memOrgs) List(ctx context.Context) ([]*Organisation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Organisation, 0, len(m.orgs))
	for _, o := range m.orgs {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out, nil
}

func (m *memOrgs) Update(ctx context.Context, orgID string, upd OrgUpdate) (*Organisation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("%w: organisation %q", ErrNotFound, orgID)
	}
	if upd.OrgID != nil && *upd.OrgID != orgID {
		if _, taken := m.orgs[*upd.OrgID]; taken {
			return nil, fmt.Errorf("%w: organisation %q already exists", ErrConflict, *upd.OrgID)
		}
	}
	cp := *o
	if upd.OrgID != nil {
		cp.OrgID = *upd.OrgID
	}
	if upd.Name != nil {
		cp.Name = *upd.Name
	}
	cp.UpdatedAt = m.now()
	delete(m.orgs, orgID)
	m.orgs[cp.OrgID] = &cp
	if cp.OrgID != orgID {
		for _, u := range m.users {
			if u.MemberOf == orgID {
				u.MemberOf = cp.OrgID
			}
		}
		for _, inv := range m.invites {
			if inv.AddTo == orgID {
				inv.AddTo = cp.OrgID
			}
		}
	}
	out := cp
	return &out, nil
}

func (m *memOrgs) Delete(ctx context.Context, orgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[orgID]; !ok {
		return fmt.Errorf("%w: organisation %q", ErrNotFound, orgID)
	}
	for _, u := range m.users {
		if u.MemberOf == orgID {
			return fmt.Errorf("%w: organisation %q still has members", ErrConflict, orgID)
		}
	}
	delete(m.orgs, orgID)
	return nil
}

type memTokens MemStore

func (m *memTokens) Create(ctx context.Context, token *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.TokenID]; ok {
		return fmt.Errorf("%w: token %q already exists", ErrConflict, token.TokenID)
	}
	cp := *token
	m.tokens[token.TokenID] = &cp
	return nil
}

func (m *memTokens) Find(ctx context.Context, tokenID string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[tokenID]
	if !ok {
		return nil, fmt.Errorf("%w: token %q", ErrNotFound, tokenID)
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) ListByUser(ctx context.Context, userID string) ([]*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (m *memTokens) Delete(ctx context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tokenID]; !ok {
		return fmt.Errorf("%w: token %q", ErrNotFound, tokenID)
	}
	delete(m.tokens, tokenID)
	return nil
}

func (m *memTokens) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.tokens {
		if !t.ExpiresAt.After(now) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

type memInvites MemStore

func (m *memInvites) Create(ctx context.Context, invite *InviteCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[invite.Code]; ok {
		return fmt.Errorf("%w: invite code already exists", ErrConflict)
	}
	invite.CreatedAt = m.now()
	cp := *invite
	m.invites[invite.Code] = &cp
	return nil
}

func (m *memInvites) Find(ctx context.Context, code string) (*InviteCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invites[code]
	if !ok {
		return nil, fmt.Errorf("%w: invite code", ErrNotFound)
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvites) List(ctx context.Context) ([]*InviteCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*InviteCode, 0, len(m.invites))
	for _, inv := range m.invites {
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memInvites) Increment(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[code]
	if !ok {
		return fmt.Errorf("%w: invite code", ErrNotFound)
	}
	inv.NumRegistered++
	return nil
}

func (m *memInvites) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[code]; !ok {
		return fmt.Errorf("%w: invite code", ErrNotFound)
	}
	delete(m.invites, code)
	return nil
}
