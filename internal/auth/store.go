package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Orgs(ctx context.Context) OrgStore
	Tokens(ctx context.Context) TokenStore
	Invites(ctx context.Context) InviteStore
}

// UserStore manages user records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, userID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ListByOrg(ctx context.Context, orgID string) ([]*User, error)
	Update(ctx context.Context, userID string, upd UserUpdate) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	// Mutate loads the user, applies fn and persists the result in a single
	// transaction, so read-check-write sequences (promote/demote clamps, org
	// moves) cannot race concurrent edits of the same row.
	Mutate(ctx context.Context, userID string, fn func(*User) error) (*User, error)
	Delete(ctx context.Context, userID string) error
}

// OrgStore manages organisations.
type OrgStore interface {
	Create(ctx context.Context, org *Organisation) error
	Find(ctx context.Context, orgID string) (*Organisation, error)
	List(ctx context.Context) ([]*Organisation, error)
	Update(ctx context.Context, orgID string, upd OrgUpdate) (*Organisation, error)
	// Delete fails with ErrConflict while members remain.
	Delete(ctx context.Context, orgID string) error
}

// TokenStore manages session token lifecycle.
type TokenStore interface {
	Create(ctx context.Context, tok *Token) error
	Find(ctx context.Context, tokenID string) (*Token, error)
	ListByUser(ctx context.Context, userID string) ([]*Token, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// InviteStore manages invite codes.
type InviteStore interface {
	Create(ctx context.Context, code *InviteCode) error
	Find(ctx context.Context, code string) (*InviteCode, error)
	List(ctx context.Context) ([]*InviteCode, error)
	Increment(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}
