package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultIssuerName     = "papyrus"
	generatedInviteLength = 16
	cleanupTimeout        = 30 * time.Second
)

// Service provides the auth module operations: session management, user and
// organisation administration and invite-code governance. It owns all four
// entity types exclusively; other modules only see the verifier factory.
type Service struct {
	store  Store
	issuer *Issuer

	now        func() time.Time
	bcryptCost int
	issuerName string
	tokenTTL   time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithTokenTTL overrides the session token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithIssuerName overrides the token issuer claim.
func WithIssuerName(name string) ServiceOption {
	return func(s *Service) {
		if name = strings.TrimSpace(name); name != "" {
			s.issuerName = name
		}
	}
}

// NewService constructs the auth service over store, signing tokens with
// keys.
func NewService(store Store, keys *KeyProvider, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
		issuerName: defaultIssuerName,
		tokenTTL:   defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.issuer = NewIssuer(store, keys, s.issuerName, s.tokenTTL)
	s.issuer.now = s.now
	return s
}

// Issuer exposes the token issuer/verifier component.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Verifiers returns the factory other modules receive as their only window
// into authentication.
func (s *Service) Verifiers() *VerifierFactory { return NewVerifierFactory(s.issuer) }

// EnsureBootstrap makes sure the public organisation exists. Safe to call on
// every boot.
func (s *Service) EnsureBootstrap(ctx context.Context) error {
	err := s.store.Orgs(ctx).Create(ctx, &Organisation{OrgID: PublicOrgID, Name: "Public"})
	if errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// EnsureAdmin creates a bootstrap top-level user unless it already exists.
func (s *Service) EnsureAdmin(ctx context.Context, userID, email, password string) error {
	_, err := s.CreateUser(ctx, NewUser{
		UserID:   userID,
		Email:    email,
		Password: password,
		MemberOf: PublicOrgID,
		Level:    LevelAdmin,
	})
	if errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// Session -------------------------------------------------------------------

// Signin checks the identifier (user id or email) and password and issues a
// fresh token. Wrong identifier and wrong password are indistinguishable to
// the caller. Expired-token cleanup is dispatched as a fire-and-forget side
// task; callers must not assume it completed by the time Signin returns.
func (s *Service) Signin(ctx context.Context, identifier, password, device, location string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return "", ErrUnauthorized
	}
	users := s.store.Users(ctx)
	var (
		user *User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = users.FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = users.Find(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	if VerifyPassword(user.PasswordHash, password) != nil {
		return "", ErrUnauthorized
	}
	signed, _, err := s.issuer.Issue(ctx, *user, device, location)
	if err != nil {
		return "", err
	}
	go func() {
		cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		_, _ = s.issuer.CleanupExpired(cctx)
	}()
	return signed, nil
}

// Signup describes a self-registration request.
type Signup struct {
	UserID         string
	Email          string
	Password       string
	UserName       string
	InvitationCode string
}

// SignupUser creates a new user gated by an invite code and returns a token
// for the created account. The new user lands in the code's target
// organisation with the base level of access, and the code's registration
// counter increments by exactly one.
func (s *Service) SignupUser(ctx context.Context, req Signup, device, location string) (string, error) {
	code := strings.TrimSpace(req.InvitationCode)
	if code == "" {
		return "", fmt.Errorf("%w: invitation code is required", ErrInvalidInput)
	}
	invite, err := s.store.Invites(ctx).Find(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: invalid invitation code", ErrUnauthorized)
		}
		return "", err
	}
	user, err := s.CreateUser(ctx, NewUser{
		UserID:   req.UserID,
		Email:    req.Email,
		Password: req.Password,
		UserName: req.UserName,
		MemberOf: invite.AddTo,
		Level:    LevelMember,
	})
	if err != nil {
		return "", err
	}
	if err := s.store.Invites(ctx).Increment(ctx, invite.Code); err != nil {
		return "", err
	}
	signed, _, err := s.issuer.Issue(ctx, *user, device, location)
	return signed, err
}

// Signout revokes a single token.
func (s *Service) Signout(ctx context.Context, tokenID string) error {
	return s.issuer.Revoke(ctx, tokenID)
}

// SignoutEverywhere revokes every token of the user.
func (s *Service) SignoutEverywhere(ctx context.Context, userID string) error {
	return s.issuer.RevokeAll(ctx, userID)
}

// Tokens lists the requester's active tokens.
func (s *Service) Tokens(ctx context.Context, userID string) ([]*Token, error) {
	return s.store.Tokens(ctx).ListByUser(ctx, userID)
}

// DeleteToken removes one of the requester's tokens. The identifier is
// either the token UUID or the raw signed artifact.
func (s *Service) DeleteToken(ctx context.Context, requester User, identifier string) error {
	identifier = StripBearer(identifier)
	tokenID := identifier
	if _, err := uuid.Parse(identifier); err != nil {
		rec, _, err := s.issuer.Decode(ctx, identifier)
		if err != nil {
			return ErrInvalidToken
		}
		tokenID = rec.TokenID
	}
	rec, err := s.store.Tokens(ctx).Find(ctx, tokenID)
	if err != nil {
		return err
	}
	if rec.UserID != requester.UserID {
		return fmt.Errorf("%w: token belongs to another user", ErrUnauthorized)
	}
	return s.issuer.Revoke(ctx, tokenID)
}

// Users ----------------------------------------------------------------------

// NewUser describes a user creation request.
type NewUser struct {
	UserID   string
	Email    string
	Password string
	UserName string
	MemberOf string
	Level    int
}

// CreateUser validates and persists a new user record. The destination
// organisation must exist; it defaults to the public one.
func (s *Service) CreateUser(ctx context.Context, req NewUser) (*User, error) {
	if err := ValidateUserID(req.UserID); err != nil {
		return nil, err
	}
	email, err := ValidateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := ValidateLevel(req.Level); err != nil {
		return nil, err
	}
	orgID := req.MemberOf
	if orgID == "" {
		orgID = PublicOrgID
	}
	if orgID, err = NormalizeOrgID(orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.Orgs(ctx).Find(ctx, orgID); err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		UserID:        req.UserID,
		Email:         email,
		UserName:      strings.TrimSpace(req.UserName),
		MemberOf:      orgID,
		LevelOfAccess: req.Level,
		PasswordHash:  hash,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ReadUser returns the user with the given id.
func (s *Service) ReadUser(ctx context.Context, userID string) (*User, error) {
	return s.store.Users(ctx).Find(ctx, userID)
}

// ReadUsers returns all users.
func (s *Service) ReadUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx).List(ctx)
}

// UpdateUser applies a partial update to the target user on behalf of
// requester, enforcing the privilege rule.
func (s *Service) UpdateUser(ctx context.Context, requester User, userID string, upd UserUpdate) (*User, error) {
	target, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := CanEditUser(requester, *target); err != nil {
		return nil, err
	}
	if upd.UserID != nil {
		if err := ValidateUserID(*upd.UserID); err != nil {
			return nil, err
		}
	}
	if upd.Email != nil {
		email, err := ValidateEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		upd.Email = &email
	}
	if upd.Level != nil {
		if err := ValidateLevel(*upd.Level); err != nil {
			return nil, err
		}
	}
	if upd.MemberOf != nil {
		orgID, err := NormalizeOrgID(*upd.MemberOf)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.Orgs(ctx).Find(ctx, orgID); err != nil {
			return nil, err
		}
		upd.MemberOf = &orgID
	}
	return s.store.Users(ctx).Update(ctx, userID, upd)
}

// UpdateUserPassword changes the target's password after verifying the old
// one. The new password must differ from the old.
func (s *Service) UpdateUserPassword(ctx context.Context, requester User, userID, oldPassword, newPassword string) error {
	if newPassword == oldPassword {
		return fmt.Errorf("%w: new password can't match the old one", ErrInvalidInput)
	}
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	target, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := CanEditUser(requester, *target); err != nil {
		return err
	}
	if VerifyPassword(target.PasswordHash, oldPassword) != nil {
		return fmt.Errorf("%w: wrong password", ErrUnauthorized)
	}
	hash, err := hashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.Users(ctx).UpdatePassword(ctx, userID, hash)
}

// UpdateUserEmail changes the target's email.
func (s *Service) UpdateUserEmail(ctx context.Context, requester User, userID, newEmail string) (*User, error) {
	return s.UpdateUser(ctx, requester, userID, UserUpdate{Email: &newEmail})
}

// DeleteUser removes the target user and all of their tokens.
func (s *Service) DeleteUser(ctx context.Context, requester User, userID string) error {
	target, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := CanEditUser(requester, *target); err != nil {
		return err
	}
	if err := s.store.Tokens(ctx).DeleteByUser(ctx, userID); err != nil {
		return err
	}
	return s.store.Users(ctx).Delete(ctx, userID)
}

// Promote raises the target's level of access by one, clamped to the
// requester's own level. The read-check-write runs atomically against
// concurrent edits of the same user.
func (s *Service) Promote(ctx context.Context, requester User, userID string) (*User, error) {
	return s.store.Users(ctx).Mutate(ctx, userID, func(u *User) error {
		if err := CanEditUser(requester, *u); err != nil {
			return err
		}
		next := u.LevelOfAccess + 1
		if next > requester.LevelOfAccess {
			next = requester.LevelOfAccess
		}
		u.LevelOfAccess = next
		return nil
	})
}

// Demote lowers the target's level of access by one, floored at the base
// level.
func (s *Service) Demote(ctx context.Context, requester User, userID string) (*User, error) {
	return s.store.Users(ctx).Mutate(ctx, userID, func(u *User) error {
		if err := CanEditUser(requester, *u); err != nil {
			return err
		}
		next := u.LevelOfAccess - 1
		if next < LevelMember {
			next = LevelMember
		}
		u.LevelOfAccess = next
		return nil
	})
}

// Organisations --------------------------------------------------------------

// CreateOrg registers a new organisation.
func (s *Service) CreateOrg(ctx context.Context, orgID, name string) (*Organisation, error) {
	orgID, err := NormalizeOrgID(orgID)
	if err != nil {
		return nil, err
	}
	org := &Organisation{OrgID: orgID, Name: strings.TrimSpace(name)}
	if err := s.store.Orgs(ctx).Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// OrgView is an organisation with its derived member list.
type OrgView struct {
	Organisation
	Users []string `json:"users"`
}

// ReadOrg returns the organisation and its member user ids. Membership is
// computed by querying users, never stored on the organisation.
func (s *Service) ReadOrg(ctx context.Context, orgID string) (*OrgView, error) {
	orgID, err := NormalizeOrgID(orgID)
	if err != nil {
		return nil, err
	}
	org, err := s.store.Orgs(ctx).Find(ctx, orgID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Users(ctx).ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	view := &OrgView{Organisation: *org, Users: make([]string, 0, len(members))}
	for _, m := range members {
		view.Users = append(view.Users, m.UserID)
	}
	return view, nil
}

// ReadOrgs lists all organisations.
func (s *Service) ReadOrgs(ctx context.Context) ([]*Organisation, error) {
	return s.store.Orgs(ctx).List(ctx)
}

// UpdateOrg applies a partial update. Renaming the public organisation's id
// is refused.
func (s *Service) UpdateOrg(ctx context.Context, orgID string, upd OrgUpdate) (*Organisation, error) {
	orgID, err := NormalizeOrgID(orgID)
	if err != nil {
		return nil, err
	}
	if upd.OrgID != nil {
		if orgID == PublicOrgID {
			return nil, fmt.Errorf("%w: can't rename the public organisation", ErrConflict)
		}
		newID, err := NormalizeOrgID(*upd.OrgID)
		if err != nil {
			return nil, err
		}
		upd.OrgID = &newID
	}
	return s.store.Orgs(ctx).Update(ctx, orgID, upd)
}

// DeleteOrg removes an organisation. The public organisation can never be
// deleted, and deletion fails while members remain: no cascade.
func (s *Service) DeleteOrg(ctx context.Context, orgID string) error {
	orgID, err := NormalizeOrgID(orgID)
	if err != nil {
		return err
	}
	if orgID == PublicOrgID {
		return fmt.Errorf("%w: can't delete the public organisation", ErrConflict)
	}
	return s.store.Orgs(ctx).Delete(ctx, orgID)
}

// AddUserToOrg moves a user out of the public organisation into orgID.
// Users already placed in a non-public organisation can't be taken over.
func (s *Service) AddUserToOrg(ctx context.Context, requester User, orgID, userID string) (*User, error) {
	orgID, err := NormalizeOrgID(orgID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Orgs(ctx).Find(ctx, orgID); err != nil {
		return nil, err
	}
	return s.store.Users(ctx).Mutate(ctx, userID, func(u *User) error {
		if err := CanEditUser(requester, *u); err != nil {
			return err
		}
		if u.MemberOf != PublicOrgID {
			return fmt.Errorf("%w: can't add user from a non-public organisation", ErrConflict)
		}
		u.MemberOf = orgID
		return nil
	})
}

// RemoveUserFromOrg moves a user back to the public organisation.
func (s *Service) RemoveUserFromOrg(ctx context.Context, requester User, orgID, userID string) (*User, error) {
	if _, err := NormalizeOrgID(orgID); err != nil {
		return nil, err
	}
	return s.store.Users(ctx).Mutate(ctx, userID, func(u *User) error {
		if err := CanEditUser(requester, *u); err != nil {
			return err
		}
		if u.MemberOf == PublicOrgID {
			return fmt.Errorf("%w: can't remove user from the public organisation", ErrConflict)
		}
		u.MemberOf = PublicOrgID
		return nil
	})
}

// Invites --------------------------------------------------------------------

// CreateInvite registers an invite code targeting addTo on behalf of
// requester. Issuers below the top level may only target the public
// organisation or their own.
func (s *Service) CreateInvite(ctx context.Context, requester User, code, addTo string) (*InviteCode, error) {
	addTo, err := NormalizeOrgID(addTo)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Orgs(ctx).Find(ctx, addTo); err != nil {
		return nil, err
	}
	if requester.LevelOfAccess < LevelAdmin && addTo != PublicOrgID && addTo != requester.MemberOf {
		return nil, fmt.Errorf("%w: can't invite to a foreign organisation", ErrUnauthorized)
	}
	if code == "" {
		if code, err = generateInviteCode(); err != nil {
			return nil, err
		}
	} else if err := ValidateInviteCode(code); err != nil {
		return nil, err
	}
	invite := &InviteCode{Code: code, IssuerID: requester.UserID, AddTo: addTo}
	if err := s.store.Invites(ctx).Create(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// ReadInvite returns a single invite code.
func (s *Service) ReadInvite(ctx context.Context, code string) (*InviteCode, error) {
	return s.store.Invites(ctx).Find(ctx, code)
}

// ReadInvites lists the codes visible to requester: the top level sees all,
// the organizer level sees own-org-issued, self-issued and public-targeted
// ones, everyone else only self-issued and public-targeted ones.
func (s *Service) ReadInvites(ctx context.Context, requester User) ([]*InviteCode, error) {
	codes, err := s.store.Invites(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	if requester.LevelOfAccess == LevelAdmin {
		return codes, nil
	}
	visible := make([]*InviteCode, 0, len(codes))
	for _, code := range codes {
		if code.AddTo == PublicOrgID || code.IssuerID == requester.UserID {
			visible = append(visible, code)
			continue
		}
		if requester.LevelOfAccess == LevelOrganizer {
			issuer, err := s.store.Users(ctx).Find(ctx, code.IssuerID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			if issuer.MemberOf == requester.MemberOf {
				visible = append(visible, code)
			}
		}
	}
	return visible, nil
}

// DeleteInvite removes an invite code, restricted to codes visible to the
// requester.
func (s *Service) DeleteInvite(ctx context.Context, requester User, code string) error {
	visible, err := s.ReadInvites(ctx, requester)
	if err != nil {
		return err
	}
	allowed := false
	for _, c := range visible {
		if c.Code == code {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: can't delete this invite code", ErrUnauthorized)
	}
	return s.store.Invites(ctx).Delete(ctx, code)
}

const inviteAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateInviteCode() (string, error) {
	buf := make([]byte, generatedInviteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}
