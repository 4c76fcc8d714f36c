package auth

import (
	"context"
	"fmt"
	"slices"
)

// TokenVerifier exchanges a bearer header for the requesting user, enforcing
// a level-of-access requirement.
type TokenVerifier interface {
	Verify(ctx context.Context, authHeader string) (User, error)
}

// SessionVerifier additionally exposes the resolved token row, which signout
// needs to revoke exactly the session in use.
type SessionVerifier interface {
	TokenVerifier
	VerifyWithToken(ctx context.Context, authHeader string) (Token, User, error)
}

// TokenVerifierFactory is the collaborator surface other modules receive:
// they ask for a verifier matching a requirement and never touch the
// credential store directly.
type TokenVerifierFactory interface {
	Require(req Requirement) TokenVerifier
}

// Requirement selects which level-of-access check a verifier applies.
// Exactly one of the two constructors must be used.
type Requirement struct {
	greaterOrEqual *int
	oneOf          []int
}

// GreaterOrEqual requires level_of_access >= min.
func GreaterOrEqual(min int) Requirement {
	return Requirement{greaterOrEqual: &min}
}

// OneOf requires level_of_access to be in levels.
func OneOf(levels ...int) Requirement {
	return Requirement{oneOf: levels}
}

// VerifierFactory produces request-time access checks backed by an Issuer.
type VerifierFactory struct {
	issuer *Issuer
}

var _ TokenVerifierFactory = (*VerifierFactory)(nil)

// NewVerifierFactory wraps issuer.
func NewVerifierFactory(issuer *Issuer) *VerifierFactory {
	return &VerifierFactory{issuer: issuer}
}

// Require builds a verifier for req. Supplying both or neither requirement
// kind is a route-registration error, not a request-time one, so it panics.
func (f *VerifierFactory) Require(req Requirement) TokenVerifier {
	if (req.greaterOrEqual != nil) == (req.oneOf != nil) {
		panic("auth: exactly one of GreaterOrEqual or OneOf must be supplied")
	}
	return &verifier{issuer: f.issuer, req: req}
}

// Session builds a SessionVerifier for req under the same registration rules
// as Require.
func (f *VerifierFactory) Session(req Requirement) SessionVerifier {
	return f.Require(req).(*verifier)
}

type verifier struct {
	issuer *Issuer
	req    Requirement
}

// Verify strips the bearer prefix, decodes the token, loads the owning user
// and checks the level requirement.
func (v *verifier) Verify(ctx context.Context, authHeader string) (User, error) {
	_, user, err := v.VerifyWithToken(ctx, authHeader)
	return user, err
}

// VerifyWithToken behaves like Verify but also returns the resolved token
// row, which signout needs to revoke exactly the session in use.
func (v *verifier) VerifyWithToken(ctx context.Context, authHeader string) (Token, User, error) {
	token, user, err := v.issuer.Decode(ctx, StripBearer(authHeader))
	if err != nil {
		return Token{}, User{}, err
	}
	if err := v.check(user); err != nil {
		return Token{}, User{}, err
	}
	return token, user, nil
}

func (v *verifier) check(user User) error {
	if v.req.greaterOrEqual != nil {
		if user.LevelOfAccess < *v.req.greaterOrEqual {
			return &AccessError{
				Actual:         user.LevelOfAccess,
				GreaterOrEqual: *v.req.greaterOrEqual,
			}
		}
		return nil
	}
	if !slices.Contains(v.req.oneOf, user.LevelOfAccess) {
		return &AccessError{Actual: user.LevelOfAccess, OneOf: v.req.oneOf}
	}
	return nil
}

// CanEditUser applies the privilege rule used by every mutating user and
// organisation endpoint: a requester below the top level cannot mutate a
// user whose level of access is greater or equal to their own.
func CanEditUser(requester User, target User) error {
	if requester.LevelOfAccess == LevelAdmin {
		return nil
	}
	if target.LevelOfAccess >= requester.LevelOfAccess {
		return fmt.Errorf("%w: can't edit user with higher or same privileges", ErrUnauthorized)
	}
	return nil
}
