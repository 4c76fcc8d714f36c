package auth

import (
	"context"
	"errors"
	"testing"
)

func TestRequireRejectsMalformedRequirements(t *testing.T) {
	svc, _ := newTestService(t)
	factory := svc.Verifiers()

	expectPanic := func(name string, req Requirement) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		factory.Require(req)
	}
	expectPanic("empty", Requirement{})
	expectPanic("both", func() Requirement {
		r := GreaterOrEqual(1)
		r.oneOf = []int{2}
		return r
	}())
}

func TestVerifierEnforcesLevels(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	factory := svc.Verifiers()

	signed, err := svc.Signin(ctx, "tim", "timpw", "", "") // level 1
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}

	if _, err := factory.Require(GreaterOrEqual(1)).Verify(ctx, "Bearer: "+signed); err != nil {
		t.Fatalf("level 1 against >=1: %v", err)
	}
	_, err = factory.Require(GreaterOrEqual(2)).Verify(ctx, signed)
	var access *AccessError
	if !errors.As(err, &access) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("level 1 against >=2: want AccessError wrapping ErrUnauthorized, got %v", err)
	}
	if access.Actual != 1 || access.GreaterOrEqual != 2 {
		t.Fatalf("access error detail wrong: %+v", access)
	}

	if _, err := factory.Require(OneOf(0, 1)).Verify(ctx, signed); err != nil {
		t.Fatalf("level 1 against one-of(0,1): %v", err)
	}
	if _, err := factory.Require(OneOf(0, 2)).Verify(ctx, signed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("level 1 against one-of(0,2): want ErrUnauthorized, got %v", err)
	}
}

func TestVerifierRejectsMissingAndRevoked(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	verifier := svc.Verifiers().Require(GreaterOrEqual(0))

	if _, err := verifier.Verify(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing header: want ErrInvalidToken, got %v", err)
	}

	signed, err := svc.Signin(ctx, "mia", "miapw", "", "")
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}
	rec, _, err := svc.Issuer().Decode(ctx, signed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := svc.Signout(ctx, rec.TokenID); err != nil {
		t.Fatalf("Signout: %v", err)
	}
	if _, err := verifier.Verify(ctx, signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked: want ErrInvalidToken, got %v", err)
	}
}

func TestSessionVerifierReturnsToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signed, err := svc.Signin(ctx, "mia", "miapw", "phone", "")
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}
	token, user, err := svc.Verifiers().Session(GreaterOrEqual(0)).VerifyWithToken(ctx, signed)
	if err != nil {
		t.Fatalf("VerifyWithToken: %v", err)
	}
	if user.UserID != "mia" || token.Device != "phone" {
		t.Fatalf("session mismatch: %s %q", user.UserID, token.Device)
	}
}

func TestCanEditUser(t *testing.T) {
	admin := User{UserID: "a", LevelOfAccess: LevelAdmin}
	organizer := User{UserID: "o", LevelOfAccess: LevelOrganizer}
	peer := User{UserID: "p", LevelOfAccess: LevelOrganizer}
	member := User{UserID: "m", LevelOfAccess: LevelMember}

	if err := CanEditUser(admin, admin); err != nil {
		t.Fatalf("top level must edit peers: %v", err)
	}
	if err := CanEditUser(organizer, member); err != nil {
		t.Fatalf("editing downward: %v", err)
	}
	if err := CanEditUser(organizer, peer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("editing a peer: want ErrUnauthorized, got %v", err)
	}
	if err := CanEditUser(member, organizer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("editing upward: want ErrUnauthorized, got %v", err)
	}
}
