package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestTokenLifecycle(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	mia := mustUser(t, svc, "mia")

	signed, rec, err := svc.Issuer().Issue(ctx, mia, "laptop", "berlin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if rec.Device != "laptop" || rec.Location != "berlin" {
		t.Fatalf("token metadata lost: %+v", rec)
	}
	if got := rec.ExpiresAt.Sub(rec.IssuedAt); got != time.Hour {
		t.Fatalf("ttl = %v, want 1h", got)
	}

	got, user, err := svc.Issuer().Decode(ctx, signed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.TokenID != rec.TokenID || user.UserID != "mia" {
		t.Fatalf("decoded wrong token: %+v for %s", got, user.UserID)
	}

	clk.Advance(2 * time.Hour)
	if _, _, err := svc.Issuer().Decode(ctx, signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired token: want ErrTokenExpired, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []string{"", "garbage", "aaa.bbb.ccc"} {
		if _, _, err := svc.Issuer().Decode(ctx, raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Decode(%q): want ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestDecodeRejectsForeignIssuer(t *testing.T) {
	store := NewMemStore()
	keys := NewKeyProvider(t.TempDir(), false)
	ctx := context.Background()

	ours := NewService(store, keys, WithBcryptCost(bcrypt.MinCost), WithIssuerName("papyrus"))
	theirs := NewService(store, keys, WithBcryptCost(bcrypt.MinCost), WithIssuerName("somebody-else"))
	if err := ours.EnsureBootstrap(ctx); err != nil {
		t.Fatalf("EnsureBootstrap: %v", err)
	}
	user, err := ours.CreateUser(ctx, NewUser{UserID: "u", Email: "u@example.com", Password: "p"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	signed, _, err := theirs.Issuer().Issue(ctx, *user, "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := ours.Issuer().Decode(ctx, signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign issuer: want ErrInvalidToken, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	mia := mustUser(t, svc, "mia")

	if _, _, err := svc.Issuer().Issue(ctx, mia, "", ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clk.Advance(30 * time.Minute)
	if _, _, err := svc.Issuer().Issue(ctx, mia, "", ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clk.Advance(45 * time.Minute) // first token is now past its hour

	n, err := svc.Issuer().CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("cleaned %d tokens, want 1", n)
	}
	left, err := svc.Tokens(ctx, "mia")
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if len(left) != 1 {
		t.Fatalf("%d tokens left, want 1", len(left))
	}
}

func TestStripBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer: abc":  "abc",
		"Bearer abc":   "abc",
		"bearer: abc":  "abc",
		"BEARER abc":   "abc",
		"abc":          "abc",
		"  Bearer x  ": "x",
		"":             "",
	}
	for in, want := range cases {
		if got := StripBearer(in); got != want {
			t.Errorf("StripBearer(%q) = %q, want %q", in, got, want)
		}
	}
}
