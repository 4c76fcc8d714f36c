package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	valid := []string{"mia", "user_42", "A-b-C", "0"}
	for _, id := range valid {
		if err := ValidateUserID(id); err != nil {
			t.Errorf("ValidateUserID(%q): %v", id, err)
		}
	}
	invalid := []string{"", "  ", "with space", "dot.dot", "org:x", "ümlaut", strings.Repeat("a", 65)}
	for _, id := range invalid {
		if err := ValidateUserID(id); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateUserID(%q): want ErrInvalidInput, got %v", id, err)
		}
	}
}

func TestNormalizeOrgID(t *testing.T) {
	cases := map[string]string{
		"acme":       "org:acme",
		"org:acme":   "org:acme",
		" org:acme ": "org:acme",
		"public":     "org:public",
	}
	for in, want := range cases {
		got, err := NormalizeOrgID(in)
		if err != nil {
			t.Errorf("NormalizeOrgID(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeOrgID(%q) = %q, want %q", in, got, want)
		}
	}
	for _, in := range []string{"", "org:", "org:has space", "org:a.b"} {
		if _, err := NormalizeOrgID(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("NormalizeOrgID(%q): want ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	got, err := ValidateEmail(" Mia@Example.COM ")
	if err != nil {
		t.Fatalf("ValidateEmail: %v", err)
	}
	if got != "mia@example.com" {
		t.Fatalf("email not normalised: %q", got)
	}
	for _, in := range []string{"", "no-at-sign", "   "} {
		if _, err := ValidateEmail(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateEmail(%q): want ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestValidateLevel(t *testing.T) {
	for level := LevelMember; level <= LevelAdmin; level++ {
		if err := ValidateLevel(level); err != nil {
			t.Errorf("ValidateLevel(%d): %v", level, err)
		}
	}
	for _, level := range []int{-1, 4, 100} {
		if err := ValidateLevel(level); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateLevel(%d): want ErrInvalidInput, got %v", level, err)
		}
	}
}

func TestValidateInviteCode(t *testing.T) {
	if err := ValidateInviteCode("welcome-2025"); err != nil {
		t.Fatalf("ValidateInviteCode: %v", err)
	}
	for _, code := range []string{"", "short", strings.Repeat("x", 33), "has spaces!"} {
		if err := ValidateInviteCode(code); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateInviteCode(%q): want ErrInvalidInput, got %v", code, err)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("s3cret", 4)
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("wrong password must not verify")
	}
}
