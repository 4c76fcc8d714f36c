package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.TokenIssuer != "papyrus" {
		t.Errorf("TokenIssuer = %q, want papyrus", cfg.TokenIssuer)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.SessionTTL() != 30*24*time.Hour {
		t.Errorf("SessionTTL = %v, want 720h", cfg.SessionTTL())
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("PAPYRUS_HTTP_ADDR", ":9090")
	os.Setenv("PAPYRUS_TOKEN_TTL", "1h")
	os.Setenv("PAPYRUS_BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.SessionTTL() != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL())
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	os.Clearenv()
	os.Setenv("PAPYRUS_BCRYPT_COST", "99")
	if _, err := Load(); err == nil {
		t.Error("bcrypt cost out of range must fail")
	}

	os.Clearenv()
	os.Setenv("PAPYRUS_ADMIN_ID", "root")
	if _, err := Load(); err == nil {
		t.Error("admin id without password must fail")
	}

	os.Clearenv()
	os.Setenv("PAPYRUS_ENV", "production")
	os.Setenv("PAPYRUS_RECREATE_KEYS", "true")
	if _, err := Load(); err == nil {
		t.Error("recreate keys in production must fail")
	}
}

func TestSessionTTLFallback(t *testing.T) {
	cfg := &Config{TokenTTL: "not-a-duration"}
	if cfg.SessionTTL() != 30*24*time.Hour {
		t.Errorf("SessionTTL = %v, want fallback", cfg.SessionTTL())
	}
}
