package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyProviderGeneratesAndReloads(t *testing.T) {
	dir := t.TempDir()

	kp := NewKeyProvider(dir, false)
	priv, pub, err := kp.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if priv == nil || pub == nil {
		t.Fatal("expected a generated key pair")
	}
	for _, name := range []string{"private.pem", "public.pem"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	// A fresh provider over the same directory must load the same key.
	again := NewKeyProvider(dir, false)
	priv2, _, err := again.Keys()
	if err != nil {
		t.Fatalf("Keys (reload): %v", err)
	}
	if priv.N.Cmp(priv2.N) != 0 {
		t.Fatal("reloaded key differs from the generated one")
	}
}

func TestKeyProviderRecreateBacksUp(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := NewKeyProvider(dir, false).Keys(); err != nil {
		t.Fatalf("Keys: %v", err)
	}
	old, _, err := NewKeyProvider(dir, false).Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}

	fresh, _, err := NewKeyProvider(dir, true).Keys()
	if err != nil {
		t.Fatalf("Keys (recreate): %v", err)
	}
	if old.N.Cmp(fresh.N) == 0 {
		t.Fatal("recreate must generate a new key")
	}
	if _, err := os.Stat(filepath.Join(dir, "private.pem.bak")); err != nil {
		t.Fatalf("missing backup: %v", err)
	}
}

func TestKeyProviderRejectsPartialPair(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := NewKeyProvider(dir, false).Keys(); err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "public.pem")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, err := NewKeyProvider(dir, false).Keys(); err == nil {
		t.Fatal("half a key pair must be an error")
	}
}
