package module

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"papyrus.org/internal/auth"
)

type fakeModule struct {
	name    string
	initErr error
	inited  bool
	mounted bool
}

func (f *fakeModule) Descriptor() Descriptor { return Descriptor{Name: f.name} }
func (f *fakeModule) Init(ctx context.Context) error {
	f.inited = true
	return f.initErr
}
func (f *fakeModule) Mount(mux *http.ServeMux, verifiers *auth.VerifierFactory) {
	f.mounted = true
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Error("nil module must fail")
	}
	for _, name := range []string{"", "Misc", "has space", "1digit"} {
		if err := r.Register(&fakeModule{name: name}); err == nil {
			t.Errorf("name %q must fail validation", name)
		}
	}
	if err := r.Register(&fakeModule{name: "reports"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakeModule{name: "reports"}); err == nil {
		t.Error("duplicate name must fail")
	}
}

func TestRegistryInitAndMount(t *testing.T) {
	r := NewRegistry()
	first := &fakeModule{name: "first"}
	second := &fakeModule{name: "second"}
	for _, m := range []*fakeModule{first, second} {
		if err := r.Register(m); err != nil {
			t.Fatalf("Register(%s): %v", m.name, err)
		}
	}
	if err := r.InitAll(context.Background()); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	r.MountAll(http.NewServeMux(), nil)
	if !first.inited || !second.inited || !first.mounted || !second.mounted {
		t.Fatal("modules not initialised or mounted")
	}
	if got := r.Descriptors(); len(got) != 2 || got[0].Name != "first" {
		t.Fatalf("descriptors wrong: %v", got)
	}
}

func TestRegistryInitStopsOnFailure(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	failing := &fakeModule{name: "failing", initErr: boom}
	after := &fakeModule{name: "after"}
	_ = r.Register(failing)
	_ = r.Register(after)

	err := r.InitAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("want init error, got %v", err)
	}
	if after.inited {
		t.Fatal("init must stop at the first failure")
	}
}
