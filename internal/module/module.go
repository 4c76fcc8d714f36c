// Package module defines the contract peripheral feature modules implement
// to plug into the backend. Modules are registered statically at boot;
// descriptor problems fail startup, not the first request.
package module

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"papyrus.org/internal/auth"
)

// Descriptor identifies a module to the registry.
type Descriptor struct {
	// Name is the unique module name, also the conventional route prefix.
	Name string
	// Version is informational, surfaced on the status endpoints.
	Version string
}

// Module is a pluggable backend feature. Mount receives the shared mux and
// the verifier factory, which is the module's only window into
// authentication: modules declare the level of access a route needs and
// never see credentials or the user store.
type Module interface {
	Descriptor() Descriptor
	Init(ctx context.Context) error
	Mount(mux *http.ServeMux, verifiers *auth.VerifierFactory)
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry holds the boot-time module set.
type Registry struct {
	modules []Module
	byName  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]struct{})}
}

// Register validates the module's descriptor and adds it. Registration
// order is mount order.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return fmt.Errorf("module: nil module")
	}
	d := m.Descriptor()
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("module: invalid name %q", d.Name)
	}
	if _, dup := r.byName[d.Name]; dup {
		return fmt.Errorf("module: duplicate name %q", d.Name)
	}
	r.byName[d.Name] = struct{}{}
	r.modules = append(r.modules, m)
	return nil
}

// InitAll initialises every registered module in registration order and
// stops at the first failure.
func (r *Registry) InitAll(ctx context.Context) error {
	for _, m := range r.modules {
		if err := m.Init(ctx); err != nil {
			return fmt.Errorf("module %s: %w", m.Descriptor().Name, err)
		}
	}
	return nil
}

// MountAll mounts every registered module onto mux.
func (r *Registry) MountAll(mux *http.ServeMux, verifiers *auth.VerifierFactory) {
	for _, m := range r.modules {
		m.Mount(mux, verifiers)
	}
}

// Descriptors lists the registered modules in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.Descriptor())
	}
	return out
}
