// Package misc is the reference peripheral module: a tiny status surface
// showing how features plug into the backend through the module contract.
package misc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"papyrus.org/internal/auth"
	"papyrus.org/internal/module"
)

// Misc reports process uptime and the registered module set.
type Misc struct {
	version string
	started time.Time
	list    func() []module.Descriptor
}

// New builds the misc module. list supplies the registry contents for the
// status payload; it may be nil.
func New(version string, list func() []module.Descriptor) *Misc {
	return &Misc{version: version, list: list}
}

func (m *Misc) Descriptor() module.Descriptor {
	return module.Descriptor{Name: "misc", Version: m.version}
}

func (m *Misc) Init(ctx context.Context) error {
	m.started = time.Now().UTC()
	return nil
}

// Mount exposes GET /misc/status behind the weakest authenticated tier.
func (m *Misc) Mount(mux *http.ServeMux, verifiers *auth.VerifierFactory) {
	signedIn := verifiers.Require(auth.GreaterOrEqual(auth.LevelMember))
	mux.HandleFunc("/misc/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		requester, err := signedIn.Verify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		payload := map[string]any{
			"version": m.version,
			"uptime":  time.Since(m.started).Round(time.Second).String(),
			"user":    requester.UserID,
		}
		if m.list != nil {
			names := make([]string, 0)
			for _, d := range m.list() {
				names = append(names, d.Name)
			}
			payload["modules"] = names
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": payload})
	})
}
