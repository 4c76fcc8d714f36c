package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"papyrus.org/internal/auth"
	"papyrus.org/internal/obs"
)

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API — HTTP слой. Every capability-checked route holds its verifier built
// once at registration, so a malformed requirement panics at boot rather
// than on first use.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	verifiers  *auth.VerifierFactory
	readyProbe ReadyProbe
	version    string

	// per-level verifiers built once at registration
	anyone    auth.TokenVerifier
	trusted   auth.TokenVerifier
	organizer auth.TokenVerifier
	admin     auth.TokenVerifier
	session   auth.SessionVerifier
}

func New(svc *auth.Service, rp ReadyProbe, version string) *API {
	factory := svc.Verifiers()
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		verifiers:  factory,
		readyProbe: rp,
		version:    version,

		anyone:    factory.Require(auth.GreaterOrEqual(auth.LevelMember)),
		trusted:   factory.Require(auth.GreaterOrEqual(auth.LevelTrusted)),
		organizer: factory.Require(auth.GreaterOrEqual(auth.LevelOrganizer)),
		admin:     factory.Require(auth.GreaterOrEqual(auth.LevelAdmin)),
		session:   factory.Session(auth.GreaterOrEqual(auth.LevelMember)),
	}

	// session
	a.mux.HandleFunc("/signin", a.handleSignin)
	a.mux.HandleFunc("/signup", a.handleSignup)
	a.mux.HandleFunc("/signout", a.handleSignout)
	a.mux.HandleFunc("/signout_everywhere", a.handleSignoutEverywhere)
	a.mux.HandleFunc("/me", a.guarded(a.anyone, a.handleMe))
	a.mux.HandleFunc("/tokens", a.guarded(a.anyone, a.handleTokens))
	a.mux.HandleFunc("/token", a.guarded(a.anyone, a.handleToken))

	// users
	a.mux.HandleFunc("/usrs", a.handleUsersCollection)
	a.mux.HandleFunc("/usrs/", a.guarded(a.organizer, a.handleUserRead))
	a.mux.HandleFunc("/usr/", a.handleUserResource)

	// organisations
	a.mux.HandleFunc("/orgs", a.guarded(a.admin, a.handleOrgsCollection))
	a.mux.HandleFunc("/orgs/", a.handleOrgResource)

	// invites
	a.mux.HandleFunc("/invites", a.guarded(a.trusted, a.handleInvitesCollection))
	a.mux.HandleFunc("/invites/", a.guarded(a.trusted, a.handleInviteResource))

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Mux exposes the underlying mux so peripheral modules can mount routes.
func (a *API) Mux() *http.ServeMux { return a.mux }

// Verifiers is the only authentication surface handed to other modules.
func (a *API) Verifiers() *auth.VerifierFactory { return a.verifiers }

// Handler возвращает http.Handler для сервера (без доп. аргументов).
func (a *API) Handler() http.Handler {
	// оборачиваем весь mux метриками
	return obs.Instrument(a.mux)
}

type guardedHandler func(w http.ResponseWriter, r *http.Request, requester auth.User)

// guarded wraps h with token verification; the resolved requester lands in
// both the callback and the request context.
func (a *API) guarded(v auth.TokenVerifier, h guardedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, err := v.Verify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		ctx := auth.ContextWithRequester(r.Context(), requester)
		h(w, r.WithContext(ctx), requester)
	}
}

// --- service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "papyrus-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "papyrus-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
