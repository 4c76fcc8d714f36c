package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"papyrus.org/internal/auth"
	"papyrus.org/internal/config"
	"papyrus.org/internal/httpapi"
	"papyrus.org/internal/module"
	"papyrus.org/internal/module/misc"
	"papyrus.org/internal/obs"
)

var version = "0.3.1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("PAPYRUS_COMMIT"))

	// Хранилище: Postgres при заданном DSN, иначе in-memory (dev mode).
	var (
		db    *sql.DB
		store auth.Store
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Println("no database configured, using in-memory store")
		store = auth.NewMemStore()
	}

	keys := auth.NewKeyProvider(cfg.StorageDir, cfg.RecreateKeys)
	svc := auth.NewService(store, keys,
		auth.WithIssuerName(cfg.TokenIssuer),
		auth.WithTokenTTL(cfg.SessionTTL()),
		auth.WithBcryptCost(cfg.BcryptCost),
	)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.EnsureBootstrap(bootCtx); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	if cfg.AdminID != "" {
		if err := svc.EnsureAdmin(bootCtx, cfg.AdminID, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}
	cancelBoot()

	// HTTP API
	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version)

	// Peripheral modules plug in through the registry; auth hands them
	// only the verifier factory.
	registry := module.NewRegistry()
	if err := registry.Register(misc.New(version, registry.Descriptors)); err != nil {
		log.Fatalf("register module: %v", err)
	}
	if err := registry.InitAll(context.Background()); err != nil {
		log.Fatalf("init modules: %v", err)
	}
	registry.MountAll(api.Mux(), api.Verifiers())

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, cfg.MaxBodyBytes)
	if cfg.RateLimitRPS > 0 {
		handler = httpapi.RateLimit(handler, cfg.RateLimitBurst, cfg.RateLimitRPS)
	}
	handler = httpapi.CORS(handler, cfg.CORSOrigin)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.LoggingJSON(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting papyrus-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
