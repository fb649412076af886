package main

import (
	"context"
	"crypto"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postgrad-portal/backend/internal/audit"
	auditrepo "postgrad-portal/backend/internal/audit/repository"
	authhandler "postgrad-portal/backend/internal/auth/handler"
	authservice "postgrad-portal/backend/internal/auth/service"
	"postgrad-portal/backend/internal/config"
	"postgrad-portal/backend/internal/db"
	healthhandler "postgrad-portal/backend/internal/health/handler"
	identitydomain "postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/identity/resolver"
	"postgrad-portal/backend/internal/identity/store"
	"postgrad-portal/backend/internal/notify"
	"postgrad-portal/backend/internal/policy/engine"
	"postgrad-portal/backend/internal/schedule"
	"postgrad-portal/backend/internal/security"
	"postgrad-portal/backend/internal/server"
	"postgrad-portal/backend/internal/server/httpctx"
	sessionrepo "postgrad-portal/backend/internal/session/repository"
	"postgrad-portal/backend/internal/telemetry/otel"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "portal-auth", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	tokens, err := buildTokenProvider(cfg)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	var (
		database    *sql.DB
		registry    *store.Registry
		sessions    authservice.SessionRepo
		sessRepo    *sessionrepo.PostgresRepository
		memSessions *sessionrepo.MemoryRepository
		auditLogger audit.AuditLogger
	)

	if cfg.DatabaseURL != "" {
		database, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer database.Close()

		stores := make([]store.Store, 0, 4)
		for _, role := range []identitydomain.Role{
			identitydomain.RoleStudent, identitydomain.RoleSupervisor,
			identitydomain.RoleStaff, identitydomain.RoleAdmin,
		} {
			st, err := store.NewPostgresStore(database, role)
			if err != nil {
				log.Fatalf("identity store %s: %v", role, err)
			}
			stores = append(stores, st)
		}
		registry = store.NewRegistry(stores...)
		sessRepo = sessionrepo.NewPostgresRepository(database)
		sessions = sessRepo
		auditLogger = audit.NewLogger(auditrepo.NewPostgresRepository(database), httpctx.GetClientIP)
	} else {
		if cfg.IsProduction() {
			log.Fatal("db: DATABASE_URL is required when APP_ENV=production")
		}
		log.Println("db: no DATABASE_URL, running on in-memory stores")
		registry = store.NewRegistry(
			store.NewMemoryStore(identitydomain.RoleStudent),
			store.NewMemoryStore(identitydomain.RoleSupervisor),
			store.NewMemoryStore(identitydomain.RoleStaff),
			store.NewMemoryStore(identitydomain.RoleAdmin),
		)
		memSessions = sessionrepo.NewMemoryRepository()
		sessions = memSessions
		auditLogger = audit.NewLogger(auditrepo.NewMemoryRepository(), httpctx.GetClientIP)
	}

	var sink notify.Sink = notify.NoopSink{}
	if cfg.NATSURL != "" {
		natsSink, err := notify.NewNATSSink(cfg.NATSURL, cfg.NotifySubject)
		if err != nil {
			log.Fatalf("notify: %v", err)
		}
		defer natsSink.Close()
		sink = natsSink
	}

	policy, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	svc := authservice.NewAuthService(resolver.New(registry, hasher), sessions, tokens, auditLogger, sink)
	metrics := server.NewMetrics(prometheus.DefaultRegisterer)
	// A typed nil *sql.DB must not reach the health handler as a non-nil interface.
	var pinger healthhandler.Pinger
	if database != nil {
		pinger = database
	}
	handler := server.NewHandler(server.Deps{
		Auth: authhandler.NewAuthHandler(svc, authhandler.CookieWriter{
			Domain: cfg.CookieDomain,
			Dev:    cfg.IsDevelopment(),
		}),
		Health:      healthhandler.New(pinger, policy),
		AuthMW:      server.NewAuthMiddleware(tokens, policy, metrics),
		Metrics:     metrics,
		ServiceName: "portal-auth",
	})

	runner := schedule.NewRunner()
	var jobSessions schedule.SessionSource
	if sessRepo != nil {
		jobSessions = sessRepo
	} else {
		jobSessions = memSessions
	}
	if err := runner.Register("session-expiry-reminder", "@every 5m",
		schedule.ExpiryReminderJob(jobSessions, sink, cfg.ReminderLeadDuration())); err != nil {
		log.Fatalf("schedule: %v", err)
	}
	if err := runner.Register("session-prune", "@hourly",
		schedule.PruneJob(jobSessions, cfg.SessionRetentionDuration())); err != nil {
		log.Fatalf("schedule: %v", err)
	}
	runner.Start()
	defer runner.Stop()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

// buildTokenProvider loads the configured signing key pair, or generates an
// ephemeral one outside production so a bare checkout can run.
func buildTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	var (
		signer crypto.Signer
		pub    crypto.PublicKey
		err    error
	)
	if cfg.JWTPrivateKey != "" {
		signer, err = security.ParsePrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err = security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
	} else {
		log.Println("tokens: no JWT keys configured, generating an ephemeral key (tokens will not survive restarts)")
		signer, pub, err = security.GenerateEphemeralKey()
		if err != nil {
			return nil, err
		}
	}
	return security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
}
