// Package seatledger wires the identity store, tenant directory,
// subscription ledger and access evaluator into one service and exposes its
// HTTP API.
//
// Setup:
//
//  1. Run migrations from the migrations/ folder (Postgres only)
//  2. Create a Service and serve its Router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/seatledger?sslmode=disable")
//
//	svc, err := seatledger.New(seatledger.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//	http.ListenAndServe(":8080", svc.Router(seatledger.RouterOptions{}))
//
// Leaving DB nil keeps everything in process memory, which is useful for
// tests and local experiments.
package seatledger

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/seatledger/internal/config"
	"github.com/tendant/seatledger/internal/events"
	httpserver "github.com/tendant/seatledger/internal/http"
	"github.com/tendant/seatledger/internal/metrics"
	"github.com/tendant/seatledger/pkg/access"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/directory"
	"github.com/tendant/seatledger/pkg/identity"
	"github.com/tendant/seatledger/pkg/ledger"
	"github.com/tendant/seatledger/pkg/repository"
	"github.com/tendant/seatledger/pkg/repository/memory"
)

// Config holds the configuration of a Service.
type Config struct {
	// DB is the Postgres connection. Nil selects the in-memory stores.
	DB *sql.DB

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "seatledger").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 30 minutes).
	AccessTokenTTL time.Duration

	// AdminEmails are granted the admin role when they register.
	AdminEmails []string

	// PasswordPolicy applies to registration and password changes
	// (default: at least 8 characters).
	PasswordPolicy *auth.PasswordPolicy

	// EmailRules tightens email validation on registration and updates.
	EmailRules auth.EmailRules

	// NATSURL enables publishing domain events to a NATS server.
	NATSURL string

	// Events receives domain events. It takes precedence over NATSURL; with
	// neither set, events are discarded.
	Events events.Publisher

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// tenantStore serves both the directory and the identity store's tenant
// lookups.
type tenantStore interface {
	directory.Repository
	identity.TenantReader
}

// Service is a fully wired seat ledger.
type Service struct {
	config    Config
	users     *identity.Store
	tenants   *directory.Directory
	ledger    *ledger.Ledger
	access    *access.Evaluator
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	metrics   *metrics.Metrics
}

// New creates a Service. With a DB it returns an error if the required
// tables don't exist; run migrations first.
func New(cfg Config) (*Service, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	var (
		usersRepo   identity.Repository
		tenantsRepo tenantStore
		subsRepo    ledger.Repository
	)
	if cfg.DB != nil {
		if err := validateSchema(cfg.DB); err != nil {
			return nil, err
		}
		usersRepo = repository.NewUsersRepository(cfg.DB)
		tenantsRepo = repository.NewTenantsRepository(cfg.DB)
		subsRepo = repository.NewSubscriptionsRepository(cfg.DB)
	} else {
		usersRepo = memory.NewUsersRepository()
		tenantsRepo = memory.NewTenantsRepository()
		subsRepo = memory.NewSubscriptionsRepository()
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessTokenTTL: cfg.AccessTokenTTL,
		JWTSecret:      []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("seatledger: %w", err)
	}

	m := metrics.New()
	if cfg.Events == nil && cfg.NATSURL != "" {
		pub, err := events.Connect(cfg.NATSURL, cfg.Logger, m)
		if err != nil {
			return nil, fmt.Errorf("seatledger: %w", err)
		}
		cfg.Events = pub
		cfg.Logger.Info("publishing domain events", "nats_url", cfg.NATSURL)
	}
	if cfg.Events == nil {
		cfg.Events = events.Noop{}
	}

	l := ledger.New(subsRepo)
	users := identity.New(usersRepo, tenantsRepo, l)
	dir := directory.New(tenantsRepo, users, l)

	return &Service{
		config:    cfg,
		users:     users,
		tenants:   dir,
		ledger:    l,
		access:    access.NewEvaluator(users, dir, l, dir).WithObserver(m),
		passwords: auth.NewPasswordService(users, cfg.PasswordPolicy, cfg.EmailRules, cfg.AdminEmails...),
		tokens:    tokens,
		metrics:   m,
	}, nil
}

// RouterOptions holds the transport settings of Router.
type RouterOptions struct {
	RateLimit          config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBytes    int64
	CORSAllowedOrigins []string
	CookieSecure       bool
}

// Router returns the HTTP API:
//
//	POST   /v1/auth/login                             - Login with email/password
//	POST   /v1/auth/logout                            - Clear the token cookie
//	GET    /v1/auth/me                                - Current user (protected)
//	POST   /v1/users                                  - Register
//	GET    /v1/users, /v1/users/{id}[/tenants|/owned-tenants|/subscriptions]
//	PATCH  /v1/users/{id}
//	POST   /v1/tenants, GET /v1/tenants, GET|PATCH|DELETE /v1/tenants/{id}
//	GET    /v1/tenants/{id}/subscriptions, /v1/tenants/{id}/users
//	POST   /v1/subscriptions, GET /v1/subscriptions, GET|PATCH /v1/subscriptions/{id}
//	GET    /v1/subscriptions/{id}/users, POST /v1/subscriptions/{id}/users
//	DELETE /v1/subscriptions/{id}/users/{userID}
//	GET    /health, /metrics
func (s *Service) Router(opts RouterOptions) http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             s.config.Logger,
		Users:              s.users,
		Tenants:            s.tenants,
		Ledger:             s.ledger,
		Access:             s.access,
		PasswordService:    s.passwords,
		TokenService:       s.tokens,
		Metrics:            s.metrics,
		Events:             s.config.Events,
		RateLimitConfig:    opts.RateLimit,
		SecurityHeaders:    opts.SecurityHeaders,
		MaxRequestBytes:    opts.MaxRequestBytes,
		CORSAllowedOrigins: opts.CORSAllowedOrigins,
		CookieSecure:       opts.CookieSecure,
	})
}

// Users returns the identity store.
func (s *Service) Users() *identity.Store { return s.users }

// Tenants returns the tenant directory.
func (s *Service) Tenants() *directory.Directory { return s.tenants }

// Ledger returns the subscription ledger.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// Access returns the access evaluator.
func (s *Service) Access() *access.Evaluator { return s.access }

// Metrics returns the service's metrics. Its registry is private to the
// service.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Close releases the event publisher. The DB is owned by the caller.
func (s *Service) Close() {
	s.config.Events.Close()
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("seatledger: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("seatledger: JWTSecret must be at least 32 characters")
	}
	if cfg.AccessTokenTTL < 0 {
		return errors.New("seatledger: AccessTokenTTL must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "seatledger"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.PasswordPolicy == nil {
		cfg.PasswordPolicy = &auth.PasswordPolicy{MinLength: 8}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "tenants", "subscriptions"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("seatledger: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("seatledger: failed to check schema: %w", err)
		}
	}

	return nil
}
