package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tendant/seatledger/internal/config"
	"github.com/tendant/seatledger/internal/events"
	"github.com/tendant/seatledger/internal/http/features/common"
	"github.com/tendant/seatledger/internal/http/features/session"
	"github.com/tendant/seatledger/internal/http/features/subscriptions"
	"github.com/tendant/seatledger/internal/http/features/tenants"
	"github.com/tendant/seatledger/internal/http/features/users"
	"github.com/tendant/seatledger/internal/http/middleware"
	"github.com/tendant/seatledger/internal/httputil"
	"github.com/tendant/seatledger/internal/metrics"
	"github.com/tendant/seatledger/pkg/access"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/directory"
	"github.com/tendant/seatledger/pkg/identity"
	"github.com/tendant/seatledger/pkg/ledger"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Users           *identity.Store
	Tenants         *directory.Directory
	Ledger          *ledger.Ledger
	Access          *access.Evaluator
	PasswordService *auth.PasswordService
	TokenService    *auth.TokenService
	Metrics         *metrics.Metrics // optional; /metrics is not served without it
	Events          events.Publisher // optional; events are discarded without it

	RateLimitConfig    config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBytes    int64
	CORSAllowedOrigins []string
	CookieSecure       bool
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBytes))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	rateLimiters := middleware.NewRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	emitter := common.NewEmitter(cfg.Events, cfg.Logger)

	sessionHandler := session.NewHandler(cfg.Logger, cfg.PasswordService, cfg.TokenService, cfg.CookieSecure)
	usersHandler := users.NewHandler(cfg.Logger, cfg.PasswordService, cfg.Users, cfg.Access)
	tenantsHandler := tenants.NewHandler(cfg.Logger, cfg.Tenants, cfg.Ledger, cfg.Users, cfg.Access, emitter)
	var seats subscriptions.SeatRecorder
	if cfg.Metrics != nil {
		seats = cfg.Metrics
	}
	subscriptionsHandler := subscriptions.NewHandler(cfg.Logger, cfg.Ledger, cfg.Users, cfg.Access, seats, emitter)

	// Public routes
	r.With(rateLimiters.Login).Post("/v1/auth/login", sessionHandler.Login)
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters.Register)
		usersHandler.RegisterPublicRoutes(r)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.TokenService, cfg.Users, cfg.Logger))
		r.Use(rateLimiters.API)

		r.Get("/v1/auth/me", sessionHandler.Me)
		usersHandler.RegisterRoutes(r)
		tenantsHandler.RegisterRoutes(r)
		subscriptionsHandler.RegisterRoutes(r)
	})

	return r
}
