package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/seatledger/internal/config"
	"github.com/tendant/seatledger/internal/httputil"
)

// RateLimitConfig holds the limit for one route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates a rate limiter that gives each client IP its own budget
// and logs rejections. RemoteAddr is expected to be rewritten by RealIP first.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		}),
	)
}

// NoRateLimit returns a pass-through middleware.
func NoRateLimit() func(http.Handler) http.Handler {
	return passThrough
}

func passThrough(next http.Handler) http.Handler {
	return next
}

// RateLimiters holds one limiter per route group.
type RateLimiters struct {
	Login    func(http.Handler) http.Handler
	Register func(http.Handler) http.Handler
	API      func(http.Handler) http.Handler
}

// NewRateLimiters builds the route-group limiters from config. When limiting
// is disabled every limiter passes requests through.
func NewRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) RateLimiters {
	if !cfg.Enabled {
		return RateLimiters{Login: NoRateLimit(), Register: NoRateLimit(), API: NoRateLimit()}
	}
	return RateLimiters{
		Login:    RateLimit(RateLimitConfig{Requests: cfg.LoginRequests, Window: cfg.LoginWindow, Logger: logger}),
		Register: RateLimit(RateLimitConfig{Requests: cfg.RegisterRequests, Window: cfg.RegisterWindow, Logger: logger}),
		API:      RateLimit(RateLimitConfig{Requests: cfg.APIRequests, Window: cfg.APIWindow, Logger: logger}),
	}
}
