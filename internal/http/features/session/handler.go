package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/internal/http/features/common"
	"github.com/tendant/seatledger/internal/httputil"
	"github.com/tendant/seatledger/pkg/domain"
)

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(user *domain.User) (*domain.TokenPair, error)
}

// Handler handles login and session endpoints.
type Handler struct {
	logger       *slog.Logger
	passwords    Authenticator
	tokens       TokenIssuer
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, passwords Authenticator, tokens TokenIssuer, cookieSecure bool) *Handler {
	return &Handler{
		logger:       logger,
		passwords:    passwords,
		tokens:       tokens,
		cookieConfig: httputil.DefaultCookieConfig(cookieSecure),
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the access token and the caller's profile.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Roles       []string  `json:"roles"`
}

// Login authenticates with email and password.
// POST /v1/auth/login
//
// The token is returned in the body and also set as an HttpOnly cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.WriteError(w, h.logger, domain.Invalid("email and password are required"))
		return
	}

	user, err := h.passwords.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login failed", "error", err)
		httputil.WriteError(w, h.logger, err)
		return
	}

	pair, err := h.tokens.Issue(user)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.SetAccessTokenCookie(w, pair.AccessToken, time.Duration(pair.ExpiresIn)*time.Second, h.cookieConfig)
	h.logger.Info("user logged in", "user_id", user.ID)

	httputil.JSON(w, http.StatusOK, LoginResponse{
		AccessToken: pair.AccessToken,
		TokenType:   pair.TokenType,
		ExpiresIn:   pair.ExpiresIn,
		UserID:      user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Roles:       user.Roles,
	})
}

// Me returns the authenticated user's profile.
// GET /v1/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := common.Actor(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewUserView(user))
}

// Logout clears the access token cookie. Issued tokens stay valid until
// they expire.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearAccessTokenCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}
