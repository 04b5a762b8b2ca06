package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/internal/httputil"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/domain"
)

type contextKey string

// UserKey is the context key for the authenticated user.
const UserKey contextKey = "user"

// UserResolver loads the user a token was issued to.
type UserResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Auth validates the access token and loads its subject. The token comes from
// the Authorization header, or from the access_token cookie for browser
// clients. Unknown or inactive subjects are rejected with 401.
func Auth(tokens *auth.TokenService, users UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				if token, ok := httputil.GetAccessTokenFromCookie(r); ok {
					tokenString = token
				}
			}
			if tokenString == "" {
				httputil.WriteError(w, logger, domain.ErrUnauthorized)
				return
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				httputil.WriteError(w, logger, err)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				httputil.WriteError(w, logger, err)
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				httputil.WriteError(w, logger, domain.ErrInvalidToken)
				return
			case err != nil:
				httputil.WriteError(w, logger, err)
				return
			case !user.IsActive:
				httputil.WriteError(w, logger, domain.ErrUserInactive)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetUser returns the authenticated user from the request context.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserKey).(*domain.User)
	return user, ok
}

// WithUser returns a context carrying user, as Auth would set it.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
