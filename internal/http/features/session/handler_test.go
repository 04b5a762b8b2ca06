package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/internal/http/middleware"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/domain"
)

type stubAuthenticator struct {
	user *domain.User
	err  error
}

func (s stubAuthenticator) Authenticate(context.Context, string, string) (*domain.User, error) {
	return s.user, s.err
}

func newHandler(t *testing.T, a Authenticator) *Handler {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{JWTSecret: []byte("secret"), AccessTokenTTL: 10 * time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	return NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), a, tokens, true)
}

func TestLogin(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Name: "Ada", Email: "ada@example.com", IsActive: true, Roles: []string{"user"}}

	tests := []struct {
		name           string
		auth           stubAuthenticator
		body           string
		expectedStatus int
	}{
		{"success", stubAuthenticator{user: user}, `{"email":"ada@example.com","password":"pw"}`, http.StatusOK},
		{"bad credentials", stubAuthenticator{err: domain.ErrInvalidCredentials}, `{"email":"ada@example.com","password":"pw"}`, http.StatusUnauthorized},
		{"inactive", stubAuthenticator{err: domain.ErrUserInactive}, `{"email":"ada@example.com","password":"pw"}`, http.StatusUnauthorized},
		{"missing password", stubAuthenticator{user: user}, `{"email":"ada@example.com"}`, http.StatusBadRequest},
		{"invalid json", stubAuthenticator{user: user}, `{invalid}`, http.StatusBadRequest},
		{"unknown field", stubAuthenticator{user: user}, `{"email":"a@b.c","password":"pw","otp":"1"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, tt.auth)
			req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			h.Login(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("Status code = %d, want %d: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp LoginResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.AccessToken == "" || resp.TokenType != "Bearer" || resp.ExpiresIn != 600 {
				t.Errorf("token fields = %+v", resp)
			}
			if resp.UserID != user.ID || resp.Email != user.Email || len(resp.Roles) != 1 {
				t.Errorf("profile fields = %+v", resp)
			}

			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Value != resp.AccessToken || !cookies[0].HttpOnly || !cookies[0].Secure {
				t.Errorf("cookie = %+v", cookies)
			}
		})
	}
}

func TestMe(t *testing.T) {
	h := newHandler(t, stubAuthenticator{})
	user := &domain.User{ID: uuid.New(), Email: "ada@example.com", IsActive: true, PasswordHash: "$argon2id$secret"}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("argon2id")) {
		t.Error("password hash leaked into profile")
	}

	rec = httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated Status code = %d, want 401", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h := newHandler(t, stubAuthenticator{})
	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want 204", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookie not cleared: %+v", cookies)
	}
}
