package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tendant/seatledger/internal/config"
	"github.com/tendant/seatledger/internal/http/features/common"
	ft "github.com/tendant/seatledger/internal/http/features/featuretest"
	"github.com/tendant/seatledger/internal/metrics"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/domain"
)

type testServer struct {
	handler http.Handler
	stack   *ft.Stack
	pub     *ft.Publisher
}

func newTestServer(t *testing.T, rl config.RateLimitConfig) *testServer {
	t.Helper()
	stack := ft.NewStack()
	tokens, err := auth.NewTokenService(auth.TokenConfig{JWTSecret: []byte("router-test-secret"), Issuer: "seatledger", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	stack.Access.WithObserver(m)
	pub := &ft.Publisher{}

	h := NewRouter(RouterConfig{
		Logger:             ft.Logger(),
		Users:              stack.Users,
		Tenants:            stack.Tenants,
		Ledger:             stack.Ledger,
		Access:             stack.Access,
		PasswordService:    stack.Passwords,
		TokenService:       tokens,
		Metrics:            m,
		Events:             pub,
		RateLimitConfig:    rl,
		SecurityHeaders:    config.SecurityHeadersConfig{Enabled: true, FrameOptions: "DENY"},
		MaxRequestBytes:    1 << 10,
		CORSAllowedOrigins: []string{"https://app.example.com"},
	})
	return &testServer{handler: h, stack: stack, pub: pub}
}

func (s *testServer) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email string) (common.UserView, string) {
	t.Helper()
	rec := s.call(t, http.MethodPost, "/v1/users", "", map[string]string{"name": email, "email": email, "password": "longenough"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, rec.Code, rec.Body.String())
	}
	user := ft.Decode[common.UserView](t, rec)

	rec = s.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": "longenough"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatal(err)
	}
	return user, login.AccessToken
}

func TestRouter_EndToEnd(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	owner, ownerToken := s.register(t, "owner@acme.io")
	member, memberToken := s.register(t, "member@acme.io")
	_, outsiderToken := s.register(t, "outsider@example.com")

	rec := s.call(t, http.MethodGet, "/v1/auth/me", ownerToken, nil)
	if me := ft.Decode[common.UserView](t, rec); rec.Code != http.StatusOK || me.ID != owner.ID {
		t.Fatalf("me = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.call(t, http.MethodPost, "/v1/tenants", ownerToken, map[string]string{"name": "Acme", "domain": "acme.io"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tenant: %d %s", rec.Code, rec.Body.String())
	}
	tenant := ft.Decode[common.TenantView](t, rec)

	rec = s.call(t, http.MethodPost, "/v1/subscriptions", ownerToken, map[string]any{"tenant_id": tenant.ID, "plan": "pro", "max_users": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create subscription: %d %s", rec.Code, rec.Body.String())
	}
	sub := ft.Decode[common.SubscriptionView](t, rec)
	subPath := "/v1/subscriptions/" + sub.ID.String()

	if rec := s.call(t, http.MethodPost, subPath+"/users", ownerToken, map[string]any{"user_id": member.ID}); rec.Code != http.StatusOK {
		t.Fatalf("add member: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.call(t, http.MethodPost, subPath+"/users", ownerToken, map[string]any{"user_id": owner.ID}); rec.Code != http.StatusConflict {
		t.Errorf("add beyond limit: %d, want 409", rec.Code)
	} else if !strings.Contains(rec.Body.String(), `"code":"capacity_exceeded"`) {
		t.Errorf("capacity error body = %s", rec.Body.String())
	}

	if rec := s.call(t, http.MethodGet, subPath, memberToken, nil); rec.Code != http.StatusOK {
		t.Errorf("member read: %d", rec.Code)
	}
	if rec := s.call(t, http.MethodGet, subPath, outsiderToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("outsider read: %d, want 403", rec.Code)
	}
	if rec := s.call(t, http.MethodGet, "/v1/tenants/"+tenant.ID.String(), outsiderToken, nil); rec.Code != http.StatusOK {
		t.Errorf("any authenticated caller reads tenant: %d", rec.Code)
	}

	memberTenants := ft.Decode[[]common.TenantView](t, s.call(t, http.MethodGet, "/v1/users/"+member.ID.String()+"/tenants", memberToken, nil))
	if len(memberTenants) != 1 || memberTenants[0].ID != tenant.ID {
		t.Errorf("member tenants = %+v", memberTenants)
	}

	if rec := s.call(t, http.MethodGet, "/v1/tenants", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous tenants list: %d, want 401", rec.Code)
	}
	if rec := s.call(t, http.MethodGet, "/v1/tenants", "not-a-token", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d, want 401", rec.Code)
	}

	if len(s.pub.Subjects()) != 3 {
		t.Errorf("published %v, want tenant, subscription and member events", s.pub.Subjects())
	}

	rec = s.call(t, http.MethodGet, "/metrics", "", nil)
	body := rec.Body.String()
	for _, want := range []string{
		`seatledger_ledger_seat_operations_total{operation="add",outcome="added"} 1`,
		`seatledger_ledger_seat_operations_total{operation="add",outcome="rejected"} 1`,
		`seatledger_access_decisions_total`,
		`seatledger_http_requests_total`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRouter_InactiveUserLosesAccess(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	admin, _ := s.register(t, "admin@example.com")
	user, userToken := s.register(t, "user@example.com")

	// No bootstrap admin emails are configured, so promote through the store.
	if _, err := s.stack.Users.Update(context.Background(), admin.ID, domain.UserUpdate{Roles: []string{"user", "admin"}}); err != nil {
		t.Fatal(err)
	}
	rec := s.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "longenough"})
	var login struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &login)

	if rec := s.call(t, http.MethodPatch, "/v1/users/"+user.ID.String(), login.AccessToken, map[string]any{"is_active": false}); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.call(t, http.MethodGet, "/v1/auth/me", userToken, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("inactive user with valid token: %d, want 401", rec.Code)
	}
	rec = s.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "longenough"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("inactive login: %d, want 401", rec.Code)
	}
}

func TestRouter_Ambient(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{
		Enabled:          true,
		LoginRequests:    2,
		LoginWindow:      time.Minute,
		RegisterRequests: 10,
		RegisterWindow:   time.Minute,
		APIRequests:      100,
		APIWindow:        time.Minute,
	})

	rec := s.call(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("health = %d, headers %v", rec.Code, rec.Header())
	}

	var last int
	for i := 0; i < 3; i++ {
		last = s.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "x@example.com", "password": "wrong-password"}).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third login attempt: %d, want 429", last)
	}

	big := map[string]string{"name": strings.Repeat("a", 2048), "email": "big@example.com", "password": "longenough"}
	if rec := s.call(t, http.MethodPost, "/v1/users", "", big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: %d, want 413", rec.Code)
	}

	req := httptest.NewRequest(http.MethodOptions, "/v1/tenants", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("CORS allow origin = %q", got)
	}
}
