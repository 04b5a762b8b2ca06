// Package featuretest wires the services over in-memory stores for handler
// tests.
package featuretest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/internal/events"
	"github.com/tendant/seatledger/internal/http/middleware"
	"github.com/tendant/seatledger/pkg/access"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/directory"
	"github.com/tendant/seatledger/pkg/domain"
	"github.com/tendant/seatledger/pkg/identity"
	"github.com/tendant/seatledger/pkg/ledger"
	"github.com/tendant/seatledger/pkg/repository/memory"
)

// Stack holds every service over fresh in-memory stores.
type Stack struct {
	Users     *identity.Store
	Tenants   *directory.Directory
	Ledger    *ledger.Ledger
	Access    *access.Evaluator
	Passwords *auth.PasswordService
}

// NewStack builds an empty stack.
func NewStack() *Stack {
	tenantsRepo := memory.NewTenantsRepository()
	l := ledger.New(memory.NewSubscriptionsRepository())
	users := identity.New(memory.NewUsersRepository(), tenantsRepo, l)
	dir := directory.New(tenantsRepo, users, l)

	return &Stack{
		Users:     users,
		Tenants:   dir,
		Ledger:    l,
		Access:    access.NewEvaluator(users, dir, l, dir),
		Passwords: auth.NewPasswordService(users, &auth.PasswordPolicy{MinLength: 8}, auth.EmailRules{}),
	}
}

// User creates an active user with a placeholder hash.
func (s *Stack) User(t *testing.T, email string, roles ...string) *domain.User {
	t.Helper()
	u, err := s.Users.Create(context.Background(), identity.CreateParams{
		Name:         email,
		Email:        email,
		PasswordHash: "unusable",
		Roles:        roles,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// Admin creates a user holding the admin role.
func (s *Stack) Admin(t *testing.T, email string) *domain.User {
	t.Helper()
	return s.User(t, email, domain.RoleUser, domain.RoleAdmin)
}

// Tenant creates a tenant owned by owner.
func (s *Stack) Tenant(t *testing.T, owner *domain.User, tenantDomain string) *domain.Tenant {
	t.Helper()
	tenant, err := s.Tenants.Create(context.Background(), directory.CreateParams{
		Name:    tenantDomain,
		Domain:  tenantDomain,
		OwnerID: owner.ID,
	})
	if err != nil {
		t.Fatalf("create tenant %s: %v", tenantDomain, err)
	}
	return tenant
}

// Subscription creates a subscription on tenantID. maxUsers < 0 means unlimited.
func (s *Stack) Subscription(t *testing.T, tenantID uuid.UUID, maxUsers int, members ...*domain.User) *domain.Subscription {
	t.Helper()
	var limit *int
	if maxUsers >= 0 {
		limit = &maxUsers
	}
	sub, err := s.Ledger.Create(context.Background(), ledger.CreateParams{TenantID: tenantID, Plan: "pro", MaxUsers: limit})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	for _, m := range members {
		if sub, _, err = s.Ledger.AddUser(context.Background(), sub.ID, m.ID); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return sub
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Do sends a request to h as actor. A nil actor sends an anonymous request;
// a non-nil body is JSON encoded.
func Do(t *testing.T, h http.Handler, method, path string, actor *domain.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			reader = bytes.NewBufferString(s)
		} else {
			data, err := json.Marshal(body)
			if err != nil {
				t.Fatal(err)
			}
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the recorded body into a T.
func Decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []events.Event
	Err    error
}

func (p *Publisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
	return p.Err
}

func (p *Publisher) Close() {}

// Subjects returns the subjects published so far, in order.
func (p *Publisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Subject)
	}
	return out
}
