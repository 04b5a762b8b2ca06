package users

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/seatledger/internal/http/features/common"
	ft "github.com/tendant/seatledger/internal/http/features/featuretest"
	"github.com/tendant/seatledger/pkg/domain"
)

func newRouter(s *ft.Stack) chi.Router {
	h := NewHandler(ft.Logger(), s.Passwords, s.Users, s.Access)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	h.RegisterRoutes(r)
	return r
}

func TestRegister(t *testing.T) {
	s := ft.NewStack()
	r := newRouter(s)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{"created", RegisterRequest{Name: "Ada", Email: "Ada@Example.com", Password: "longenough"}, http.StatusCreated},
		{"duplicate email", RegisterRequest{Email: "ada@example.com", Password: "longenough"}, http.StatusConflict},
		{"weak password", RegisterRequest{Email: "bob@example.com", Password: "short"}, http.StatusBadRequest},
		{"bad email", RegisterRequest{Email: "bob", Password: "longenough"}, http.StatusBadRequest},
		{"missing fields", RegisterRequest{Name: "Nobody"}, http.StatusBadRequest},
		{"invalid json", `{invalid}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ft.Do(t, r, http.MethodPost, "/v1/users", nil, tt.body)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("Status code = %d, want %d: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
		})
	}

	u, err := s.Users.FindByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.IsAdmin() || !u.IsActive {
		t.Errorf("registered user = %+v", u)
	}
}

func TestList(t *testing.T) {
	s := ft.NewStack()
	r := newRouter(s)
	admin := s.Admin(t, "admin@example.com")
	ada := s.User(t, "ada@example.com")
	s.User(t, "bob@example.com")

	all := ft.Decode[[]common.UserView](t, ft.Do(t, r, http.MethodGet, "/v1/users", admin, nil))
	if len(all) != 3 {
		t.Errorf("admin sees %d users, want 3", len(all))
	}

	self := ft.Decode[[]common.UserView](t, ft.Do(t, r, http.MethodGet, "/v1/users", ada, nil))
	if len(self) != 1 || self[0].ID != ada.ID {
		t.Errorf("non-admin sees %+v, want only self", self)
	}

	none := ft.Decode[[]common.UserView](t, ft.Do(t, r, http.MethodGet, "/v1/users?is_active=false", ada, nil))
	if len(none) != 0 {
		t.Errorf("inactive filter = %+v, want empty", none)
	}

	if rec := ft.Do(t, r, http.MethodGet, "/v1/users?is_active=maybe", admin, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter Status code = %d, want 400", rec.Code)
	}
}

func TestGet(t *testing.T) {
	s := ft.NewStack()
	r := newRouter(s)
	admin := s.Admin(t, "admin@example.com")
	ada := s.User(t, "ada@example.com")
	bob := s.User(t, "bob@example.com")

	tests := []struct {
		name           string
		actor          *domain.User
		path           string
		expectedStatus int
	}{
		{"self", ada, "/v1/users/" + ada.ID.String(), http.StatusOK},
		{"other user", bob, "/v1/users/" + ada.ID.String(), http.StatusForbidden},
		{"admin", admin, "/v1/users/" + ada.ID.String(), http.StatusOK},
		{"missing", admin, "/v1/users/00000000-0000-0000-0000-000000000001", http.StatusNotFound},
		{"bad id", admin, "/v1/users/not-a-uuid", http.StatusBadRequest},
		{"anonymous", nil, "/v1/users/" + ada.ID.String(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ft.Do(t, r, http.MethodGet, tt.path, tt.actor, nil)
			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	s := ft.NewStack()
	r := newRouter(s)
	admin := s.Admin(t, "admin@example.com")
	ada := s.User(t, "ada@example.com")
	s.User(t, "bob@example.com")
	path := "/v1/users/" + ada.ID.String()

	tests := []struct {
		name           string
		actor          *domain.User
		body           string
		expectedStatus int
	}{
		{"rename self", ada, `{"name":"Ada L."}`, http.StatusOK},
		{"grant own admin", ada, `{"roles":["user","admin"]}`, http.StatusForbidden},
		{"deactivate self", ada, `{"is_active":false}`, http.StatusForbidden},
		{"email taken", ada, `{"email":"BOB@example.com"}`, http.StatusConflict},
		{"bad email", ada, `{"email":"nope"}`, http.StatusBadRequest},
		{"weak password", ada, `{"password":"short"}`, http.StatusBadRequest},
		{"change password", ada, `{"password":"anotherlongone"}`, http.StatusOK},
		{"admin sets roles", admin, `{"roles":["user","auditor"]}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ft.Do(t, r, http.MethodPatch, path, tt.actor, tt.body)
			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
		})
	}

	if _, err := s.Passwords.Authenticate(context.Background(), "ada@example.com", "anotherlongone"); err != nil {
		t.Errorf("login with updated password: %v", err)
	}
	got, _ := s.Users.FindByID(context.Background(), ada.ID)
	if got.Name != "Ada L." || !got.HasRole("auditor") || got.IsAdmin() {
		t.Errorf("stored user = %+v", got)
	}
}

func TestUserRelations(t *testing.T) {
	s := ft.NewStack()
	r := newRouter(s)
	owner := s.User(t, "owner@acme.io")
	member := s.User(t, "member@acme.io")

	acme := s.Tenant(t, owner, "acme.io")
	s.Tenant(t, owner, "beta.io")
	s.Subscription(t, acme.ID, 5, member)

	owned := ft.Decode[[]common.TenantView](t, ft.Do(t, r, http.MethodGet, "/v1/users/"+owner.ID.String()+"/owned-tenants", owner, nil))
	if len(owned) != 2 {
		t.Errorf("owned tenants = %d, want 2", len(owned))
	}

	memberOf := ft.Decode[[]common.TenantView](t, ft.Do(t, r, http.MethodGet, "/v1/users/"+member.ID.String()+"/tenants", member, nil))
	if len(memberOf) != 1 || memberOf[0].ID != acme.ID {
		t.Errorf("member tenants = %+v", memberOf)
	}

	subs := ft.Decode[[]common.SubscriptionView](t, ft.Do(t, r, http.MethodGet, "/v1/users/"+member.ID.String()+"/subscriptions", member, nil))
	if len(subs) != 1 || subs[0].UserCount != 1 || !subs[0].HasAvailableSeats {
		t.Errorf("member subscriptions = %+v", subs)
	}

	none := ft.Decode[[]common.TenantView](t, ft.Do(t, r, http.MethodGet, "/v1/users/"+owner.ID.String()+"/tenants", owner, nil))
	if none == nil || len(none) != 0 {
		t.Errorf("owner member-of = %+v, want empty list", none)
	}

	if rec := ft.Do(t, r, http.MethodGet, "/v1/users/"+owner.ID.String()+"/subscriptions", member, nil); rec.Code != http.StatusForbidden {
		t.Errorf("cross-user Status code = %d, want 403", rec.Code)
	}
}
