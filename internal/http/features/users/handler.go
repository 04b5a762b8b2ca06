package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/internal/http/features/common"
	"github.com/tendant/seatledger/internal/httputil"
	"github.com/tendant/seatledger/pkg/access"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/domain"
)

// Registrar creates accounts and prepares credentials.
type Registrar interface {
	Register(ctx context.Context, p auth.RegisterParams) (*domain.User, error)
	HashPassword(password string) (string, error)
	ValidateEmail(email string) error
}

// Store is the identity store as seen by the user endpoints.
type Store interface {
	Update(ctx context.Context, id uuid.UUID, upd domain.UserUpdate) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error)
	ListTenantsOwned(ctx context.Context, userID uuid.UUID) ([]*domain.Tenant, error)
	ListTenantsMemberOf(ctx context.Context, userID uuid.UUID) ([]*domain.Tenant, error)
	ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error)
}

// Authorizer decides access to user records.
type Authorizer interface {
	AuthorizeUser(ctx context.Context, actor *domain.User, targetID uuid.UUID, rule access.Rule) (*access.Decision, error)
	RequireAdmin(actor *domain.User) error
}

// Handler handles user endpoints.
type Handler struct {
	logger     *slog.Logger
	registrar  Registrar
	store      Store
	authorizer Authorizer
}

// NewHandler creates a new users handler.
func NewHandler(logger *slog.Logger, registrar Registrar, store Store, authorizer Authorizer) *Handler {
	return &Handler{
		logger:     logger,
		registrar:  registrar,
		store:      store,
		authorizer: authorizer,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UpdateRequest represents a partial user update. Roles and is_active are
// reserved for admins.
type UpdateRequest struct {
	Name     *string           `json:"name,omitempty"`
	Email    *string           `json:"email,omitempty"`
	Password *string           `json:"password,omitempty"`
	IsActive *bool             `json:"is_active,omitempty"`
	Roles    []string          `json:"roles,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Register creates an account. It does not require authentication.
// POST /v1/users
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, h.logger, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, h.logger, domain.Invalid("email and password are required"))
		return
	}

	user, err := h.registrar.Register(r.Context(), auth.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Metadata: req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	httputil.JSON(w, http.StatusCreated, common.NewUserView(user))
}

// List returns every user to admins and only the caller to everyone else.
// GET /v1/users?is_active=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.Actor(w, r)
	if !ok {
		return
	}
	active, err := httputil.BoolQuery(r, "is_active", nil)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	if !actor.IsAdmin() {
		users := []*domain.User{}
		if active == nil || *active == actor.IsActive {
			users = append(users, actor)
		}
		httputil.JSON(w, http.StatusOK, common.UserViews(users))
		return
	}

	users, err := h.store.List(r.Context(), domain.UserFilter{Active: active})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.UserViews(users))
}

// Get returns a user.
// GET /v1/users/{userID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewUserView(d.TargetUser))
}

// Update applies a partial update.
// PATCH /v1/users/{userID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, h.logger, err)
		return
	}

	upd, err := h.buildUpdate(d.Actor, req)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	user, err := h.store.Update(r.Context(), d.TargetUser.ID, upd)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user updated", "user_id", user.ID, "actor_id", d.Actor.ID)
	httputil.JSON(w, http.StatusOK, common.NewUserView(user))
}

func (h *Handler) buildUpdate(actor *domain.User, req UpdateRequest) (domain.UserUpdate, error) {
	upd := domain.UserUpdate{
		IsActive: req.IsActive,
		Roles:    req.Roles,
		Metadata: req.Metadata,
	}
	if upd.TouchesPrivileges() {
		if err := h.authorizer.RequireAdmin(actor); err != nil {
			return upd, err
		}
	}

	if req.Name != nil {
		name := auth.SanitizeName(*req.Name)
		if err := auth.ValidateStringLength("name", name, 0, 255); err != nil {
			return upd, err
		}
		upd.Name = &name
	}
	if req.Email != nil {
		if err := h.registrar.ValidateEmail(*req.Email); err != nil {
			return upd, err
		}
		upd.Email = req.Email
	}
	if req.Password != nil {
		hash, err := h.registrar.HashPassword(*req.Password)
		if err != nil {
			return upd, err
		}
		upd.PasswordHash = &hash
	}
	return upd, nil
}

// ListTenants returns the tenants in which the user holds a seat.
// GET /v1/users/{userID}/tenants
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	tenants, err := h.store.ListTenantsMemberOf(r.Context(), d.TargetUser.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.TenantViews(tenants))
}

// ListOwnedTenants returns the tenants the user owns.
// GET /v1/users/{userID}/owned-tenants
func (h *Handler) ListOwnedTenants(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	tenants, err := h.store.ListTenantsOwned(r.Context(), d.TargetUser.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.TenantViews(tenants))
}

// ListSubscriptions returns the subscriptions the user holds a seat in.
// GET /v1/users/{userID}/subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	subs, err := h.store.ListSubscriptions(r.Context(), d.TargetUser.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.SubscriptionViews(subs))
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*access.Decision, bool) {
	actor, ok := common.Actor(w, r)
	if !ok {
		return nil, false
	}
	targetID, err := httputil.UUIDParam(r, "userID")
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	d, err := h.authorizer.AuthorizeUser(r.Context(), actor, targetID, access.SelfOrAdmin)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	return d, true
}
