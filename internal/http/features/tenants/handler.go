package tenants

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/internal/events"
	"github.com/tendant/seatledger/internal/http/features/common"
	"github.com/tendant/seatledger/internal/httputil"
	"github.com/tendant/seatledger/pkg/access"
	"github.com/tendant/seatledger/pkg/auth"
	"github.com/tendant/seatledger/pkg/directory"
	"github.com/tendant/seatledger/pkg/domain"
)

// Directory is the tenant directory as seen by the tenant endpoints.
type Directory interface {
	Create(ctx context.Context, p directory.CreateParams) (*domain.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, upd domain.TenantUpdate) (*domain.Tenant, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	List(ctx context.Context, filter domain.TenantFilter) ([]*domain.Tenant, error)
	SubscribedUserIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	CountSubscriptions(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// SubscriptionLister lists a tenant's subscriptions.
type SubscriptionLister interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Subscription, error)
}

// Authorizer decides access to tenants.
type Authorizer interface {
	AuthorizeTenant(ctx context.Context, actor *domain.User, tenantID uuid.UUID, rule access.Rule) (*access.Decision, error)
	AuthorizeTenantCreate(actor *domain.User, ownerID uuid.UUID) (*access.Decision, error)
}

// Handler handles tenant endpoints.
type Handler struct {
	logger        *slog.Logger
	directory     Directory
	subscriptions SubscriptionLister
	users         common.UserFinder
	authorizer    Authorizer
	events        *common.Emitter
}

// NewHandler creates a new tenants handler.
func NewHandler(
	logger *slog.Logger,
	dir Directory,
	subscriptions SubscriptionLister,
	users common.UserFinder,
	authorizer Authorizer,
	emitter *common.Emitter,
) *Handler {
	return &Handler{
		logger:        logger,
		directory:     dir,
		subscriptions: subscriptions,
		users:         users,
		authorizer:    authorizer,
		events:        emitter,
	}
}

// CreateRequest represents a tenant creation request. OwnerID defaults to
// the caller.
type CreateRequest struct {
	Name           string            `json:"name"`
	Domain         string            `json:"domain"`
	OwnerID        *uuid.UUID        `json:"owner_id,omitempty"`
	BillingAddress *string           `json:"billing_address,omitempty"`
	ContactEmail   *string           `json:"contact_email,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// UpdateRequest represents a partial tenant update.
type UpdateRequest struct {
	Name           *string           `json:"name,omitempty"`
	Domain         *string           `json:"domain,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
	BillingAddress *string           `json:"billing_address,omitempty"`
	ContactEmail   *string           `json:"contact_email,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Create registers a tenant. Only the prospective owner or an admin may do so.
// POST /v1/tenants
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.Actor(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, h.logger, err)
		return
	}
	ownerID := actor.ID
	if req.OwnerID != nil {
		ownerID = *req.OwnerID
	}
	if _, err := h.authorizer.AuthorizeTenantCreate(actor, ownerID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	if err := checkContactEmail(req.ContactEmail); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	tenant, err := h.directory.Create(r.Context(), directory.CreateParams{
		Name:           auth.SanitizeName(req.Name),
		Domain:         strings.TrimSpace(req.Domain),
		OwnerID:        ownerID,
		BillingAddress: req.BillingAddress,
		ContactEmail:   req.ContactEmail,
		Metadata:       req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("tenant created", "tenant_id", tenant.ID, "owner_id", tenant.OwnerID, "actor_id", actor.ID)
	h.events.Emit(r.Context(), events.Event{Subject: events.SubjectTenantCreated, ActorID: actor.ID, TenantID: tenant.ID})
	httputil.JSON(w, http.StatusCreated, common.NewTenantView(tenant))
}

// List returns tenants, optionally filtered by owner and activity.
// GET /v1/tenants?owner_id=&is_active=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := common.Actor(w, r); !ok {
		return
	}
	ownerID, err := httputil.UUIDQuery(r, "owner_id")
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	active, err := httputil.BoolQuery(r, "is_active", nil)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	tenants, err := h.directory.List(r.Context(), domain.TenantFilter{OwnerID: ownerID, Active: active})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.TenantViews(tenants))
}

// Get returns a tenant with its subscription count. Any authenticated caller
// may read it.
// GET /v1/tenants/{tenantID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := common.Actor(w, r); !ok {
		return
	}
	id, err := httputil.UUIDParam(r, "tenantID")
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	tenant, err := h.directory.FindByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	count, err := h.directory.CountSubscriptions(r.Context(), tenant.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	view := common.NewTenantView(tenant)
	view.SubscriptionCount = &count
	httputil.JSON(w, http.StatusOK, view)
}

// Update applies a partial update.
// PATCH /v1/tenants/{tenantID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerOrAdmin)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, h.logger, err)
		return
	}
	if err := checkContactEmail(req.ContactEmail); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	if req.Name != nil {
		name := auth.SanitizeName(*req.Name)
		req.Name = &name
	}
	if req.Domain != nil {
		dom := strings.TrimSpace(*req.Domain)
		req.Domain = &dom
	}

	tenant, err := h.directory.Update(r.Context(), d.Tenant.ID, domain.TenantUpdate{
		Name:           req.Name,
		Domain:         req.Domain,
		IsActive:       req.IsActive,
		BillingAddress: req.BillingAddress,
		ContactEmail:   req.ContactEmail,
		Metadata:       req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("tenant updated", "tenant_id", tenant.ID, "actor_id", d.Actor.ID)
	h.events.Emit(r.Context(), events.Event{Subject: events.SubjectTenantUpdated, ActorID: d.Actor.ID, TenantID: tenant.ID})
	httputil.JSON(w, http.StatusOK, common.NewTenantView(tenant))
}

// Delete deactivates a tenant. The record and its domain are kept.
// DELETE /v1/tenants/{tenantID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerOrAdmin)
	if !ok {
		return
	}

	tenant, err := h.directory.Deactivate(r.Context(), d.Tenant.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("tenant deactivated", "tenant_id", tenant.ID, "actor_id", d.Actor.ID)
	h.events.Emit(r.Context(), events.Event{Subject: events.SubjectTenantDeactivated, ActorID: d.Actor.ID, TenantID: tenant.ID})
	httputil.JSON(w, http.StatusOK, common.NewTenantView(tenant))
}

// ListSubscriptions returns every subscription of the tenant.
// GET /v1/tenants/{tenantID}/subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerOrAdmin)
	if !ok {
		return
	}
	subs, err := h.subscriptions.ListByTenant(r.Context(), d.Tenant.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.SubscriptionViews(subs))
}

// ListUsers returns the distinct users holding a seat in any of the
// tenant's subscriptions.
// GET /v1/tenants/{tenantID}/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerOrAdmin)
	if !ok {
		return
	}
	ids, err := h.directory.SubscribedUserIDs(r.Context(), d.Tenant.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	members, err := common.ResolveMembers(r.Context(), h.users, ids)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, members)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, rule access.Rule) (*access.Decision, bool) {
	actor, ok := common.Actor(w, r)
	if !ok {
		return nil, false
	}
	id, err := httputil.UUIDParam(r, "tenantID")
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	d, err := h.authorizer.AuthorizeTenant(r.Context(), actor, id, rule)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	return d, true
}

func checkContactEmail(email *string) error {
	if email == nil || *email == "" {
		return nil
	}
	if err := auth.ValidateEmail(*email, auth.EmailRules{}); err != nil {
		return domain.Invalid("contact_email is not a valid address")
	}
	return nil
}
