package subscriptions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/internal/events"
	"github.com/tendant/seatledger/internal/http/features/common"
	"github.com/tendant/seatledger/internal/httputil"
	"github.com/tendant/seatledger/internal/metrics"
	"github.com/tendant/seatledger/pkg/access"
	"github.com/tendant/seatledger/pkg/domain"
	"github.com/tendant/seatledger/pkg/ledger"
)

// Seat operation labels.
const (
	opAdd    = "add"
	opRemove = "remove"
)

// Ledger is the subscription ledger as seen by the subscription endpoints.
type Ledger interface {
	Create(ctx context.Context, p ledger.CreateParams) (*domain.Subscription, error)
	Update(ctx context.Context, id uuid.UUID, upd domain.SubscriptionUpdate) (*domain.Subscription, error)
	AddUser(ctx context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error)
	RemoveUser(ctx context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error)
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]*domain.Subscription, error)
}

// Authorizer decides access to subscriptions and their tenants.
type Authorizer interface {
	AuthorizeTenant(ctx context.Context, actor *domain.User, tenantID uuid.UUID, rule access.Rule) (*access.Decision, error)
	AuthorizeSubscription(ctx context.Context, actor *domain.User, subscriptionID uuid.UUID, rule access.Rule) (*access.Decision, error)
	RequireAdmin(actor *domain.User) error
}

// SeatRecorder observes seat operation outcomes.
type SeatRecorder interface {
	ObserveSeat(operation, outcome string)
}

// Handler handles subscription endpoints.
type Handler struct {
	logger     *slog.Logger
	ledger     Ledger
	users      common.UserFinder
	authorizer Authorizer
	seats      SeatRecorder
	events     *common.Emitter
}

// NewHandler creates a new subscriptions handler. seats may be nil.
func NewHandler(
	logger *slog.Logger,
	l Ledger,
	users common.UserFinder,
	authorizer Authorizer,
	seats SeatRecorder,
	emitter *common.Emitter,
) *Handler {
	return &Handler{
		logger:     logger,
		ledger:     l,
		users:      users,
		authorizer: authorizer,
		seats:      seats,
		events:     emitter,
	}
}

// CreateRequest represents a subscription creation request.
type CreateRequest struct {
	TenantID        uuid.UUID         `json:"tenant_id"`
	Plan            string            `json:"plan"`
	MaxUsers        *int              `json:"max_users,omitempty"`
	BillingCycle    string            `json:"billing_cycle,omitempty"`
	PaymentMethodID *string           `json:"payment_method_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// UpdateRequest represents a partial subscription update. Membership is
// changed only through the member endpoints.
type UpdateRequest struct {
	Plan            *string           `json:"plan,omitempty"`
	IsActive        *bool             `json:"is_active,omitempty"`
	EndDate         *time.Time        `json:"end_date,omitempty"`
	RenewalDate     *time.Time        `json:"renewal_date,omitempty"`
	BillingCycle    *string           `json:"billing_cycle,omitempty"`
	MaxUsers        *int              `json:"max_users,omitempty"`
	PaymentMethodID *string           `json:"payment_method_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// AddUserRequest names the user to seat.
type AddUserRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// MemberChangeResponse reports the result of a seat operation.
type MemberChangeResponse struct {
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	UserID            uuid.UUID `json:"user_id"`
	Added             *bool     `json:"added,omitempty"`
	Removed           *bool     `json:"removed,omitempty"`
	UserCount         int       `json:"user_count"`
	MaxUsers          *int      `json:"max_users"`
	HasAvailableSeats bool      `json:"has_available_seats"`
}

// Create opens a subscription on a tenant the caller owns or administers.
// POST /v1/subscriptions
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
	if req.TenantID == uuid.Nil {
		httputil.WriteError(w, h.logger, domain.Invalid("tenant_id is required"))
		return
	}

	d, err := h.authorizer.AuthorizeTenant(r.Context(), actor, req.TenantID, access.OwnerOrAdmin)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	// A deactivation racing this request can still slip in before the insert.
	if !d.Tenant.IsActive {
		httputil.WriteError(w, h.logger, domain.ErrTenantInactive)
		return
	}

	sub, err := h.ledger.Create(r.Context(), ledger.CreateParams{
		TenantID:        d.Tenant.ID,
		Plan:            req.Plan,
		MaxUsers:        req.MaxUsers,
		BillingCycle:    strings.TrimSpace(req.BillingCycle),
		PaymentMethodID: req.PaymentMethodID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("subscription created", "subscription_id", sub.ID, "tenant_id", sub.TenantID, "actor_id", actor.ID)
	h.events.Emit(r.Context(), events.Event{
		Subject:        events.SubjectSubscriptionCreated,
		ActorID:        actor.ID,
		TenantID:       sub.TenantID,
		SubscriptionID: &sub.ID,
	})
	httputil.JSON(w, http.StatusCreated, common.NewSubscriptionView(sub))
}

// List returns subscriptions. is_active defaults to true. Filtering by
// tenant requires owner or admin rights on it; the unfiltered list is for
// admins only.
// GET /v1/subscriptions?tenant_id=&is_active=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.Actor(w, r)
	if !ok {
		return
	}
	tenantID, err := httputil.UUIDQuery(r, "tenant_id")
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	activeDefault := true
	active, err := httputil.BoolQuery(r, "is_active", &activeDefault)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	if tenantID != nil {
		_, err = h.authorizer.AuthorizeTenant(r.Context(), actor, *tenantID, access.OwnerOrAdmin)
	} else {
		err = h.authorizer.RequireAdmin(actor)
	}
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	subs, err := h.ledger.List(r.Context(), domain.SubscriptionFilter{TenantID: tenantID, Active: active})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, common.SubscriptionViews(subs))
}

// Get returns a subscription to its tenant owner, an admin or a member.
// GET /v1/subscriptions/{subscriptionID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerMemberOrAdmin)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, common.NewSubscriptionView(d.Subscription))
}

// Update applies a partial update. Lowering max_users never evicts members.
// PATCH /v1/subscriptions/{subscriptionID}
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

	sub, err := h.ledger.Update(r.Context(), d.Subscription.ID, domain.SubscriptionUpdate{
		Plan:            req.Plan,
		IsActive:        req.IsActive,
		EndDate:         req.EndDate,
		RenewalDate:     req.RenewalDate,
		BillingCycle:    req.BillingCycle,
		MaxUsers:        req.MaxUsers,
		PaymentMethodID: req.PaymentMethodID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("subscription updated", "subscription_id", sub.ID, "actor_id", d.Actor.ID)
	h.events.Emit(r.Context(), events.Event{
		Subject:        events.SubjectSubscriptionUpdated,
		ActorID:        d.Actor.ID,
		TenantID:       sub.TenantID,
		SubscriptionID: &sub.ID,
	})
	httputil.JSON(w, http.StatusOK, common.NewSubscriptionView(sub))
}

// ListUsers returns the members of a subscription.
// GET /v1/subscriptions/{subscriptionID}/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerMemberOrAdmin)
	if !ok {
		return
	}
	members, err := common.ResolveMembers(r.Context(), h.users, d.Subscription.SubscribedUserIDs)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, members)
}

// AddUser seats a user. Seating an existing member succeeds without using
// another seat.
// POST /v1/subscriptions/{subscriptionID}/users
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerOrAdmin)
	if !ok {
		return
	}

	var req AddUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, h.logger, err)
		return
	}
	if req.UserID == uuid.Nil {
		httputil.WriteError(w, h.logger, domain.Invalid("user_id is required"))
		return
	}
	if _, err := h.users.FindByID(r.Context(), req.UserID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	sub, added, err := h.ledger.AddUser(r.Context(), d.Subscription.ID, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			h.observeSeat(opAdd, metrics.OutcomeRejected)
			h.logger.Info("seat rejected", "subscription_id", d.Subscription.ID, "user_id", req.UserID)
		} else {
			h.observeSeat(opAdd, metrics.OutcomeError)
		}
		httputil.WriteError(w, h.logger, err)
		return
	}

	if added {
		h.observeSeat(opAdd, metrics.OutcomeAdded)
		h.logger.Info("seat added", "subscription_id", sub.ID, "user_id", req.UserID, "actor_id", d.Actor.ID)
		h.events.Emit(r.Context(), events.Event{
			Subject:        events.SubjectMemberAdded,
			ActorID:        d.Actor.ID,
			TenantID:       sub.TenantID,
			SubscriptionID: &sub.ID,
			UserID:         &req.UserID,
		})
	} else {
		h.observeSeat(opAdd, metrics.OutcomeExisting)
	}

	httputil.JSON(w, http.StatusOK, MemberChangeResponse{
		SubscriptionID:    sub.ID,
		UserID:            req.UserID,
		Added:             &added,
		UserCount:         sub.UserCount(),
		MaxUsers:          sub.MaxUsers,
		HasAvailableSeats: sub.HasAvailableSeats(),
	})
}

// RemoveUser releases a user's seat. Removing a non-member reports
// removed=false.
// DELETE /v1/subscriptions/{subscriptionID}/users/{userID}
func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r, access.OwnerOrAdmin)
	if !ok {
		return
	}
	userID, err := httputil.UUIDParam(r, "userID")
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	sub, removed, err := h.ledger.RemoveUser(r.Context(), d.Subscription.ID, userID)
	if err != nil {
		h.observeSeat(opRemove, metrics.OutcomeError)
		httputil.WriteError(w, h.logger, err)
		return
	}

	if removed {
		h.observeSeat(opRemove, metrics.OutcomeRemoved)
		h.logger.Info("seat released", "subscription_id", sub.ID, "user_id", userID, "actor_id", d.Actor.ID)
		h.events.Emit(r.Context(), events.Event{
			Subject:        events.SubjectMemberRemoved,
			ActorID:        d.Actor.ID,
			TenantID:       sub.TenantID,
			SubscriptionID: &sub.ID,
			UserID:         &userID,
		})
	} else {
		h.observeSeat(opRemove, metrics.OutcomeAbsent)
	}

	httputil.JSON(w, http.StatusOK, MemberChangeResponse{
		SubscriptionID:    sub.ID,
		UserID:            userID,
		Removed:           &removed,
		UserCount:         sub.UserCount(),
		MaxUsers:          sub.MaxUsers,
		HasAvailableSeats: sub.HasAvailableSeats(),
	})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, rule access.Rule) (*access.Decision, bool) {
	actor, ok := common.Actor(w, r)
	if !ok {
		return nil, false
	}
	id, err := httputil.UUIDParam(r, "subscriptionID")
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	d, err := h.authorizer.AuthorizeSubscription(r.Context(), actor, id, rule)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	return d, true
}

func (h *Handler) observeSeat(operation, outcome string) {
	if h.seats != nil {
		h.seats.ObserveSeat(operation, outcome)
	}
}
