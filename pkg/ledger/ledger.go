// Package ledger owns subscriptions and their seat accounting. It performs no
// authorization; callers run the access evaluator first.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// Repository is the storage the ledger needs. AddMember and RemoveMember must
// apply the membership change and its capacity check as one atomic step.
type Repository interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	Update(ctx context.Context, sub *domain.Subscription) error
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]*domain.Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error)
	AddMember(ctx context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error)
	RemoveMember(ctx context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error)
}

// Ledger manages subscriptions.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// New creates a ledger backed by repo.
func New(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// CreateParams holds the fields of a new subscription.
type CreateParams struct {
	TenantID        uuid.UUID
	Plan            string
	MaxUsers        *int
	BillingCycle    string
	PaymentMethodID *string
	Metadata        map[string]string
}

// Create opens a new active subscription with no members. The tenant is
// assumed to exist; the caller has already resolved it.
func (l *Ledger) Create(ctx context.Context, p CreateParams) (*domain.Subscription, error) {
	plan := strings.TrimSpace(p.Plan)
	if plan == "" {
		return nil, domain.Invalid("plan is required")
	}
	if p.MaxUsers != nil && *p.MaxUsers < 0 {
		return nil, domain.ErrInvalidMaxUsers
	}
	cycle := p.BillingCycle
	if cycle == "" {
		cycle = domain.DefaultBillingCycle
	}

	now := l.now()
	sub := &domain.Subscription{
		ID:                uuid.New(),
		TenantID:          p.TenantID,
		Plan:              plan,
		IsActive:          true,
		SubscribedUserIDs: []uuid.UUID{},
		MaxUsers:          p.MaxUsers,
		BillingCycle:      cycle,
		StartDate:         now,
		PaymentMethodID:   p.PaymentMethodID,
		Metadata:          p.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Update changes the provided descriptive fields. Lowering MaxUsers below the
// current member count is allowed; existing members keep their seats.
func (l *Ledger) Update(ctx context.Context, id uuid.UUID, upd domain.SubscriptionUpdate) (*domain.Subscription, error) {
	if upd.Plan != nil && strings.TrimSpace(*upd.Plan) == "" {
		return nil, domain.Invalid("plan must not be empty")
	}
	if upd.MaxUsers != nil && *upd.MaxUsers < 0 {
		return nil, domain.ErrInvalidMaxUsers
	}

	sub, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(sub)
	sub.UpdatedAt = l.now()
	if err := l.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// AddUser gives userID a seat. It is idempotent: if the user already holds a
// seat the subscription is returned unchanged with newSeat=false, even when
// the subscription is full.
func (l *Ledger) AddUser(ctx context.Context, id, userID uuid.UUID) (sub *domain.Subscription, newSeat bool, err error) {
	return l.repo.AddMember(ctx, id, userID)
}

// RemoveUser releases userID's seat. removed is false, with a nil error, when
// the user was not a member.
func (l *Ledger) RemoveUser(ctx context.Context, id, userID uuid.UUID) (sub *domain.Subscription, removed bool, err error) {
	return l.repo.RemoveMember(ctx, id, userID)
}

// HasAvailableSeats reports whether sub can admit another member.
func HasAvailableSeats(sub *domain.Subscription) bool {
	return sub.HasAvailableSeats()
}

// FindByID returns the subscription with the given ID.
func (l *Ledger) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return l.repo.GetByID(ctx, id)
}

// ListByTenant returns all subscriptions of a tenant, active or not.
func (l *Ledger) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Subscription, error) {
	return l.repo.List(ctx, domain.SubscriptionFilter{TenantID: &tenantID})
}

// ListByUser returns the subscriptions userID is a member of.
func (l *Ledger) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return l.repo.ListByUser(ctx, userID)
}

// List returns subscriptions matching filter.
func (l *Ledger) List(ctx context.Context, filter domain.SubscriptionFilter) ([]*domain.Subscription, error) {
	return l.repo.List(ctx, filter)
}
