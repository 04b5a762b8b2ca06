// Package directory manages tenants and answers membership questions that
// span a tenant's subscriptions.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// Repository is the tenant storage the directory needs.
type Repository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetByDomain(ctx context.Context, tenantDomain string) (*domain.Tenant, error)
	Update(ctx context.Context, tenant *domain.Tenant) error
	List(ctx context.Context, filter domain.TenantFilter) ([]*domain.Tenant, error)
}

// UserFinder resolves tenant owners.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// SubscriptionReader lists a tenant's subscriptions.
type SubscriptionReader interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Subscription, error)
}

// Directory manages tenants.
type Directory struct {
	repo  Repository
	users UserFinder
	subs  SubscriptionReader
	now   func() time.Time
}

// New creates a directory.
func New(repo Repository, users UserFinder, subs SubscriptionReader) *Directory {
	return &Directory{repo: repo, users: users, subs: subs, now: time.Now}
}

// CreateParams holds the fields of a new tenant.
type CreateParams struct {
	Name           string
	Domain         string
	OwnerID        uuid.UUID
	BillingAddress *string
	ContactEmail   *string
	Metadata       map[string]string
}

// Create registers a tenant. The owner must be an existing active user and the
// domain must not be held by any tenant, active or not.
func (d *Directory) Create(ctx context.Context, p CreateParams) (*domain.Tenant, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	if strings.TrimSpace(p.Domain) == "" {
		return nil, domain.Invalid("domain is required")
	}

	owner, err := d.users.FindByID(ctx, p.OwnerID)
	if err != nil {
		return nil, err
	}
	if !owner.IsActive {
		return nil, domain.ErrUserNotFound
	}

	if err := d.ensureDomainFree(ctx, p.Domain, uuid.Nil); err != nil {
		return nil, err
	}

	now := d.now()
	tenant := &domain.Tenant{
		ID:             uuid.New(),
		Name:           name,
		Domain:         p.Domain,
		OwnerID:        p.OwnerID,
		IsActive:       true,
		BillingAddress: p.BillingAddress,
		ContactEmail:   p.ContactEmail,
		Metadata:       p.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.repo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Update changes the provided fields. A new domain is checked against every
// other tenant.
func (d *Directory) Update(ctx context.Context, id uuid.UUID, upd domain.TenantUpdate) (*domain.Tenant, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, domain.Invalid("name must not be empty")
	}
	if upd.Domain != nil && strings.TrimSpace(*upd.Domain) == "" {
		return nil, domain.Invalid("domain must not be empty")
	}

	tenant, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Domain != nil && *upd.Domain != tenant.Domain {
		if err := d.ensureDomainFree(ctx, *upd.Domain, id); err != nil {
			return nil, err
		}
	}

	upd.Apply(tenant)
	tenant.UpdatedAt = d.now()
	if err := d.repo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Deactivate soft-deletes a tenant. Its domain stays reserved.
func (d *Directory) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	inactive := false
	return d.Update(ctx, id, domain.TenantUpdate{IsActive: &inactive})
}

func (d *Directory) ensureDomainFree(ctx context.Context, tenantDomain string, self uuid.UUID) error {
	existing, err := d.repo.GetByDomain(ctx, tenantDomain)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return domain.ErrDomainTaken
	}
	return nil
}

// FindByID returns the tenant with the given ID.
func (d *Directory) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return d.repo.GetByID(ctx, id)
}

// FindByDomain returns the tenant registered under tenantDomain.
func (d *Directory) FindByDomain(ctx context.Context, tenantDomain string) (*domain.Tenant, error) {
	return d.repo.GetByDomain(ctx, tenantDomain)
}

// ListByOwner returns the tenants owned by ownerID.
func (d *Directory) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Tenant, error) {
	return d.repo.List(ctx, domain.TenantFilter{OwnerID: &ownerID})
}

// List returns tenants matching filter.
func (d *Directory) List(ctx context.Context, filter domain.TenantFilter) ([]*domain.Tenant, error) {
	return d.repo.List(ctx, filter)
}

// SubscribedUserIDs returns the distinct members across all of the tenant's
// subscriptions, in first-seen order.
func (d *Directory) SubscribedUserIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	subs, err := d.subs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{})
	ids := []uuid.UUID{}
	for _, sub := range subs {
		for _, id := range sub.SubscribedUserIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CountSubscribedUsers returns the number of distinct members across the
// tenant's subscriptions.
func (d *Directory) CountSubscribedUsers(ctx context.Context, tenantID uuid.UUID) (int, error) {
	ids, err := d.SubscribedUserIDs(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// IsUserSubscribed reports whether any active subscription of the tenant has
// userID as a member.
func (d *Directory) IsUserSubscribed(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	subs, err := d.subs.ListByTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.IsActive && sub.HasMember(userID) {
			return true, nil
		}
	}
	return false, nil
}

// CountSubscriptions returns how many subscriptions the tenant has.
func (d *Directory) CountSubscriptions(ctx context.Context, tenantID uuid.UUID) (int, error) {
	subs, err := d.subs.ListByTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}
