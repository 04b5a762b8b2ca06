package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// TenantsRepository stores tenants in memory.
type TenantsRepository struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*domain.Tenant
	byDomain map[string]uuid.UUID
	order    []uuid.UUID
}

// NewTenantsRepository creates an empty tenants repository.
func NewTenantsRepository() *TenantsRepository {
	return &TenantsRepository{
		byID:     make(map[uuid.UUID]*domain.Tenant),
		byDomain: make(map[string]uuid.UUID),
	}
}

// Create stores a new tenant. A registered domain returns ErrDomainTaken.
func (r *TenantsRepository) Create(_ context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byDomain[tenant.Domain]; ok {
		return domain.ErrDomainTaken
	}
	r.byID[tenant.ID] = cloneTenant(tenant)
	r.byDomain[tenant.Domain] = tenant.ID
	r.order = append(r.order, tenant.ID)
	return nil
}

// GetByID retrieves a tenant by ID.
func (r *TenantsRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenant, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return cloneTenant(tenant), nil
}

// GetByDomain retrieves a tenant by domain, active or not.
func (r *TenantsRepository) GetByDomain(_ context.Context, tenantDomain string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byDomain[tenantDomain]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return cloneTenant(r.byID[id]), nil
}

// Update replaces a stored tenant, moving its domain index entry when the domain changes.
func (r *TenantsRepository) Update(_ context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[tenant.ID]
	if !ok {
		return domain.ErrTenantNotFound
	}
	if existing.Domain != tenant.Domain {
		if owner, taken := r.byDomain[tenant.Domain]; taken && owner != tenant.ID {
			return domain.ErrDomainTaken
		}
		delete(r.byDomain, existing.Domain)
		r.byDomain[tenant.Domain] = tenant.ID
	}
	r.byID[tenant.ID] = cloneTenant(tenant)
	return nil
}

// List returns tenants matching filter in creation order.
func (r *TenantsRepository) List(_ context.Context, filter domain.TenantFilter) ([]*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tenants []*domain.Tenant
	for _, id := range r.order {
		if tenant := r.byID[id]; filter.Matches(tenant) {
			tenants = append(tenants, cloneTenant(tenant))
		}
	}
	return tenants, nil
}

// ListByIDs returns the tenants among ids that exist. Unknown ids are skipped.
func (r *TenantsRepository) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var tenants []*domain.Tenant
	for _, id := range r.order {
		if wanted[id] {
			tenants = append(tenants, cloneTenant(r.byID[id]))
		}
	}
	return tenants, nil
}

func cloneTenant(t *domain.Tenant) *domain.Tenant {
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	return &c
}
