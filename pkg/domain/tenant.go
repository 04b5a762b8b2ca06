package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an organization. Domain is globally unique and compared
// case-sensitively; OwnerID references the single owning user.
type Tenant struct {
	ID             uuid.UUID
	Name           string
	Domain         string
	OwnerID        uuid.UUID
	IsActive       bool
	BillingAddress *string
	ContactEmail   *string
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOwnedBy reports whether userID is the tenant owner.
func (t *Tenant) IsOwnedBy(userID uuid.UUID) bool {
	return t.OwnerID == userID
}

// TenantUpdate holds the fields of a partial tenant update.
type TenantUpdate struct {
	Name           *string
	Domain         *string
	IsActive       *bool
	BillingAddress *string
	ContactEmail   *string
	Metadata       map[string]string
}

// Apply copies the provided fields onto t.
func (p TenantUpdate) Apply(t *Tenant) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Domain != nil {
		t.Domain = *p.Domain
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if p.BillingAddress != nil {
		t.BillingAddress = p.BillingAddress
	}
	if p.ContactEmail != nil {
		t.ContactEmail = p.ContactEmail
	}
	if p.Metadata != nil {
		t.Metadata = p.Metadata
	}
}

// TenantFilter narrows tenant listings.
type TenantFilter struct {
	OwnerID *uuid.UUID
	Active  *bool
}

// Matches reports whether t passes the filter.
func (f TenantFilter) Matches(t *Tenant) bool {
	if f.OwnerID != nil && t.OwnerID != *f.OwnerID {
		return false
	}
	if f.Active != nil && t.IsActive != *f.Active {
		return false
	}
	return true
}
