package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultBillingCycle is used when a subscription is created without one.
const DefaultBillingCycle = "monthly"

// Subscription is a seat-limited grant binding a tenant to a set of member users.
// SubscribedUserIDs has set semantics: order is irrelevant and there are no duplicates.
type Subscription struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Plan              string
	IsActive          bool
	SubscribedUserIDs []uuid.UUID
	MaxUsers          *int // nil means unlimited
	BillingCycle      string
	StartDate         time.Time
	EndDate           *time.Time
	RenewalDate       *time.Time
	PaymentMethodID   *string
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasMember reports whether userID holds a seat.
func (s *Subscription) HasMember(userID uuid.UUID) bool {
	return slices.Contains(s.SubscribedUserIDs, userID)
}

// UserCount returns the number of occupied seats.
func (s *Subscription) UserCount() int {
	return len(s.SubscribedUserIDs)
}

// HasAvailableSeats reports whether another member can be admitted.
func (s *Subscription) HasAvailableSeats() bool {
	return s.MaxUsers == nil || len(s.SubscribedUserIDs) < *s.MaxUsers
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Subscription) Clone() *Subscription {
	c := *s
	c.SubscribedUserIDs = slices.Clone(s.SubscribedUserIDs)
	if s.MaxUsers != nil {
		v := *s.MaxUsers
		c.MaxUsers = &v
	}
	c.Metadata = maps.Clone(s.Metadata)
	return &c
}

// SubscriptionUpdate holds the fields of a partial subscription update.
// Membership is deliberately absent: seats change only through the ledger.
type SubscriptionUpdate struct {
	Plan            *string
	IsActive        *bool
	EndDate         *time.Time
	RenewalDate     *time.Time
	BillingCycle    *string
	MaxUsers        *int
	PaymentMethodID *string
	Metadata        map[string]string
}

// Apply copies the provided fields onto s.
func (p SubscriptionUpdate) Apply(s *Subscription) {
	if p.Plan != nil {
		s.Plan = *p.Plan
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	if p.EndDate != nil {
		s.EndDate = p.EndDate
	}
	if p.RenewalDate != nil {
		s.RenewalDate = p.RenewalDate
	}
	if p.BillingCycle != nil {
		s.BillingCycle = *p.BillingCycle
	}
	if p.MaxUsers != nil {
		v := *p.MaxUsers
		s.MaxUsers = &v
	}
	if p.PaymentMethodID != nil {
		s.PaymentMethodID = p.PaymentMethodID
	}
	if p.Metadata != nil {
		s.Metadata = p.Metadata
	}
}

// SubscriptionFilter narrows subscription listings.
type SubscriptionFilter struct {
	TenantID *uuid.UUID
	Active   *bool
}

// Matches reports whether s passes the filter.
func (f SubscriptionFilter) Matches(s *Subscription) bool {
	if f.TenantID != nil && s.TenantID != *f.TenantID {
		return false
	}
	if f.Active != nil && s.IsActive != *f.Active {
		return false
	}
	return true
}
