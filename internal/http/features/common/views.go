// Package common holds the JSON views and request helpers shared by the
// feature handlers.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// UserView is the public representation of a user. The password hash is
// never included.
type UserView struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	IsActive  bool              `json:"is_active"`
	Roles     []string          `json:"roles"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewUserView converts a user.
func NewUserView(u *domain.User) UserView {
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsActive:  u.IsActive,
		Roles:     u.Roles,
		Metadata:  u.Metadata,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// MemberView is the short user form used in member listings.
type MemberView struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	IsActive bool      `json:"is_active"`
}

// NewMemberView converts a user.
func NewMemberView(u *domain.User) MemberView {
	return MemberView{ID: u.ID, Name: u.Name, Email: u.Email, IsActive: u.IsActive}
}

// TenantView is the public representation of a tenant.
type TenantView struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Domain            string            `json:"domain"`
	OwnerID           uuid.UUID         `json:"owner_id"`
	IsActive          bool              `json:"is_active"`
	BillingAddress    *string           `json:"billing_address,omitempty"`
	ContactEmail      *string           `json:"contact_email,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	SubscriptionCount *int              `json:"subscription_count,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewTenantView converts a tenant.
func NewTenantView(t *domain.Tenant) TenantView {
	return TenantView{
		ID:             t.ID,
		Name:           t.Name,
		Domain:         t.Domain,
		OwnerID:        t.OwnerID,
		IsActive:       t.IsActive,
		BillingAddress: t.BillingAddress,
		ContactEmail:   t.ContactEmail,
		Metadata:       t.Metadata,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// SubscriptionView is the public representation of a subscription, with the
// seat figures derived from its member set.
type SubscriptionView struct {
	ID                uuid.UUID         `json:"id"`
	TenantID          uuid.UUID         `json:"tenant_id"`
	Plan              string            `json:"plan"`
	IsActive          bool              `json:"is_active"`
	SubscribedUserIDs []uuid.UUID       `json:"subscribed_user_ids"`
	UserCount         int               `json:"user_count"`
	MaxUsers          *int              `json:"max_users"`
	HasAvailableSeats bool              `json:"has_available_seats"`
	BillingCycle      string            `json:"billing_cycle"`
	StartDate         time.Time         `json:"start_date"`
	EndDate           *time.Time        `json:"end_date,omitempty"`
	RenewalDate       *time.Time        `json:"renewal_date,omitempty"`
	PaymentMethodID   *string           `json:"payment_method_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewSubscriptionView converts a subscription.
func NewSubscriptionView(s *domain.Subscription) SubscriptionView {
	members := s.SubscribedUserIDs
	if members == nil {
		members = []uuid.UUID{}
	}
	return SubscriptionView{
		ID:                s.ID,
		TenantID:          s.TenantID,
		Plan:              s.Plan,
		IsActive:          s.IsActive,
		SubscribedUserIDs: members,
		UserCount:         s.UserCount(),
		MaxUsers:          s.MaxUsers,
		HasAvailableSeats: s.HasAvailableSeats(),
		BillingCycle:      s.BillingCycle,
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		RenewalDate:       s.RenewalDate,
		PaymentMethodID:   s.PaymentMethodID,
		Metadata:          s.Metadata,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// UserViews converts a slice, never returning nil.
func UserViews(users []*domain.User) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserView(u))
	}
	return out
}

// TenantViews converts a slice, never returning nil.
func TenantViews(tenants []*domain.Tenant) []TenantView {
	out := make([]TenantView, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, NewTenantView(t))
	}
	return out
}

// SubscriptionViews converts a slice, never returning nil.
func SubscriptionViews(subs []*domain.Subscription) []SubscriptionView {
	out := make([]SubscriptionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, NewSubscriptionView(s))
	}
	return out
}

// UserFinder resolves user IDs.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// ResolveMembers loads each user in ids order, skipping IDs that no longer
// resolve.
func ResolveMembers(ctx context.Context, users UserFinder, ids []uuid.UUID) ([]MemberView, error) {
	out := make([]MemberView, 0, len(ids))
	for _, id := range ids {
		u, err := users.FindByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, NewMemberView(u))
	}
	return out, nil
}
