// Package identity stores user accounts and answers which tenants and
// subscriptions a user relates to.
package identity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// Repository is the user storage the identity store needs.
type Repository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error)
}

// TenantReader looks up tenants by owner or by ID.
type TenantReader interface {
	List(ctx context.Context, filter domain.TenantFilter) ([]*domain.Tenant, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Tenant, error)
}

// MembershipReader lists the subscriptions a user is a member of.
type MembershipReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error)
}

// Store manages users.
type Store struct {
	repo        Repository
	tenants     TenantReader
	memberships MembershipReader
	now         func() time.Time
}

// New creates an identity store.
func New(repo Repository, tenants TenantReader, memberships MembershipReader) *Store {
	return &Store{repo: repo, tenants: tenants, memberships: memberships, now: time.Now}
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateParams holds the fields of a new user. PasswordHash is already hashed.
type CreateParams struct {
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	Metadata     map[string]string
}

// Create registers a new active user. Roles default to {"user"}.
func (s *Store) Create(ctx context.Context, p CreateParams) (*domain.User, error) {
	email := NormalizeEmail(p.Email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	if p.PasswordHash == "" {
		return nil, domain.Invalid("password is required")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	roles := slices.Clone(p.Roles)
	if len(roles) == 0 {
		roles = domain.DefaultRoles()
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(p.Name),
		Email:        email,
		PasswordHash: p.PasswordHash,
		IsActive:     true,
		Roles:        roles,
		Metadata:     p.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update changes the provided fields. A new email is checked against every
// other user.
func (s *Store) Update(ctx context.Context, id uuid.UUID, upd domain.UserUpdate) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if email == "" {
			return nil, domain.ErrInvalidEmail
		}
		upd.Email = &email
		if email != user.Email {
			existing, err := s.repo.GetByEmail(ctx, email)
			if err == nil && existing.ID != id {
				return nil, domain.ErrEmailTaken
			}
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
		}
	}
	if upd.Roles != nil && len(upd.Roles) == 0 {
		upd.Roles = domain.DefaultRoles()
	}

	upd.Apply(user)
	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID returns the user with the given ID.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByEmail returns the user registered under email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// List returns users matching filter.
func (s *Store) List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error) {
	return s.repo.List(ctx, filter)
}

// ListTenantsOwned returns the tenants userID owns.
func (s *Store) ListTenantsOwned(ctx context.Context, userID uuid.UUID) ([]*domain.Tenant, error) {
	return s.tenants.List(ctx, domain.TenantFilter{OwnerID: &userID})
}

// ListSubscriptions returns the subscriptions userID is a member of.
func (s *Store) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return s.memberships.ListByUser(ctx, userID)
}

// ListTenantsMemberOf returns the distinct tenants whose subscriptions include userID.
func (s *Store) ListTenantsMemberOf(ctx context.Context, userID uuid.UUID) ([]*domain.Tenant, error) {
	subs, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(subs))
	var ids []uuid.UUID
	for _, sub := range subs {
		if !seen[sub.TenantID] {
			seen[sub.TenantID] = true
			ids = append(ids, sub.TenantID)
		}
	}
	if len(ids) == 0 {
		return []*domain.Tenant{}, nil
	}
	return s.tenants.ListByIDs(ctx, ids)
}
