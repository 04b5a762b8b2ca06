// Package memory provides in-process repositories with the same method sets
// as the Postgres repositories. They back tests and the database-less mode.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// UsersRepository stores users in memory.
type UsersRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.User
	byEmail map[string]uuid.UUID
	order   []uuid.UUID
}

// NewUsersRepository creates an empty users repository.
func NewUsersRepository() *UsersRepository {
	return &UsersRepository{
		byID:    make(map[uuid.UUID]*domain.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

// Create stores a new user. A taken email returns ErrEmailTaken.
func (r *UsersRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	r.order = append(r.order, user.ID)
	return nil
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UsersRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.byID[id]), nil
}

// Update replaces a stored user, moving its email index entry when the email changes.
func (r *UsersRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if existing.Email != user.Email {
		if owner, taken := r.byEmail[user.Email]; taken && owner != user.ID {
			return domain.ErrEmailTaken
		}
		delete(r.byEmail, existing.Email)
		r.byEmail[user.Email] = user.ID
	}
	r.byID[user.ID] = cloneUser(user)
	return nil
}

// List returns users in creation order.
func (r *UsersRepository) List(_ context.Context, filter domain.UserFilter) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []*domain.User
	for _, id := range r.order {
		user := r.byID[id]
		if filter.Active != nil && user.IsActive != *filter.Active {
			continue
		}
		users = append(users, cloneUser(user))
	}
	return users, nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	c.Metadata = maps.Clone(u.Metadata)
	return &c
}
