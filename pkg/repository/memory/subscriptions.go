package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// SubscriptionsRepository stores subscriptions in memory. Seat changes run
// under the write lock, so the capacity check and the append are one step.
type SubscriptionsRepository struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*domain.Subscription
	order []uuid.UUID
	now   func() time.Time
}

// NewSubscriptionsRepository creates an empty subscriptions repository.
func NewSubscriptionsRepository() *SubscriptionsRepository {
	return &SubscriptionsRepository{
		byID: make(map[uuid.UUID]*domain.Subscription),
		now:  time.Now,
	}
}

// Create stores a new subscription.
func (r *SubscriptionsRepository) Create(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[sub.ID] = sub.Clone()
	r.order = append(r.order, sub.ID)
	return nil
}

// GetByID retrieves a subscription by ID.
func (r *SubscriptionsRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

// Update writes every field except the member set, which keeps its stored value.
func (r *SubscriptionsRepository) Update(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[sub.ID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	updated := sub.Clone()
	updated.SubscribedUserIDs = existing.SubscribedUserIDs
	r.byID[sub.ID] = updated
	return nil
}

// List returns subscriptions matching filter in creation order.
func (r *SubscriptionsRepository) List(_ context.Context, filter domain.SubscriptionFilter) ([]*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var subs []*domain.Subscription
	for _, id := range r.order {
		if sub := r.byID[id]; filter.Matches(sub) {
			subs = append(subs, sub.Clone())
		}
	}
	return subs, nil
}

// ListByUser returns the subscriptions userID holds a seat in.
func (r *SubscriptionsRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var subs []*domain.Subscription
	for _, id := range r.order {
		if sub := r.byID[id]; sub.HasMember(userID) {
			subs = append(subs, sub.Clone())
		}
	}
	return subs, nil
}

// AddMember admits userID if it is not already a member and a seat is free.
// newSeat is false when the user already held a seat.
func (r *SubscriptionsRepository) AddMember(_ context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return nil, false, domain.ErrSubscriptionNotFound
	}
	if sub.HasMember(userID) {
		return sub.Clone(), false, nil
	}
	if !sub.HasAvailableSeats() {
		return nil, false, domain.ErrSeatLimitReached
	}
	sub.SubscribedUserIDs = append(sub.SubscribedUserIDs, userID)
	sub.UpdatedAt = r.now()
	return sub.Clone(), true, nil
}

// RemoveMember releases userID's seat. removed is false when the user was not a member.
func (r *SubscriptionsRepository) RemoveMember(_ context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return nil, false, domain.ErrSubscriptionNotFound
	}
	for i, member := range sub.SubscribedUserIDs {
		if member == userID {
			sub.SubscribedUserIDs = append(sub.SubscribedUserIDs[:i:i], sub.SubscribedUserIDs[i+1:]...)
			sub.UpdatedAt = r.now()
			return sub.Clone(), true, nil
		}
	}
	return sub.Clone(), false, nil
}
