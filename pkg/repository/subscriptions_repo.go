package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/seatledger/pkg/domain"
)

const subscriptionColumns = `id, tenant_id, plan, is_active, subscribed_user_ids, max_users, billing_cycle,
	start_date, end_date, renewal_date, payment_method_id, metadata, created_at, updated_at`

// maxSeatAttempts bounds retries when a conditional seat update loses a race
// but the re-read shows a free seat.
const maxSeatAttempts = 3

// SubscriptionsRepository handles subscription persistence. Membership is
// only changed through AddMember and RemoveMember, each a single conditional
// UPDATE so concurrent admissions cannot exceed max_users.
type SubscriptionsRepository struct {
	db *sql.DB
}

// NewSubscriptionsRepository creates a new subscriptions repository.
func NewSubscriptionsRepository(db *sql.DB) *SubscriptionsRepository {
	return &SubscriptionsRepository{db: db}
}

// Create inserts a new subscription.
func (r *SubscriptionsRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	metadata, err := marshalMetadata(sub.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO subscriptions (id, tenant_id, plan, is_active, subscribed_user_ids, max_users, billing_cycle,
			start_date, end_date, renewal_date, payment_method_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID,
		sub.TenantID,
		sub.Plan,
		sub.IsActive,
		pq.Array(uuidStrings(sub.SubscribedUserIDs)),
		sub.MaxUsers,
		sub.BillingCycle,
		sub.StartDate,
		sub.EndDate,
		sub.RenewalDate,
		sub.PaymentMethodID,
		metadata,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

// GetByID retrieves a subscription by ID.
func (r *SubscriptionsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Update writes the descriptive fields of a subscription. The member set is
// never written here.
func (r *SubscriptionsRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	metadata, err := marshalMetadata(sub.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE subscriptions
		SET plan = $2, is_active = $3, max_users = $4, billing_cycle = $5, end_date = $6,
		    renewal_date = $7, payment_method_id = $8, metadata = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.Plan,
		sub.IsActive,
		sub.MaxUsers,
		sub.BillingCycle,
		sub.EndDate,
		sub.RenewalDate,
		sub.PaymentMethodID,
		metadata,
		sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// List returns subscriptions matching the filter ordered by creation time.
func (r *SubscriptionsRepository) List(ctx context.Context, filter domain.SubscriptionFilter) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE ($1::uuid IS NULL OR tenant_id = $1)
		  AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, nullableUUID(filter.TenantID), nullableBool(filter.Active))
}

// ListByUser returns every subscription, active or not, that userID is a member of.
func (r *SubscriptionsRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE $1 = ANY(subscribed_user_ids)
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, userID)
}

// AddMember admits userID to the subscription if it is not already a member
// and a seat is free. newSeat is false when the user already held a seat.
func (r *SubscriptionsRepository) AddMember(ctx context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error) {
	query := `
		UPDATE subscriptions
		SET subscribed_user_ids = array_append(subscribed_user_ids, $2), updated_at = NOW()
		WHERE id = $1
		  AND NOT ($2 = ANY(subscribed_user_ids))
		  AND (max_users IS NULL OR cardinality(subscribed_user_ids) < max_users)
		RETURNING ` + subscriptionColumns

	for attempt := 0; attempt < maxSeatAttempts; attempt++ {
		sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, id, userID))
		if err == nil {
			return sub, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}

		// The guard rejected the update; find out which condition failed.
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if current.HasMember(userID) {
			return current, false, nil
		}
		if !current.HasAvailableSeats() {
			return nil, false, domain.ErrSeatLimitReached
		}
	}
	return nil, false, domain.ErrSeatLimitReached
}

// RemoveMember releases userID's seat. removed is false when the user was not a member.
func (r *SubscriptionsRepository) RemoveMember(ctx context.Context, id, userID uuid.UUID) (*domain.Subscription, bool, error) {
	query := `
		UPDATE subscriptions
		SET subscribed_user_ids = array_remove(subscribed_user_ids, $2), updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(subscribed_user_ids)
		RETURNING ` + subscriptionColumns

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, id, userID))
	if err == nil {
		return sub, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *SubscriptionsRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		sub      domain.Subscription
		members  pq.StringArray
		maxUsers sql.NullInt64
		metadata []byte
	)
	err := row.Scan(
		&sub.ID,
		&sub.TenantID,
		&sub.Plan,
		&sub.IsActive,
		&members,
		&maxUsers,
		&sub.BillingCycle,
		&sub.StartDate,
		&sub.EndDate,
		&sub.RenewalDate,
		&sub.PaymentMethodID,
		&metadata,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sub.SubscribedUserIDs, err = parseUUIDs(members); err != nil {
		return nil, err
	}
	if maxUsers.Valid {
		v := int(maxUsers.Int64)
		sub.MaxUsers = &v
	}
	if sub.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &sub, nil
}
