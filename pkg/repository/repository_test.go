package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/seatledger/pkg/domain"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var subscriptionColumnNames = []string{
	"id", "tenant_id", "plan", "is_active", "subscribed_user_ids", "max_users", "billing_cycle",
	"start_date", "end_date", "renewal_date", "payment_method_id", "metadata", "created_at", "updated_at",
}

func subscriptionRow(id, tenantID uuid.UUID, members string, maxUsers any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(subscriptionColumnNames).AddRow(
		id.String(), tenantID.String(), "pro", true, members, maxUsers, "monthly",
		now, nil, nil, nil, nil, now, now,
	)
}

func TestUsersRepository_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUsersRepository(db)
	id := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "is_active", "roles", "metadata", "created_at", "updated_at",
	}).AddRow(id.String(), "Ada", "ada@example.com", "hash", true, "{user,admin}", []byte(`{"team":"core"}`), now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, []string{"user", "admin"}, user.Roles)
	assert.Equal(t, "core", user.Metadata["team"])
	assert.True(t, user.IsAdmin())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUsersRepository(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepository_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUsersRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &domain.User{
		ID: uuid.New(), Name: "Ada", Email: "ada@example.com", PasswordHash: "hash",
		IsActive: true, Roles: domain.DefaultRoles(), CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepository_Update_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUsersRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.User{ID: uuid.New(), Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantsRepository_Create_DuplicateDomain(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTenantsRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenants")).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "tenants_domain_key"})

	err := repo.Create(context.Background(), &domain.Tenant{
		ID: uuid.New(), Name: "Acme", Domain: "acme.io", OwnerID: uuid.New(),
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, domain.ErrDomainTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantsRepository_List_FiltersByOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTenantsRepository(db)
	owner := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "name", "domain", "owner_id", "is_active", "billing_address", "contact_email", "metadata", "created_at", "updated_at",
	}).
		AddRow(uuid.NewString(), "Acme", "acme.io", owner.String(), true, nil, "ops@acme.io", nil, now, now).
		AddRow(uuid.NewString(), "Beta", "beta.io", owner.String(), false, "1 Main St", nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants")).
		WithArgs(owner, nil).
		WillReturnRows(rows)

	tenants, err := repo.List(context.Background(), domain.TenantFilter{OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "acme.io", tenants[0].Domain)
	require.NotNil(t, tenants[0].ContactEmail)
	assert.Equal(t, "ops@acme.io", *tenants[0].ContactEmail)
	assert.Nil(t, tenants[0].BillingAddress)
	assert.False(t, tenants[1].IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantsRepository_ListByIDs_Empty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTenantsRepository(db)

	tenants, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tenants)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionsRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSubscriptionsRepository(db)
	id, tenantID, member := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(subscriptionRow(id, tenantID, "{"+member.String()+"}", int64(5)))

	sub, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, tenantID, sub.TenantID)
	assert.Equal(t, []uuid.UUID{member}, sub.SubscribedUserIDs)
	require.NotNil(t, sub.MaxUsers)
	assert.Equal(t, 5, *sub.MaxUsers)
	assert.Nil(t, sub.EndDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionsRepository_AddMember(t *testing.T) {
	id, tenantID, user := uuid.New(), uuid.New(), uuid.New()
	other := uuid.New()

	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		wantSeat  bool
		wantErr   error
		wantCount int
	}{
		{
			name: "admits into free seat",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions")).
					WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(subscriptionRow(id, tenantID, "{"+user.String()+"}", int64(2)))
			},
			wantSeat:  true,
			wantCount: 1,
		},
		{
			name: "existing member is idempotent",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions")).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1")).
					WillReturnRows(subscriptionRow(id, tenantID, "{"+user.String()+"}", int64(1)))
			},
			wantSeat:  false,
			wantCount: 1,
		},
		{
			name: "full subscription rejects",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions")).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1")).
					WillReturnRows(subscriptionRow(id, tenantID, "{"+other.String()+"}", int64(1)))
			},
			wantErr: domain.ErrCapacityExceeded,
		},
		{
			name: "missing subscription",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions")).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1")).
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrSubscriptionNotFound,
		},
		{
			name: "lost race retries",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions")).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1")).
					WillReturnRows(subscriptionRow(id, tenantID, "{}", int64(2)))
				mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions")).
					WillReturnRows(subscriptionRow(id, tenantID, "{"+user.String()+"}", int64(2)))
			},
			wantSeat:  true,
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewSubscriptionsRepository(db)
			tt.setup(mock)

			sub, newSeat, err := repo.AddMember(context.Background(), id, user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, sub)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantSeat, newSeat)
				assert.Equal(t, tt.wantCount, sub.UserCount())
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSubscriptionsRepository_RemoveMember(t *testing.T) {
	id, tenantID, user := uuid.New(), uuid.New(), uuid.New()

	t.Run("removes member", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSubscriptionsRepository(db)
		mock.ExpectQuery(regexp.QuoteMeta("array_remove")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(subscriptionRow(id, tenantID, "{}", nil))

		sub, removed, err := repo.RemoveMember(context.Background(), id, user)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, 0, sub.UserCount())
		assert.Nil(t, sub.MaxUsers)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-member is not an error", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSubscriptionsRepository(db)
		mock.ExpectQuery(regexp.QuoteMeta("array_remove")).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE id = $1")).
			WillReturnRows(subscriptionRow(id, tenantID, "{}", nil))

		sub, removed, err := repo.RemoveMember(context.Background(), id, user)
		require.NoError(t, err)
		assert.False(t, removed)
		assert.NotNil(t, sub)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubscriptionsRepository_Update_DoesNotTouchMembers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSubscriptionsRepository(db)

	mock.ExpectExec(`UPDATE subscriptions\s+SET plan = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &domain.Subscription{ID: uuid.New(), Plan: "enterprise"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "app", Password: "secret", DBName: "seats", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=seats sslmode=disable", cfg.DSN())
}
