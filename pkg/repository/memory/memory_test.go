package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

func newSub(maxUsers *int) *domain.Subscription {
	now := time.Now()
	return &domain.Subscription{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Plan:         "pro",
		IsActive:     true,
		MaxUsers:     maxUsers,
		BillingCycle: domain.DefaultBillingCycle,
		StartDate:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func intPtr(v int) *int { return &v }

func TestUsersRepository_EmailUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepository()

	a := &domain.User{ID: uuid.New(), Email: "a@example.com", IsActive: true}
	b := &domain.User{ID: uuid.New(), Email: "b@example.com", IsActive: false}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create(a) error = %v", err)
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create(b) error = %v", err)
	}
	dup := &domain.User{ID: uuid.New(), Email: "a@example.com"}
	if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("Create(dup) error = %v, want ErrEmailTaken", err)
	}

	b.Email = "a@example.com"
	if err := repo.Update(ctx, b); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("Update to taken email error = %v, want ErrEmailTaken", err)
	}

	b.Email = "c@example.com"
	if err := repo.Update(ctx, b); err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "b@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("old email still resolves: %v", err)
	}
	got, err := repo.GetByEmail(ctx, "c@example.com")
	if err != nil || got.ID != b.ID {
		t.Errorf("GetByEmail(new) = %v, %v", got, err)
	}

	active := true
	users, _ := repo.List(ctx, domain.UserFilter{Active: &active})
	if len(users) != 1 || users[0].ID != a.ID {
		t.Errorf("List(active) = %d users, want only a", len(users))
	}
}

func TestUsersRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewUsersRepository()
	u := &domain.User{ID: uuid.New(), Email: "a@example.com", Roles: []string{"user"}}
	_ = repo.Create(ctx, u)

	got, _ := repo.GetByID(ctx, u.ID)
	got.Roles[0] = "admin"

	again, _ := repo.GetByID(ctx, u.ID)
	if again.IsAdmin() {
		t.Error("mutating a returned user changed stored state")
	}
}

func TestTenantsRepository_DomainUniquenessAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewTenantsRepository()
	owner := uuid.New()

	t1 := &domain.Tenant{ID: uuid.New(), Domain: "acme.io", OwnerID: owner, IsActive: true}
	t2 := &domain.Tenant{ID: uuid.New(), Domain: "beta.io", OwnerID: uuid.New(), IsActive: true}
	_ = repo.Create(ctx, t1)
	_ = repo.Create(ctx, t2)

	if err := repo.Create(ctx, &domain.Tenant{ID: uuid.New(), Domain: "acme.io"}); !errors.Is(err, domain.ErrDomainTaken) {
		t.Errorf("duplicate domain error = %v", err)
	}
	// Domains are case-sensitive.
	if err := repo.Create(ctx, &domain.Tenant{ID: uuid.New(), Domain: "ACME.io"}); err != nil {
		t.Errorf("case-variant domain error = %v", err)
	}

	owned, _ := repo.List(ctx, domain.TenantFilter{OwnerID: &owner})
	if len(owned) != 1 || owned[0].ID != t1.ID {
		t.Errorf("List(owner) = %d tenants", len(owned))
	}

	byIDs, _ := repo.ListByIDs(ctx, []uuid.UUID{t2.ID, uuid.New()})
	if len(byIDs) != 1 || byIDs[0].ID != t2.ID {
		t.Errorf("ListByIDs = %d tenants", len(byIDs))
	}
}

func TestSubscriptionsRepository_AddRemove(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionsRepository()
	sub := newSub(intPtr(1))
	_ = repo.Create(ctx, sub)
	u1, u2 := uuid.New(), uuid.New()

	got, added, err := repo.AddMember(ctx, sub.ID, u1)
	if err != nil || !added || got.UserCount() != 1 {
		t.Fatalf("AddMember(u1) = %v, %v, %v", got, added, err)
	}

	got, added, err = repo.AddMember(ctx, sub.ID, u1)
	if err != nil || added || got.UserCount() != 1 {
		t.Errorf("re-adding member = %v, %v, %v; want idempotent success", got, added, err)
	}

	if _, _, err := repo.AddMember(ctx, sub.ID, u2); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("AddMember(full) error = %v, want ErrCapacityExceeded", err)
	}

	got, removed, err := repo.RemoveMember(ctx, sub.ID, u2)
	if err != nil || removed || got.UserCount() != 1 {
		t.Errorf("RemoveMember(non-member) = %v, %v", removed, err)
	}

	got, removed, err = repo.RemoveMember(ctx, sub.ID, u1)
	if err != nil || !removed || got.UserCount() != 0 {
		t.Errorf("RemoveMember(u1) = %v, %v", removed, err)
	}

	if _, _, err := repo.AddMember(ctx, uuid.New(), u1); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Errorf("AddMember(unknown) error = %v", err)
	}
}

func TestSubscriptionsRepository_UpdateKeepsMembers(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionsRepository()
	sub := newSub(nil)
	_ = repo.Create(ctx, sub)
	member := uuid.New()
	_, _, _ = repo.AddMember(ctx, sub.ID, member)

	stale := sub.Clone()
	stale.Plan = "enterprise"
	stale.SubscribedUserIDs = nil
	if err := repo.Update(ctx, stale); err != nil {
		t.Fatalf("Update error = %v", err)
	}

	got, _ := repo.GetByID(ctx, sub.ID)
	if got.Plan != "enterprise" || !got.HasMember(member) {
		t.Errorf("Update lost members or plan: plan=%s members=%v", got.Plan, got.SubscribedUserIDs)
	}
}

func TestSubscriptionsRepository_ConcurrentAdmissionsRespectLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionsRepository()
	sub := newSub(intPtr(5))
	_ = repo.Create(ctx, sub)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, added, err := repo.AddMember(ctx, sub.ID, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && added:
				admitted++
			case errors.Is(err, domain.ErrCapacityExceeded):
				rejected++
			}
		}()
	}
	wg.Wait()

	if admitted != 5 || rejected != 45 {
		t.Errorf("admitted=%d rejected=%d, want 5/45", admitted, rejected)
	}
	got, _ := repo.GetByID(ctx, sub.ID)
	if got.UserCount() != 5 {
		t.Errorf("UserCount = %d, want 5", got.UserCount())
	}
}

func TestSubscriptionsRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionsRepository()
	a, b := newSub(nil), newSub(nil)
	b.IsActive = false
	_ = repo.Create(ctx, a)
	_ = repo.Create(ctx, b)
	user := uuid.New()
	_, _, _ = repo.AddMember(ctx, a.ID, user)
	_, _, _ = repo.AddMember(ctx, b.ID, user)

	subs, _ := repo.ListByUser(ctx, user)
	if len(subs) != 2 {
		t.Errorf("ListByUser = %d, want 2 including inactive", len(subs))
	}

	active := true
	filtered, _ := repo.List(ctx, domain.SubscriptionFilter{TenantID: &a.TenantID, Active: &active})
	if len(filtered) != 1 || filtered[0].ID != a.ID {
		t.Errorf("List(filter) = %d", len(filtered))
	}
}
