// Package access is the single authorization decision point. It resolves the
// target resource, then applies ownership, admin and membership rules in a
// fixed precedence. It never mutates state.
package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/seatledger/pkg/domain"
)

// Rule is the class of check a gated operation requires.
type Rule int

const (
	// SelfOnly permits only the user the record belongs to.
	SelfOnly Rule = iota
	// SelfOrAdmin permits the user themself or a global admin.
	SelfOrAdmin
	// OwnerOnly permits only the tenant owner.
	OwnerOnly
	// OwnerOrAdmin permits the tenant owner or a global admin.
	OwnerOrAdmin
	// OwnerMemberOrAdmin additionally permits subscription members. It is
	// only used for reads.
	OwnerMemberOrAdmin
)

func (r Rule) String() string {
	switch r {
	case SelfOnly:
		return "self_only"
	case SelfOrAdmin:
		return "self_or_admin"
	case OwnerOnly:
		return "owner_only"
	case OwnerOrAdmin:
		return "owner_or_admin"
	case OwnerMemberOrAdmin:
		return "owner_member_or_admin"
	}
	return "unknown"
}

// Grant names the fact that permitted a decision.
type Grant string

const (
	GrantSelf   Grant = "self"
	GrantOwner  Grant = "owner"
	GrantAdmin  Grant = "admin"
	GrantMember Grant = "member"
)

// Decision is a permitted authorization with the resources it resolved.
type Decision struct {
	Actor        *domain.User
	TargetUser   *domain.User
	Tenant       *domain.Tenant
	Subscription *domain.Subscription
	Granted      Grant
}

// UserFinder resolves users.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// TenantFinder resolves tenants.
type TenantFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
}

// SubscriptionFinder resolves subscriptions.
type SubscriptionFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
}

// MembershipChecker reports whether a user holds a seat in any active
// subscription of a tenant.
type MembershipChecker interface {
	IsUserSubscribed(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)
}

// Observer receives every decision outcome. It is used for metrics.
type Observer interface {
	ObserveDecision(rule Rule, grant Grant, allowed bool)
}

// Evaluator decides permit or deny for gated operations.
type Evaluator struct {
	users    UserFinder
	tenants  TenantFinder
	subs     SubscriptionFinder
	members  MembershipChecker
	observer Observer
}

// NewEvaluator creates an evaluator over the given stores.
func NewEvaluator(users UserFinder, tenants TenantFinder, subs SubscriptionFinder, members MembershipChecker) *Evaluator {
	return &Evaluator{users: users, tenants: tenants, subs: subs, members: members}
}

// WithObserver sets the decision observer and returns e.
func (e *Evaluator) WithObserver(o Observer) *Evaluator {
	e.observer = o
	return e
}

// AuthorizeUser checks actor's access to the user record targetID.
func (e *Evaluator) AuthorizeUser(ctx context.Context, actor *domain.User, targetID uuid.UUID, rule Rule) (*Decision, error) {
	target, err := e.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	d := &Decision{Actor: actor, TargetUser: target}

	switch {
	case actor.ID == target.ID && (rule == SelfOnly || rule == SelfOrAdmin):
		d.Granted = GrantSelf
	case rule == SelfOrAdmin && actor.IsAdmin():
		d.Granted = GrantAdmin
	default:
		return e.deny(rule, "not permitted to access this user")
	}
	return e.permit(rule, d)
}

// AuthorizeTenant checks actor's access to tenantID. For OwnerMemberOrAdmin a
// seat in any active subscription of the tenant counts as membership.
func (e *Evaluator) AuthorizeTenant(ctx context.Context, actor *domain.User, tenantID uuid.UUID, rule Rule) (*Decision, error) {
	tenant, err := e.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	d := &Decision{Actor: actor, Tenant: tenant}

	member := func() (bool, error) {
		return e.members.IsUserSubscribed(ctx, tenant.ID, actor.ID)
	}
	grant, err := e.evaluate(rule, tenant, actor, member)
	if err != nil {
		return nil, err
	}
	if grant == "" {
		return e.deny(rule, "not permitted to access this tenant")
	}
	d.Granted = grant
	return e.permit(rule, d)
}

// AuthorizeSubscription checks actor's access to subscriptionID. Ownership is
// that of the subscription's tenant.
func (e *Evaluator) AuthorizeSubscription(ctx context.Context, actor *domain.User, subscriptionID uuid.UUID, rule Rule) (*Decision, error) {
	sub, err := e.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	tenant, err := e.tenants.FindByID(ctx, sub.TenantID)
	if err != nil {
		return nil, err
	}
	d := &Decision{Actor: actor, Tenant: tenant, Subscription: sub}

	member := func() (bool, error) {
		return sub.HasMember(actor.ID), nil
	}
	grant, err := e.evaluate(rule, tenant, actor, member)
	if err != nil {
		return nil, err
	}
	if grant == "" {
		return e.deny(rule, "not permitted to access this subscription")
	}
	d.Granted = grant
	return e.permit(rule, d)
}

// AuthorizeTenantCreate permits creating a tenant owned by ownerID when the
// actor is that owner or an admin.
func (e *Evaluator) AuthorizeTenantCreate(actor *domain.User, ownerID uuid.UUID) (*Decision, error) {
	d := &Decision{Actor: actor}
	switch {
	case actor.ID == ownerID:
		d.Granted = GrantOwner
	case actor.IsAdmin():
		d.Granted = GrantAdmin
	default:
		return e.deny(OwnerOrAdmin, "cannot create a tenant for another user")
	}
	return e.permit(OwnerOrAdmin, d)
}

// RequireAdmin permits only global admins.
func (e *Evaluator) RequireAdmin(actor *domain.User) error {
	if !actor.IsAdmin() {
		_, err := e.deny(OwnerOrAdmin, "admin role required")
		return err
	}
	e.observe(OwnerOrAdmin, GrantAdmin, true)
	return nil
}

// evaluate applies rules 2 to 4 in order and returns the first grant, or ""
// when nothing matched. Membership is only consulted when the rule allows it.
func (e *Evaluator) evaluate(rule Rule, tenant *domain.Tenant, actor *domain.User, member func() (bool, error)) (Grant, error) {
	switch rule {
	case OwnerOnly, OwnerOrAdmin, OwnerMemberOrAdmin:
	default:
		return "", nil
	}

	if tenant.IsOwnedBy(actor.ID) {
		return GrantOwner, nil
	}
	if rule == OwnerOnly {
		return "", nil
	}
	if actor.IsAdmin() {
		return GrantAdmin, nil
	}
	if rule == OwnerMemberOrAdmin {
		ok, err := member()
		if err != nil {
			return "", err
		}
		if ok {
			return GrantMember, nil
		}
	}
	return "", nil
}

func (e *Evaluator) permit(rule Rule, d *Decision) (*Decision, error) {
	e.observe(rule, d.Granted, true)
	return d, nil
}

func (e *Evaluator) deny(rule Rule, reason string) (*Decision, error) {
	e.observe(rule, "", false)
	return nil, domain.Forbidden(reason)
}

func (e *Evaluator) observe(rule Rule, grant Grant, allowed bool) {
	if e.observer != nil {
		e.observer.ObserveDecision(rule, grant, allowed)
	}
}
