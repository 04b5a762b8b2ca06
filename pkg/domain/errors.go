package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the stores, the ledger and the
// access evaluator wraps exactly one of these so transports can branch on
// errors.Is instead of on message text.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Lookup errors
var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrTenantNotFound       = fmt.Errorf("tenant %w", ErrNotFound)
	ErrSubscriptionNotFound = fmt.Errorf("subscription %w", ErrNotFound)
)

// Uniqueness errors
var (
	ErrEmailTaken  = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrDomainTaken = fmt.Errorf("%w: domain already registered", ErrConflict)
)

// State errors
var (
	ErrTenantInactive = fmt.Errorf("%w: tenant is inactive", ErrConflict)
)

// Authentication errors
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrUserInactive       = fmt.Errorf("%w: user account is inactive", ErrUnauthorized)
)

// Seat errors
var (
	ErrSeatLimitReached = fmt.Errorf("%w: subscription is at maximum capacity", ErrCapacityExceeded)
)

// Validation errors
var (
	ErrInvalidEmail    = fmt.Errorf("%w: invalid email address", ErrInvalidArgument)
	ErrWeakPassword    = fmt.Errorf("%w: password does not meet requirements", ErrInvalidArgument)
	ErrInvalidMaxUsers = fmt.Errorf("%w: max_users must not be negative", ErrInvalidArgument)
)

// Invalid returns an ErrInvalidArgument carrying a field-specific message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Forbidden returns an ErrForbidden carrying the reason for the denial.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}
