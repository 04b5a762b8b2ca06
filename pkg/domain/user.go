package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Global role names.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultRoles is assigned to users created without explicit roles.
func DefaultRoles() []string {
	return []string{RoleUser}
}

// User represents an account.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	Roles        []string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user holds the given global role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// IsAdmin reports whether the user holds the global admin role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// UserUpdate holds the fields of a partial user update. Nil fields are left unchanged.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	IsActive     *bool
	Roles        []string
	Metadata     map[string]string
}

// Apply copies the provided fields onto u.
func (p UserUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.Roles != nil {
		u.Roles = slices.Clone(p.Roles)
	}
	if p.Metadata != nil {
		u.Metadata = p.Metadata
	}
}

// TouchesPrivileges reports whether the update changes roles or activation,
// which only admins may do.
func (p UserUpdate) TouchesPrivileges() bool {
	return p.Roles != nil || p.IsActive != nil
}

// UserFilter narrows user listings.
type UserFilter struct {
	Active *bool
}
