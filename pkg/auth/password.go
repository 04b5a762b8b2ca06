package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/tendant/seatledger/pkg/domain"
	"github.com/tendant/seatledger/pkg/identity"
)

// UserStore is the part of the identity store password auth needs.
type UserStore interface {
	Create(ctx context.Context, p identity.CreateParams) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// PasswordService handles registration and password login.
type PasswordService struct {
	users       UserStore
	policy      *PasswordPolicy
	emailRules  EmailRules
	adminEmails []string
}

// NewPasswordService creates a new password service. Accounts registered with
// one of adminEmails receive the admin role.
func NewPasswordService(users UserStore, policy *PasswordPolicy, emailRules EmailRules, adminEmails ...string) *PasswordService {
	normalized := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if e = identity.NormalizeEmail(e); e != "" {
			normalized = append(normalized, e)
		}
	}
	return &PasswordService{
		users:       users,
		policy:      policy,
		emailRules:  emailRules,
		adminEmails: normalized,
	}
}

// RegisterParams holds the fields of a new account.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Metadata map[string]string
}

// Register validates and hashes the password, then creates the user with the
// default roles.
func (s *PasswordService) Register(ctx context.Context, p RegisterParams) (*domain.User, error) {
	if err := ValidateEmail(p.Email, s.emailRules); err != nil {
		return nil, err
	}
	email := identity.NormalizeEmail(p.Email)

	name := SanitizeName(p.Name)
	if err := ValidateStringLength("name", name, 0, 255); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}

	roles := domain.DefaultRoles()
	if slices.Contains(s.adminEmails, email) {
		roles = append(roles, domain.RoleAdmin)
	}

	return s.users.Create(ctx, identity.CreateParams{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		Metadata:     p.Metadata,
	})
}

// ValidateEmail checks an address against the configured email rules.
func (s *PasswordService) ValidateEmail(email string) error {
	return ValidateEmail(email, s.emailRules)
}

// HashPassword validates password against the policy and hashes it.
func (s *PasswordService) HashPassword(password string) (string, error) {
	if s.policy != nil {
		if err := s.policy.ValidatePassword(password); err != nil {
			return "", err
		}
	}
	return HashPassword(password)
}

// Authenticate verifies email and password. Unknown emails and wrong
// passwords are indistinguishable; inactive accounts are rejected after the
// password check.
func (s *PasswordService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	return user, nil
}
