package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tendant/seatledger/internal/config"
	"github.com/tendant/seatledger/pkg/domain"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy builds a policy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

// ValidatePassword reports the first unmet requirement as an error wrapping
// domain.ErrWeakPassword.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if p.MinLength > 0 && len(password) < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters long", domain.ErrWeakPassword, p.MinLength)
	}

	checks := []struct {
		required bool
		ok       func(rune) bool
		what     string
	}{
		{p.RequireUppercase, unicode.IsUpper, "an uppercase letter"},
		{p.RequireLowercase, unicode.IsLower, "a lowercase letter"},
		{p.RequireNumber, unicode.IsDigit, "a number"},
		{p.RequireSpecial, isSpecial, "a special character"},
	}
	for _, c := range checks {
		if c.required && !strings.ContainsFunc(password, c.ok) {
			return fmt.Errorf("%w: must contain %s", domain.ErrWeakPassword, c.what)
		}
	}
	return nil
}

// Requirements describes the policy for display to users.
func (p *PasswordPolicy) Requirements() string {
	var parts []string
	if p.MinLength > 0 {
		parts = append(parts, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUppercase {
		parts = append(parts, "one uppercase letter")
	}
	if p.RequireLowercase {
		parts = append(parts, "one lowercase letter")
	}
	if p.RequireNumber {
		parts = append(parts, "one number")
	}
	if p.RequireSpecial {
		parts = append(parts, "one special character")
	}
	if len(parts) == 0 {
		return "No password requirements"
	}
	return "Password must contain " + strings.Join(parts, ", ")
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
