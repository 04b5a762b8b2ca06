package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/seatledger/pkg/domain"
	"github.com/tendant/seatledger/pkg/identity"
)

// Throwaway mailbox providers rejected when BlockDisposable is set.
var disposableDomains = map[string]bool{
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"tempmail.com":      true,
	"throwaway.email":   true,
}

var strictEmailRegex = regexp.MustCompile(`^[a-z0-9.!#$%&'*+/=?^_{|}~-]+@[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`)

const maxEmailLength = 254 // RFC 5321

// EmailRules controls how strictly addresses are checked at registration.
type EmailRules struct {
	Strict          bool
	BlockDisposable bool
}

// ValidateEmail checks an address for format and length. Every failure wraps
// domain.ErrInvalidEmail.
func ValidateEmail(email string, rules EmailRules) error {
	normalized := identity.NormalizeEmail(email)
	if normalized == "" {
		return fmt.Errorf("%w: address is required", domain.ErrInvalidEmail)
	}
	if len(normalized) > maxEmailLength {
		return fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidEmail, maxEmailLength)
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return domain.ErrInvalidEmail
	}
	if rules.Strict && !strictEmailRegex.MatchString(addr.Address) {
		return domain.ErrInvalidEmail
	}
	if rules.BlockDisposable && disposableDomains[emailDomain(addr.Address)] {
		return fmt.Errorf("%w: disposable addresses are not accepted", domain.ErrInvalidEmail)
	}
	return nil
}

func emailDomain(email string) string {
	_, host, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return host
}
