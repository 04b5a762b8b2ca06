package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/seatledger/pkg/domain"
)

// SanitizeName trims a display name and strips control characters.
func SanitizeName(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name))
}

// ValidateStringLength checks value's length in characters. A zero bound is
// not enforced.
func ValidateStringLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if min > 0 && n < min {
		return domain.Invalid("%s must be at least %d characters long", field, min)
	}
	if max > 0 && n > max {
		return domain.Invalid("%s must be at most %d characters long", field, max)
	}
	return nil
}
