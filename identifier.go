package goGuard

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/MrEthical07/goGuard/attempt"
)

// NormalizeIdentifier trims surrounding whitespace and lower-cases s. The
// tracker never normalizes on its own; callers that key by e-mail address
// should pass identifiers through this first so "A@x.com " and "a@x.com"
// share one record.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateIdentifier(identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(identifier) > attempt.MaxIdentifierLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdentifier, attempt.MaxIdentifierLength)
	}
	for _, r := range identifier {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control characters", ErrInvalidIdentifier)
		}
	}
	return nil
}
