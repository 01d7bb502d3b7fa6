// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"ocf/verifybot/pkg/security"
	"strings"
	"unicode"
)

var (
	ErrTokenEmpty     = errors.New("no token provided")
	ErrTokenMalformed = errors.New("malformed token")

	ErrIdentityEmpty   = errors.New("no identity provided")
	ErrIdentityTooLong = errors.New("identity is too long")
	ErrIdentityInvalid = errors.New("identity contains invalid characters")
)

// TokenValidator rejects values that can't have been issued, so they
// never reach the database
func TokenValidator(t string) error {
	if t == "" {
		return ErrTokenEmpty
	}

	if len(t) != security.TokenLength {
		return ErrTokenMalformed
	}

	for _, r := range t {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return ErrTokenMalformed
		}
	}

	return nil
}

func IdentityValidator(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrIdentityEmpty
	}

	if len(id) > 255 {
		return ErrIdentityTooLong
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return ErrIdentityInvalid
		}
	}

	return nil
}
