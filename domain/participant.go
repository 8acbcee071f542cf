// Package domain contains core concepts of the chat relay.
// This file defines the Identity a participant is known by while connected.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxIdentityLength bounds display names when no limit is configured.
const DefaultMaxIdentityLength = 32

var validate = validator.New()

// Identity is the display name of a connected participant. Case-sensitive.
type Identity string

func (i Identity) String() string { return string(i) }

// ValidateIdentity rejects empty names, names padded with spaces, control
// characters and names longer than maxLength runes.
func ValidateIdentity(name string, maxLength int) (Identity, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxIdentityLength
	}
	if strings.TrimSpace(name) != name {
		return "", fmt.Errorf("%w: leading or trailing spaces", errors.ErrInvalidIdentity)
	}
	if err := validate.Var(name, fmt.Sprintf("required,max=%d", maxLength)); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidIdentity, err)
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return "", fmt.Errorf("%w: control characters", errors.ErrInvalidIdentity)
	}
	return Identity(name), nil
}
