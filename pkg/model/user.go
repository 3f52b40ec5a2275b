// Package model defines the core domain types for linechat.
package model

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

const MaxUsernameLength = 32

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must not contain whitespace or control characters")

// ValidateUsername checks that a username is 1-32 bytes of valid UTF-8 with
// no whitespace or control characters. Returns nil on success or a
// descriptive error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !utf8.ValidString(name) {
		return ErrUsernameInvalidChars
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
