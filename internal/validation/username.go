package validation

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const MaxUsernameLength = 50

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameTooLong  = errors.New("username is too long (max 50 characters)")
	ErrUsernameSpaces   = errors.New("username must not start or end with whitespace")
)

// NormalizeUsername composes the name to NFC so that visually identical
// spellings ("é" vs "e"+U+0301) collide on the unique index.
func NormalizeUsername(username string) string {
	return norm.NFC.String(username)
}

func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameRequired
	}

	if strings.TrimSpace(username) != username {
		return ErrUsernameSpaces
	}

	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}

	return nil
}
