////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/pkg/errors"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32

	// Characters that cannot appear in a tree path segment
	forbiddenUsernameChars = "/.#$[]"
)

// ValidateUsername returns ErrInvalidUsername, with the reason attached, if
// the username cannot be registered. Usernames are lowercase, contain no
// spaces, emoji or path characters, and are between MinUsernameLength and
// MaxUsernameLength characters long.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case n < MinUsernameLength:
		return errors.WithMessagef(ErrInvalidUsername,
			"must be at least %d characters", MinUsernameLength)
	case n > MaxUsernameLength:
		return errors.WithMessagef(ErrInvalidUsername,
			"must be at most %d characters", MaxUsernameLength)
	case strings.ContainsAny(username, forbiddenUsernameChars):
		return errors.WithMessagef(ErrInvalidUsername,
			"cannot contain any of %q", forbiddenUsernameChars)
	case gomoji.ContainsEmoji(nonASCII(username)):
		return errors.WithMessage(ErrInvalidUsername, "cannot contain emoji")
	}

	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.WithMessage(ErrInvalidUsername,
				"cannot contain spaces")
		}
		if unicode.IsUpper(r) {
			return errors.WithMessage(ErrInvalidUsername, "must be lowercase")
		}
	}
	return nil
}

// nonASCII returns the runes of s outside the ASCII range. Keycap sequences
// start with ASCII digits, so only the remaining runes are checked for emoji.
func nonASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}
