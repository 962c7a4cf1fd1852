////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"github.com/pkg/errors"
)

// Errors returned by the identity store.
var (
	// ErrUsernameTaken is returned when another user registered the username.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrUsernameAlreadySet is returned when claiming a username for a user
	// that already has one. Usernames are written once.
	ErrUsernameAlreadySet = errors.New("user already has a username")

	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrNotFound is returned when no profile or registration exists.
	ErrNotFound = errors.New("user not found")
)

// ProviderError wraps an error returned by the identity provider. Its message
// is the provider's message, unchanged, so it can be shown to the user as is.
type ProviderError struct {
	Err error
}

// Error returns the provider's message.
func (e *ProviderError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the provider's error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError returns true if err came from the identity provider.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
