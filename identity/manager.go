////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package identity stores user profiles, the registry of usernames, blocks
// and user reports. Credentials are delegated to a Provider.
package identity

import "context"

// Manager is the set of identity operations the rest of the client depends
// on. Store is the implementation backed by the shared tree and MockManager
// is an in-memory implementation for tests.
type Manager interface {
	// CreateProfile creates credentials with the provider and writes the
	// initial profile. Provider failures are returned as a *ProviderError.
	CreateProfile(ctx context.Context,
		email, firstName, lastName, password string) (string, error)

	// SignIn verifies credentials with the provider and returns the uid.
	SignIn(ctx context.Context, email, password string) (string, error)

	// SignOut ends the provider session.
	SignOut(ctx context.Context) error

	// ClaimUsername registers username for uid.
	ClaimUsername(ctx context.Context, uid, username string) error

	// UsernameAvailable returns true if nobody registered username.
	UsernameAvailable(ctx context.Context, username string) (bool, error)

	// ResolveProfile returns the profile of uid or ErrNotFound.
	ResolveProfile(ctx context.Context, uid string) (*Profile, error)

	// ResolveUID returns the uid registered for username or ErrNotFound.
	ResolveUID(ctx context.Context, username string) (string, error)

	// SearchUsernames returns up to limit registered usernames starting with
	// prefix, excluding selfUsername.
	SearchUsernames(ctx context.Context,
		selfUsername, prefix string, limit int) ([]string, error)

	// SetBlocked sets or clears selfUID's block of the given user.
	SetBlocked(ctx context.Context,
		selfUID, username, uid string, blocked bool) error

	// IsBlockedEitherDirection returns true if either user blocked the
	// other.
	IsBlockedEitherDirection(ctx context.Context, selfUID, selfUsername,
		otherUID, otherUsername string) (bool, error)

	// SetNotificationAddress stores the push address of uid.
	SetNotificationAddress(ctx context.Context, uid, address string) error

	// SetDisplayPicture stores the display picture URL of uid.
	SetDisplayPicture(ctx context.Context, uid, url string) error

	// ReportUser files a report.
	ReportUser(ctx context.Context, r Report) error
}

var (
	_ Manager  = (*Store)(nil)
	_ Manager  = (*MockManager)(nil)
	_ Provider = (*LocalProvider)(nil)
)
