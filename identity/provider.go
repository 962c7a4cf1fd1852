////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import "context"

// Provider owns user credentials. The client never sees a password hash; it
// only learns the uid the provider assigns.
type Provider interface {
	// CreateUser registers new credentials and returns the new uid.
	CreateUser(ctx context.Context, email, password string) (string, error)

	// SignIn verifies credentials and returns the uid they belong to.
	SignIn(ctx context.Context, email, password string) (string, error)

	// SignOut ends the provider's session.
	SignOut(ctx context.Context) error
}
