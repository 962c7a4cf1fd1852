////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package client

import (
	"context"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/session"
)

// SignUpInfo is what a new user enters.
type SignUpInfo struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Username  string
}

// SignUp creates the account and claims the username, then signs the user
// in. If the account was created but the username could not be claimed, the
// error is returned and ClaimUsername may be called with another name.
func (c *Client) SignUp(ctx context.Context, info SignUpInfo) (
	*session.Session, error) {
	if err := identity.ValidateUsername(info.Username); err != nil {
		return nil, err
	}

	uid, err := c.identity.CreateProfile(
		ctx, info.Email, info.FirstName, info.LastName, info.Password)
	if err != nil {
		return nil, err
	}

	c.mux.Lock()
	c.pendingUID = uid
	c.mux.Unlock()

	return c.ClaimUsername(ctx, info.Username)
}

// ClaimUsername registers the username of the user that just signed up and
// signs them in.
func (c *Client) ClaimUsername(ctx context.Context, username string) (
	*session.Session, error) {
	c.mux.RLock()
	uid := c.pendingUID
	c.mux.RUnlock()
	if uid == "" {
		return nil, errors.WithMessage(ErrNotLoggedIn, "no account to name")
	}

	if err := c.identity.ClaimUsername(ctx, uid, username); err != nil {
		return nil, err
	}
	s, err := session.Open(ctx, c.identity, uid)
	if err != nil {
		return nil, err
	}
	c.setSession(s)
	return s, nil
}

// Login signs in with email and password. Any previous session is replaced.
func (c *Client) Login(ctx context.Context, email, password string) (
	*session.Session, error) {
	uid, err := c.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s, err := session.Open(ctx, c.identity, uid)
	if err != nil {
		return nil, err
	}
	c.setSession(s)
	return s, nil
}

// Logout closes every live feed of the session and signs out.
func (c *Client) Logout(ctx context.Context) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	c.setSession(nil)
	jww.INFO.Printf("Logged out %q", s.Username())
	return c.identity.SignOut(ctx)
}

// Search returns registered usernames starting with prefix, other than the
// user's own.
func (c *Client) Search(ctx context.Context, prefix string) ([]string, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	return c.identity.SearchUsernames(
		ctx, s.Username(), prefix, c.params.SearchLimit)
}

// Profile returns the profile registered for username.
func (c *Client) Profile(ctx context.Context, username string) (
	*identity.Profile, error) {
	if _, err := c.Session(); err != nil {
		return nil, err
	}
	uid, err := c.identity.ResolveUID(ctx, username)
	if err != nil {
		return nil, err
	}
	return c.identity.ResolveProfile(ctx, uid)
}

// SetNotificationAddress stores where the user's push notifications go. An
// empty address stops them.
func (c *Client) SetNotificationAddress(ctx context.Context,
	address string) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	if err = c.identity.SetNotificationAddress(ctx, s.UID(), address); err != nil {
		return err
	}
	return s.Refresh(ctx, c.identity)
}

// UploadDisplayPicture uploads the user's picture and returns its URL.
func (c *Client) UploadDisplayPicture(ctx context.Context, image []byte) (
	string, error) {
	s, err := c.Session()
	if err != nil {
		return "", err
	}
	url, err := c.media.UploadDisplayPicture(ctx, s, image)
	if err != nil {
		return "", err
	}
	return url, s.Refresh(ctx, c.identity)
}

// FetchImage returns a display picture or a sent image by URL.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	return c.media.Fetch(ctx, url)
}

// EvictImageCache empties the local image cache.
func (c *Client) EvictImageCache() error {
	return c.media.EvictAll()
}
