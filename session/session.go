////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package session holds the signed in user. A Session is created from the
// user's profile at sign in, passed explicitly to every operation acting on
// behalf of the user and discarded at sign out.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/identity"
)

// ErrProfileIncomplete is returned when the signed in user has no profile or
// no username. The provider session is ended when it is returned.
var ErrProfileIncomplete = errors.New("profile is incomplete")

// Session is the signed in user.
type Session struct {
	uid      string
	username string

	profile *identity.Profile
	mux     sync.RWMutex
}

// Open loads the profile of uid and returns a Session for it. A missing or
// incomplete profile signs the user out of the provider and returns
// ErrProfileIncomplete.
func Open(ctx context.Context, m identity.Manager, uid string) (
	*Session, error) {
	p, err := m.ResolveProfile(ctx, uid)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return nil, errors.WithMessage(err, "failed to load profile")
	}

	if err != nil || !p.Complete() {
		jww.WARN.Printf("Profile of %s is incomplete, signing out", uid)
		if soErr := m.SignOut(ctx); soErr != nil {
			jww.ERROR.Printf("Failed to sign out %s: %+v", uid, soErr)
		}
		return nil, errors.WithMessagef(ErrProfileIncomplete, "uid %s", uid)
	}

	jww.INFO.Printf("Opened session for %s (%s)", p.Username, uid)
	return &Session{uid: uid, username: p.Username, profile: p}, nil
}

// New returns a Session for an already resolved profile.
func New(p *identity.Profile) (*Session, error) {
	if p == nil || !p.Complete() {
		return nil, ErrProfileIncomplete
	}
	return &Session{uid: p.UID, username: p.Username, profile: p}, nil
}

// UID returns the uid of the signed in user.
func (s *Session) UID() string {
	return s.uid
}

// Username returns the username of the signed in user.
func (s *Session) Username() string {
	return s.username
}

// Profile returns a copy of the profile as last loaded.
func (s *Session) Profile() identity.Profile {
	s.mux.RLock()
	defer s.mux.RUnlock()
	p := *s.profile
	p.BlockedUsernames = make(map[string]string, len(s.profile.BlockedUsernames))
	for k, v := range s.profile.BlockedUsernames {
		p.BlockedUsernames[k] = v
	}
	return p
}

// Refresh reloads the profile. The uid and username never change.
func (s *Session) Refresh(ctx context.Context, m identity.Manager) error {
	p, err := m.ResolveProfile(ctx, s.uid)
	if err != nil {
		return errors.WithMessage(err, "failed to refresh profile")
	}
	s.mux.Lock()
	s.profile = p
	s.mux.Unlock()
	return nil
}
