////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MockManager is an in-memory Manager for tests. It keeps the same rules as
// Store (unique, write-once usernames; idempotent blocks) without a tree or a
// provider.
type MockManager struct {
	profiles  map[string]*Profile
	usernames map[string]string
	passwords map[string]string
	emails    map[string]string
	Reports   []Report
	mux       sync.Mutex
}

// NewMockManager returns an empty MockManager.
func NewMockManager() *MockManager {
	return &MockManager{
		profiles:  map[string]*Profile{},
		usernames: map[string]string{},
		passwords: map[string]string{},
		emails:    map[string]string{},
	}
}

// AddUser creates a complete profile and returns its uid.
func (m *MockManager) AddUser(username string) string {
	uid := uuid.NewString()
	m.mux.Lock()
	defer m.mux.Unlock()
	m.profiles[uid] = &Profile{
		UID:              uid,
		Username:         username,
		BlockedUsernames: map[string]string{},
	}
	m.usernames[username] = uid
	return uid
}

func (m *MockManager) CreateProfile(_ context.Context,
	email, firstName, lastName, password string) (string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, exists := m.emails[email]; exists {
		return "", &ProviderError{Err: errors.New(emailInUseMsg)}
	}
	uid := uuid.NewString()
	m.emails[email] = uid
	m.passwords[email] = password
	m.profiles[uid] = &Profile{
		UID:              uid,
		Email:            email,
		FirstName:        firstName,
		LastName:         lastName,
		BlockedUsernames: map[string]string{},
	}
	return uid, nil
}

func (m *MockManager) SignIn(_ context.Context, email, password string) (
	string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	uid, ok := m.emails[email]
	if !ok || m.passwords[email] != password {
		return "", &ProviderError{Err: errors.New(wrongCredentialMsg)}
	}
	return uid, nil
}

func (m *MockManager) SignOut(context.Context) error { return nil }

func (m *MockManager) ClaimUsername(_ context.Context, uid, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		p = &Profile{UID: uid, BlockedUsernames: map[string]string{}}
		m.profiles[uid] = p
	}
	if p.Username != "" {
		return ErrUsernameAlreadySet
	}
	if _, taken := m.usernames[username]; taken {
		return ErrUsernameTaken
	}
	m.usernames[username] = uid
	p.Username = username
	return nil
}

func (m *MockManager) UsernameAvailable(_ context.Context, username string) (
	bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	_, taken := m.usernames[username]
	return !taken, nil
}

func (m *MockManager) ResolveProfile(_ context.Context, uid string) (
	*Profile, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.BlockedUsernames = make(map[string]string, len(p.BlockedUsernames))
	for k, v := range p.BlockedUsernames {
		cp.BlockedUsernames[k] = v
	}
	return &cp, nil
}

func (m *MockManager) ResolveUID(_ context.Context, username string) (
	string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	uid, ok := m.usernames[username]
	if !ok {
		return "", ErrNotFound
	}
	return uid, nil
}

func (m *MockManager) SearchUsernames(_ context.Context,
	selfUsername, prefix string, limit int) ([]string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	results := []string{}
	for username := range m.usernames {
		if username != selfUsername && prefix != "" &&
			strings.HasPrefix(username, prefix) {
			results = append(results, username)
		}
	}
	sort.Strings(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockManager) SetBlocked(_ context.Context,
	selfUID, username, uid string, blocked bool) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	p, ok := m.profiles[selfUID]
	if !ok {
		return ErrNotFound
	}
	if blocked {
		p.BlockedUsernames[username] = uid
	} else {
		delete(p.BlockedUsernames, username)
	}
	return nil
}

func (m *MockManager) IsBlockedEitherDirection(_ context.Context, selfUID,
	selfUsername, otherUID, otherUsername string) (bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if p, ok := m.profiles[selfUID]; ok && p.Blocks(otherUsername) {
		return true, nil
	}
	if p, ok := m.profiles[otherUID]; ok && p.Blocks(selfUsername) {
		return true, nil
	}
	return false, nil
}

func (m *MockManager) SetNotificationAddress(
	_ context.Context, uid, address string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return ErrNotFound
	}
	p.NotificationID = address
	return nil
}

func (m *MockManager) SetDisplayPicture(_ context.Context, uid, url string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return ErrNotFound
	}
	p.DisplayPicture = url
	return nil
}

func (m *MockManager) ReportUser(_ context.Context, r Report) error {
	m.mux.Lock()
	m.Reports = append(m.Reports, r)
	m.mux.Unlock()
	return nil
}
