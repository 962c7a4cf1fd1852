////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/parley/client/storage/tree"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) (*Store, *tree.Local) {
	tr := tree.NewMemLocal()
	t.Cleanup(func() { _ = tr.Close() })
	return NewStore(tr,
		NewLocalProvider(ekv.MakeMemstore(), bcrypt.MinCost)), tr
}

func newTestUser(t *testing.T, s *Store, username string) string {
	ctx := context.Background()
	uid, err := s.CreateProfile(ctx, username+"@example.com", "First",
		"Last", "password")
	require.NoError(t, err)
	require.NoError(t, s.ClaimUsername(ctx, uid, username))
	return uid
}

func TestStore_CreateProfile(t *testing.T) {
	s, tr := newTestStore(t)
	ctx := context.Background()

	uid, err := s.CreateProfile(ctx, "amy@example.com", "Amy", "Pond", "pass123")
	require.NoError(t, err)

	email, err := tree.GetString(ctx, tr, "userInformation/"+uid+"/email")
	require.NoError(t, err)
	require.Equal(t, "amy@example.com", email)

	p, err := s.ResolveProfile(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, "Amy Pond", p.FullName())
	require.False(t, p.Complete(), "no username yet")
}

// Error path: provider failures are surfaced with the provider's message.
func TestStore_CreateProfile_ProviderError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateProfile(ctx, "amy@example.com", "Amy", "Pond", "x")
	require.True(t, IsProviderError(err))
	require.Equal(t, weakPasswordMsg, err.Error())
}

func TestStore_ClaimUsername(t *testing.T) {
	s, tr := newTestStore(t)
	ctx := context.Background()
	amy := newTestUser(t, s, "amy")

	uid, err := tree.GetString(ctx, tr, "registeredUsernames/amy")
	require.NoError(t, err)
	require.Equal(t, amy, uid)

	resolved, err := s.ResolveUID(ctx, "amy")
	require.NoError(t, err)
	require.Equal(t, amy, resolved)

	p, err := s.ResolveProfile(ctx, amy)
	require.NoError(t, err)
	require.True(t, p.Complete())
	require.Equal(t, "amy", p.Username)

	bob, err := s.CreateProfile(ctx, "bob@example.com", "Bob", "B", "pass123")
	require.NoError(t, err)
	require.ErrorIs(t, s.ClaimUsername(ctx, bob, "amy"), ErrUsernameTaken)
	require.ErrorIs(t, s.ClaimUsername(ctx, amy, "amy2"), ErrUsernameAlreadySet)
	require.ErrorIs(t, s.ClaimUsername(ctx, bob, "B!g Bob"), ErrInvalidUsername)

	available, err := s.UsernameAvailable(ctx, "amy")
	require.NoError(t, err)
	require.False(t, available)
	available, err = s.UsernameAvailable(ctx, "bob")
	require.NoError(t, err)
	require.True(t, available)
}

// Tests that of many users concurrently claiming one username, exactly one
// succeeds and the registry points at the winner.
func TestStore_ClaimUsername_Concurrent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const contenders = 10
	uids := make([]string, contenders)
	for i := range uids {
		uid, err := s.CreateProfile(ctx, fmt.Sprintf("u%d@example.com", i),
			"U", fmt.Sprint(i), "pass123")
		require.NoError(t, err)
		uids[i] = uid
	}

	var wins int32
	var winner atomic.Value
	var wg sync.WaitGroup
	for _, uid := range uids {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			err := s.ClaimUsername(ctx, uid, "neo")
			if err == nil {
				atomic.AddInt32(&wins, 1)
				winner.Store(uid)
			} else if !errors.Is(err, ErrUsernameTaken) {
				t.Errorf("Unexpected error: %+v", err)
			}
		}(uid)
	}
	wg.Wait()

	require.EqualValues(t, 1, wins)
	registered, err := s.ResolveUID(ctx, "neo")
	require.NoError(t, err)
	require.Equal(t, winner.Load(), registered)
}

func TestStore_Resolve_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.ResolveProfile(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.ResolveUID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SearchUsernames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, u := range []string{"sam", "sally", "sarah", "bob", "samantha"} {
		newTestUser(t, s, u)
	}

	results, err := s.SearchUsernames(ctx, "sam", "sa", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"sally", "samantha", "sarah"}, results)

	results, err = s.SearchUsernames(ctx, "sally", "sa", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"sam", "samantha"}, results)

	results, err = s.SearchUsernames(ctx, "bob", "", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestStore_Blocking(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	amy := newTestUser(t, s, "amy")
	bob := newTestUser(t, s, "bob")

	blocked, err := s.IsBlockedEitherDirection(ctx, amy, "amy", bob, "bob")
	require.NoError(t, err)
	require.False(t, blocked)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.SetBlocked(ctx, bob, "amy", amy, true))
	}
	p, err := s.ResolveProfile(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"amy": amy}, p.BlockedUsernames)

	// Both directions see the block
	blocked, err = s.IsBlockedEitherDirection(ctx, amy, "amy", bob, "bob")
	require.NoError(t, err)
	require.True(t, blocked)
	blocked, err = s.IsBlockedEitherDirection(ctx, bob, "bob", amy, "amy")
	require.NoError(t, err)
	require.True(t, blocked)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.SetBlocked(ctx, bob, "amy", amy, false))
	}
	blocked, err = s.IsBlockedEitherDirection(ctx, amy, "amy", bob, "bob")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestStore_ProfileFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	amy := newTestUser(t, s, "amy")

	require.NoError(t, s.SetNotificationAddress(ctx, amy, "device-token"))
	require.NoError(t, s.SetDisplayPicture(ctx, amy, "https://img/amy.jpg"))
	p, err := s.ResolveProfile(ctx, amy)
	require.NoError(t, err)
	require.Equal(t, "device-token", p.NotificationID)
	require.Equal(t, "https://img/amy.jpg", p.DisplayPicture)

	require.NoError(t, s.SetNotificationAddress(ctx, amy, ""))
	p, err = s.ResolveProfile(ctx, amy)
	require.NoError(t, err)
	require.Empty(t, p.NotificationID)
}

func TestStore_ReportUser(t *testing.T) {
	s, tr := newTestStore(t)
	ctx := context.Background()

	r := Report{
		UIDReported:      "u2",
		UsernameReported: "bob",
		Violation:        "spam",
		RelevantConvoID:  "c1",
		ReportedBy:       "u1",
	}
	require.NoError(t, s.ReportUser(ctx, r))

	nodes, err := tr.Children(ctx, "reportedUsersRecord")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	var stored Report
	require.NoError(t, json.Unmarshal(nodes[0].Value, &stored))
	require.Equal(t, "spam", stored.Violation)
	require.NotZero(t, stored.Timestamp)
}

func TestStore_SignIn(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	amy := newTestUser(t, s, "amy")

	uid, err := s.SignIn(ctx, "amy@example.com", "password")
	require.NoError(t, err)
	require.Equal(t, amy, uid)

	_, err = s.SignIn(ctx, "amy@example.com", "nope")
	require.True(t, IsProviderError(err))
}
