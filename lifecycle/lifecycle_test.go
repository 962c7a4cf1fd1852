////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/parley/client/conversation"
	"gitlab.com/parley/client/directory"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/session"
	"gitlab.com/parley/client/storage/tree"
)

type testEnv struct {
	m        *Manager
	ids      *identity.MockManager
	dir      *directory.Directory
	convs    *conversation.Store
	amy, bob *session.Session
}

func newTestEnv(t *testing.T) *testEnv {
	tr := tree.NewMemLocal()
	t.Cleanup(func() { _ = tr.Close() })

	env := &testEnv{
		ids:   identity.NewMockManager(),
		dir:   directory.New(tr),
		convs: conversation.NewStore(tr),
	}
	env.m = NewManager(env.ids, env.dir, env.convs)

	ctx := context.Background()
	var err error
	env.amy, err = session.Open(ctx, env.ids, env.ids.AddUser("amy"))
	require.NoError(t, err)
	env.bob, err = session.Open(ctx, env.ids, env.ids.AddUser("bob"))
	require.NoError(t, err)
	return env
}

func (env *testEnv) start(t *testing.T, from, to *session.Session) (
	string, Outcome, error) {
	return env.m.Start(context.Background(), from, to.UID(), to.Username())
}

// requireEntry checks that owner has exactly the expected entry for peer.
func (env *testEnv) requireEntry(t *testing.T, owner *session.Session,
	peer, id string, active bool) {
	ctx := context.Background()
	activeID, foundActive, err := env.dir.FindActive(ctx, owner.UID(), peer)
	require.NoError(t, err)
	inactiveID, foundInactive, err := env.dir.FindInactive(ctx, owner.UID(), peer)
	require.NoError(t, err)

	require.Equal(t, active, foundActive, "active entry of %s", owner.Username())
	require.Equal(t, !active, foundInactive, "inactive entry of %s",
		owner.Username())
	if active {
		require.Equal(t, id, activeID)
	} else {
		require.Equal(t, id, inactiveID)
	}
}

func TestManager_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, outcome, err := env.start(t, env.amy, env.bob)
	require.NoError(t, err)
	require.Equal(t, Created, outcome)

	r, err := env.convs.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "amy", r.Creator)
	require.Equal(t, map[string]string{
		env.amy.UID(): "amy", env.bob.UID(): "bob"}, r.ActiveMembers)
	require.Len(t, r.LastSeen, 2)

	env.requireEntry(t, env.amy, "bob", id, true)
	env.requireEntry(t, env.bob, "amy", id, true)
}

// Tests that however the two users start, leave and restart a conversation,
// each of them only ever has the one conversation id.
func TestManager_SingleConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _, err := env.start(t, env.amy, env.bob)
	require.NoError(t, err)

	_, _, err = env.start(t, env.amy, env.bob)
	require.ErrorIs(t, err, ErrConversationAlreadyExists)
	existing, _, err := env.start(t, env.bob, env.amy)
	require.ErrorIs(t, err, ErrConversationAlreadyExists)
	require.Equal(t, id, existing)

	require.NoError(t, env.m.Leave(ctx, env.amy, id))
	env.requireEntry(t, env.amy, "bob", id, false)
	env.requireEntry(t, env.bob, "amy", id, true)

	reused, outcome, err := env.start(t, env.amy, env.bob)
	require.NoError(t, err)
	require.Equal(t, Reactivated, outcome)
	require.Equal(t, id, reused)
	env.requireEntry(t, env.amy, "bob", id, true)

	r, err := env.convs.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, r.IsActive(env.amy.UID()))
	require.Empty(t, r.InactiveMembers)

	// Both leave, then bob comes back
	require.NoError(t, env.m.Leave(ctx, env.amy, id))
	require.NoError(t, env.m.Leave(ctx, env.bob, id))
	reused, outcome, err = env.start(t, env.bob, env.amy)
	require.NoError(t, err)
	require.Equal(t, Reactivated, outcome)
	require.Equal(t, id, reused)
	env.requireEntry(t, env.bob, "amy", id, true)
	env.requireEntry(t, env.amy, "bob", id, false)
}

// Tests that leaving twice leaves the same state as leaving once.
func TestManager_Leave_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _, err := env.start(t, env.amy, env.bob)
	require.NoError(t, err)

	require.NoError(t, env.m.Leave(ctx, env.amy, id))
	once, err := env.convs.Load(ctx, id)
	require.NoError(t, err)

	require.NoError(t, env.m.Leave(ctx, env.amy, id))
	twice, err := env.convs.Load(ctx, id)
	require.NoError(t, err)

	require.Equal(t, once, twice)
	require.Equal(t, map[string]string{env.amy.UID(): "amy"},
		twice.InactiveMembers)
	env.requireEntry(t, env.amy, "bob", id, false)
}

// Error path: leaving a conversation that does not exist.
func TestManager_Leave_NotFound(t *testing.T) {
	env := newTestEnv(t)
	err := env.m.Leave(context.Background(), env.amy, conversation.NewID())
	require.ErrorIs(t, err, conversation.ErrNotFound)
}

// A user outside the conversation cannot leave it and so cannot join it.
func TestManager_Leave_NotMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _, err := env.start(t, env.amy, env.bob)
	require.NoError(t, err)

	eve, err := session.Open(ctx, env.ids, env.ids.AddUser("eve"))
	require.NoError(t, err)

	err = env.m.Leave(ctx, eve, id)
	require.ErrorIs(t, err, conversation.ErrNotMember)

	r, err := env.convs.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, r.Members(), 2)
	require.Empty(t, r.InactiveMembers)
	require.False(t, r.IsMember(eve.UID()))

	_, found, err := env.dir.FindInactive(ctx, eve.UID(), "amy")
	require.NoError(t, err)
	require.False(t, found)
}

func TestManager_Block(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _, err := env.start(t, env.amy, env.bob)
	require.NoError(t, err)

	require.NoError(t, env.m.Block(ctx, env.bob, env.amy.UID(), "amy"))
	env.requireEntry(t, env.bob, "amy", id, false)
	env.requireEntry(t, env.amy, "bob", id, true)

	_, _, err = env.start(t, env.amy, env.bob)
	require.ErrorIs(t, err, ErrBlockedRelationship)
	_, _, err = env.start(t, env.bob, env.amy)
	require.ErrorIs(t, err, ErrBlockedRelationship)

	// Unblocking does not bring the conversation back
	require.NoError(t, env.m.Unblock(ctx, env.bob, env.amy.UID(), "amy"))
	env.requireEntry(t, env.bob, "amy", id, false)

	reused, outcome, err := env.start(t, env.bob, env.amy)
	require.NoError(t, err)
	require.Equal(t, Reactivated, outcome)
	require.Equal(t, id, reused)
}

// Tests that blocking a user with no conversation only records the block.
func TestManager_Block_NoConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.m.Block(ctx, env.amy, env.bob.UID(), "bob"))
	p, err := env.ids.ResolveProfile(ctx, env.amy.UID())
	require.NoError(t, err)
	require.True(t, p.Blocks("bob"))
}

func TestManager_Report(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.m.Report(context.Background(), env.amy,
		env.bob.UID(), "bob", "harassment", "c1"))
	require.Len(t, env.ids.Reports, 1)
	r := env.ids.Reports[0]
	require.Equal(t, env.bob.UID(), r.UIDReported)
	require.Equal(t, env.amy.UID(), r.ReportedBy)
	require.Equal(t, "c1", r.RelevantConvoID)
	require.NotZero(t, r.Timestamp)
}

func TestManager_Create_Self(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.start(t, env.amy, env.amy)
	require.Error(t, err)
}
