////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package treetest holds the behaviour every tree.Tree implementation must
// share, written once and run against each implementation's constructor.
package treetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/parley/client/storage/tree"
)

// Constructor returns a fresh, empty tree for one test.
type Constructor func(t *testing.T) tree.Tree

// Run runs the shared tree tests against the trees returned by newTree.
func Run(t *testing.T, newTree Constructor) {
	t.Run("GetSet", func(t *testing.T) { testGetSet(t, newTree(t)) })
	t.Run("Children", func(t *testing.T) { testChildren(t, newTree(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newTree(t)) })
	t.Run("SetIfAbsent", func(t *testing.T) { testSetIfAbsent(t, newTree(t)) })
	t.Run("Push", func(t *testing.T) { testPush(t, newTree(t)) })
	t.Run("Listen", func(t *testing.T) { testListen(t, newTree(t)) })
	t.Run("InvalidPath", func(t *testing.T) { testInvalidPath(t, newTree(t)) })
}

func testGetSet(t *testing.T, tr tree.Tree) {
	ctx := context.Background()

	_, err := tr.Get(ctx, "users/alice")
	require.ErrorIs(t, err, tree.ErrNotFound)

	require.NoError(t, tr.Set(ctx, "users/alice", []byte("a1")))
	data, err := tr.Get(ctx, "users/alice")
	require.NoError(t, err)
	require.Equal(t, []byte("a1"), data)

	require.NoError(t, tr.Set(ctx, "users/alice", []byte("a2")))
	data, err = tr.Get(ctx, "users/alice")
	require.NoError(t, err)
	require.Equal(t, []byte("a2"), data)
}

func testChildren(t *testing.T, tr tree.Tree) {
	ctx := context.Background()

	nodes, err := tr.Children(ctx, "conversations")
	require.NoError(t, err)
	require.Empty(t, nodes)

	require.NoError(t, tr.Set(ctx, "conversations/c2/creator", []byte("bob")))
	require.NoError(t, tr.Set(ctx, "conversations/c1/creator", []byte("amy")))
	require.NoError(t, tr.Set(ctx, "conversations/c0", []byte("leaf")))

	nodes, err = tr.Children(ctx, "conversations")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	require.Equal(t, "c0", nodes[0].Key)
	require.Equal(t, []byte("leaf"), nodes[0].Value)
	require.False(t, nodes[0].HasChildren)
	require.Equal(t, "c1", nodes[1].Key)
	require.Nil(t, nodes[1].Value)
	require.True(t, nodes[1].HasChildren)
	require.Equal(t, "c2", nodes[2].Key)

	m, err := tree.StringMap(ctx, tr, "conversations/c1")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"creator": "amy"}, m)

	ranged, err := tree.KeyRange(ctx, tr, "conversations", "c", 2)
	require.NoError(t, err)
	require.Len(t, ranged, 1, "only leaves with the prefix are returned")
}

func testRemove(t *testing.T, tr tree.Tree) {
	ctx := context.Background()

	require.NoError(t, tr.Set(ctx, "a/b/c", []byte("1")))
	require.NoError(t, tr.Set(ctx, "a/b/d", []byte("2")))
	require.NoError(t, tr.Set(ctx, "a/e", []byte("3")))

	require.NoError(t, tr.Remove(ctx, "a/b"))
	_, err := tr.Get(ctx, "a/b/c")
	require.ErrorIs(t, err, tree.ErrNotFound)

	nodes, err := tr.Children(ctx, "a")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "e", nodes[0].Key)

	// Removing the last child prunes the empty parent
	require.NoError(t, tr.Remove(ctx, "a/e"))
	nodes, err = tr.Children(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, nodes)

	require.NoError(t, tr.Remove(ctx, "never/written"))
}

func testSetIfAbsent(t *testing.T, tr tree.Tree) {
	ctx := context.Background()

	const contenders = 16
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := tr.SetIfAbsent(ctx, "registered/neo", []byte{byte(i)})
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	require.EqualValues(t, 1, wins)

	require.NoError(t, tr.Set(ctx, "registered/trinity/x", []byte("1")))
	ok, err := tr.SetIfAbsent(ctx, "registered/trinity", []byte("2"))
	require.NoError(t, err)
	require.False(t, ok, "interior nodes are not absent")
}

func testPush(t *testing.T, tr tree.Tree) {
	ctx := context.Background()

	var keys []string
	for i := 0; i < 20; i++ {
		k, err := tr.Push(ctx, "log", []byte{byte(i)})
		require.NoError(t, err)
		keys = append(keys, k)
	}

	nodes, err := tr.Children(ctx, "log")
	require.NoError(t, err)
	require.Len(t, nodes, len(keys))
	for i, n := range nodes {
		require.Equal(t, keys[i], n.Key)
		require.Equal(t, []byte{byte(i)}, n.Value)
	}
}

func testListen(t *testing.T, tr tree.Tree) {
	ctx := context.Background()

	var mux sync.Mutex
	var received []tree.Event
	handle, err := tr.Listen("rooms/r1", func(e tree.Event) {
		mux.Lock()
		received = append(received, e)
		mux.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, tr.Set(ctx, "rooms/r1/members/u1", []byte("amy")))
	require.NoError(t, tr.Set(ctx, "rooms/r2/members/u1", []byte("amy")))
	require.NoError(t, tr.Remove(ctx, "rooms/r1/members/u1"))
	require.NoError(t, tr.Set(ctx, "rooms/r1/creator", []byte("amy")))

	count := func() int {
		mux.Lock()
		defer mux.Unlock()
		return len(received)
	}
	require.Eventually(t, func() bool { return count() == 3 },
		2*time.Second, 10*time.Millisecond)

	mux.Lock()
	require.Equal(t, tree.OpSet, received[0].Op)
	child, ok := received[0].Child("rooms/r1")
	require.True(t, ok)
	require.Equal(t, "members", child)
	require.Equal(t, tree.OpRemove, received[1].Op)
	require.Equal(t, "rooms/r1/creator", received[2].Path)
	mux.Unlock()

	require.NoError(t, handle.Close())
	require.NoError(t, tr.Set(ctx, "rooms/r1/creator", []byte("bob")))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 3, count())
}

func testInvalidPath(t *testing.T, tr tree.Tree) {
	ctx := context.Background()
	for _, p := range []string{"", "a//b", "/a", "a/"} {
		require.ErrorIs(t, tr.Set(ctx, p, []byte("x")), tree.ErrInvalidPath,
			"path %q", p)
	}
}
