////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package directory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/parley/client/storage/tree"
)

func newTestDirectory(t *testing.T) *Directory {
	tr := tree.NewMemLocal()
	t.Cleanup(func() { _ = tr.Close() })
	return New(tr)
}

// Tests that an entry is in exactly one partition after every move, and that
// repeating a move does not change the result.
func TestDirectory_ActivateDeactivate(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	_, found, err := d.FindActive(ctx, "u1", "bob")
	require.NoError(t, err)
	require.False(t, found)

	check := func(active bool) {
		id, foundActive, err := d.FindActive(ctx, "u1", "bob")
		require.NoError(t, err)
		_, foundInactive, err := d.FindInactive(ctx, "u1", "bob")
		require.NoError(t, err)
		require.Equal(t, active, foundActive)
		require.Equal(t, !active, foundInactive)
		if active {
			require.Equal(t, "c1", id)
		}
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, d.Activate(ctx, "u1", "bob", "c1"))
		check(true)
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, d.Deactivate(ctx, "u1", "bob", "c1"))
		check(false)
	}
	require.NoError(t, d.Activate(ctx, "u1", "bob", "c1"))
	check(true)
}

func TestDirectory_List(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	require.NoError(t, d.Activate(ctx, "u1", "zed", "c3"))
	require.NoError(t, d.Activate(ctx, "u1", "bob", "c1"))
	require.NoError(t, d.Activate(ctx, "u1", "cat", "c2"))
	require.NoError(t, d.Deactivate(ctx, "u1", "cat", "c2"))
	require.NoError(t, d.Activate(ctx, "u2", "amy", "c1"))

	active, err := d.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []Entry{{"bob", "c1"}, {"zed", "c3"}}, active)

	inactive, err := d.ListInactive(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []Entry{{"cat", "c2"}}, inactive)

	empty, err := d.ListInactive(ctx, "u3")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDirectory_WatchActive(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	var mux sync.Mutex
	var changes []Change
	handle, err := d.WatchActive("u1", func(c Change) {
		mux.Lock()
		changes = append(changes, c)
		mux.Unlock()
	})
	require.NoError(t, err)
	defer func() { _ = handle.Close() }()

	require.NoError(t, d.Activate(ctx, "u1", "bob", "c1"))
	require.NoError(t, d.Deactivate(ctx, "u1", "bob", "c1"))
	require.NoError(t, d.Activate(ctx, "u2", "amy", "c1"))

	require.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(changes) == 2
	}, time.Second, 5*time.Millisecond)

	mux.Lock()
	defer mux.Unlock()
	require.Equal(t, Change{Entry: Entry{"bob", "c1"}}, changes[0])
	require.Equal(t, Change{Entry: Entry{PeerUsername: "bob"}, Removed: true},
		changes[1])
}
