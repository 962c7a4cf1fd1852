////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package redistree

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gitlab.com/parley/client/storage/tree"
	"gitlab.com/parley/client/storage/tree/treetest"
)

func newTestTree(t *testing.T, addr, namespace string) *Tree {
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	tr, err := New(context.Background(), client, namespace)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTree(t *testing.T) {
	treetest.Run(t, func(t *testing.T) tree.Tree {
		return newTestTree(t, miniredis.RunT(t).Addr(), "parley")
	})
}

// Tests that two clients of one namespace see each other's writes and that a
// different namespace sees nothing.
func TestTree_SharedNamespace(t *testing.T) {
	s := miniredis.RunT(t)
	amy := newTestTree(t, s.Addr(), "parley")
	bob := newTestTree(t, s.Addr(), "parley")
	other := newTestTree(t, s.Addr(), "elsewhere")

	var mux sync.Mutex
	var seen []string
	_, err := bob.Listen("conversations/c1/messages", func(e tree.Event) {
		mux.Lock()
		seen = append(seen, e.Path)
		mux.Unlock()
	})
	require.NoError(t, err)
	_, err = other.Listen("conversations", func(e tree.Event) {
		t.Errorf("Event leaked across namespaces: %+v", e)
	})
	require.NoError(t, err)

	key, err := amy.Push(context.Background(), "conversations/c1/messages",
		[]byte(`{"text":"hi"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(seen) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "conversations/c1/messages/"+key, seen[0])

	data, err := bob.Get(context.Background(), "conversations/c1/messages/"+key)
	require.NoError(t, err)
	require.JSONEq(t, `{"text":"hi"}`, string(data))
}
