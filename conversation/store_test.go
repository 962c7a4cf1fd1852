////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/parley/client/storage/tree"
)

func newTestStore(t *testing.T) *Store {
	tr := tree.NewMemLocal()
	t.Cleanup(func() { _ = tr.Close() })
	return NewStore(tr)
}

var testMembers = map[string]string{"u1": "amy", "u2": "bob"}

func TestStore_CreateLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewID()

	_, err := s.Load(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(ctx, id, "amy", testMembers, 100))

	r, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, r.ID)
	require.Equal(t, "amy", r.Creator)
	require.Equal(t, testMembers, r.ActiveMembers)
	require.Empty(t, r.InactiveMembers)
	require.Equal(t, map[string]float64{"u1": 100, "u2": 100}, r.LastSeen)
}

// Tests that after any sequence of moves the two membership sets are disjoint
// and together hold both members.
func TestStore_MembershipDisjoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewID()
	require.NoError(t, s.Create(ctx, id, "amy", testMembers, 100))

	moves := []struct {
		uid      string
		activate bool
	}{
		{"u1", false}, {"u1", false}, {"u2", false}, {"u1", true},
		{"u2", true}, {"u2", true}, {"u2", false},
	}
	for i, m := range moves {
		if m.activate {
			require.NoError(t, s.ActivateMember(ctx, id, m.uid, testMembers[m.uid]))
		} else {
			require.NoError(t, s.DeactivateMember(ctx, id, m.uid, testMembers[m.uid]))
		}

		r, err := s.Load(ctx, id)
		require.NoError(t, err)
		for uid := range r.ActiveMembers {
			_, both := r.InactiveMembers[uid]
			require.False(t, both, "move %d: %s in both sets", i, uid)
		}
		require.Equal(t, testMembers, r.Members(), "move %d", i)
		require.Equal(t, m.activate, r.IsActive(m.uid), "move %d", i)
	}
}

func TestStore_LastSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewID()

	_, found, err := s.LastSeen(ctx, id, "u1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.SetLastSeen(ctx, id, "u1", 1700000000.5))
	ts, found, err := s.LastSeen(ctx, id, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1700000000.5, ts)
}

func TestStore_AppendMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewID()

	_, err := s.Append(ctx, id, Message{Sender: "amy"})
	require.ErrorIs(t, err, ErrInvalidPayload)

	var keys []string
	for i := 0; i < 5; i++ {
		key, err := s.Append(ctx, id, Message{
			Sender:    "amy",
			Timestamp: float64(100 + i),
			Text:      "m" + strconv.Itoa(i),
		})
		require.NoError(t, err)
		keys = append(keys, key)
	}

	all, err := s.Messages(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, m := range all {
		require.Equal(t, keys[i], m.Key)
		require.Equal(t, "m"+strconv.Itoa(i), m.Text)
	}

	last, err := s.Messages(ctx, id, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"m3", "m4"}, []string{last[0].Text, last[1].Text})

	newest, found, err := s.Newest(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, float64(104), newest.Timestamp)

	_, found, err = s.Newest(ctx, NewID())
	require.NoError(t, err)
	require.False(t, found)
}

// A message from a client with a slow clock does not become the newest.
func TestStore_Newest_ClockSkew(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewID()

	for i, ts := range []float64{100, 300, 200, 300} {
		_, err := s.Append(ctx, id, Message{
			Sender:    "amy",
			Timestamp: ts,
			Text:      "m" + strconv.Itoa(i),
		})
		require.NoError(t, err)
	}

	newest, found, err := s.Newest(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	if newest.Timestamp != 300 || newest.Text != "m3" {
		t.Errorf("Wrong newest message."+
			"\nexpected: %v (%s)\nreceived: %v (%s)",
			300, "m3", newest.Timestamp, newest.Text)
	}
}

func TestStore_Watch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := NewID()

	var mux sync.Mutex
	var messages []Message
	var members []MemberChange
	var seen []string

	h1, err := s.WatchMessages(id, func(m Message) {
		mux.Lock()
		messages = append(messages, m)
		mux.Unlock()
	})
	require.NoError(t, err)
	h2, err := s.WatchMembers(id, func(c MemberChange) {
		mux.Lock()
		members = append(members, c)
		mux.Unlock()
	})
	require.NoError(t, err)
	h3, err := s.WatchLastSeen(id, func(uid string, _ float64) {
		mux.Lock()
		seen = append(seen, uid)
		mux.Unlock()
	})
	require.NoError(t, err)
	defer func() { _, _, _ = h1.Close(), h2.Close(), h3.Close() }()

	require.NoError(t, s.Create(ctx, id, "amy",
		map[string]string{"u1": "amy"}, 100))
	_, err = s.Append(ctx, id, Message{Sender: "amy", Timestamp: 101, Text: "hi"})
	require.NoError(t, err)
	require.NoError(t, s.DeactivateMember(ctx, id, "u1", "amy"))

	require.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(messages) == 1 && len(members) == 3 && len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	mux.Lock()
	defer mux.Unlock()
	require.Equal(t, "hi", messages[0].Text)
	require.NotEmpty(t, messages[0].Key)
	require.Equal(t, MemberChange{UID: "u1", Username: "amy", Active: true},
		members[0])
	require.Equal(t, MemberChange{UID: "u1", Active: true, Removed: true},
		members[1])
	require.Equal(t, MemberChange{UID: "u1", Username: "amy"}, members[2])
	require.Equal(t, []string{"u1"}, seen)
}
