////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package conversation stores conversations: who is in them, when each member
// last saw them, and their append-only message log.
package conversation

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/stoppable"
	"gitlab.com/parley/client/storage/tree"
)

const conversationsRoot = "conversations"

// Leaf and node names below conversations/{id}.
const (
	creatorField  = "creator"
	activeField   = "activeMembers"
	inactiveField = "inactiveMembers"
	lastSeenField = "lastSeen"
	messagesField = "messages"
)

// Store reads and writes conversations in the shared tree.
type Store struct {
	tree tree.Tree
}

// NewStore returns a Store writing to t.
func NewStore(t tree.Tree) *Store {
	return &Store{tree: t}
}

// NewID returns a new conversation id.
func NewID() string {
	return uuid.NewString()
}

func path(id string, segments ...string) string {
	return tree.Join(append([]string{conversationsRoot, id}, segments...)...)
}

// Create writes a new conversation with every member active and every
// member's last seen time set to now.
func (s *Store) Create(ctx context.Context, id, creator string,
	members map[string]string, now float64) error {
	if err := tree.SetString(ctx, s.tree, path(id, creatorField),
		creator); err != nil {
		return errors.WithMessagef(err, "failed to create conversation %s", id)
	}
	for uid, username := range members {
		if err := tree.SetString(ctx, s.tree, path(id, activeField, uid),
			username); err != nil {
			return errors.WithMessagef(err,
				"failed to add %q to conversation %s", username, id)
		}
		if err := s.SetLastSeen(ctx, id, uid, now); err != nil {
			return err
		}
	}
	jww.INFO.Printf("Created conversation %s by %q", id, creator)
	return nil
}

// Load reads the creator, membership and last seen times of a conversation.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	nodes, err := s.tree.Children(ctx, path(id))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load conversation %s", id)
	}
	if len(nodes) == 0 {
		return nil, errors.WithMessagef(ErrNotFound, "id %s", id)
	}

	r := &Record{
		ID:              id,
		ActiveMembers:   map[string]string{},
		InactiveMembers: map[string]string{},
		LastSeen:        map[string]float64{},
	}
	for _, n := range nodes {
		switch n.Key {
		case creatorField:
			r.Creator = string(n.Value)
		case activeField:
			r.ActiveMembers, err = tree.StringMap(ctx, s.tree, path(id, activeField))
		case inactiveField:
			r.InactiveMembers, err = tree.StringMap(
				ctx, s.tree, path(id, inactiveField))
		case lastSeenField:
			r.LastSeen, err = s.loadLastSeen(ctx, id)
		}
		if err != nil {
			return nil, errors.WithMessagef(err,
				"failed to load %s of conversation %s", n.Key, id)
		}
	}
	return r, nil
}

// ActivateMember moves uid to the active members. The inactive entry is
// removed first so the two sets never share a uid.
func (s *Store) ActivateMember(ctx context.Context, id, uid,
	username string) error {
	return s.moveMember(ctx, id, inactiveField, activeField, uid, username)
}

// DeactivateMember moves uid to the inactive members.
func (s *Store) DeactivateMember(ctx context.Context, id, uid,
	username string) error {
	return s.moveMember(ctx, id, activeField, inactiveField, uid, username)
}

func (s *Store) moveMember(ctx context.Context, id, from, to, uid,
	username string) error {
	if err := s.tree.Remove(ctx, path(id, from, uid)); err != nil {
		return errors.WithMessagef(err, "failed to remove %q from %s of %s",
			username, from, id)
	}
	if err := tree.SetString(ctx, s.tree, path(id, to, uid),
		username); err != nil {
		return errors.WithMessagef(err, "failed to add %q to %s of %s",
			username, to, id)
	}
	return nil
}

// SetLastSeen records when uid last saw the conversation.
func (s *Store) SetLastSeen(ctx context.Context, id, uid string,
	ts float64) error {
	return errors.WithMessagef(
		tree.SetFloat(ctx, s.tree, path(id, lastSeenField, uid), ts),
		"failed to update last seen of %s in %s", uid, id)
}

// LastSeen returns when uid last saw the conversation. A member that never
// saw it returns false.
func (s *Store) LastSeen(ctx context.Context, id, uid string) (
	float64, bool, error) {
	ts, err := tree.GetFloat(ctx, s.tree, path(id, lastSeenField, uid))
	if errors.Is(err, tree.ErrNotFound) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return ts, true, nil
}

func (s *Store) loadLastSeen(ctx context.Context, id string) (
	map[string]float64, error) {
	raw, err := tree.StringMap(ctx, s.tree, path(id, lastSeenField))
	if err != nil {
		return nil, err
	}
	lastSeen := make(map[string]float64, len(raw))
	for uid, v := range raw {
		ts, err := strconv.ParseFloat(v, 64)
		if err != nil {
			jww.WARN.Printf("Ignoring malformed last seen %q of %s in %s",
				v, uid, id)
			continue
		}
		lastSeen[uid] = ts
	}
	return lastSeen, nil
}

// Append adds msg to the end of the log and returns its key.
func (s *Store) Append(ctx context.Context, id string, msg Message) (
	string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(&msg)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal message")
	}
	key, err := s.tree.Push(ctx, path(id, messagesField), data)
	if err != nil {
		return "", errors.WithMessagef(err,
			"failed to append message to %s", id)
	}
	jww.DEBUG.Printf("Appended message %s to %s", key, id)
	return key, nil
}

// Messages returns the last n messages in log order. An n of zero or less
// returns the whole log.
func (s *Store) Messages(ctx context.Context, id string, n int) (
	[]Message, error) {
	nodes, err := s.tree.Children(ctx, path(id, messagesField))
	if err != nil {
		return nil, errors.WithMessagef(err,
			"failed to read messages of %s", id)
	}
	if n > 0 && len(nodes) > n {
		nodes = nodes[len(nodes)-n:]
	}
	messages := make([]Message, 0, len(nodes))
	for _, node := range nodes {
		msg, err := decodeMessage(node.Key, node.Value)
		if err != nil {
			jww.WARN.Printf("Skipping message %s of %s: %+v",
				node.Key, id, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Newest returns the message with the largest timestamp, if there is one.
// Senders' clocks can disagree, so this is not always the last message of
// the log. Of equal timestamps the later one in the log wins.
func (s *Store) Newest(ctx context.Context, id string) (Message, bool, error) {
	messages, err := s.Messages(ctx, id, 0)
	if err != nil || len(messages) == 0 {
		return Message{}, false, err
	}
	newest := messages[0]
	for _, msg := range messages[1:] {
		if msg.Timestamp >= newest.Timestamp {
			newest = msg
		}
	}
	return newest, true, nil
}

func decodeMessage(key string, data []byte) (Message, error) {
	msg := Message{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, errors.Wrap(err, "malformed message")
	}
	msg.Key = key
	return msg, nil
}

// MemberChange is a write to the membership of a conversation.
type MemberChange struct {
	UID      string
	Username string
	Active   bool
	Removed  bool
}

// WatchMessages calls cb for every message appended to the log.
func (s *Store) WatchMessages(id string, cb func(Message)) (
	stoppable.Stoppable, error) {
	root := path(id, messagesField)
	return s.tree.Listen(root, func(e tree.Event) {
		key, ok := e.Child(root)
		if !ok || e.Op != tree.OpSet {
			return
		}
		msg, err := decodeMessage(key, e.Value)
		if err != nil {
			jww.WARN.Printf("Skipping message %s of %s: %+v", key, id, err)
			return
		}
		cb(msg)
	})
}

// WatchMembers calls cb for every change to either membership set.
func (s *Store) WatchMembers(id string, cb func(MemberChange)) (
	stoppable.Stoppable, error) {
	root := path(id)
	return s.tree.Listen(root, func(e tree.Event) {
		set, ok := e.Child(root)
		if !ok || (set != activeField && set != inactiveField) {
			return
		}
		uid, ok := e.Child(path(id, set))
		if !ok {
			return
		}
		cb(MemberChange{
			UID:      uid,
			Username: string(e.Value),
			Active:   set == activeField,
			Removed:  e.Op == tree.OpRemove,
		})
	})
}

// WatchLastSeen calls cb every time a member's last seen time changes.
func (s *Store) WatchLastSeen(id string, cb func(uid string, ts float64)) (
	stoppable.Stoppable, error) {
	root := path(id, lastSeenField)
	return s.tree.Listen(root, func(e tree.Event) {
		uid, ok := e.Child(root)
		if !ok || e.Op != tree.OpSet {
			return
		}
		ts, err := strconv.ParseFloat(string(e.Value), 64)
		if err != nil {
			jww.WARN.Printf("Ignoring malformed last seen of %s: %q",
				uid, e.Value)
			return
		}
		cb(uid, ts)
	})
}
