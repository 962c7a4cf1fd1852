////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package directory keeps each user's index from peer username to the id of
// the conversation with that peer. An entry lives in exactly one of two
// partitions: active, listed in the inbox, or inactive, left by the owner but
// kept so the same conversation can be reused.
package directory

import (
	"context"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/stoppable"
	"gitlab.com/parley/client/storage/tree"
)

// Roots of the two partitions in the shared tree.
const (
	activeRoot   = "userConversationList"
	inactiveRoot = "userInactiveConversations"
)

// Entry maps a peer to a conversation.
type Entry struct {
	PeerUsername   string
	ConversationID string
}

// Change is a write to a user's active partition.
type Change struct {
	Entry

	// Removed is true when the entry left the active partition.
	Removed bool
}

// Directory reads and writes directory entries.
type Directory struct {
	tree tree.Tree
}

// New returns a Directory stored in t.
func New(t tree.Tree) *Directory {
	return &Directory{tree: t}
}

// FindActive returns the id of the active conversation between owner and
// peer, if there is one.
func (d *Directory) FindActive(ctx context.Context, ownerUID,
	peerUsername string) (string, bool, error) {
	return d.find(ctx, activeRoot, ownerUID, peerUsername)
}

// FindInactive returns the id of the inactive conversation between owner and
// peer, if there is one.
func (d *Directory) FindInactive(ctx context.Context, ownerUID,
	peerUsername string) (string, bool, error) {
	return d.find(ctx, inactiveRoot, ownerUID, peerUsername)
}

// Activate moves the entry to the active partition. Both writes are
// unconditional, so repeating the call after a partial failure converges.
func (d *Directory) Activate(ctx context.Context, ownerUID, peerUsername,
	conversationID string) error {
	return d.move(ctx, inactiveRoot, activeRoot, ownerUID, peerUsername,
		conversationID)
}

// Deactivate moves the entry to the inactive partition.
func (d *Directory) Deactivate(ctx context.Context, ownerUID, peerUsername,
	conversationID string) error {
	return d.move(ctx, activeRoot, inactiveRoot, ownerUID, peerUsername,
		conversationID)
}

// ListActive returns the active entries of owner sorted by peer username.
func (d *Directory) ListActive(ctx context.Context, ownerUID string) (
	[]Entry, error) {
	return d.list(ctx, activeRoot, ownerUID)
}

// ListInactive returns the inactive entries of owner sorted by peer username.
func (d *Directory) ListInactive(ctx context.Context, ownerUID string) (
	[]Entry, error) {
	return d.list(ctx, inactiveRoot, ownerUID)
}

// WatchActive calls cb for every change to the active partition of owner.
func (d *Directory) WatchActive(ownerUID string, cb func(Change)) (
	stoppable.Stoppable, error) {
	root := tree.Join(activeRoot, ownerUID)
	return d.tree.Listen(root, func(e tree.Event) {
		peer, ok := e.Child(root)
		if !ok {
			if e.Op == tree.OpRemove {
				jww.DEBUG.Printf("Active conversations of %s removed",
					ownerUID)
			}
			return
		}
		c := Change{Entry: Entry{PeerUsername: peer}}
		if e.Op == tree.OpRemove {
			c.Removed = true
		} else {
			c.ConversationID = string(e.Value)
		}
		cb(c)
	})
}

func (d *Directory) find(ctx context.Context, root, ownerUID,
	peerUsername string) (string, bool, error) {
	id, err := tree.GetString(ctx, d.tree, tree.Join(root, ownerUID, peerUsername))
	if errors.Is(err, tree.ErrNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, errors.WithMessagef(err,
			"failed to look up %s conversation with %q", root, peerUsername)
	}
	return id, true, nil
}

func (d *Directory) move(ctx context.Context, from, to, ownerUID,
	peerUsername, conversationID string) error {
	err := d.tree.Remove(ctx, tree.Join(from, ownerUID, peerUsername))
	if err != nil {
		return errors.WithMessagef(err, "failed to remove %s entry for %q",
			from, peerUsername)
	}
	err = tree.SetString(ctx, d.tree,
		tree.Join(to, ownerUID, peerUsername), conversationID)
	if err != nil {
		return errors.WithMessagef(err, "failed to write %s entry for %q",
			to, peerUsername)
	}
	jww.DEBUG.Printf("Moved conversation %s of %s with %q to %s",
		conversationID, ownerUID, peerUsername, to)
	return nil
}

func (d *Directory) list(ctx context.Context, root, ownerUID string) (
	[]Entry, error) {
	nodes, err := d.tree.Children(ctx, tree.Join(root, ownerUID))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to list %s", root)
	}
	entries := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		if n.Value == nil {
			continue
		}
		entries = append(entries, Entry{
			PeerUsername:   n.Key,
			ConversationID: string(n.Value),
		})
	}
	return entries, nil
}
