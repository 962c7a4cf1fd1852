////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package lifecycle moves conversations between their states. For a pair of
// users there is no conversation, an active one, or one the user left
// (inactive); leaving and coming back always reuses the same conversation.
// Only this package writes directory entries for a conversation.
package lifecycle

import (
	"context"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/conversation"
	"gitlab.com/parley/client/directory"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/session"
	"gitlab.com/xx_network/primitives/netTime"
)

// Errors returned by the Manager.
var (
	// ErrConversationAlreadyExists is returned when creating a conversation
	// the user already has in their inbox.
	ErrConversationAlreadyExists = errors.New("conversation already exists")

	// ErrBlockedRelationship is returned when either user blocked the other.
	ErrBlockedRelationship = errors.New("one of the users blocked the other")
)

// Outcome says how a conversation was opened.
type Outcome uint8

const (
	// Created means a new conversation was written.
	Created Outcome = iota + 1

	// Reactivated means the user's earlier conversation was reused.
	Reactivated
)

// String returns a human-readable name for the Outcome.
func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Reactivated:
		return "reactivated"
	default:
		return "unknown"
	}
}

// Manager applies lifecycle transitions.
type Manager struct {
	identity      identity.Manager
	directory     *directory.Directory
	conversations *conversation.Store
	now           func() time.Time
}

// NewManager returns a Manager using the given stores.
func NewManager(im identity.Manager, d *directory.Directory,
	cs *conversation.Store) *Manager {
	return &Manager{
		identity:      im,
		directory:     d,
		conversations: cs,
		now:           netTime.Now,
	}
}

// Start opens a conversation with the peer when the user selects them. It
// refuses if either user blocked the other, reuses an inactive conversation
// and otherwise creates one.
func (m *Manager) Start(ctx context.Context, s *session.Session, peerUID,
	peerUsername string) (string, Outcome, error) {
	blocked, err := m.identity.IsBlockedEitherDirection(
		ctx, s.UID(), s.Username(), peerUID, peerUsername)
	if err != nil {
		return "", 0, err
	} else if blocked {
		return "", 0, errors.WithMessagef(ErrBlockedRelationship,
			"%q and %q", s.Username(), peerUsername)
	}
	return m.Create(ctx, s, peerUID, peerUsername)
}

// Create writes a new conversation between the user and the peer. Both
// partitions of the user's directory are checked first: an active entry
// aborts with ErrConversationAlreadyExists and the existing id, and an
// inactive entry is reactivated instead.
//
// Two users creating a conversation with each other at the same moment can
// both pass the check and end up with two conversations.
func (m *Manager) Create(ctx context.Context, s *session.Session, peerUID,
	peerUsername string) (string, Outcome, error) {
	if peerUID == s.UID() {
		return "", 0, errors.New("cannot start a conversation with yourself")
	}

	id, found, err := m.directory.FindActive(ctx, s.UID(), peerUsername)
	if err != nil {
		return "", 0, err
	} else if found {
		return id, 0, errors.WithMessagef(ErrConversationAlreadyExists,
			"with %q (%s)", peerUsername, id)
	}

	id, found, err = m.directory.FindInactive(ctx, s.UID(), peerUsername)
	if err != nil {
		return "", 0, err
	} else if found {
		if err = m.Reactivate(ctx, s, peerUsername, id); err != nil {
			return "", 0, err
		}
		return id, Reactivated, nil
	}

	id = conversation.NewID()
	members := map[string]string{
		s.UID(): s.Username(),
		peerUID: peerUsername,
	}
	now := conversation.Timestamp(m.now())
	if err = m.conversations.Create(
		ctx, id, s.Username(), members, now); err != nil {
		return "", 0, err
	}
	if err = m.directory.Activate(ctx, s.UID(), peerUsername, id); err != nil {
		return "", 0, err
	}
	if err = m.directory.Activate(ctx, peerUID, s.Username(), id); err != nil {
		return "", 0, err
	}

	transitions.WithLabelValues("created").Inc()
	jww.INFO.Printf("%q started conversation %s with %q",
		s.Username(), id, peerUsername)
	return id, Created, nil
}

// Reactivate brings the user back into a conversation they left. The peer's
// state is not touched.
func (m *Manager) Reactivate(ctx context.Context, s *session.Session,
	peerUsername, conversationID string) error {
	return m.ReactivateMember(
		ctx, conversationID, s.UID(), s.Username(), peerUsername)
}

// ReactivateMember brings uid back into a conversation on their behalf. It is
// used when a message is sent to a member that left.
func (m *Manager) ReactivateMember(ctx context.Context, conversationID, uid,
	username, peerUsername string) error {
	err := m.directory.Activate(ctx, uid, peerUsername, conversationID)
	if err != nil {
		return err
	}
	err = m.conversations.ActivateMember(ctx, conversationID, uid, username)
	if err != nil {
		return err
	}

	transitions.WithLabelValues("reactivated").Inc()
	jww.INFO.Printf("Reactivated %q in conversation %s", username,
		conversationID)
	return nil
}

// Leave archives the conversation for the user. The peer keeps it and the
// message log is untouched. Leaving twice has the same effect as leaving once.
func (m *Manager) Leave(ctx context.Context, s *session.Session,
	conversationID string) error {
	r, err := m.conversations.Load(ctx, conversationID)
	if err != nil {
		return err
	}
	if !r.IsMember(s.UID()) {
		return errors.WithMessagef(conversation.ErrNotMember,
			"%q in %s", s.Username(), conversationID)
	}
	_, peerUsername, ok := r.Peer(s.UID())
	if !ok {
		return errors.Errorf("conversation %s has no peer for %q",
			conversationID, s.Username())
	}

	err = m.conversations.DeactivateMember(
		ctx, conversationID, s.UID(), s.Username())
	if err != nil {
		return err
	}
	err = m.directory.Deactivate(ctx, s.UID(), peerUsername, conversationID)
	if err != nil {
		return err
	}

	transitions.WithLabelValues("left").Inc()
	jww.INFO.Printf("%q left conversation %s", s.Username(), conversationID)
	return nil
}

// Block marks the peer as blocked and leaves the active conversation with
// them, if any.
func (m *Manager) Block(ctx context.Context, s *session.Session, peerUID,
	peerUsername string) error {
	err := m.identity.SetBlocked(ctx, s.UID(), peerUsername, peerUID, true)
	if err != nil {
		return err
	}
	transitions.WithLabelValues("blocked").Inc()

	id, found, err := m.directory.FindActive(ctx, s.UID(), peerUsername)
	if err != nil || !found {
		return err
	}
	return m.Leave(ctx, s, id)
}

// Unblock removes the block. The conversation stays where it is.
func (m *Manager) Unblock(ctx context.Context, s *session.Session, peerUID,
	peerUsername string) error {
	return m.identity.SetBlocked(ctx, s.UID(), peerUsername, peerUID, false)
}

// Report files a report against the peer.
func (m *Manager) Report(ctx context.Context, s *session.Session, peerUID,
	peerUsername, violation, conversationID string) error {
	return m.identity.ReportUser(ctx, identity.Report{
		UIDReported:      peerUID,
		UsernameReported: peerUsername,
		Violation:        violation,
		RelevantConvoID:  conversationID,
		ReportedBy:       s.UID(),
		Timestamp:        conversation.Timestamp(m.now()),
	})
}
