////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package messaging sends messages into conversations and delivers them to
// subscribers in order, keeping every member's last seen time current.
package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/conversation"
	"gitlab.com/parley/client/directory"
	"gitlab.com/parley/client/event"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/lifecycle"
	"gitlab.com/parley/client/notifications"
	"gitlab.com/parley/client/session"
	"gitlab.com/xx_network/primitives/netTime"
)


// Body of the notification for an image message.
const imageNotificationBody = "Sent you an image"

// Default time allowed for one push notification.
const defaultNotifyTimeout = 10 * time.Second

// Payload is the content of a message: exactly one of Text or ImageURL.
type Payload struct {
	Text     string
	ImageURL string
}

// Text returns a text payload.
func Text(text string) Payload {
	return Payload{Text: text}
}

// Image returns an image payload.
func Image(url string) Payload {
	return Payload{ImageURL: url}
}

// Engine sends and delivers messages.
type Engine struct {
	conversations *conversation.Store
	directory     *directory.Directory
	identity      identity.Manager
	lifecycle     *lifecycle.Manager
	sink          notifications.Sink
	events        event.Reporter

	now           func() time.Time
	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

// NewEngine returns an Engine. Notifications go to sink and their failures
// are reported to events.
func NewEngine(cs *conversation.Store, d *directory.Directory,
	im identity.Manager, lm *lifecycle.Manager, sink notifications.Sink,
	events event.Reporter) *Engine {
	return &Engine{
		conversations: cs,
		directory:     d,
		identity:      im,
		lifecycle:     lm,
		sink:          sink,
		events:        events,
		now:           netTime.Now,
		notifyTimeout: defaultNotifyTimeout,
	}
}

// Send appends the payload to the conversation. Every member that left the
// conversation is brought back into it, the sender's last seen time moves to
// now and the other members are notified in the background.
//
// If reactivating a member fails the message has still been sent; the
// returned error says so and the returned message is valid.
func (e *Engine) Send(ctx context.Context, s *session.Session,
	conversationID string, p Payload) (conversation.Message, error) {
	now := conversation.Timestamp(e.now())
	msg := conversation.Message{
		Sender:    s.Username(),
		Timestamp: now,
		Text:      p.Text,
		ImageURL:  p.ImageURL,
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}

	r, err := e.conversations.Load(ctx, conversationID)
	if err != nil {
		return msg, err
	}
	if !r.IsMember(s.UID()) {
		return msg, errors.WithMessagef(
			conversation.ErrNotMember, "%s", conversationID)
	}

	peerUID, peerUsername, ok := r.Peer(s.UID())
	if ok {
		blocked, err := e.identity.IsBlockedEitherDirection(
			ctx, s.UID(), s.Username(), peerUID, peerUsername)
		if err != nil {
			return msg, err
		} else if blocked {
			return msg, errors.WithMessagef(lifecycle.ErrBlockedRelationship,
				"%q and %q", s.Username(), peerUsername)
		}
	}

	if msg.Key, err = e.conversations.Append(ctx, conversationID, msg); err != nil {
		return msg, err
	}
	kind := "text"
	if msg.IsImage() {
		kind = "image"
	}
	messagesSent.WithLabelValues(kind).Inc()

	var reactivateErr error
	for uid, username := range r.InactiveMembers {
		_, other, _ := r.Peer(uid)
		err = e.lifecycle.ReactivateMember(ctx, conversationID, uid, username,
			other)
		if err != nil {
			jww.ERROR.Printf("Failed to reactivate %q in %s: %+v",
				username, conversationID, err)
			if reactivateErr == nil {
				reactivateErr = errors.WithMessagef(err,
					"message sent but %q was not reactivated", username)
			}
		}
	}

	if err = e.conversations.SetLastSeen(
		ctx, conversationID, s.UID(), now); err != nil {
		jww.WARN.Printf("Failed to update last seen of sender: %+v", err)
	}

	for uid := range r.Members() {
		if uid != s.UID() {
			e.notify(uid, s.Username(), msg)
		}
	}

	return msg, reactivateErr
}

// notify resolves the push address of uid and sends the notification on a
// new goroutine. Failures are logged and reported, never returned.
func (e *Engine) notify(uid, sender string, msg conversation.Message) {
	body := msg.Text
	if msg.IsImage() {
		body = imageNotificationBody
	}

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
		defer cancel()

		p, err := e.identity.ResolveProfile(ctx, uid)
		if err != nil {
			jww.WARN.Printf("No profile to notify %s: %+v", uid, err)
			return
		}
		if p.NotificationID == "" {
			jww.DEBUG.Printf("%q has no notification address", p.Username)
			return
		}

		if err = e.sink.Notify(ctx, p.NotificationID, sender, body); err != nil {
			notificationsSent.WithLabelValues("failed").Inc()
			jww.WARN.Printf("Failed to notify %q of message %s: %+v",
				p.Username, msg.Key, err)
			if e.events != nil {
				e.events.Report(event.Warn, event.Notification, "NotifyFailed",
					err.Error())
			}
			return
		}
		notificationsSent.WithLabelValues("sent").Inc()
	}()
}

// WaitForNotifications blocks until every notification started so far has
// finished.
func (e *Engine) WaitForNotifications() {
	e.pending.Wait()
}

// ComputeUnseen returns true if the largest message timestamp of the
// conversation is newer than the last time uid saw it. A conversation without messages has
// nothing unseen.
func (e *Engine) ComputeUnseen(ctx context.Context, conversationID,
	uid string) (bool, error) {
	newest, found, err := e.conversations.Newest(ctx, conversationID)
	if err != nil || !found {
		return false, err
	}
	lastSeen, found, err := e.conversations.LastSeen(ctx, conversationID, uid)
	if err != nil {
		return false, err
	} else if !found {
		return true, nil
	}
	return newest.Timestamp > lastSeen, nil
}

// MarkSeen moves the user's last seen time of the conversation to now.
func (e *Engine) MarkSeen(ctx context.Context, s *session.Session,
	conversationID string) error {
	return e.conversations.SetLastSeen(ctx, conversationID, s.UID(),
		conversation.Timestamp(e.now()))
}

// Summary is one row of the inbox.
type Summary struct {
	PeerUsername   string
	ConversationID string

	// Last is the newest message; nil if there are no messages
	Last   *conversation.Message
	Unseen bool
}

// Overview summarises every active conversation of the user, newest first.
// Conversations the directory lists but the store does not have are skipped.
func (e *Engine) Overview(ctx context.Context, s *session.Session) (
	[]Summary, error) {
	entries, err := e.directory.ListActive(ctx, s.UID())
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		sum := Summary{
			PeerUsername:   entry.PeerUsername,
			ConversationID: entry.ConversationID,
		}
		newest, found, err := e.conversations.Newest(ctx, entry.ConversationID)
		if err != nil {
			return nil, err
		}
		if found {
			sum.Last = &newest
			sum.Unseen, err = e.ComputeUnseen(ctx, entry.ConversationID, s.UID())
			if err != nil {
				return nil, err
			}
		} else if _, err = e.conversations.Load(
			ctx, entry.ConversationID); err != nil {
			if !errors.Is(err, conversation.ErrNotFound) {
				return nil, err
			}
			jww.WARN.Printf("Directory of %s lists missing conversation %s",
				s.UID(), entry.ConversationID)
			continue
		}
		summaries = append(summaries, sum)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return lastTimestamp(summaries[i]) > lastTimestamp(summaries[j])
	})
	return summaries, nil
}

func lastTimestamp(s Summary) float64 {
	if s.Last == nil {
		return 0
	}
	return s.Last.Timestamp
}
