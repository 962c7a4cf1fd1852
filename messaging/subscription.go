////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"context"
	"sync"

	"github.com/golang-collections/collections/queue"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/conversation"
	"gitlab.com/parley/client/session"
	"gitlab.com/parley/client/stoppable"
)

// Delivery is a message handed to a subscriber.
type Delivery struct {
	conversation.Message

	// Historical is true if the message already existed when the
	// subscription was opened. Interfaces use it to animate only messages
	// that just arrived.
	Historical bool
}

// OnMessage receives deliveries. Calls for one subscription never overlap.
type OnMessage func(Delivery)

// Subscribe delivers the last fromCount messages of the conversation and
// then every message appended after it, each exactly once and in log order,
// on one goroutine. Every batch of deliveries moves the user's last seen time
// to now. Opening a new subscription with a larger fromCount is how older
// messages are loaded.
//
// Closing the returned handle stops delivery.
func (e *Engine) Subscribe(ctx context.Context, s *session.Session,
	conversationID string, fromCount int, cb OnMessage) (
	stoppable.Stoppable, error) {
	if _, err := e.conversations.Load(ctx, conversationID); err != nil {
		return nil, err
	}

	newest, _, err := e.conversations.Newest(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		engine:         e,
		conversationID: conversationID,
		uid:            s.UID(),
		cb:             cb,
		newest:         newest.Timestamp,
		seen:           map[string]struct{}{},
		pending:        queue.New(),
		signal:         make(chan struct{}, 1),
		stop:           stoppable.NewSingle("Delivery-" + conversationID),
	}

	// Listen before reading history so nothing appended in between is lost;
	// duplicates are dropped by key
	listener, err := e.conversations.WatchMessages(conversationID, sub.onLive)
	if err != nil {
		return nil, err
	}

	var history []conversation.Message
	if fromCount > 0 {
		history, err = e.conversations.Messages(ctx, conversationID, fromCount)
		if err != nil {
			_ = listener.Close()
			return nil, err
		}
	}

	sub.start(history)
	go sub.run()

	handle := stoppable.NewMulti("Subscription-" + conversationID)
	handle.Add(listener)
	handle.Add(sub.stop)

	jww.DEBUG.Printf("%q subscribed to %s with %d messages of history",
		s.Username(), conversationID, len(history))
	return handle, nil
}

type subscription struct {
	engine         *Engine
	conversationID string
	uid            string
	cb             OnMessage
	newest         float64

	// Guards seen, ready and early
	mux   sync.Mutex
	seen  map[string]struct{}
	ready bool
	early []conversation.Message

	pending *queue.Queue
	qMux    sync.Mutex
	signal  chan struct{}
	stop    *stoppable.Single
}

// onLive receives appended messages from the store. Until the history is
// queued they are held back.
func (sub *subscription) onLive(m conversation.Message) {
	sub.mux.Lock()
	defer sub.mux.Unlock()
	if !sub.ready {
		sub.early = append(sub.early, m)
		return
	}
	sub.add(m)
}

// start queues the history followed by the messages held back by onLive.
func (sub *subscription) start(history []conversation.Message) {
	sub.mux.Lock()
	defer sub.mux.Unlock()
	for _, m := range history {
		sub.add(m)
	}
	for _, m := range sub.early {
		sub.add(m)
	}
	sub.early = nil
	sub.ready = true
}

// add queues m unless it was queued before. It must be called under the
// lock.
func (sub *subscription) add(m conversation.Message) {
	if _, dup := sub.seen[m.Key]; dup {
		return
	}
	sub.seen[m.Key] = struct{}{}

	sub.qMux.Lock()
	sub.pending.Enqueue(Delivery{
		Message:    m,
		Historical: m.Timestamp <= sub.newest,
	})
	sub.qMux.Unlock()

	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscription) next() (Delivery, bool) {
	sub.qMux.Lock()
	defer sub.qMux.Unlock()
	if sub.pending.Len() == 0 {
		return Delivery{}, false
	}
	return sub.pending.Dequeue().(Delivery), true
}

func (sub *subscription) run() {
	for {
		select {
		case <-sub.stop.Quit():
			sub.stop.ToStopped()
			return
		case <-sub.signal:
			delivered := 0
			for d, ok := sub.next(); ok && sub.stop.IsRunning(); d, ok = sub.next() {
				sub.cb(d)
				delivered++
			}
			if delivered > 0 {
				deliveries.Add(float64(delivered))
				sub.markSeen()
			}
		}
	}
}

func (sub *subscription) markSeen() {
	e := sub.engine
	ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
	defer cancel()
	err := e.conversations.SetLastSeen(ctx, sub.conversationID, sub.uid,
		conversation.Timestamp(e.now()))
	if err != nil {
		jww.WARN.Printf("Failed to update last seen of %s in %s: %+v",
			sub.uid, sub.conversationID, err)
	}
}
