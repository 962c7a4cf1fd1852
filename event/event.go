////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package event surfaces failures that happen off the caller's goroutine, such
// as a push notification that could not be sent, to the users of the client.
package event

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/stoppable"
)

// Size of the buffer of events waiting to be handed to callbacks.
const eventBufferLen = 1000

type reportableEvent struct {
	Priority  int
	Category  string
	EventType string
	Details   string
}

// String returns a human-readable form of the event for logging.
func (e reportableEvent) String() string {
	return fmt.Sprintf("Event(%d, %s, %s, %s)",
		e.Priority, e.Category, e.EventType, e.Details)
}

// Manager queues reported events and hands them to registered callbacks.
type Manager struct {
	eventCh  chan reportableEvent
	eventCbs sync.Map
}

// NewManager returns a Manager. Events are only delivered once Start is
// called.
func NewManager() *Manager {
	return &Manager{eventCh: make(chan reportableEvent, eventBufferLen)}
}

// Report queues an event. When the queue is full the event is logged and
// dropped.
func (m *Manager) Report(priority int, category, evtType, details string) {
	e := reportableEvent{
		Priority:  priority,
		Category:  category,
		EventType: evtType,
		Details:   details,
	}
	select {
	case m.eventCh <- e:
		jww.TRACE.Printf("Event reported: %s", e)
	default:
		jww.ERROR.Printf("Event queue full, unable to report: %s", e)
	}
}

// RegisterEventCallback adds a named callback. Names must be unique.
func (m *Manager) RegisterEventCallback(name string, cb Callback) error {
	if _, exists := m.eventCbs.LoadOrStore(name, cb); exists {
		return errors.Errorf("event callback %q already registered", name)
	}
	return nil
}

// UnregisterEventCallback removes the named callback.
func (m *Manager) UnregisterEventCallback(name string) {
	m.eventCbs.Delete(name)
}

// Start begins delivering events on a new goroutine.
func (m *Manager) Start() stoppable.Stoppable {
	stop := stoppable.NewSingle("EventReporting")
	go m.deliver(stop)
	return stop
}

func (m *Manager) deliver(stop *stoppable.Single) {
	jww.DEBUG.Print("Event delivery started")
	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Print("Event delivery stopped")
			stop.ToStopped()
			return
		case e := <-m.eventCh:
			// Callbacks run in line; a slow callback backs up the queue
			m.eventCbs.Range(func(_, cb interface{}) bool {
				cb.(Callback)(e.Priority, e.Category, e.EventType, e.Details)
				return true
			})
		}
	}
}
