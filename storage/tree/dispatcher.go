////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package tree

import (
	"sort"
	"strconv"
	"sync"

	"github.com/golang-collections/collections/queue"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/stoppable"
)

// Dispatcher fans tree events out to registered listeners. Events are queued
// without bound and delivered in publish order by one goroutine, so a listener
// may write to the tree from inside its callback.
type Dispatcher struct {
	name string

	listeners map[uint64]registration
	nextID    uint64
	mux       sync.RWMutex

	pending *queue.Queue
	qMux    sync.Mutex
	signal  chan struct{}

	stop *stoppable.Single
}

type registration struct {
	path string
	cb   Listener
}

// NewDispatcher starts a Dispatcher. Close stops its goroutine.
func NewDispatcher(name string) *Dispatcher {
	d := &Dispatcher{
		name:      name,
		listeners: make(map[uint64]registration),
		pending:   queue.New(),
		signal:    make(chan struct{}, 1),
		stop:      stoppable.NewSingle(name + "Dispatcher"),
	}
	go d.run()
	return d
}

// Register adds cb for events matching path.
func (d *Dispatcher) Register(path string, cb Listener) stoppable.Stoppable {
	d.mux.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = registration{path: path, cb: cb}
	d.mux.Unlock()

	jww.DEBUG.Printf("[%s] Listening on %s (%d)", d.name, path, id)

	return stoppable.NewHandle(
		"Listener-"+path+"-"+strconv.FormatUint(id, 10), func() {
			d.mux.Lock()
			delete(d.listeners, id)
			d.mux.Unlock()
			jww.DEBUG.Printf("[%s] Stopped listening on %s (%d)",
				d.name, path, id)
		})
}

// Publish queues e for delivery.
func (d *Dispatcher) Publish(e Event) {
	d.qMux.Lock()
	d.pending.Enqueue(e)
	d.qMux.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Close stops delivering events. Events still queued are dropped.
func (d *Dispatcher) Close() error {
	return d.stop.Close()
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.stop.Quit():
			d.stop.ToStopped()
			return
		case <-d.signal:
			for e, ok := d.next(); ok; e, ok = d.next() {
				d.deliver(e)
				if !d.stop.IsRunning() {
					break
				}
			}
		}
	}
}

func (d *Dispatcher) next() (Event, bool) {
	d.qMux.Lock()
	defer d.qMux.Unlock()
	if d.pending.Len() == 0 {
		return Event{}, false
	}
	return d.pending.Dequeue().(Event), true
}

func (d *Dispatcher) deliver(e Event) {
	d.mux.RLock()
	ids := make([]uint64, 0, len(d.listeners))
	for id, r := range d.listeners {
		if Matches(r.path, e) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	regs := make([]registration, len(ids))
	for i, id := range ids {
		regs[i] = d.listeners[id]
	}
	d.mux.RUnlock()

	jww.TRACE.Printf("[%s] Delivering %s %s to %d listeners",
		d.name, e.Op, e.Path, len(regs))

	for _, r := range regs {
		r.cb(e)
	}
}
