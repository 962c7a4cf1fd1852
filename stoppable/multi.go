////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error message.
const multiCloseErr = "multi stoppable %q failed to close %d/%d children"

// Multi groups stoppables so that they can be closed together. A session keeps
// every subscription it opens in one Multi and closes it on logout.
type Multi struct {
	name       string
	stoppables []Stoppable
	status     uint32
	mux        sync.RWMutex
}

// NewMulti returns an empty, running Multi.
func NewMulti(name string) *Multi {
	return &Multi{name: name, status: uint32(Running)}
}

// Add tracks the stoppable. Adding to a closed Multi closes the stoppable
// immediately so that nothing outlives the session that opened it.
func (m *Multi) Add(s Stoppable) {
	m.mux.Lock()
	if m.GetStatus() != Running {
		m.mux.Unlock()
		jww.WARN.Printf("Stoppable %q added to closed multi %q, closing it",
			s.Name(), m.name)
		_ = s.Close()
		return
	}
	m.stoppables = append(m.stoppables, s)
	m.mux.Unlock()
}

// Len returns the number of tracked stoppables that are still running.
func (m *Multi) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	n := 0
	for _, s := range m.stoppables {
		if s.IsRunning() {
			n++
		}
	}
	return n
}

// Name returns the name of the Multi followed by the names of its children.
func (m *Multi) Name() string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	names := make([]string, len(m.stoppables))
	for i, s := range m.stoppables {
		names[i] = s.Name()
	}
	return m.name + "{" + strings.Join(names, ", ") + "}"
}

// GetStatus returns the status of the Multi.
func (m *Multi) GetStatus() Status {
	return Status(atomic.LoadUint32(&m.status))
}

// IsRunning returns true if the Multi has not been closed.
func (m *Multi) IsRunning() bool {
	return m.GetStatus() == Running
}

// Close closes every child concurrently. Children that were already closed by
// their owner are skipped.
func (m *Multi) Close() error {
	if !atomic.CompareAndSwapUint32(
		&m.status, uint32(Running), uint32(Stopping)) {
		return errors.Errorf(alreadyClosedErr, m.name, m.GetStatus())
	}

	m.mux.Lock()
	defer m.mux.Unlock()

	var numErrors uint32
	var wg sync.WaitGroup
	for _, s := range m.stoppables {
		if !s.IsRunning() {
			continue
		}
		wg.Add(1)
		go func(s Stoppable) {
			defer wg.Done()
			if err := s.Close(); err != nil {
				atomic.AddUint32(&numErrors, 1)
			}
		}(s)
	}
	wg.Wait()

	atomic.StoreUint32(&m.status, uint32(Stopped))

	if numErrors > 0 {
		err := errors.Errorf(
			multiCloseErr, m.name, numErrors, len(m.stoppables))
		jww.ERROR.Print(err)
		return err
	}
	return nil
}
