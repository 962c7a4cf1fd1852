////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error messages.
const (
	alreadyClosedErr = "stoppable %q cannot be closed while %s"
	toStoppedPanic   = "stoppable %q cannot move to %s while %s"
)

// Single stops one goroutine through its quit channel. The goroutine selects
// on Quit and calls ToStopped once it has released its resources.
type Single struct {
	name   string
	quit   chan struct{}
	status uint32
	once   sync.Once
}

// NewSingle returns a running Single with the given name.
func NewSingle(name string) *Single {
	return &Single{
		name:   name,
		quit:   make(chan struct{}),
		status: uint32(Running),
	}
}

// Name returns the name of the Single.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the status of the Single.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32(&s.status))
}

// IsRunning returns true if the Single has not been told to quit.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// Quit returns a channel that is closed when Close is called.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

// ToStopped marks the Single as fully stopped. It panics when called before
// Close since that indicates the goroutine exited on its own.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		&s.status, uint32(Stopping), uint32(Stopped)) {
		jww.FATAL.Panicf(toStoppedPanic, s.name, Stopped, s.GetStatus())
	}
	jww.TRACE.Printf("Stoppable %q is %s", s.name, Stopped)
}

// Close signals the goroutine to quit. Only the first call has an effect;
// every later call returns an error.
func (s *Single) Close() error {
	err := errors.Errorf(alreadyClosedErr, s.name, s.GetStatus())
	s.once.Do(func() {
		atomic.StoreUint32(&s.status, uint32(Stopping))
		close(s.quit)
		err = nil
		jww.TRACE.Printf("Stoppable %q is %s", s.name, Stopping)
	})
	return err
}
