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
)

// Handle is a Stoppable without a goroutine behind it. Closing it runs the
// cancel function once, synchronously, and moves straight to Stopped. Tree
// listeners hand these out so that a caller can unregister a callback.
type Handle struct {
	name   string
	cancel func()
	status uint32
	once   sync.Once
}

// NewHandle returns a running Handle that calls cancel when closed. A nil
// cancel is allowed.
func NewHandle(name string, cancel func()) *Handle {
	return &Handle{name: name, cancel: cancel, status: uint32(Running)}
}

// Name returns the name of the Handle.
func (h *Handle) Name() string {
	return h.name
}

// GetStatus returns the status of the Handle.
func (h *Handle) GetStatus() Status {
	return Status(atomic.LoadUint32(&h.status))
}

// IsRunning returns true until the Handle is closed.
func (h *Handle) IsRunning() bool {
	return h.GetStatus() == Running
}

// Close runs the cancel function. Only the first call has an effect.
func (h *Handle) Close() error {
	err := errors.Errorf(alreadyClosedErr, h.name, h.GetStatus())
	h.once.Do(func() {
		atomic.StoreUint32(&h.status, uint32(Stopping))
		if h.cancel != nil {
			h.cancel()
		}
		atomic.StoreUint32(&h.status, uint32(Stopped))
		err = nil
	})
	return err
}
