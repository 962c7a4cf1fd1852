////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable contains the cancellable handles returned by every live
// feed in the client: tree listeners, message subscriptions and the background
// services owned by a logged in session.
package stoppable

import (
	"strconv"
)

// Stoppable is a handle to a running feed or goroutine that can be closed.
type Stoppable interface {
	// Name returns a human-readable name used in logs.
	Name() string

	// GetStatus returns the current Status of the stoppable.
	GetStatus() Status

	// IsRunning returns true while the stoppable has not been closed.
	IsRunning() bool

	// Close stops the feed. Closing an already closed stoppable returns an
	// error but has no other effect.
	Close() error
}

// Status holds the state of a Stoppable.
type Status uint32

const (
	Running Status = iota
	Stopping
	Stopped
)

// String prints a string representation of the Status. This function satisfies
// the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "INVALID STATUS: " + strconv.FormatUint(uint64(s), 10)
	}
}
