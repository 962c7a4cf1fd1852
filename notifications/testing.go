////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package notifications

import (
	"context"
	"sync"
)

// MockSink records notifications for tests. If Err is set every Notify
// returns it after recording the call.
type MockSink struct {
	Err error

	sent []Notification
	mux  sync.Mutex
}

// Notify records the notification.
func (ms *MockSink) Notify(_ context.Context, address, title, body string) error {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	ms.sent = append(ms.sent, Notification{address, title, body})
	return ms.Err
}

// Sent returns a copy of every notification recorded so far.
func (ms *MockSink) Sent() []Notification {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	return append([]Notification(nil), ms.sent...)
}
