////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package notifications delivers push notifications to the devices of users
// who receive a message. Delivery is best effort: a failure is reported to
// the caller, who logs it, and never undoes the message that caused it.
package notifications

import "context"

// Sink sends one push notification to a device address.
type Sink interface {
	Notify(ctx context.Context, address, title, body string) error
}

// Notification is the payload handed to the push transport.
type Notification struct {
	Address string `json:"address"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}
