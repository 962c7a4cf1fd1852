////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package event

// Callback receives reported events.
type Callback func(priority int, category, evtType, details string)

// Reporter is the reporting API used inside the client.
type Reporter interface {
	Report(priority int, category, evtType, details string)
}

// Priorities of reported events.
const (
	Debug = iota
	Info
	Warn
	Error
)

// Categories of reported events.
const (
	Notification = "Notification"
	Delivery     = "Delivery"
	Profile      = "Profile"
	Session      = "Session"
)
