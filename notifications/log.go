////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package notifications

import (
	"context"

	jww "github.com/spf13/jwalterweatherman"
)

// LogSink writes notifications to the log. It is used when no push transport
// is configured.
type LogSink struct{}

// Notify logs the notification.
func (LogSink) Notify(_ context.Context, address, title, body string) error {
	jww.INFO.Printf("Notification to %s: %s: %s", address, title, body)
	return nil
}
