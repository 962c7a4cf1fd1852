////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package notifications

import (
	"context"
	"time"

	"go.uber.org/ratelimit"
)

// RateLimited wraps a Sink so that at most rate notifications per second
// reach it. Callers block until their turn.
type RateLimited struct {
	sink    Sink
	limiter ratelimit.Limiter
}

// NewRateLimited returns sink limited to rate notifications per second. A
// rate of zero or less disables the limit.
func NewRateLimited(sink Sink, rate int) *RateLimited {
	limiter := ratelimit.NewUnlimited()
	if rate > 0 {
		limiter = ratelimit.New(rate,
			ratelimit.Per(time.Second), ratelimit.WithSlack(0))
	}
	return &RateLimited{sink: sink, limiter: limiter}
}

// Notify waits for the limiter and forwards the notification.
func (rl *RateLimited) Notify(ctx context.Context, address, title,
	body string) error {
	rl.limiter.Take()
	if err := ctx.Err(); err != nil {
		return err
	}
	return rl.sink.Notify(ctx, address, title, body)
}
