////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// transitions counts conversation state changes.
	// Labels: transition (created, reactivated, left, blocked)
	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Conversation lifecycle transitions",
	}, []string{"transition"})
)
