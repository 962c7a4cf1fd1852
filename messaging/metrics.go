////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// messagesSent counts appended messages.
	// Labels: kind (text, image)
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "messaging",
		Name:      "messages_sent_total",
		Help:      "Messages appended to conversations",
	}, []string{"kind"})

	// notificationsSent counts push notifications by result.
	// Labels: result (sent, failed)
	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "messaging",
		Name:      "notifications_total",
		Help:      "Push notifications handed to the sink",
	}, []string{"result"})

	// deliveries counts messages handed to subscribers.
	deliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "messaging",
		Name:      "deliveries_total",
		Help:      "Messages delivered to subscribers",
	})
)
