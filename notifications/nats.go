////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package notifications

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// DefaultSubject is the NATS subject push gateways consume from.
const DefaultSubject = "parley.push"

// Publisher is the part of a NATS connection the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NatsSink publishes notifications to a NATS subject, from which a push
// gateway forwards them to devices.
type NatsSink struct {
	publisher Publisher
	subject   string
}

// NewNatsSink returns a sink publishing on subject.
func NewNatsSink(p Publisher, subject string) *NatsSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NatsSink{publisher: p, subject: subject}
}

// ConnectNats dials the NATS server at url and returns a sink on subject
// together with the connection, which the caller closes.
func ConnectNats(url, subject string) (*NatsSink, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("parley-client"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				jww.WARN.Printf("Disconnected from NATS: %+v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			jww.INFO.Printf("Reconnected to NATS at %s", nc.ConnectedUrl())
		}))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to connect to NATS at %s", url)
	}
	return NewNatsSink(nc, subject), nc, nil
}

// Notify publishes the notification. The context is only checked before
// publishing since NATS publishes are buffered.
func (ns *NatsSink) Notify(ctx context.Context, address, title,
	body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if address == "" {
		return errors.New("notification has no address")
	}
	data, err := json.Marshal(Notification{
		Address: address,
		Title:   title,
		Body:    body,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}
	if err = ns.publisher.Publish(ns.subject, data); err != nil {
		return errors.Wrapf(err, "failed to publish notification on %s",
			ns.subject)
	}
	jww.TRACE.Printf("Published notification %q on %s", title, ns.subject)
	return nil
}
