////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

// Tests that Peer finds the other member in either membership set.
func TestRecord_Peer(t *testing.T) {
	r := &Record{
		ActiveMembers:   map[string]string{"u1": "amy"},
		InactiveMembers: map[string]string{"u2": "bob"},
	}

	uid, username, ok := r.Peer("u1")
	if !ok || uid != "u2" || username != "bob" {
		t.Errorf("Unexpected peer of u1.\nexpected: %s %s\nreceived: %s %s",
			"u2", "bob", uid, username)
	}
	uid, username, ok = r.Peer("u2")
	if !ok || uid != "u1" || username != "amy" {
		t.Errorf("Unexpected peer of u2.\nexpected: %s %s\nreceived: %s %s",
			"u1", "amy", uid, username)
	}

	alone := &Record{ActiveMembers: map[string]string{"u1": "amy"}}
	if _, _, ok = alone.Peer("u1"); ok {
		t.Error("Peer found a member in a conversation of one.")
	}
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		msg   Message
		valid bool
	}{
		{Message{Sender: "amy", Text: "hi"}, true},
		{Message{Sender: "amy", ImageURL: "https://img/1.jpg"}, true},
		{Message{Sender: "amy"}, false},
		{Message{Sender: "amy", Text: "   "}, false},
		{Message{Sender: "amy", Text: "hi", ImageURL: "https://img/1.jpg"}, false},
		{Message{Text: "hi"}, false},
	}
	for i, tt := range tests {
		err := tt.msg.Validate()
		if (err == nil) != tt.valid {
			t.Errorf("Unexpected result (%d) for %+v: %v", i, tt.msg, err)
		}
	}

	empty := Message{Sender: "amy"}
	if err := empty.Validate(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Unexpected error.\nexpected: %v\nreceived: %v",
			ErrInvalidPayload, err)
	}
}

func TestTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 250000000)
	ts := Timestamp(now)
	if ts != 1700000000.25 {
		t.Errorf("Unexpected timestamp.\nexpected: %f\nreceived: %f",
			1700000000.25, ts)
	}
	back := FromTimestamp(ts)
	if d := back.Sub(now); d > time.Microsecond || d < -time.Microsecond {
		t.Errorf("Round trip drifted by %s", d)
	}
}
