////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Errors returned by the conversation store.
var (
	// ErrNotFound is returned when a conversation id resolves to nothing.
	ErrNotFound = errors.New("conversation not found")

	// ErrNotMember is returned when a user acts on a conversation they are
	// not in.
	ErrNotMember = errors.New("not a member of the conversation")

	// ErrInvalidPayload is returned for messages without exactly one of text
	// and image URL.
	ErrInvalidPayload = errors.New("message must have either text or an image")
)

// Record is the state of one conversation.
type Record struct {
	ID      string
	Creator string

	// uid to username; the two maps never share a uid
	ActiveMembers   map[string]string
	InactiveMembers map[string]string

	// uid to the time the member last saw the conversation
	LastSeen map[string]float64
}

// Members returns every member, active or not, as uid to username.
func (r *Record) Members() map[string]string {
	members := make(map[string]string,
		len(r.ActiveMembers)+len(r.InactiveMembers))
	for uid, username := range r.InactiveMembers {
		members[uid] = username
	}
	for uid, username := range r.ActiveMembers {
		members[uid] = username
	}
	return members
}

// IsActive returns true if uid is an active member.
// IsMember returns true if uid is an active or inactive member.
func (r *Record) IsMember(uid string) bool {
	_, active := r.ActiveMembers[uid]
	_, inactive := r.InactiveMembers[uid]
	return active || inactive
}

func (r *Record) IsActive(uid string) bool {
	_, ok := r.ActiveMembers[uid]
	return ok
}

// Peer returns the member that is not uid. Conversations have two members,
// so this is the one other member, whether it is active or not.
func (r *Record) Peer(uid string) (peerUID, peerUsername string, ok bool) {
	members := r.Members()
	uids := make([]string, 0, len(members))
	for m := range members {
		if m != uid {
			uids = append(uids, m)
		}
	}
	if len(uids) == 0 {
		return "", "", false
	}
	sort.Strings(uids)
	return uids[0], members[uids[0]], true
}

// Message is one entry of the message log.
type Message struct {
	// Key is the log key the message is stored under. It is not part of the
	// stored value.
	Key string `json:"-"`

	Sender    string  `json:"sender"`
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"text,omitempty"`
	ImageURL  string  `json:"imageURL,omitempty"`
}

// Validate returns ErrInvalidPayload unless the message carries exactly one
// of a non blank text or an image URL.
func (m *Message) Validate() error {
	hasText := strings.TrimSpace(m.Text) != ""
	hasImage := m.ImageURL != ""
	if hasText == hasImage {
		return ErrInvalidPayload
	}
	if m.Sender == "" {
		return errors.New("message has no sender")
	}
	return nil
}

// IsImage returns true if the message is an image.
func (m *Message) IsImage() bool {
	return m.ImageURL != ""
}

// Time returns the timestamp as a time.Time.
func (m *Message) Time() time.Time {
	return FromTimestamp(m.Timestamp)
}

// Timestamp converts t into seconds since the epoch.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromTimestamp converts seconds since the epoch into a time.Time.
func FromTimestamp(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
