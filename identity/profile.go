////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"gitlab.com/parley/client/storage/tree"
)

// Roots of the identity data in the shared tree.
const (
	profilesRoot  = "userInformation"
	usernamesRoot = "registeredUsernames"
	reportsRoot   = "reportedUsersRecord"
)

// Leaf names below userInformation/{uid}.
const (
	emailField          = "email"
	firstNameField      = "firstName"
	lastNameField       = "lastName"
	usernameField       = "username"
	notificationIDField = "notificationID"
	displayPictureField = "displayPicture"
	blockedField        = "blockedUsernames"
)

// Profile is the public information of a user.
type Profile struct {
	UID            string
	Username       string
	FirstName      string
	LastName       string
	Email          string
	NotificationID string
	DisplayPicture string

	// BlockedUsernames maps every username this user blocked to its uid.
	BlockedUsernames map[string]string
}

// Complete returns true if the profile has the fields a session needs.
func (p Profile) Complete() bool {
	return p.UID != "" && p.Username != ""
}

// FullName returns the first and last name joined by a space.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Blocks returns true if this user blocked username.
func (p Profile) Blocks(username string) bool {
	_, ok := p.BlockedUsernames[username]
	return ok
}

// Report is a complaint about a user, filed by another user.
type Report struct {
	UIDReported      string  `json:"uidReported"`
	UsernameReported string  `json:"usernameReported"`
	Violation        string  `json:"violation"`
	RelevantConvoID  string  `json:"relevantConvoID"`
	ReportedBy       string  `json:"reportedBy"`
	Timestamp        float64 `json:"timestamp"`
}

func profilePath(uid string, field ...string) string {
	return tree.Join(append([]string{profilesRoot, uid}, field...)...)
}

func usernamePath(username string) string {
	return tree.Join(usernamesRoot, username)
}
