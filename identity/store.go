////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/storage/tree"
	"gitlab.com/xx_network/primitives/netTime"
)

// Store is the Manager kept in the shared tree.
type Store struct {
	tree     tree.Tree
	provider Provider
	now      func() time.Time
}

// NewStore returns a Store writing to t and delegating credentials to p.
func NewStore(t tree.Tree, p Provider) *Store {
	return &Store{tree: t, provider: p, now: netTime.Now}
}

// CreateProfile creates credentials and writes the initial profile fields.
// Failing to write a field is logged and not retried; readers treat missing
// fields as empty.
func (s *Store) CreateProfile(ctx context.Context,
	email, firstName, lastName, password string) (string, error) {
	uid, err := s.provider.CreateUser(ctx, email, password)
	if err != nil {
		return "", &ProviderError{Err: err}
	}

	fields := []struct{ name, value string }{
		{emailField, email},
		{firstNameField, firstName},
		{lastNameField, lastName},
	}
	for _, f := range fields {
		err = tree.SetString(ctx, s.tree, profilePath(uid, f.name), f.value)
		if err != nil {
			jww.ERROR.Printf("Failed to write %s of new profile %s: %+v",
				f.name, uid, err)
		}
	}

	jww.INFO.Printf("Created profile %s", uid)
	return uid, nil
}

// SignIn verifies credentials with the provider.
func (s *Store) SignIn(ctx context.Context, email, password string) (
	string, error) {
	uid, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return "", &ProviderError{Err: err}
	}
	return uid, nil
}

// SignOut ends the provider session.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return &ProviderError{Err: err}
	}
	return nil
}

// ClaimUsername registers username for uid. The registry entry is written
// with a single conditional write, so of two users claiming the same name at
// the same time exactly one succeeds.
func (s *Store) ClaimUsername(ctx context.Context, uid, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}

	current, err := tree.GetString(ctx, s.tree, profilePath(uid, usernameField))
	if err == nil && current != "" {
		return errors.WithMessagef(ErrUsernameAlreadySet, "%q", current)
	} else if err != nil && !errors.Is(err, tree.ErrNotFound) {
		return errors.WithMessage(err, "failed to read current username")
	}

	ok, err := s.tree.SetIfAbsent(ctx, usernamePath(username), []byte(uid))
	if err != nil {
		return errors.WithMessagef(err, "failed to register %q", username)
	} else if !ok {
		return errors.WithMessagef(ErrUsernameTaken, "%q", username)
	}

	err = tree.SetString(ctx, s.tree, profilePath(uid, usernameField), username)
	if err != nil {
		return errors.WithMessagef(err,
			"registered %q but failed to write it to the profile", username)
	}

	jww.INFO.Printf("Registered username %q for %s", username, uid)
	return nil
}

// UsernameAvailable returns true if username has not been registered. The
// answer may be stale by the time ClaimUsername is called.
func (s *Store) UsernameAvailable(ctx context.Context, username string) (
	bool, error) {
	_, err := s.tree.Get(ctx, usernamePath(username))
	if errors.Is(err, tree.ErrNotFound) {
		return true, nil
	}
	return false, err
}

// ResolveProfile reads every profile field of uid.
func (s *Store) ResolveProfile(ctx context.Context, uid string) (
	*Profile, error) {
	nodes, err := s.tree.Children(ctx, profilePath(uid))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read profile %s", uid)
	}
	if len(nodes) == 0 {
		return nil, errors.WithMessagef(ErrNotFound, "uid %s", uid)
	}

	p := &Profile{UID: uid, BlockedUsernames: map[string]string{}}
	for _, n := range nodes {
		value := string(n.Value)
		switch n.Key {
		case emailField:
			p.Email = value
		case firstNameField:
			p.FirstName = value
		case lastNameField:
			p.LastName = value
		case usernameField:
			p.Username = value
		case notificationIDField:
			p.NotificationID = value
		case displayPictureField:
			p.DisplayPicture = value
		case blockedField:
			if p.BlockedUsernames, err = tree.StringMap(
				ctx, s.tree, profilePath(uid, blockedField)); err != nil {
				return nil, errors.WithMessagef(err,
					"failed to read blocked users of %s", uid)
			}
		}
	}
	return p, nil
}

// ResolveUID returns the uid registered for username.
func (s *Store) ResolveUID(ctx context.Context, username string) (
	string, error) {
	uid, err := tree.GetString(ctx, s.tree, usernamePath(username))
	if errors.Is(err, tree.ErrNotFound) {
		return "", errors.WithMessagef(ErrNotFound, "username %q", username)
	}
	return uid, err
}

// SearchUsernames runs a key range query over the username registry.
func (s *Store) SearchUsernames(ctx context.Context,
	selfUsername, prefix string, limit int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}, nil
	}

	fetch := limit
	if fetch > 0 {
		// The caller's own name may be among the results
		fetch++
	}
	nodes, err := tree.KeyRange(ctx, s.tree, usernamesRoot, prefix, fetch)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to search usernames")
	}

	results := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Key == selfUsername {
			continue
		}
		results = append(results, n.Key)
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

// SetBlocked sets or clears the block. Both directions are idempotent.
func (s *Store) SetBlocked(ctx context.Context,
	selfUID, username, uid string, blocked bool) error {
	path := profilePath(selfUID, blockedField, username)
	if blocked {
		return errors.WithMessagef(tree.SetString(ctx, s.tree, path, uid),
			"failed to block %q", username)
	}
	return errors.WithMessagef(s.tree.Remove(ctx, path),
		"failed to unblock %q", username)
}

// IsBlockedEitherDirection reads both users' block lists.
func (s *Store) IsBlockedEitherDirection(ctx context.Context, selfUID,
	selfUsername, otherUID, otherUsername string) (bool, error) {
	checks := []string{
		profilePath(selfUID, blockedField, otherUsername),
		profilePath(otherUID, blockedField, selfUsername),
	}
	for _, path := range checks {
		_, err := s.tree.Get(ctx, path)
		if err == nil {
			return true, nil
		} else if !errors.Is(err, tree.ErrNotFound) {
			return false, errors.WithMessage(err, "failed to check blocks")
		}
	}
	return false, nil
}

// SetNotificationAddress stores the push address of uid. An empty address
// removes it.
func (s *Store) SetNotificationAddress(
	ctx context.Context, uid, address string) error {
	path := profilePath(uid, notificationIDField)
	if address == "" {
		return s.tree.Remove(ctx, path)
	}
	return tree.SetString(ctx, s.tree, path, address)
}

// SetDisplayPicture stores the download URL of the display picture of uid.
func (s *Store) SetDisplayPicture(ctx context.Context, uid, url string) error {
	return tree.SetString(ctx, s.tree, profilePath(uid, displayPictureField), url)
}

// ReportUser appends the report to the report log.
func (s *Store) ReportUser(ctx context.Context, r Report) error {
	if r.Timestamp == 0 {
		r.Timestamp = float64(s.now().UnixNano()) / float64(time.Second)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}
	key, err := s.tree.Push(ctx, reportsRoot, data)
	if err != nil {
		return errors.WithMessage(err, "failed to file report")
	}
	jww.INFO.Printf("Filed report %s against %s", key, r.UIDReported)
	return nil
}
