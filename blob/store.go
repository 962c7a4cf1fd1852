////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package blob stores uploaded images and keeps a local cache of downloaded
// ones.
package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no blob exists at a path or URL.
var ErrNotFound = errors.New("blob not found")

// Store saves blobs at slash separated paths and serves them by URL.
type Store interface {
	// Put saves data at path, replacing any previous blob, and returns its
	// download URL.
	Put(ctx context.Context, path string, data []byte, contentType string) (
		string, error)

	// Get returns the blob a download URL points to.
	Get(ctx context.Context, url string) ([]byte, error)

	// DownloadURL returns the URL of the blob at path.
	DownloadURL(ctx context.Context, path string) (string, error)
}

// DisplayPicturePath returns where the display picture of uid is stored.
func DisplayPicturePath(uid string) string {
	return fmt.Sprintf("displayPictures/%s/%s.JPG", uid, uid)
}

// ConversationImagePath returns where an image sent at t is stored.
func ConversationImagePath(conversationID string, t time.Time) string {
	return fmt.Sprintf("conversations/%s/images/%d.jpg",
		conversationID, t.UnixMilli())
}
