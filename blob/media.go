////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package blob

import (
	"context"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/session"
	"gitlab.com/xx_network/primitives/netTime"
)

// MediaParams controls how images are prepared before upload.
type MediaParams struct {
	MaxDimension uint
	JPEGQuality  int
}

// Media uploads pictures and fetches them through the cache.
type Media struct {
	store    Store
	cache    Cache
	identity identity.Manager
	params   MediaParams
	now      func() time.Time
}

// NewMedia returns a Media service. The cache may be nil.
func NewMedia(store Store, cache Cache, im identity.Manager,
	params MediaParams) *Media {
	return &Media{
		store:    store,
		cache:    cache,
		identity: im,
		params:   params,
		now:      netTime.Now,
	}
}

// UploadDisplayPicture uploads the user's picture and records its URL on
// their profile.
func (m *Media) UploadDisplayPicture(ctx context.Context, s *session.Session,
	data []byte) (string, error) {
	url, err := m.upload(ctx, DisplayPicturePath(s.UID()), data)
	if err != nil {
		return "", err
	}
	if err = m.identity.SetDisplayPicture(ctx, s.UID(), url); err != nil {
		return "", errors.WithMessage(err, "uploaded display picture")
	}
	return url, nil
}

// UploadConversationImage uploads an image to be sent in the conversation
// and returns the URL to send.
func (m *Media) UploadConversationImage(ctx context.Context,
	conversationID string, data []byte) (string, error) {
	return m.upload(ctx, ConversationImagePath(conversationID, m.now()), data)
}

func (m *Media) upload(ctx context.Context, path string, data []byte) (
	string, error) {
	prepared, err := PrepareImage(
		data, m.params.MaxDimension, m.params.JPEGQuality)
	if err != nil {
		return "", err
	}
	url, err := m.store.Put(ctx, path, prepared, JPEGContentType)
	if err != nil {
		return "", err
	}
	m.cachePut(url, prepared)
	return url, nil
}

// Fetch returns the image at url, from the cache if it is there.
func (m *Media) Fetch(ctx context.Context, url string) ([]byte, error) {
	if m.cache != nil {
		data, found, err := m.cache.Get(url)
		if err != nil {
			jww.WARN.Printf("Image cache read failed: %+v", err)
		} else if found {
			return data, nil
		}
	}

	data, err := m.store.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	m.cachePut(url, data)
	return data, nil
}

// EvictAll empties the image cache.
func (m *Media) EvictAll() error {
	if m.cache == nil {
		return nil
	}
	return m.cache.EvictAll()
}

func (m *Media) cachePut(url string, data []byte) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Put(url, data); err != nil {
		jww.WARN.Printf("Image cache write failed: %+v", err)
	}
}
