////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package blob

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/parley/client/storage/versioned"
	"gitlab.com/xx_network/primitives/netTime"
)

const (
	kvStorePrefix  = "blob"
	kvStoreVersion = 0

	// KVScheme prefixes the URLs handed out by KVStore.
	KVScheme = "kv://"
)

// KVStore keeps blobs in a local key value store. It backs offline and test
// clients.
type KVStore struct {
	kv *versioned.KV
}

// NewKVStore returns a KVStore over kv.
func NewKVStore(kv ekv.KeyValue) *KVStore {
	return &KVStore{kv: versioned.NewKV(kv).Prefix(kvStorePrefix)}
}

// Put saves data at path. The content type is not kept.
func (s *KVStore) Put(ctx context.Context, path string, data []byte,
	_ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err := s.kv.Set(path, &versioned.Object{
		Version:   kvStoreVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	})
	if err != nil {
		return "", errors.WithMessagef(err, "failed to store blob %s", path)
	}
	return s.DownloadURL(ctx, path)
}

// Get returns the blob at a URL returned by Put or DownloadURL.
func (s *KVStore) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, KVScheme)
	if path == url {
		return nil, errors.WithMessagef(ErrNotFound, "not a local URL: %s", url)
	}

	obj, err := s.kv.Get(path, kvStoreVersion)
	if err != nil {
		if !s.kv.Exists(err) {
			return nil, errors.WithMessagef(ErrNotFound, "%s", path)
		}
		return nil, err
	}
	return obj.Data, nil
}

// DownloadURL returns the URL of path. It does not check that a blob exists.
func (s *KVStore) DownloadURL(_ context.Context, path string) (string, error) {
	return KVScheme + path, nil
}
