////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package blob

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Cache keeps downloaded blobs by URL.
type Cache interface {
	// Get returns the cached blob and true, or false if it is not cached.
	Get(key string) ([]byte, bool, error)
	Put(key string, data []byte) error

	// EvictAll empties the cache.
	EvictAll() error
}

// BadgerCache is a Cache on a badger database.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens a cache in dir. An empty dir keeps the cache in
// memory.
func NewBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image cache in %q", dir)
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read %s from cache", key)
	}
	return data, true, nil
}

func (c *BadgerCache) Put(key string, data []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	return errors.Wrapf(err, "failed to cache %s", key)
}

func (c *BadgerCache) EvictAll() error {
	return errors.Wrap(c.db.DropAll(), "failed to empty cache")
}

// Close closes the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// badgerLogger sends badger's logs to jww, one level down.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	jww.WARN.Printf("[badger] "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	jww.INFO.Printf("[badger] "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	jww.DEBUG.Printf("[badger] "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	jww.TRACE.Printf("[badger] "+format, args...)
}
