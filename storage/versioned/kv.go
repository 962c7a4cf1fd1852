////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package versioned wraps an ekv.KeyValue with key prefixes and a versioned
// JSON envelope. It is the local persistence layer used by the embedded tree,
// the local identity provider and the key/value blob store.
package versioned

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/primitives/netTime"
)

// PrefixSeparator joins nested prefixes.
const PrefixSeparator = "/"

// KV stores versioned objects under an optional prefix.
type KV struct {
	data   ekv.KeyValue
	prefix string
}

// NewKV returns a KV with no prefix backed by data.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{data: data}
}

// Prefix returns a KV that shares the backing store but writes every key under
// the given prefix.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		data:   v.data,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// GetPrefix returns the accumulated prefix of the KV.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// Get returns the object stored under key at the given version.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	obj := &Object{}
	if err := v.data.Get(v.makeKey(key, version), obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Set stores the object under key at the object's version.
func (v *KV) Set(key string, obj *Object) error {
	fullKey := v.makeKey(key, obj.Version)
	jww.TRACE.Printf("Set versioned key %s", fullKey)
	return v.data.Set(fullKey, obj)
}

// Delete removes the object stored under key at the given version.
func (v *KV) Delete(key string, version uint64) error {
	fullKey := v.makeKey(key, version)
	jww.TRACE.Printf("Delete versioned key %s", fullKey)
	return v.data.Delete(fullKey)
}

// SetJSON marshals value and stores it under key at the given version.
func (v *KV) SetJSON(key string, version uint64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal value for %s", key)
	}
	return v.Set(key, &Object{
		Version:   version,
		Timestamp: netTime.Now(),
		Data:      data,
	})
}

// GetJSON loads the object stored under key and unmarshals its data into
// value.
func (v *KV) GetJSON(key string, version uint64, value interface{}) error {
	obj, err := v.Get(key, version)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal(obj.Data, value),
		"failed to unmarshal value for %s", key)
}

// Exists returns false if err indicates that the key was never written.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}

// GetFullKey returns the key as it is written to the backing store.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

func (v *KV) makeKey(key string, version uint64) string {
	return v.prefix + key + "_" + strconv.FormatUint(version, 10)
}
