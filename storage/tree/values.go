////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package tree

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GetString returns the value at path as a string.
func GetString(ctx context.Context, t Tree, path string) (string, error) {
	data, err := t.Get(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetString stores s at path.
func SetString(ctx context.Context, t Tree, path, s string) error {
	return t.Set(ctx, path, []byte(s))
}

// GetFloat returns the value at path parsed as a float.
func GetFloat(ctx context.Context, t Tree, path string) (float64, error) {
	data, err := t.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "value at %s is not a number", path)
	}
	return f, nil
}

// SetFloat stores f at path.
func SetFloat(ctx context.Context, t Tree, path string, f float64) error {
	return t.Set(ctx, path, []byte(strconv.FormatFloat(f, 'f', -1, 64)))
}

// GetJSON unmarshals the value at path into v.
func GetJSON(ctx context.Context, t Tree, path string, v interface{}) error {
	data, err := t.Get(ctx, path)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal(data, v), "value at %s", path)
}

// SetJSON marshals v and stores it at path.
func SetJSON(ctx context.Context, t Tree, path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal value for %s", path)
	}
	return t.Set(ctx, path, data)
}

// StringMap returns the leaf children of path as a key to string map.
func StringMap(ctx context.Context, t Tree, path string) (
	map[string]string, error) {
	nodes, err := t.Children(ctx, path)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.Value != nil {
			m[n.Key] = string(n.Value)
		}
	}
	return m, nil
}

// KeyRange returns the leaf children of path whose keys start with prefix, in
// key order, stopping after limit results. A limit of zero or less means no
// limit.
func KeyRange(ctx context.Context, t Tree, path, prefix string, limit int) (
	[]Node, error) {
	nodes, err := t.Children(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []Node
	for _, n := range nodes {
		if !strings.HasPrefix(n.Key, prefix) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
