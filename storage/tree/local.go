////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package tree

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/parley/client/stoppable"
	"gitlab.com/parley/client/storage/versioned"
)

const (
	localPrefix       = "tree"
	localValueVersion = 0
	localValueFmt     = "value:"
	localChildrenFmt  = "children:"
	localIndexVersion = 0
)

// Local is a Tree kept in an ekv.KeyValue. All clients sharing a Local share
// its state, which makes it the store used by the command line client in
// offline mode and by tests that run several clients against one tree.
//
// Every node keeps the sorted list of its children under a separate key, in
// the same way the values of a map are indexed by a key list.
type Local struct {
	kv       *versioned.KV
	mux      sync.Mutex
	dispatch *Dispatcher
}

// NewLocal returns a Local tree backed by kv.
func NewLocal(kv ekv.KeyValue) *Local {
	return &Local{
		kv:       versioned.NewKV(kv).Prefix(localPrefix),
		dispatch: NewDispatcher("LocalTree"),
	}
}

// NewMemLocal returns a Local tree held in memory.
func NewMemLocal() *Local {
	return NewLocal(ekv.MakeMemstore())
}

// Close stops event delivery.
func (l *Local) Close() error {
	return l.dispatch.Close()
}

// Get returns the value stored at path.
func (l *Local) Get(ctx context.Context, path string) ([]byte, error) {
	if err := checkPath(ctx, path); err != nil {
		return nil, err
	}
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.getValue(path)
}

// Set stores value at path.
func (l *Local) Set(ctx context.Context, path string, value []byte) error {
	if err := checkPath(ctx, path); err != nil {
		return err
	}
	l.mux.Lock()
	err := l.setValue(path, value)
	l.mux.Unlock()
	if err != nil {
		return err
	}
	l.dispatch.Publish(Event{Op: OpSet, Path: path, Value: value})
	return nil
}

// SetIfAbsent stores value at path only if the path is empty.
func (l *Local) SetIfAbsent(
	ctx context.Context, path string, value []byte) (bool, error) {
	if err := checkPath(ctx, path); err != nil {
		return false, err
	}
	l.mux.Lock()
	if _, err := l.getValue(path); err == nil {
		l.mux.Unlock()
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		l.mux.Unlock()
		return false, err
	}
	children, err := l.getChildren(path)
	if err != nil || len(children) > 0 {
		l.mux.Unlock()
		return false, err
	}
	err = l.setValue(path, value)
	l.mux.Unlock()
	if err != nil {
		return false, err
	}
	l.dispatch.Publish(Event{Op: OpSet, Path: path, Value: value})
	return true, nil
}

// Remove deletes path and its subtree.
func (l *Local) Remove(ctx context.Context, path string) error {
	if err := checkPath(ctx, path); err != nil {
		return err
	}
	l.mux.Lock()
	existed, err := l.removeSubtree(path)
	if err == nil && existed {
		err = l.pruneFrom(path)
	}
	l.mux.Unlock()
	if err != nil {
		return err
	}
	if existed {
		l.dispatch.Publish(Event{Op: OpRemove, Path: path})
	}
	return nil
}

// Push stores value under a new push key below parent.
func (l *Local) Push(
	ctx context.Context, parent string, value []byte) (string, error) {
	key, err := NewPushKey()
	if err != nil {
		return "", err
	}
	return key, l.Set(ctx, Join(parent, key), value)
}

// Children returns the immediate children of path.
func (l *Local) Children(ctx context.Context, path string) ([]Node, error) {
	if err := checkPath(ctx, path); err != nil {
		return nil, err
	}
	l.mux.Lock()
	defer l.mux.Unlock()

	keys, err := l.getChildren(path)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(keys))
	for _, k := range keys {
		childPath := Join(path, k)
		n := Node{Key: k}
		if n.Value, err = l.getValue(childPath); err != nil &&
			!errors.Is(err, ErrNotFound) {
			return nil, err
		}
		grandChildren, err := l.getChildren(childPath)
		if err != nil {
			return nil, err
		}
		n.HasChildren = len(grandChildren) > 0
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Listen registers cb for writes at or below path.
func (l *Local) Listen(path string, cb Listener) (stoppable.Stoppable, error) {
	if _, err := Split(path); err != nil {
		return nil, err
	}
	return l.dispatch.Register(path, cb), nil
}

func checkPath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := Split(path)
	return err
}

// getValue must be called under the lock.
func (l *Local) getValue(path string) ([]byte, error) {
	obj, err := l.kv.Get(localValueFmt+path, localValueVersion)
	if err != nil {
		if !l.kv.Exists(err) {
			return nil, ErrNotFound
		}
		return nil, errors.WithMessagef(err, "failed to read %s", path)
	}
	return obj.Data, nil
}

// setValue writes the value and links every ancestor to its child. It must
// be called under the lock.
func (l *Local) setValue(path string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	err := l.kv.Set(localValueFmt+path, &versioned.Object{
		Version: localValueVersion,
		Data:    value,
	})
	if err != nil {
		return errors.WithMessagef(err, "failed to write %s", path)
	}

	for child := path; ; {
		parent, ok := Parent(child)
		if !ok {
			return nil
		}
		added, err := l.addChild(parent, child[len(parent)+1:])
		if err != nil {
			return err
		}
		if !added {
			// Every ancestor above an existing link is already linked
			return nil
		}
		child = parent
	}
}

// removeSubtree deletes path and everything below it. It must be called
// under the lock.
func (l *Local) removeSubtree(path string) (bool, error) {
	children, err := l.getChildren(path)
	if err != nil {
		return false, err
	}
	existed := len(children) > 0
	for _, c := range children {
		if _, err = l.removeSubtree(Join(path, c)); err != nil {
			return false, err
		}
	}
	if existed {
		if err = l.kv.Delete(
			localChildrenFmt+path, localIndexVersion); err != nil {
			return false, err
		}
	}

	if _, err = l.getValue(path); err == nil {
		existed = true
		if err = l.kv.Delete(
			localValueFmt+path, localValueVersion); err != nil {
			return false, err
		}
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return existed, nil
}

// pruneFrom unlinks path from its parent and removes every ancestor left with
// neither a value nor children. It must be called under the lock.
func (l *Local) pruneFrom(path string) error {
	for child := path; ; {
		parent, ok := Parent(child)
		if !ok {
			return nil
		}
		remaining, err := l.removeChild(parent, child[len(parent)+1:])
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		if _, err = l.getValue(parent); err == nil {
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		child = parent
	}
}

func (l *Local) getChildren(path string) ([]string, error) {
	var keys []string
	err := l.kv.GetJSON(localChildrenFmt+path, localIndexVersion, &keys)
	if err != nil && !l.kv.Exists(err) {
		return nil, nil
	}
	return keys, err
}

func (l *Local) addChild(path, key string) (bool, error) {
	keys, err := l.getChildren(path)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(keys, key)
	if i < len(keys) && keys[i] == key {
		return false, nil
	}
	keys = append(keys, "")
	copy(keys[i+1:], keys[i:])
	keys[i] = key
	return true, l.kv.SetJSON(localChildrenFmt+path, localIndexVersion, keys)
}

func (l *Local) removeChild(path, key string) (int, error) {
	keys, err := l.getChildren(path)
	if err != nil {
		return 0, err
	}
	i := sort.SearchStrings(keys, key)
	if i == len(keys) || keys[i] != key {
		return len(keys), nil
	}
	keys = append(keys[:i], keys[i+1:]...)
	if len(keys) == 0 {
		jww.TRACE.Printf("Node %s has no children left", path)
		return 0, l.kv.Delete(localChildrenFmt+path, localIndexVersion)
	}
	return len(keys), l.kv.SetJSON(
		localChildrenFmt+path, localIndexVersion, keys)
}
