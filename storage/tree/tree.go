////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package tree defines the realtime, tree-structured store that every client
// shares. Values live at slash separated paths, interior nodes exist only as
// long as they have children, and every write is published to the listeners
// registered at or above the written path.
//
// The store offers no transactions across paths. Writes are independent
// set/remove operations; SetIfAbsent is the only conditional write and it
// covers a single path.
package tree

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gitlab.com/parley/client/stoppable"
)

// Separator splits the segments of a path.
const Separator = "/"

// Errors returned by Tree implementations.
var (
	// ErrNotFound is returned when no value is stored at a path.
	ErrNotFound = errors.New("no value at path")

	// ErrInvalidPath is returned when a path is empty or has empty segments.
	ErrInvalidPath = errors.New("invalid tree path")
)

// Tree is a remote, shared, multi-writer tree of values.
type Tree interface {
	// Get returns the value stored at path or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Set stores value at path, creating any missing ancestors.
	Set(ctx context.Context, path string, value []byte) error

	// SetIfAbsent stores value at path only if nothing (neither a value nor
	// children) exists there. It returns true when the value was written.
	SetIfAbsent(ctx context.Context, path string, value []byte) (bool, error)

	// Remove deletes the value at path and the whole subtree below it.
	// Removing a path that does not exist is not an error.
	Remove(ctx context.Context, path string) error

	// Push stores value under a new, unique child of parent. Keys sort in
	// insertion order. The new key is returned.
	Push(ctx context.Context, parent string, value []byte) (string, error)

	// Children returns the immediate children of path sorted by key. A path
	// with no children returns an empty list.
	Children(ctx context.Context, path string) ([]Node, error)

	// Listen registers cb for every write at or below path, and for removals
	// of any ancestor of path. Closing the returned handle unregisters it.
	// Callbacks for one tree are called in write order on a single goroutine.
	Listen(path string, cb Listener) (stoppable.Stoppable, error)
}

// Node is an immediate child returned by Tree.Children.
type Node struct {
	Key         string
	Value       []byte
	HasChildren bool
}

// Op is the kind of write that produced an Event.
type Op uint8

const (
	OpSet Op = iota + 1
	OpRemove
)

// String returns a human-readable name for the Op.
func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event describes a single write to the tree.
type Event struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value []byte `json:"value,omitempty"`
}

// Listener receives tree events.
type Listener func(e Event)

// Child returns the segment of the event's path directly below root. It
// returns false when the event is not strictly below root.
func (e Event) Child(root string) (string, bool) {
	if !strings.HasPrefix(e.Path, root+Separator) {
		return "", false
	}
	rest := e.Path[len(root)+len(Separator):]
	if i := strings.Index(rest, Separator); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}

// Join builds a path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Split validates path and returns its segments.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, Separator)
	for _, s := range segments {
		if s == "" {
			return nil, errors.WithMessagef(ErrInvalidPath, "%q", path)
		}
	}
	return segments, nil
}

// Parent returns the parent path of path and false if path is a root segment.
func Parent(path string) (string, bool) {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return "", false
	}
	return path[:i], true
}

// NewPushKey returns a unique key that sorts after every key previously
// returned by this process. Keys are UUIDv7 strings, so keys made by different
// clients sort by their millisecond creation time.
func NewPushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate push key")
	}
	return id.String(), nil
}

// Matches returns true if an event at eventPath must be delivered to a
// listener registered at listenPath.
func Matches(listenPath string, e Event) bool {
	if e.Path == listenPath ||
		strings.HasPrefix(e.Path, listenPath+Separator) {
		return true
	}
	return e.Op == OpRemove &&
		strings.HasPrefix(listenPath, e.Path+Separator)
}
