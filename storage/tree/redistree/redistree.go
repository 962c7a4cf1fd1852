////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package redistree implements the shared tree on Redis. Leaf values are
// string keys, every interior node keeps a set of its child keys and each
// write is published on one pub/sub channel that every client of the
// namespace subscribes to.
package redistree

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/stoppable"
	"gitlab.com/parley/client/storage/tree"
)

const eventsChannel = ":events"

// Tree is a tree.Tree stored in Redis.
type Tree struct {
	client    redis.UniversalClient
	namespace string

	pubsub   *redis.PubSub
	dispatch *tree.Dispatcher
	stop     *stoppable.Single
}

// New subscribes to the change feed of namespace and returns the tree. The
// subscription is confirmed before New returns so that no write made after it
// is missed.
func New(ctx context.Context, client redis.UniversalClient, namespace string) (
	*Tree, error) {
	t := &Tree{
		client:    client,
		namespace: namespace,
		dispatch:  tree.NewDispatcher("RedisTree-" + namespace),
		stop:      stoppable.NewSingle("RedisTreeFeed-" + namespace),
	}

	t.pubsub = client.Subscribe(ctx, t.channel())
	if _, err := t.pubsub.Receive(ctx); err != nil {
		_ = t.pubsub.Close()
		_ = t.dispatch.Close()
		return nil, errors.Wrapf(err,
			"failed to subscribe to changes of namespace %s", namespace)
	}

	go t.feed(t.pubsub.Channel())
	jww.INFO.Printf("Connected to redis tree %s", namespace)
	return t, nil
}

// Close stops the change feed. The Redis client stays open.
func (t *Tree) Close() error {
	err := t.stop.Close()
	if dErr := t.dispatch.Close(); err == nil {
		err = dErr
	}
	return err
}

// Get returns the value stored at path.
func (t *Tree) Get(ctx context.Context, path string) ([]byte, error) {
	if _, err := tree.Split(path); err != nil {
		return nil, err
	}
	data, err := t.client.Get(ctx, t.valueKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, tree.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

// Set stores value at path and links its ancestors.
func (t *Tree) Set(ctx context.Context, path string, value []byte) error {
	if _, err := tree.Split(path); err != nil {
		return err
	}
	e, err := t.marshalEvent(tree.Event{Op: tree.OpSet, Path: path, Value: value})
	if err != nil {
		return err
	}

	_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, t.valueKey(path), value, 0)
		t.link(ctx, p, path)
		p.Publish(ctx, t.channel(), e)
		return nil
	})
	return errors.Wrapf(err, "failed to write %s", path)
}

// SetIfAbsent stores value at path only if no value is stored there. The
// check and the write are one SETNX, so two clients racing for the same path
// cannot both succeed.
func (t *Tree) SetIfAbsent(
	ctx context.Context, path string, value []byte) (bool, error) {
	if _, err := tree.Split(path); err != nil {
		return false, err
	}

	n, err := t.client.Exists(ctx, t.childrenKey(path)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to check %s", path)
	} else if n > 0 {
		return false, nil
	}

	ok, err := t.client.SetNX(ctx, t.valueKey(path), value, 0).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to write %s", path)
	} else if !ok {
		return false, nil
	}

	e, err := t.marshalEvent(tree.Event{Op: tree.OpSet, Path: path, Value: value})
	if err != nil {
		return true, err
	}
	_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		t.link(ctx, p, path)
		p.Publish(ctx, t.channel(), e)
		return nil
	})
	return true, errors.Wrapf(err, "failed to link %s", path)
}

// Remove deletes path and its subtree.
func (t *Tree) Remove(ctx context.Context, path string) error {
	if _, err := tree.Split(path); err != nil {
		return err
	}

	var keys []string
	if err := t.collect(ctx, path, &keys); err != nil {
		return err
	}
	e, err := t.marshalEvent(tree.Event{Op: tree.OpRemove, Path: path})
	if err != nil {
		return err
	}

	var removed *redis.IntCmd
	_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.Del(ctx, keys...)
		if parent, ok := tree.Parent(path); ok {
			p.SRem(ctx, t.childrenKey(parent), path[len(parent)+1:])
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to remove %s", path)
	}
	if removed.Val() == 0 {
		return nil
	}

	if err = t.prune(ctx, path); err != nil {
		return err
	}
	return errors.Wrapf(t.client.Publish(ctx, t.channel(), e).Err(),
		"failed to publish removal of %s", path)
}

// Push stores value under a new push key below parent.
func (t *Tree) Push(
	ctx context.Context, parent string, value []byte) (string, error) {
	key, err := tree.NewPushKey()
	if err != nil {
		return "", err
	}
	return key, t.Set(ctx, tree.Join(parent, key), value)
}

// Children returns the immediate children of path.
func (t *Tree) Children(ctx context.Context, path string) ([]tree.Node, error) {
	if _, err := tree.Split(path); err != nil {
		return nil, err
	}
	keys, err := t.client.SMembers(ctx, t.childrenKey(path)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list children of %s", path)
	}
	if len(keys) == 0 {
		return []tree.Node{}, nil
	}
	sort.Strings(keys)

	values := make([]*redis.StringCmd, len(keys))
	interior := make([]*redis.IntCmd, len(keys))
	_, err = t.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			child := tree.Join(path, k)
			values[i] = p.Get(ctx, t.valueKey(child))
			interior[i] = p.Exists(ctx, t.childrenKey(child))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(err, "failed to read children of %s", path)
	}

	nodes := make([]tree.Node, len(keys))
	for i, k := range keys {
		nodes[i] = tree.Node{Key: k, HasChildren: interior[i].Val() > 0}
		if data, err := values[i].Bytes(); err == nil {
			nodes[i].Value = data
		}
	}
	return nodes, nil
}

// Listen registers cb for writes at or below path made by any client of the
// namespace.
func (t *Tree) Listen(
	path string, cb tree.Listener) (stoppable.Stoppable, error) {
	if _, err := tree.Split(path); err != nil {
		return nil, err
	}
	return t.dispatch.Register(path, cb), nil
}

func (t *Tree) feed(messages <-chan *redis.Message) {
	for {
		select {
		case <-t.stop.Quit():
			if err := t.pubsub.Close(); err != nil {
				jww.WARN.Printf("Failed to close redis subscription: %+v",
					err)
			}
			t.stop.ToStopped()
			return
		case msg, ok := <-messages:
			if !ok {
				jww.WARN.Printf("Redis tree %s change feed closed",
					t.namespace)
				<-t.stop.Quit()
				t.stop.ToStopped()
				return
			}
			var e tree.Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				jww.ERROR.Printf("Dropping malformed tree event %q: %+v",
					msg.Payload, err)
				continue
			}
			t.dispatch.Publish(e)
		}
	}
}

// link adds every segment of path to the child set of its parent.
func (t *Tree) link(ctx context.Context, p redis.Pipeliner, path string) {
	for child := path; ; {
		parent, ok := tree.Parent(child)
		if !ok {
			return
		}
		p.SAdd(ctx, t.childrenKey(parent), child[len(parent)+1:])
		child = parent
	}
}

// collect appends the value and child-set keys of path and its subtree.
func (t *Tree) collect(ctx context.Context, path string, keys *[]string) error {
	*keys = append(*keys, t.valueKey(path), t.childrenKey(path))
	children, err := t.client.SMembers(ctx, t.childrenKey(path)).Result()
	if err != nil {
		return errors.Wrapf(err, "failed to list children of %s", path)
	}
	for _, c := range children {
		if err = t.collect(ctx, tree.Join(path, c), keys); err != nil {
			return err
		}
	}
	return nil
}

// prune unlinks ancestors of path that were left with neither a value nor
// children.
func (t *Tree) prune(ctx context.Context, path string) error {
	for child := path; ; {
		parent, ok := tree.Parent(child)
		if !ok {
			return nil
		}
		n, err := t.client.Exists(ctx,
			t.childrenKey(parent), t.valueKey(parent)).Result()
		if err != nil {
			return errors.Wrapf(err, "failed to check %s", parent)
		} else if n > 0 {
			return nil
		}
		grand, ok := tree.Parent(parent)
		if !ok {
			return nil
		}
		err = t.client.SRem(ctx, t.childrenKey(grand),
			parent[len(grand)+1:]).Err()
		if err != nil {
			return errors.Wrapf(err, "failed to unlink %s", parent)
		}
		child = parent
	}
}

func (t *Tree) marshalEvent(e tree.Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", errors.Wrapf(err, "failed to marshal %s event", e.Op)
	}
	return string(data), nil
}

func (t *Tree) channel() string {
	return t.namespace + eventsChannel
}

func (t *Tree) valueKey(path string) string {
	return t.namespace + ":v:" + path
}

func (t *Tree) childrenKey(path string) string {
	return t.namespace + ":c:" + path
}
