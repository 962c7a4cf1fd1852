////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package client is the entry point of the messenger. A Client owns every
// component, keeps the signed in session and closes its live feeds when the
// user signs out.
package client

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/parley/client/blob"
	"gitlab.com/parley/client/conversation"
	"gitlab.com/parley/client/directory"
	"gitlab.com/parley/client/event"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/lifecycle"
	"gitlab.com/parley/client/messaging"
	"gitlab.com/parley/client/notifications"
	"gitlab.com/parley/client/session"
	"gitlab.com/parley/client/stoppable"
	"gitlab.com/parley/client/storage/tree"
)

// ErrNotLoggedIn is returned by calls that need a signed in user.
var ErrNotLoggedIn = errors.New("not logged in")

// Components are the collaborators a Client is built on.
type Components struct {
	// Tree is the shared store. Required.
	Tree tree.Tree

	// Provider verifies credentials. Required.
	Provider identity.Provider

	// Sink delivers push notifications. Defaults to logging them.
	Sink notifications.Sink

	// Blobs stores images. Required.
	Blobs blob.Store

	// Cache keeps downloaded images. Optional.
	Cache blob.Cache
}

// Client is a messenger client for one user at a time.
type Client struct {
	identity      identity.Manager
	directory     *directory.Directory
	conversations *conversation.Store
	lifecycle     *lifecycle.Manager
	messaging     *messaging.Engine
	media         *blob.Media
	events        *event.Manager
	params        Params

	eventsStop stoppable.Stoppable

	session *session.Session
	// uid of a signed up user that has not claimed a username yet
	pendingUID string
	// live feeds of the session
	feeds *stoppable.Multi
	mux   sync.RWMutex
}

// New builds a Client. Events are delivered until Close is called.
func New(c Components, params Params) (*Client, error) {
	if c.Tree == nil || c.Provider == nil || c.Blobs == nil {
		return nil, errors.New("tree, provider and blob store are required")
	}

	sink := c.Sink
	if sink == nil {
		sink = notifications.LogSink{}
	}
	if params.NotificationRate > 0 {
		sink = notifications.NewRateLimited(sink, params.NotificationRate)
	}

	client := &Client{
		identity:      identity.NewStore(c.Tree, c.Provider),
		directory:     directory.New(c.Tree),
		conversations: conversation.NewStore(c.Tree),
		events:        event.NewManager(),
		params:        params,
		feeds:         stoppable.NewMulti(feedsName),
	}
	client.lifecycle = lifecycle.NewManager(
		client.identity, client.directory, client.conversations)
	client.messaging = messaging.NewEngine(client.conversations,
		client.directory, client.identity, client.lifecycle, sink,
		client.events)
	client.media = blob.NewMedia(c.Blobs, c.Cache, client.identity,
		params.Media)
	client.eventsStop = client.events.Start()

	return client, nil
}

const feedsName = "SessionFeeds"

// RegisterEventCallback adds a named callback for client events, such as
// failed notifications.
func (c *Client) RegisterEventCallback(name string, cb event.Callback) error {
	return c.events.RegisterEventCallback(name, cb)
}

// Session returns the signed in session or ErrNotLoggedIn.
func (c *Client) Session() (*session.Session, error) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	if c.session == nil {
		return nil, ErrNotLoggedIn
	}
	return c.session, nil
}

// track adds a live feed opened for s. Feeds are closed on sign out. If s
// signed out while the feed was opening, the feed is closed and
// ErrNotLoggedIn is returned.
func (c *Client) track(s *session.Session, feed stoppable.Stoppable) error {
	c.mux.RLock()
	defer c.mux.RUnlock()
	if c.session != s {
		if err := feed.Close(); err != nil {
			jww.WARN.Printf("Failed to close feed %s: %+v", feed.Name(), err)
		}
		return ErrNotLoggedIn
	}
	c.feeds.Add(feed)
	return nil
}

// setSession replaces the session, closing every feed of the previous one.
func (c *Client) setSession(s *session.Session) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.feeds.Close(); err != nil {
		jww.WARN.Printf("Failed to close session feeds: %+v", err)
	}
	c.feeds = stoppable.NewMulti(feedsName)
	c.session = s
	c.pendingUID = ""
}

// WaitForNotifications blocks until every notification started so far has
// been handed to the sink.
func (c *Client) WaitForNotifications() {
	c.messaging.WaitForNotifications()
}

// Close signs out and stops event delivery.
func (c *Client) Close(ctx context.Context) error {
	if _, err := c.Session(); err == nil {
		if err = c.Logout(ctx); err != nil {
			jww.WARN.Printf("Failed to log out on close: %+v", err)
		}
	}
	return c.eventsStop.Close()
}
