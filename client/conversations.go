////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package client

import (
	"context"

	"gitlab.com/parley/client/conversation"
	"gitlab.com/parley/client/directory"
	"gitlab.com/parley/client/lifecycle"
	"gitlab.com/parley/client/messaging"
	"gitlab.com/parley/client/stoppable"
)

// StartConversation opens the conversation with peerUsername, creating it or
// bringing the user back into it. If the user already has it open the id is
// returned with lifecycle.ErrConversationAlreadyExists.
func (c *Client) StartConversation(ctx context.Context, peerUsername string) (
	string, lifecycle.Outcome, error) {
	s, err := c.Session()
	if err != nil {
		return "", 0, err
	}
	peerUID, err := c.identity.ResolveUID(ctx, peerUsername)
	if err != nil {
		return "", 0, err
	}
	return c.lifecycle.Start(ctx, s, peerUID, peerUsername)
}

// Leave archives the conversation. The peer keeps it.
func (c *Client) Leave(ctx context.Context, conversationID string) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	return c.lifecycle.Leave(ctx, s, conversationID)
}

// Block blocks peerUsername and leaves the conversation with them.
func (c *Client) Block(ctx context.Context, peerUsername string) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	peerUID, err := c.identity.ResolveUID(ctx, peerUsername)
	if err != nil {
		return err
	}
	if err = c.lifecycle.Block(ctx, s, peerUID, peerUsername); err != nil {
		return err
	}
	return s.Refresh(ctx, c.identity)
}

// Unblock removes the block of peerUsername.
func (c *Client) Unblock(ctx context.Context, peerUsername string) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	peerUID, err := c.identity.ResolveUID(ctx, peerUsername)
	if err != nil {
		return err
	}
	if err = c.lifecycle.Unblock(ctx, s, peerUID, peerUsername); err != nil {
		return err
	}
	return s.Refresh(ctx, c.identity)
}

// Report files a report against peerUsername about a conversation.
func (c *Client) Report(ctx context.Context, peerUsername, violation,
	conversationID string) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	peerUID, err := c.identity.ResolveUID(ctx, peerUsername)
	if err != nil {
		return err
	}
	return c.lifecycle.Report(
		ctx, s, peerUID, peerUsername, violation, conversationID)
}

// SendText sends a text message.
func (c *Client) SendText(ctx context.Context, conversationID, text string) (
	conversation.Message, error) {
	s, err := c.Session()
	if err != nil {
		return conversation.Message{}, err
	}
	return c.messaging.Send(ctx, s, conversationID, messaging.Text(text))
}

// SendImage uploads an image and sends it.
func (c *Client) SendImage(ctx context.Context, conversationID string,
	image []byte) (conversation.Message, error) {
	s, err := c.Session()
	if err != nil {
		return conversation.Message{}, err
	}
	url, err := c.media.UploadConversationImage(ctx, conversationID, image)
	if err != nil {
		return conversation.Message{}, err
	}
	return c.messaging.Send(ctx, s, conversationID, messaging.Image(url))
}

// Subscribe delivers the last page of messages and every new one. The feed
// is closed on sign out or when the returned handle is closed.
func (c *Client) Subscribe(ctx context.Context, conversationID string,
	cb messaging.OnMessage) (stoppable.Stoppable, error) {
	return c.SubscribeFrom(ctx, conversationID, c.params.HistoryPageSize, cb)
}

// SubscribeFrom is Subscribe with an explicit number of past messages.
func (c *Client) SubscribeFrom(ctx context.Context, conversationID string,
	fromCount int, cb messaging.OnMessage) (stoppable.Stoppable, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	handle, err := c.messaging.Subscribe(ctx, s, conversationID, fromCount, cb)
	if err != nil {
		return nil, err
	}
	if err = c.track(s, handle); err != nil {
		return nil, err
	}
	return handle, nil
}

// WatchConversations reports every change to the user's active
// conversations.
func (c *Client) WatchConversations(cb func(directory.Change)) (
	stoppable.Stoppable, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	handle, err := c.directory.WatchActive(s.UID(), cb)
	if err != nil {
		return nil, err
	}
	if err = c.track(s, handle); err != nil {
		return nil, err
	}
	return handle, nil
}

// Overview summarises the user's active conversations, newest first.
func (c *Client) Overview(ctx context.Context) ([]messaging.Summary, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	return c.messaging.Overview(ctx, s)
}

// ComputeUnseen returns true if the conversation has a message newer than
// the user's last visit.
func (c *Client) ComputeUnseen(ctx context.Context, conversationID string) (
	bool, error) {
	s, err := c.Session()
	if err != nil {
		return false, err
	}
	return c.messaging.ComputeUnseen(ctx, conversationID, s.UID())
}

// MarkSeen records that the user saw the conversation now.
func (c *Client) MarkSeen(ctx context.Context, conversationID string) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	return c.messaging.MarkSeen(ctx, s, conversationID)
}
