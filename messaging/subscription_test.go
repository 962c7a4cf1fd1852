////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collect subscribes and returns a channel with every delivery.
func collect(t *testing.T, env *testEnv, id string, fromCount int) (
	chan Delivery, func()) {
	deliveries := make(chan Delivery, 100)
	handle, err := env.e.Subscribe(context.Background(), env.bob, id,
		fromCount, func(d Delivery) { deliveries <- d })
	require.NoError(t, err)
	return deliveries, func() { require.NoError(t, handle.Close()) }
}

func receive(t *testing.T, deliveries chan Delivery) Delivery {
	select {
	case d := <-deliveries:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for delivery")
	}
	return Delivery{}
}

func TestEngine_Subscribe(t *testing.T) {
	env := newTestEnv(t)
	id := env.conversation(t)
	for _, text := range []string{"one", "two", "three"} {
		env.send(t, env.amy, id, text)
	}

	deliveries, closeFn := collect(t, env, id, 2)
	defer closeFn()

	for _, expected := range []string{"two", "three"} {
		d := receive(t, deliveries)
		if d.Text != expected || !d.Historical {
			t.Errorf("Unexpected history delivery."+
				"\nexpected: %q (historical)\nreceived: %q (historical: %t)",
				expected, d.Text, d.Historical)
		}
	}

	env.send(t, env.amy, id, "four")
	d := receive(t, deliveries)
	require.Equal(t, "four", d.Text)
	require.False(t, d.Historical)

	select {
	case d = <-deliveries:
		t.Errorf("Unexpected delivery: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_Subscribe_NoHistory(t *testing.T) {
	env := newTestEnv(t)
	id := env.conversation(t)
	env.send(t, env.amy, id, "old")

	deliveries, closeFn := collect(t, env, id, 0)
	defer closeFn()

	env.send(t, env.amy, id, "new")
	d := receive(t, deliveries)
	require.Equal(t, "new", d.Text)
	require.False(t, d.Historical)
}

// Messages sent while history is being read are delivered once, in order.
func TestEngine_Subscribe_Order(t *testing.T) {
	env := newTestEnv(t)
	id := env.conversation(t)
	env.send(t, env.amy, id, "0")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, text := range []string{"1", "2", "3", "4", "5"} {
			_, _ = env.e.Send(context.Background(), env.amy, id, Text(text))
		}
	}()

	deliveries, closeFn := collect(t, env, id, 100)
	defer closeFn()
	<-done

	var received []string
	for len(received) < 6 {
		received = append(received, receive(t, deliveries).Text)
	}
	require.Equal(t, []string{"0", "1", "2", "3", "4", "5"}, received)
}

func TestEngine_Subscribe_MarksSeen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.conversation(t)
	env.send(t, env.amy, id, "hi")

	deliveries, closeFn := collect(t, env, id, 10)
	defer closeFn()
	receive(t, deliveries)

	require.Eventually(t, func() bool {
		unseen, err := env.e.ComputeUnseen(ctx, id, env.bob.UID())
		return err == nil && !unseen
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_Subscribe_Close(t *testing.T) {
	env := newTestEnv(t)
	id := env.conversation(t)

	deliveries, closeFn := collect(t, env, id, 0)
	closeFn()

	env.send(t, env.amy, id, "anyone?")
	select {
	case d := <-deliveries:
		t.Errorf("Delivery after close: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_Subscribe_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.e.Subscribe(context.Background(), env.bob, "missing", 1,
		func(Delivery) {})
	require.Error(t, err)
}
