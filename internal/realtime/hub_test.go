package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHub_SendToUserReachesEveryConnection(t *testing.T) {
	hub := runHub(t)
	userID := uuid.New()

	phone := NewClient(userID, nil)
	laptop := NewClient(userID, nil)
	other := NewClient(uuid.New(), nil)
	hub.RegisterClient(phone)
	hub.RegisterClient(laptop)
	hub.RegisterClient(other)
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, hub.SendToUser(userID, []byte(`{"type":"ping"}`)))
	assert.JSONEq(t, `{"type":"ping"}`, string(receive(t, phone)))
	assert.JSONEq(t, `{"type":"ping"}`, string(receive(t, laptop)))
	assert.Empty(t, other.Send)
}

func TestHub_NotifyEncodesEvent(t *testing.T) {
	hub := runHub(t)
	client := NewClient(uuid.New(), nil)
	hub.RegisterClient(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify(context.Background(), client.UserID, Event{Type: EventOrderStatus, Data: map[string]string{"status": "accepted"}})

	var ev struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(receive(t, client), &ev))
	assert.Equal(t, EventOrderStatus, ev.Type)
	assert.Equal(t, "accepted", ev.Data["status"])
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := runHub(t)
	client := NewClient(uuid.New(), nil)
	hub.RegisterClient(client)
	hub.UnregisterClient(client)

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Zero(t, hub.ClientCount())
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := runHub(t)
	client := NewClient(uuid.New(), nil)
	hub.RegisterClient(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < cap(client.Send); i++ {
		require.Equal(t, 1, hub.SendToUser(client.UserID, []byte("x")))
	}
	assert.Equal(t, 0, hub.SendToUser(client.UserID, []byte("overflow")))
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("6f1c1a7e-3a0b-4a55-9d57-0d6c3f0f9d11")
	assert.Equal(t, "notifications:6f1c1a7e-3a0b-4a55-9d57-0d6c3f0f9d11", Channel(id))
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	live := NewClient(uuid.New(), nil)
	hub.RegisterClient(live)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	late := NewClient(uuid.New(), nil)
	returned := make(chan struct{})
	go func() {
		hub.UnregisterClient(live)
		hub.RegisterClient(late)
		hub.UnregisterClient(late)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after the hub stopped")
	}

	_, ok := <-live.Send
	assert.False(t, ok)
	_, ok = <-late.Send
	assert.False(t, ok)
	assert.Zero(t, hub.ClientCount())
}
