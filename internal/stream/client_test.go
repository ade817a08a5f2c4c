package stream

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/events"
)

func TestClient_ReceivesEventsAfterConnect(t *testing.T) {
	_, broker, srv := newTestHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	connected := make(chan struct{})
	received := make(chan string, 1)
	client := NewClient(ClientOptions{
		URL:       url,
		BaseDelay: 10 * time.Millisecond,
		OnConnect: func(context.Context) { close(connected) },
		OnMessage: func(channel string, data map[string]interface{}) {
			select {
			case received <- channel:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	select {
	case <-connected:
	case <-time.After(3 * time.Second):
		t.Fatal("client never connected")
	}

	// The hub registers the session before OnConnect returns on our side,
	// but give the write loop a moment to start.
	time.Sleep(50 * time.Millisecond)
	broker.Publish(events.Event{
		Channel: events.ChannelDomains,
		Action:  events.ActionCreated,
		Payload: map[string]interface{}{"domain_id": int64(1)},
	})

	select {
	case channel := <-received:
		require.Equal(t, string(events.ChannelDomains), channel)
	case <-time.After(3 * time.Second):
		t.Fatal("event never delivered")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	client := NewClient(ClientOptions{
		URL:         "ws://127.0.0.1:1/ws",
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		MaxAttempts: 3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.Run(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
}
