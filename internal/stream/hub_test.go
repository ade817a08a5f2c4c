package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"domainhub.io/hubd/internal/config"
	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/pkg/worker"
)

func init() {
	_ = logger.Init("error", "json")
}

func testStreamConfig() config.StreamConfig {
	return config.StreamConfig{
		KeepaliveInterval: time.Second,
		WriteTimeout:      time.Second,
		SendBuffer:        16,
	}
}

func newTestHub(t *testing.T) (*Hub, *events.Broker, *httptest.Server) {
	t.Helper()
	pool, err := worker.NewPool(context.Background(), 10)
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	broker := events.NewBroker()
	hub := NewHub(testStreamConfig(), broker, pool)
	t.Cleanup(hub.Shutdown)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, broker, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub_GreetingOnConnect(t *testing.T) {
	_, _, srv := newTestHub(t)
	conn := dial(t, srv)

	msg := readJSON(t, conn)
	require.Equal(t, "connected", msg["type"])
}

func TestHub_FanoutToAllSessions(t *testing.T) {
	hub, broker, srv := newTestHub(t)
	first := dial(t, srv)
	second := dial(t, srv)
	readJSON(t, first)
	readJSON(t, second)

	require.Eventually(t, func() bool { return hub.SessionCount() == 2 }, time.Second, 10*time.Millisecond)

	broker.Publish(events.Event{
		Channel: events.ChannelServers,
		Action:  events.ActionCreated,
		Payload: map[string]interface{}{"server_id": int64(1)},
	})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readJSON(t, conn)
		require.Equal(t, "servers", msg["channel"])
		data := msg["data"].(map[string]interface{})
		require.Equal(t, "created", data["action"])
	}
}

func TestHub_PingPong(t *testing.T) {
	_, _, srv := newTestHub(t)
	conn := dial(t, srv)
	readJSON(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	msg := readJSON(t, conn)
	require.Equal(t, "pong", msg["type"])
}

func TestHub_SessionCountDropsOnDisconnect(t *testing.T) {
	hub, _, srv := newTestHub(t)
	conn := dial(t, srv)
	readJSON(t, conn)

	require.Eventually(t, func() bool { return hub.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_NoReplayForLateSubscribers(t *testing.T) {
	_, broker, srv := newTestHub(t)

	broker.Publish(events.Event{Channel: events.ChannelDomains, Action: events.ActionCreated})

	conn := dial(t, srv)
	msg := readJSON(t, conn)
	require.Equal(t, "connected", msg["type"])

	// Nothing besides the greeting arrives.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
