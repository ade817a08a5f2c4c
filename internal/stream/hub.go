// Package stream carries realtime change notifications to websocket
// sessions. Every connected session receives every channel; delivery is
// at-least-once from connect time, with no replay of earlier events.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"domainhub.io/hubd/internal/config"
	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/pkg/logger"
	"domainhub.io/hubd/internal/pkg/worker"
)

// controlMessage is the session-level protocol alongside event envelopes.
type controlMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

// session is one connected websocket peer.
type session struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broker events out to websocket sessions. A session whose send
// buffer is full is disconnected rather than allowed to stall the fanout.
type Hub struct {
	cfg    config.StreamConfig
	broker *events.Broker
	pool   *worker.Pool

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[uint64]*session
	nextID   uint64
	subs     []*events.Subscription
	closed   bool
}

// NewHub creates the hub and subscribes it to every broker channel.
func NewHub(cfg config.StreamConfig, broker *events.Broker, pool *worker.Pool) *Hub {
	h := &Hub{
		cfg:    cfg,
		broker: broker,
		pool:   pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[uint64]*session),
	}
	h.subs = broker.SubscribeAll(h.fanout)
	return h
}

// HandleWS upgrades the request and serves the session until it drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := h.register(conn)
	if s == nil {
		_ = conn.Close()
		return
	}

	greeting, _ := json.Marshal(controlMessage{Type: "connected", Timestamp: time.Now().UTC().Format(time.RFC3339)})
	s.queue(greeting)

	if err := h.pool.SubmitDetached(func(ctx context.Context) { h.writeLoop(ctx, s) }); err != nil {
		h.unregister(s)
		return
	}
	h.readLoop(s)
}

// SessionCount reports connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown unsubscribes from the broker and closes every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[uint64]*session)
	h.mu.Unlock()

	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	for _, s := range sessions {
		close(s.send)
		_ = s.conn.Close()
	}
}

// fanout queues one event envelope on every session.
func (h *Hub) fanout(ev events.Event) {
	payload, err := ev.Envelope()
	if err != nil {
		logger.Error("event envelope marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if !s.queue(payload) {
			logger.Warn("session send buffer full, dropping connection", zap.Uint64("session_id", s.id))
			h.unregister(s)
		}
	}
}

// queue enqueues without blocking. Returns false when the buffer is full
// or the session is closing.
func (s *session) queue(payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) register(conn *websocket.Conn) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.nextID++
	s := &session{
		id:   h.nextID,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}
	h.sessions[s.id] = s
	logger.Info("websocket session connected", zap.Uint64("session_id", s.id), zap.Int("sessions", len(h.sessions)))
	return s
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.id)
	remaining := len(h.sessions)
	h.mu.Unlock()

	close(s.send)
	_ = s.conn.Close()
	logger.Info("websocket session disconnected", zap.Uint64("session_id", s.id), zap.Int("sessions", remaining))
}

// readLoop consumes client frames: ping control messages get a pong, all
// other content is ignored. It exits when the peer drops.
func (h *Hub) readLoop(s *session) {
	defer h.unregister(s)

	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.KeepaliveInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.KeepaliveInterval))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.KeepaliveInterval))

		var msg controlMessage
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(controlMessage{Type: "pong", Timestamp: time.Now().UTC().Format(time.RFC3339)})
			s.queue(pong)
		}
	}
}

// writeLoop drains the send buffer onto the socket and pings on idle.
func (h *Hub) writeLoop(ctx context.Context, s *session) {
	ticker := time.NewTicker(h.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
			return
		case payload, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.unregister(s)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(s)
				return
			}
		}
	}
}
