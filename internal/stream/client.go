package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"domainhub.io/hubd/internal/pkg/logger"
)

// MessageHandler receives one decoded event envelope.
type MessageHandler func(channel string, data map[string]interface{})

// ClientOptions tunes the reconnecting consumer.
type ClientOptions struct {
	// URL is the websocket endpoint, e.g. ws://host/ws.
	URL string

	// BaseDelay is the first reconnect delay; it doubles per failed
	// attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// MaxAttempts bounds consecutive failed reconnects; 0 means retry
	// forever.
	MaxAttempts int

	// HeartbeatInterval is the application-level ping period.
	HeartbeatInterval time.Duration

	// OnConnect runs after every successful (re)connect. Consumers use it
	// to reload full state, since events missed while disconnected are
	// never replayed.
	OnConnect func(ctx context.Context)

	// OnMessage receives every event envelope.
	OnMessage MessageHandler
}

func (o *ClientOptions) defaults() {
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 25 * time.Second
	}
}

// Client is a reconnecting websocket consumer of the change feed.
type Client struct {
	opts ClientOptions
}

// NewClient creates the consumer; Run starts it.
func NewClient(opts ClientOptions) *Client {
	opts.defaults()
	return &Client{opts: opts}
}

// Run connects and consumes until the context is cancelled or the retry
// budget is exhausted. Each successful connect resets the backoff.
func (c *Client) Run(ctx context.Context) error {
	delay := c.opts.BaseDelay
	attempts := 0

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			attempts++
			if c.opts.MaxAttempts > 0 && attempts >= c.opts.MaxAttempts {
				return err
			}
			logger.Warn("stream connect failed, retrying",
				zap.String("url", c.opts.URL),
				zap.Duration("delay", delay),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.opts.MaxDelay {
				delay = c.opts.MaxDelay
			}
			continue
		}

		attempts = 0
		delay = c.opts.BaseDelay
		logger.Info("stream connected", zap.String("url", c.opts.URL))
		if c.opts.OnConnect != nil {
			c.opts.OnConnect(ctx)
		}

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("stream disconnected", zap.Error(err))
	}
}

// consume reads envelopes until the connection breaks, pinging on a
// heartbeat ticker so dead peers are noticed.
func (c *Client) consume(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan error, 1)

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			var envelope struct {
				Type    string                 `json:"type"`
				Channel string                 `json:"channel"`
				Data    map[string]interface{} `json:"data"`
			}
			if json.Unmarshal(raw, &envelope) != nil {
				continue
			}
			if envelope.Type != "" || envelope.Channel == "" {
				continue
			}
			if c.opts.OnMessage != nil {
				c.opts.OnMessage(envelope.Channel, envelope.Data)
			}
		}
	}()

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(controlMessage{Type: "ping"})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return err
			}
		}
	}
}
