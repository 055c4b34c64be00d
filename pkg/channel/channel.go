// Package channel maintains the persistent duplex connection to the
// execution engine: framing via the protocol envelope, a fixed-interval
// heartbeat, and automatic reconnection with a fixed delay.
package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowcanvas/flowcanvas/pkg/log"
	"github.com/flowcanvas/flowcanvas/pkg/protocol"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
)

var ErrNotConnected = errors.New("channel is not connected")

type Config struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	HelloMessage      string
}

// Client is the duplex channel. Event and status observers must be
// registered before Connect; dispatch happens on the read goroutine, one
// message at a time, so observers see events in arrival order.
type Client struct {
	config Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	eventHandlers  []func(protocol.Event)
	statusHandlers []func(Status)

	done chan struct{}
	wg   sync.WaitGroup
}

func NewClient(config Config) *Client {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}

	if config.HelloMessage == "" {
		config.HelloMessage = "hello from flowcanvas"
	}

	return &Client{
		config: config,
		logger: log.WithModule("channel").With("url", config.URL),
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
	}
}

func (c *Client) OnEvent(handler func(protocol.Event)) {
	c.eventHandlers = append(c.eventHandlers, handler)
}

func (c *Client) OnStatus(handler func(Status)) {
	c.statusHandlers = append(c.statusHandlers, handler)
}

// Connect dials the engine, performs the hello handshake, and starts the
// read and heartbeat loops.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.Send(protocol.HelloWorldRequest{Message: c.config.HelloMessage}); err != nil {
		return err
	}

	c.wg.Add(2)

	go c.readLoop(ctx)
	go c.heartbeatLoop()

	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.config.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Send frames and writes a request. Writes are serialized; gorilla allows
// only one concurrent writer.
func (c *Client) Send(request protocol.Request) error {
	data, err := protocol.EncodeRequest(request)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the channel down and waits for its goroutines to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}

	c.wg.Wait()

	return err
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}

			c.logger.Warn("Connection lost", "error", err)
			c.notifyStatus(StatusDisconnected)

			if !c.reconnect(ctx) {
				return
			}

			continue
		}

		event, err := protocol.DecodeEvent(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable message", "error", err)

			continue
		}

		// Every inbound event doubles as a liveness signal.
		c.notifyStatus(StatusConnected)

		for _, handler := range c.eventHandlers {
			handler(event)
		}
	}
}

// reconnect redials after the configured delay until it succeeds or the
// channel closes, then immediately re-sends a heartbeat.
func (c *Client) reconnect(ctx context.Context) bool {
	for {
		select {
		case <-c.done:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(c.config.ReconnectDelay):
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("Reconnect attempt failed", "error", err)

			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()

			return false
		}

		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Reconnected")

		if err := c.Send(protocol.HeartBeatRequest{}); err != nil {
			c.logger.Warn("Post-reconnect heartbeat failed", "error", err)

			continue
		}

		return true
	}
}

func (c *Client) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Send(protocol.HeartBeatRequest{}); err != nil {
				c.logger.Debug("Heartbeat skipped", "error", err)
			}
		}
	}
}

func (c *Client) notifyStatus(status Status) {
	for _, handler := range c.statusHandlers {
		handler(status)
	}
}
