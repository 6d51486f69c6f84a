package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout   = 10 * time.Second
	pingTimeout    = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Client is one connected WebSocket subscriber.
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub

	mu     sync.Mutex
	alive  bool
	sendCh chan []byte
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(conn *websocket.Conn, hub *Hub, bufferSize int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     uuid.New().String(),
		conn:   conn,
		hub:    hub,
		alive:  true,
		sendCh: make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// run starts the write loop and blocks in the read loop until the connection
// ends.
func (c *Client) run() {
	go c.writePump()
	c.readPump()
}

// Close terminates the connection and unregisters the client from the hub.
func (c *Client) Close() {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "closing")
	c.hub.unregister(c)
}

// closeForShutdown terminates the connection without hub cleanup. Used while
// the hub drains its client map, to avoid deadlock.
func (c *Client) closeForShutdown() {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.cancel()
	c.conn.Close(websocket.StatusGoingAway, "server shutting down")
}

// send marshals a frame and queues it. A full buffer drops the frame rather
// than blocking the broadcaster.
func (c *Client) send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return context.Canceled
	default:
		log.Warn().Str("client_id", c.ID).Msg("Client send buffer full, dropping frame")
		return nil
	}
}

func (c *Client) sendError(message string) {
	_ = c.send(&ErrorFrame{Type: FrameTypeError, Message: message})
}

// isAlive reports whether the client answered the most recent heartbeat.
func (c *Client) isAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *Client) setAlive(alive bool) {
	c.mu.Lock()
	c.alive = alive
	c.mu.Unlock()
}

// heartbeat runs a ping round-trip and records the outcome.
func (c *Client) heartbeat() bool {
	ctx, cancel := context.WithTimeout(c.ctx, pingTimeout)
	defer cancel()

	if err := c.conn.Ping(ctx); err != nil {
		c.setAlive(false)
		return false
	}
	c.setAlive(true)
	return true
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket read error")
			}
			return
		}

		// Any traffic proves the client is alive.
		c.setAlive(true)

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("Invalid JSON frame")
			continue
		}

		c.handleFrame(&frame)
	}
}

func (c *Client) writePump() {
	for {
		select {
		case data := <-c.sendCh:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket write error")
				return
			}
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleFrame(frame *ClientFrame) {
	switch frame.Type {
	case FrameTypePing:
		_ = c.send(&PongFrame{Type: FrameTypePong, Timestamp: time.Now().UTC()})
	case FrameTypeSubscribe:
		// Filters are acknowledged but not enforced: every client receives
		// the full feed and filters locally.
		_ = c.send(&SubscribedFrame{Type: FrameTypeSubscribed, Filters: frame.Filters})
	default:
		c.sendError("Unknown frame type")
	}
}
