package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/metrics"
	"github.com/hooktide/hooktide/internal/webhook"
)

// Hub fans stored webhook messages out to every connected WebSocket client
// and reaps connections that stop answering heartbeats.
type Hub struct {
	cfg config.RealtimeConfig

	mu      sync.RWMutex
	clients map[string]*Client
	done    chan struct{}
	once    sync.Once
}

// NewHub creates a hub. Run must be called for heartbeats to fire.
func NewHub(cfg config.RealtimeConfig) *Hub {
	return &Hub{
		cfg:     cfg,
		clients: make(map[string]*Client),
		done:    make(chan struct{}),
	}
}

// Run sweeps connections on the heartbeat interval until the context ends or
// Stop is called. Each sweep pings idle clients and closes the ones that fail
// the round-trip; clients with recent traffic skip the ping.
func (h *Hub) Run(ctx context.Context) {
	interval := h.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) sweep() {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		// Traffic since the last sweep already proves liveness. Clear the
		// flag so a client that goes quiet gets pinged next time around.
		if c.isAlive() {
			c.setAlive(false)
			continue
		}
		if !c.heartbeat() {
			log.Debug().Str("client_id", c.ID).Msg("Heartbeat failed, closing client")
			c.Close()
		}
	}
}

// Stop closes every connection and stops the sweep loop.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.closeForShutdown()
	}
	metrics.UpdateRealtimeConnections(0)
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := newClient(conn, h, h.bufferSize())
	h.register(client)

	_ = client.send(&ConnectionFrame{
		Type:      FrameTypeConnection,
		ClientID:  client.ID,
		Timestamp: time.Now().UTC(),
	})

	client.run()
}

func (h *Hub) bufferSize() int {
	if h.cfg.SendBufferSize > 0 {
		return h.cfg.SendBufferSize
	}
	return 256
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.UpdateRealtimeConnections(total)
	log.Debug().Str("client_id", c.ID).Int("total_clients", total).Msg("Client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	total := len(h.clients)
	h.mu.Unlock()

	metrics.UpdateRealtimeConnections(total)
	log.Debug().Str("client_id", c.ID).Int("total_clients", total).Msg("Client disconnected")
}

// BroadcastMessage pushes one stored message to every client. A client whose
// buffer is full just misses the frame; broadcast never fails the caller.
func (h *Hub) BroadcastMessage(msg *webhook.Message) {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	frame := &WebhookFrame{
		Type:      FrameTypeWebhook,
		Data:      msg,
		Timestamp: time.Now().UTC(),
	}

	sent, failed := 0, 0
	for _, c := range snapshot {
		if err := c.send(frame); err != nil {
			failed++
			continue
		}
		sent++
	}

	metrics.RecordBroadcast(sent, failed)
	log.Debug().
		Str("message_id", msg.ID).
		Int("clients", sent).
		Msg("Broadcast webhook message")
}

// ConnectionCount returns the number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Info describes the feed for the discovery endpoint.
func (h *Hub) Info(path string) Info {
	return Info{
		Path:        path,
		Connections: h.ConnectionCount(),
		Enabled:     h.cfg.Enabled,
	}
}
