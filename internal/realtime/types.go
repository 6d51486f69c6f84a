package realtime

import (
	"encoding/json"
	"time"

	"github.com/hooktide/hooktide/internal/webhook"
)

// Server-to-client frame types.
const (
	FrameTypeConnection = "connection"
	FrameTypeWebhook    = "webhook_message"
	FrameTypePong       = "pong"
	FrameTypeSubscribed = "subscribed"
	FrameTypeError      = "error"
)

// Client-to-server frame types.
const (
	FrameTypePing      = "ping"
	FrameTypeSubscribe = "subscribe"
)

// ConnectionFrame is the welcome sent to every client right after the
// handshake.
type ConnectionFrame struct {
	Type      string    `json:"type"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookFrame carries one stored message to live subscribers.
type WebhookFrame struct {
	Type      string           `json:"type"`
	Data      *webhook.Message `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// PongFrame answers an application-level ping.
type PongFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscribedFrame acknowledges a subscribe request, echoing the filters the
// client asked for.
type SubscribedFrame struct {
	Type    string          `json:"type"`
	Filters json.RawMessage `json:"filters,omitempty"`
}

// ErrorFrame reports a malformed inbound frame.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientFrame is the envelope of every inbound frame.
type ClientFrame struct {
	Type    string          `json:"type"`
	Filters json.RawMessage `json:"filters,omitempty"`
}

// Info describes the feed for clients discovering it over the REST API.
type Info struct {
	Path        string `json:"path"`
	Connections int    `json:"connections"`
	Enabled     bool   `json:"enabled"`
}
