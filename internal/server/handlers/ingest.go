package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/webhook"
)

// IngestHandler receives inbound webhook calls.
type IngestHandler struct {
	service *webhook.Service
	cfg     config.WebhookConfig
}

func NewIngestHandler(service *webhook.Service, cfg config.WebhookConfig) *IngestHandler {
	return &IngestHandler{service: service, cfg: cfg}
}

type ingestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// Receive handles POST /webhook. The raw body is kept for HMAC verification
// before any JSON decoding touches it.
func (h *IngestHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, "Failed to read request body")
		return
	}

	var payload webhook.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		BadRequest(w, "Invalid JSON payload")
		return
	}

	meta := webhook.Metadata{
		UserAgent: r.UserAgent(),
		SourceIP:  clientIP(r),
		Signature: r.Header.Get(h.cfg.SignatureHeader),
	}

	msg, err := h.service.Ingest(r.Context(), &payload, meta, body)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrMissingFields):
			BadRequest(w, "Missing required fields: type, title, content, timestamp")
		case errors.Is(err, webhook.ErrSignatureInvalid):
			Unauthorized(w, "Invalid webhook signature")
		default:
			InternalError(w, "Failed to store webhook message")
		}
		return
	}

	JSON(w, http.StatusOK, ingestResponse{
		Success: true,
		Message: "Webhook received",
		ID:      msg.ID,
	})
}

// Health handles GET /webhook/health, a cheap liveness answer for webhook
// senders probing the ingestion endpoint.
func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"endpoint":  "webhook",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the peer
// address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
