package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hooktide/hooktide/internal/metrics"
)

// Payload is the body of an inbound webhook call.
type Payload struct {
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Values    json.RawMessage `json:"values,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Metadata is request provenance captured alongside the payload.
type Metadata struct {
	UserAgent string
	SourceIP  string
	Signature string
}

// Service is the single entry point for turning an inbound webhook request
// into a stored message, and the facade the API handlers query through.
type Service struct {
	store       Store
	broadcaster Broadcaster
	secret      string
	backendType string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBroadcaster attaches a realtime broadcaster to the service.
func WithBroadcaster(b Broadcaster) ServiceOption {
	return func(s *Service) { s.broadcaster = b }
}

// WithSecret enables HMAC signature verification with the given shared secret.
func WithSecret(secret string) ServiceOption {
	return func(s *Service) { s.secret = secret }
}

// WithBackendType records the primary backend type for health reporting.
func WithBackendType(t string) ServiceOption {
	return func(s *Service) { s.backendType = t }
}

// NewService creates a webhook service backed by the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates, persists, and broadcasts one inbound webhook call.
// rawBody is the exact request body, used for signature verification.
func (s *Service) Ingest(ctx context.Context, p *Payload, meta Metadata, rawBody []byte) (*Message, error) {
	if p.Type == "" || p.Title == "" || p.Content == "" || p.Timestamp == 0 {
		return nil, ErrMissingFields
	}

	if s.secret != "" && meta.Signature != "" {
		if !VerifySignature(s.secret, rawBody, meta.Signature) {
			log.Warn().
				Str("source_ip", meta.SourceIP).
				Str("user_agent", meta.UserAgent).
				Str("type", p.Type).
				Msg("Invalid webhook signature received")
			return nil, ErrSignatureInvalid
		}
	}

	msg, err := s.store.StoreMessage(ctx, &Incoming{
		Type:      p.Type,
		Title:     p.Title,
		Content:   p.Content,
		Values:    p.Values,
		Timestamp: p.Timestamp,
		UserAgent: meta.UserAgent,
		SourceIP:  meta.SourceIP,
		Signature: meta.Signature,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordIngestedMessage(msg.Type)

	log.Info().
		Str("id", msg.ID).
		Str("type", msg.Type).
		Str("title", msg.Title).
		Str("source_ip", meta.SourceIP).
		Time("occurred_at", time.Unix(msg.Timestamp, 0).UTC()).
		Msg("Webhook received and stored")

	// Broadcast is best-effort: storage success is all the caller depends on.
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(msg)
	}

	return msg, nil
}

// GetMessages returns one page of messages matching the query.
func (s *Service) GetMessages(ctx context.Context, q *Query) (*ListResult, error) {
	return s.store.GetMessages(ctx, q)
}

// SearchMessages runs a text search combined with the query's filters.
func (s *Service) SearchMessages(ctx context.Context, text string, q *Query) (*ListResult, error) {
	return s.store.SearchMessages(ctx, text, q)
}

// GetMessageByID returns a single message or ErrNotFound.
func (s *Service) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	return s.store.GetMessageByID(ctx, id)
}

// MarkProcessed flips processed to true. Idempotent: marking an already
// processed message succeeds and leaves it processed.
func (s *Service) MarkProcessed(ctx context.Context, id string) (*Message, error) {
	return s.store.UpdateMessage(ctx, id, MarkProcessed())
}

// UpdateMessage applies a partial update.
func (s *Service) UpdateMessage(ctx context.Context, id string, u *Update) (*Message, error) {
	return s.store.UpdateMessage(ctx, id, u)
}

// DeleteMessage removes a message.
func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	return s.store.DeleteMessage(ctx, id)
}

// GetStats returns aggregate counts.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	return s.store.GetStats(ctx)
}

// CleanupOldMessages deletes messages older than the given number of days.
func (s *Service) CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error) {
	return s.store.CleanupOldMessages(ctx, olderThanDays)
}

// StorageReport is the dashboard-facing storage health shape.
type StorageReport struct {
	Healthy   bool           `json:"healthy"`
	Type      string         `json:"type"`
	Status    Health         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	Message   string         `json:"message,omitempty"`
	LastCheck time.Time      `json:"lastCheck"`
}

// QueueReport mirrors the dashboard's batch queue shape. Batching is not
// wired, so the counters are static.
type QueueReport struct {
	Waiting   int  `json:"waiting"`
	Active    int  `json:"active"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	IsActive  bool `json:"isActive"`
}

// HealthReport combines storage and queue health for the dashboard.
type HealthReport struct {
	Storage     StorageReport `json:"storage"`
	Queue       QueueReport   `json:"queue"`
	Initialized bool          `json:"initialized"`
}

// HealthReport returns the combined health shape served by the API.
func (s *Service) HealthReport(ctx context.Context) *HealthReport {
	now := time.Now().UTC()

	hs, err := s.store.HealthStatus(ctx)
	if err != nil {
		return &HealthReport{
			Storage: StorageReport{
				Healthy:   false,
				Type:      s.backendType,
				Status:    HealthUnhealthy,
				Message:   err.Error(),
				LastCheck: now,
			},
			Queue:       QueueReport{IsActive: false},
			Initialized: false,
		}
	}

	return &HealthReport{
		Storage: StorageReport{
			Healthy:   hs.Status == HealthHealthy,
			Type:      s.backendType,
			Status:    hs.Status,
			Details:   hs.Details,
			LastCheck: now,
		},
		Queue:       QueueReport{IsActive: true},
		Initialized: true,
	}
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
