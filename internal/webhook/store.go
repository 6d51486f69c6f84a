package webhook

import "context"

// Store is the contract every storage backend implements. Swapping the
// backend is a configuration change, not a code change: ingestion and query
// code only ever sees this interface.
type Store interface {
	// Initialize performs idempotent setup (create schema/index if absent).
	Initialize(ctx context.Context) error

	// StoreMessage assigns id and receivedAt, persists, and returns the
	// canonical stored form.
	StoreMessage(ctx context.Context, in *Incoming) (*Message, error)

	// StoreMessages is the batch variant of StoreMessage.
	StoreMessages(ctx context.Context, in []*Incoming) ([]*Message, error)

	// GetMessages returns one page of messages matching the query, sorted by
	// receivedAt descending.
	GetMessages(ctx context.Context, q *Query) (*ListResult, error)

	// GetMessageByID returns ErrNotFound when no message has the given id.
	GetMessageByID(ctx context.Context, id string) (*Message, error)

	// UpdateMessage applies a partial update; ErrNotFound when id is unknown.
	UpdateMessage(ctx context.Context, id string, u *Update) (*Message, error)

	// DeleteMessage removes a message; ErrNotFound when id is unknown.
	DeleteMessage(ctx context.Context, id string) error

	// GetStats returns aggregate counts.
	GetStats(ctx context.Context) (*Stats, error)

	// SearchMessages runs a text search across title/content/type combined
	// with the query's filters. Relevance ordering is backend-defined.
	SearchMessages(ctx context.Context, text string, q *Query) (*ListResult, error)

	// CleanupOldMessages deletes messages received more than olderThanDays
	// days ago and returns the number deleted.
	CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error)

	// HealthStatus reports backend health.
	HealthStatus(ctx context.Context) (*HealthStatus, error)

	// Close releases backend resources. Idempotent.
	Close() error
}

// Broadcaster pushes stored messages to live subscribers. Delivery is
// best-effort: a failed push never affects the ingestion caller.
type Broadcaster interface {
	BroadcastMessage(msg *Message)
}
