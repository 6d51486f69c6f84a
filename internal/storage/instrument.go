package storage

import (
	"context"

	"github.com/hooktide/hooktide/internal/metrics"
	"github.com/hooktide/hooktide/internal/webhook"
)

// instrumentedStore records a metric per operation and delegates to the
// wrapped store. The registry wraps every adapter it hands out.
type instrumentedStore struct {
	inner   webhook.Store
	backend string
}

// Instrument wraps a store so every operation is counted under the given
// backend label.
func Instrument(s webhook.Store, backend string) webhook.Store {
	return &instrumentedStore{inner: s, backend: backend}
}

func (s *instrumentedStore) Initialize(ctx context.Context) error {
	err := s.inner.Initialize(ctx)
	metrics.RecordStorageOperation(s.backend, "initialize", err)
	return err
}

func (s *instrumentedStore) StoreMessage(ctx context.Context, in *webhook.Incoming) (*webhook.Message, error) {
	msg, err := s.inner.StoreMessage(ctx, in)
	metrics.RecordStorageOperation(s.backend, "store_message", err)
	return msg, err
}

func (s *instrumentedStore) StoreMessages(ctx context.Context, in []*webhook.Incoming) ([]*webhook.Message, error) {
	msgs, err := s.inner.StoreMessages(ctx, in)
	metrics.RecordStorageOperation(s.backend, "store_messages", err)
	return msgs, err
}

func (s *instrumentedStore) GetMessages(ctx context.Context, q *webhook.Query) (*webhook.ListResult, error) {
	res, err := s.inner.GetMessages(ctx, q)
	metrics.RecordStorageOperation(s.backend, "get_messages", err)
	return res, err
}

func (s *instrumentedStore) GetMessageByID(ctx context.Context, id string) (*webhook.Message, error) {
	msg, err := s.inner.GetMessageByID(ctx, id)
	metrics.RecordStorageOperation(s.backend, "get_message_by_id", err)
	return msg, err
}

func (s *instrumentedStore) UpdateMessage(ctx context.Context, id string, u *webhook.Update) (*webhook.Message, error) {
	msg, err := s.inner.UpdateMessage(ctx, id, u)
	metrics.RecordStorageOperation(s.backend, "update_message", err)
	return msg, err
}

func (s *instrumentedStore) DeleteMessage(ctx context.Context, id string) error {
	err := s.inner.DeleteMessage(ctx, id)
	metrics.RecordStorageOperation(s.backend, "delete_message", err)
	return err
}

func (s *instrumentedStore) GetStats(ctx context.Context) (*webhook.Stats, error) {
	stats, err := s.inner.GetStats(ctx)
	metrics.RecordStorageOperation(s.backend, "get_stats", err)
	return stats, err
}

func (s *instrumentedStore) SearchMessages(ctx context.Context, text string, q *webhook.Query) (*webhook.ListResult, error) {
	res, err := s.inner.SearchMessages(ctx, text, q)
	metrics.RecordStorageOperation(s.backend, "search_messages", err)
	return res, err
}

func (s *instrumentedStore) CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error) {
	deleted, err := s.inner.CleanupOldMessages(ctx, olderThanDays)
	metrics.RecordStorageOperation(s.backend, "cleanup_old_messages", err)
	return deleted, err
}

func (s *instrumentedStore) HealthStatus(ctx context.Context) (*webhook.HealthStatus, error) {
	hs, err := s.inner.HealthStatus(ctx)
	metrics.RecordStorageOperation(s.backend, "health_status", err)
	return hs, err
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}
