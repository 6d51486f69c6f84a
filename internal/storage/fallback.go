package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hooktide/hooktide/internal/metrics"
	"github.com/hooktide/hooktide/internal/webhook"
)

// FallbackAdapter wraps a primary and a fallback store. Every operation is
// tried on the primary first; on failure it is retried once against the
// fallback. Domain errors like webhook.ErrNotFound are authoritative answers,
// not outages, so they never trigger a retry.
type FallbackAdapter struct {
	primary  webhook.Store
	fallback webhook.Store
}

// NewFallbackAdapter wires a primary store with a fallback.
func NewFallbackAdapter(primary, fallback webhook.Store) *FallbackAdapter {
	return &FallbackAdapter{primary: primary, fallback: fallback}
}

func isDomainError(err error) bool {
	return errors.Is(err, webhook.ErrNotFound)
}

func (f *FallbackAdapter) noteFailover(op string, primaryErr error) {
	metrics.RecordFailover(op)
	log.Warn().
		Err(primaryErr).
		Str("operation", op).
		Msg("Primary storage failed, retrying on fallback")
}

// Initialize initializes both stores concurrently. The adapter is usable as
// long as at least one store comes up.
func (f *FallbackAdapter) Initialize(ctx context.Context) error {
	var wg sync.WaitGroup
	var primaryErr, fallbackErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		primaryErr = f.primary.Initialize(ctx)
	}()
	go func() {
		defer wg.Done()
		fallbackErr = f.fallback.Initialize(ctx)
	}()
	wg.Wait()

	if primaryErr != nil {
		log.Warn().Err(primaryErr).Msg("Primary storage failed to initialize")
	}
	if fallbackErr != nil {
		log.Warn().Err(fallbackErr).Msg("Fallback storage failed to initialize")
	}
	if primaryErr != nil && fallbackErr != nil {
		return errors.Join(primaryErr, fallbackErr)
	}
	return nil
}

func (f *FallbackAdapter) StoreMessage(ctx context.Context, in *webhook.Incoming) (*webhook.Message, error) {
	msg, err := f.primary.StoreMessage(ctx, in)
	if err == nil || isDomainError(err) {
		return msg, err
	}
	f.noteFailover("store_message", err)
	return f.fallback.StoreMessage(ctx, in)
}

func (f *FallbackAdapter) StoreMessages(ctx context.Context, in []*webhook.Incoming) ([]*webhook.Message, error) {
	msgs, err := f.primary.StoreMessages(ctx, in)
	if err == nil || isDomainError(err) {
		return msgs, err
	}
	f.noteFailover("store_messages", err)
	return f.fallback.StoreMessages(ctx, in)
}

func (f *FallbackAdapter) GetMessages(ctx context.Context, q *webhook.Query) (*webhook.ListResult, error) {
	res, err := f.primary.GetMessages(ctx, q)
	if err == nil || isDomainError(err) {
		return res, err
	}
	f.noteFailover("get_messages", err)
	return f.fallback.GetMessages(ctx, q)
}

func (f *FallbackAdapter) GetMessageByID(ctx context.Context, id string) (*webhook.Message, error) {
	msg, err := f.primary.GetMessageByID(ctx, id)
	if err == nil || isDomainError(err) {
		return msg, err
	}
	f.noteFailover("get_message_by_id", err)
	return f.fallback.GetMessageByID(ctx, id)
}

func (f *FallbackAdapter) UpdateMessage(ctx context.Context, id string, u *webhook.Update) (*webhook.Message, error) {
	msg, err := f.primary.UpdateMessage(ctx, id, u)
	if err == nil || isDomainError(err) {
		return msg, err
	}
	f.noteFailover("update_message", err)
	return f.fallback.UpdateMessage(ctx, id, u)
}

func (f *FallbackAdapter) DeleteMessage(ctx context.Context, id string) error {
	err := f.primary.DeleteMessage(ctx, id)
	if err == nil || isDomainError(err) {
		return err
	}
	f.noteFailover("delete_message", err)
	return f.fallback.DeleteMessage(ctx, id)
}

func (f *FallbackAdapter) GetStats(ctx context.Context) (*webhook.Stats, error) {
	stats, err := f.primary.GetStats(ctx)
	if err == nil {
		return stats, nil
	}
	f.noteFailover("get_stats", err)
	return f.fallback.GetStats(ctx)
}

func (f *FallbackAdapter) SearchMessages(ctx context.Context, text string, q *webhook.Query) (*webhook.ListResult, error) {
	res, err := f.primary.SearchMessages(ctx, text, q)
	if err == nil || isDomainError(err) {
		return res, err
	}
	f.noteFailover("search_messages", err)
	return f.fallback.SearchMessages(ctx, text, q)
}

func (f *FallbackAdapter) CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error) {
	deleted, err := f.primary.CleanupOldMessages(ctx, olderThanDays)
	if err == nil {
		return deleted, nil
	}
	f.noteFailover("cleanup_old_messages", err)
	return f.fallback.CleanupOldMessages(ctx, olderThanDays)
}

// HealthStatus reports both backends independently. The combined status is
// healthy only when both are healthy, degraded when exactly one is up, and
// unhealthy when both are down.
func (f *FallbackAdapter) HealthStatus(ctx context.Context) (*webhook.HealthStatus, error) {
	primaryHS := backendHealth(ctx, f.primary)
	fallbackHS := backendHealth(ctx, f.fallback)

	primaryUp := primaryHS.Status != webhook.HealthUnhealthy
	fallbackUp := fallbackHS.Status != webhook.HealthUnhealthy

	status := webhook.HealthUnhealthy
	switch {
	case primaryUp && fallbackUp:
		status = webhook.HealthHealthy
	case primaryUp || fallbackUp:
		status = webhook.HealthDegraded
	}

	return &webhook.HealthStatus{
		Status: status,
		Details: map[string]any{
			"primary":  map[string]any{"status": primaryHS.Status, "details": primaryHS.Details},
			"fallback": map[string]any{"status": fallbackHS.Status, "details": fallbackHS.Details},
		},
	}, nil
}

func backendHealth(ctx context.Context, s webhook.Store) *webhook.HealthStatus {
	hs, err := s.HealthStatus(ctx)
	if err != nil || hs == nil {
		details := map[string]any{}
		if err != nil {
			details["error"] = err.Error()
		}
		return &webhook.HealthStatus{Status: webhook.HealthUnhealthy, Details: details}
	}
	return hs
}

// Close closes both stores and reports the first error.
func (f *FallbackAdapter) Close() error {
	primaryErr := f.primary.Close()
	fallbackErr := f.fallback.Close()
	if primaryErr != nil {
		log.Warn().Err(primaryErr).Msg("Error closing primary storage")
	}
	if fallbackErr != nil {
		log.Warn().Err(fallbackErr).Msg("Error closing fallback storage")
	}
	return errors.Join(primaryErr, fallbackErr)
}
