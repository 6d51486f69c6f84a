package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/webhook"
)

func newTestStore(t *testing.T) *SQLiteAdapter {
	t.Helper()

	cfg := &config.StorageConfig{
		Type:         config.BackendSQLite,
		Path:         ":memory:",
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	adapter, err := NewSQLiteAdapter(cfg)
	require.NoError(t, err)
	require.NoError(t, adapter.Initialize(context.Background()))
	t.Cleanup(func() { adapter.Close() })

	return adapter
}

func incoming(msgType, title string) *webhook.Incoming {
	return &webhook.Incoming{
		Type:      msgType,
		Title:     title,
		Content:   "content for " + title,
		Values:    json.RawMessage(`{"key":"value"}`),
		Timestamp: time.Now().Unix(),
		UserAgent: "test-agent/1.0",
		SourceIP:  "192.0.2.1",
	}
}

func TestSQLiteStoreAndGetByID(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	stored, err := adapter.StoreMessage(ctx, incoming("deploy", "Deploy finished"))
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	assert.False(t, stored.Processed)
	assert.WithinDuration(t, time.Now().UTC(), stored.ReceivedAt, 5*time.Second)

	got, err := adapter.GetMessageByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, "deploy", got.Type)
	assert.Equal(t, "Deploy finished", got.Title)
	assert.JSONEq(t, `{"key":"value"}`, string(got.Values))
	assert.Equal(t, "192.0.2.1", got.SourceIP)
}

func TestSQLiteGetMessageByIDNotFound(t *testing.T) {
	adapter := newTestStore(t)

	_, err := adapter.GetMessageByID(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, webhook.ErrNotFound)
}

func TestSQLiteStoreMessagesBatch(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	batch := []*webhook.Incoming{
		incoming("alert", "First"),
		incoming("alert", "Second"),
		incoming("deploy", "Third"),
	}

	stored, err := adapter.StoreMessages(ctx, batch)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	res, err := adapter.GetMessages(ctx, &webhook.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
}

func TestSQLiteGetMessagesPagination(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := adapter.StoreMessage(ctx, incoming("alert", "Message"))
		require.NoError(t, err)
	}

	res, err := adapter.GetMessages(ctx, &webhook.Query{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Total)
	assert.Len(t, res.Messages, 2)
	assert.Equal(t, int64(3), res.TotalPages)

	last, err := adapter.GetMessages(ctx, &webhook.Query{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, last.Messages, 1)
}

func TestSQLiteGetMessagesFilters(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	a, err := adapter.StoreMessage(ctx, incoming("deploy", "Deploy"))
	require.NoError(t, err)
	_, err = adapter.StoreMessage(ctx, incoming("alert", "Alert"))
	require.NoError(t, err)

	_, err = adapter.UpdateMessage(ctx, a.ID, webhook.MarkProcessed())
	require.NoError(t, err)

	byType, err := adapter.GetMessages(ctx, &webhook.Query{Type: "deploy"})
	require.NoError(t, err)
	require.Equal(t, int64(1), byType.Total)
	assert.Equal(t, "deploy", byType.Messages[0].Type)

	processed := true
	byProcessed, err := adapter.GetMessages(ctx, &webhook.Query{Processed: &processed})
	require.NoError(t, err)
	require.Equal(t, int64(1), byProcessed.Total)
	assert.Equal(t, a.ID, byProcessed.Messages[0].ID)

	future := time.Now().Add(time.Hour)
	none, err := adapter.GetMessages(ctx, &webhook.Query{StartDate: &future})
	require.NoError(t, err)
	assert.Equal(t, int64(0), none.Total)
}

func TestSQLiteSearchMessages(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	_, err := adapter.StoreMessage(ctx, &webhook.Incoming{
		Type: "deploy", Title: "Production rollout", Content: "Rolled out v2", Timestamp: time.Now().Unix(),
	})
	require.NoError(t, err)
	_, err = adapter.StoreMessage(ctx, &webhook.Incoming{
		Type: "alert", Title: "Disk usage", Content: "Disk nearly full", Timestamp: time.Now().Unix(),
	})
	require.NoError(t, err)

	res, err := adapter.SearchMessages(ctx, "ROLLOUT", &webhook.Query{})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "Production rollout", res.Messages[0].Title)

	res, err = adapter.SearchMessages(ctx, "disk", &webhook.Query{Type: "deploy"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
}

func TestSQLiteUpdateMessage(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	stored, err := adapter.StoreMessage(ctx, incoming("deploy", "Before"))
	require.NoError(t, err)

	title := "After"
	updated, err := adapter.UpdateMessage(ctx, stored.ID, &webhook.Update{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, stored.Type, updated.Type)

	_, err = adapter.UpdateMessage(ctx, "missing", webhook.MarkProcessed())
	assert.ErrorIs(t, err, webhook.ErrNotFound)
}

func TestSQLiteMarkProcessedIdempotent(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	stored, err := adapter.StoreMessage(ctx, incoming("deploy", "Once"))
	require.NoError(t, err)

	first, err := adapter.UpdateMessage(ctx, stored.ID, webhook.MarkProcessed())
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := adapter.UpdateMessage(ctx, stored.ID, webhook.MarkProcessed())
	require.NoError(t, err)
	assert.True(t, second.Processed)
}

func TestSQLiteDeleteMessage(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	stored, err := adapter.StoreMessage(ctx, incoming("deploy", "Gone"))
	require.NoError(t, err)

	require.NoError(t, adapter.DeleteMessage(ctx, stored.ID))

	_, err = adapter.GetMessageByID(ctx, stored.ID)
	assert.ErrorIs(t, err, webhook.ErrNotFound)

	assert.ErrorIs(t, adapter.DeleteMessage(ctx, stored.ID), webhook.ErrNotFound)
}

func TestSQLiteGetStats(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := adapter.StoreMessage(ctx, incoming("alert", "A"))
		require.NoError(t, err)
	}
	_, err := adapter.StoreMessage(ctx, incoming("deploy", "D"))
	require.NoError(t, err)

	stats, err := adapter.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(4), stats.Last24Hours)
	require.Len(t, stats.ByType, 2)
	assert.Equal(t, webhook.TypeCount{Type: "alert", Count: 3}, stats.ByType[0])
	assert.Equal(t, webhook.TypeCount{Type: "deploy", Count: 1}, stats.ByType[1])
}

func TestSQLiteCleanupOldMessages(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	_, err := adapter.StoreMessage(ctx, incoming("deploy", "Fresh"))
	require.NoError(t, err)

	deleted, err := adapter.CleanupOldMessages(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	res, err := adapter.GetMessages(ctx, &webhook.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}

func TestSQLiteCleanupRemovesBackdatedMessages(t *testing.T) {
	adapter := newTestStore(t)
	ctx := context.Background()

	old1, err := adapter.StoreMessage(ctx, incoming("deploy", "Old deploy"))
	require.NoError(t, err)
	old2, err := adapter.StoreMessage(ctx, incoming("alert", "Old alert"))
	require.NoError(t, err)
	fresh, err := adapter.StoreMessage(ctx, incoming("deploy", "Fresh"))
	require.NoError(t, err)

	backdated := time.Now().AddDate(0, 0, -40).UnixMilli()
	for _, id := range []string{old1.ID, old2.ID} {
		_, err := adapter.db.Exec("UPDATE webhook_messages SET received_at = ? WHERE id = ?", backdated, id)
		require.NoError(t, err)
	}

	deleted, err := adapter.CleanupOldMessages(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	res, err := adapter.GetMessages(ctx, &webhook.Query{})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, fresh.ID, res.Messages[0].ID)
}

func TestSQLiteHealthStatus(t *testing.T) {
	adapter := newTestStore(t)

	hs, err := adapter.HealthStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, webhook.HealthHealthy, hs.Status)
}
