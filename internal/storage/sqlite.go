// Package storage provides the concrete backends behind the webhook message
// store contract: a SQLite adapter, an Elasticsearch adapter, a
// primary/fallback failover wrapper, and a config-keyed adapter registry.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/webhook"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS webhook_messages (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	values_json TEXT,
	timestamp INTEGER NOT NULL,
	received_at INTEGER NOT NULL,
	user_agent TEXT,
	source_ip TEXT,
	signature TEXT,
	processed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_webhook_messages_received_at ON webhook_messages(received_at);
CREATE INDEX IF NOT EXISTS idx_webhook_messages_type ON webhook_messages(type);
`

const messageColumns = "id, type, title, content, values_json, timestamp, received_at, user_agent, source_ip, signature, processed"

// SQLiteAdapter implements the store contract on an embedded SQLite database.
// receivedAt is stored as epoch milliseconds so range filters and the default
// sort work on a plain integer column.
type SQLiteAdapter struct {
	db     *sql.DB
	cfg    *config.StorageConfig
	mu     sync.Mutex
	inited bool
	closed bool
}

// NewSQLiteAdapter opens the database file and applies connection pragmas.
// Schema creation happens in Initialize.
func NewSQLiteAdapter(cfg *config.StorageConfig) (*SQLiteAdapter, error) {
	if err := ensureDir(cfg.Path); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &SQLiteAdapter{db: db, cfg: cfg}
	if err := a.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	return a, nil
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (a *SQLiteAdapter) configure() error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", a.cfg.BusyTimeout.Milliseconds()),
		"PRAGMA temp_store = MEMORY",
	}

	if a.cfg.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
		pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")
	}

	for _, pragma := range pragmas {
		if _, err := a.db.Exec(pragma); err != nil {
			return fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	return nil
}

func (a *SQLiteAdapter) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// Initialize creates the schema if absent. Idempotent.
func (a *SQLiteAdapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inited {
		return nil
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, createMessagesTable); err != nil {
		return fmt.Errorf("creating webhook_messages table: %w", err)
	}

	a.inited = true
	return nil
}

// StoreMessage assigns id and receivedAt, persists, and returns the stored form.
func (a *SQLiteAdapter) StoreMessage(ctx context.Context, in *webhook.Incoming) (*webhook.Message, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	msg := newMessage(in)
	if err := a.insert(ctx, a.db, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// StoreMessages stores a batch in one transaction: either all items persist
// or none do, so partial failures never silently drop items.
func (a *SQLiteAdapter) StoreMessages(ctx context.Context, in []*webhook.Incoming) ([]*webhook.Message, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	msgs := make([]*webhook.Message, 0, len(in))
	for _, item := range in {
		msg := newMessage(item)
		if err := a.insert(ctx, tx, msg); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return msgs, nil
}

func newMessage(in *webhook.Incoming) *webhook.Message {
	return &webhook.Message{
		ID:         uuid.New().String(),
		Type:       in.Type,
		Title:      in.Title,
		Content:    in.Content,
		Values:     in.Values,
		Timestamp:  in.Timestamp,
		ReceivedAt: time.Now().UTC(),
		UserAgent:  in.UserAgent,
		SourceIP:   in.SourceIP,
		Signature:  in.Signature,
		Processed:  false,
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (a *SQLiteAdapter) insert(ctx context.Context, db execer, msg *webhook.Message) error {
	var valuesJSON sql.NullString
	if len(msg.Values) > 0 {
		valuesJSON = sql.NullString{String: string(msg.Values), Valid: true}
	}

	query := `
		INSERT INTO webhook_messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		msg.ID,
		msg.Type,
		msg.Title,
		msg.Content,
		valuesJSON,
		msg.Timestamp,
		msg.ReceivedAt.UnixMilli(),
		nullable(msg.UserAgent),
		nullable(msg.SourceIP),
		nullable(msg.Signature),
		boolToInt(msg.Processed),
	)
	if err != nil {
		return fmt.Errorf("inserting webhook message: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetMessages returns one page of messages matching the query, sorted by
// received_at descending.
func (a *SQLiteAdapter) GetMessages(ctx context.Context, q *webhook.Query) (*webhook.ListResult, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	query := *q
	query.Normalize()

	where, args := buildFilters(&query)

	var total int64
	countQuery := "SELECT COUNT(*) FROM webhook_messages" + where
	if err := a.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting webhook messages: %w", err)
	}

	listQuery := "SELECT " + messageColumns + " FROM webhook_messages" + where +
		" ORDER BY received_at DESC LIMIT ? OFFSET ?"
	listArgs := append(append([]any{}, args...), query.PageSize, query.Offset())

	rows, err := a.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying webhook messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	return &webhook.ListResult{
		Messages:   msgs,
		Total:      total,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: webhook.TotalPagesFor(total, query.PageSize),
	}, nil
}

func buildFilters(q *webhook.Query) (string, []any) {
	var clauses []string
	var args []any

	if q.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, q.Type)
	}
	if q.Processed != nil {
		clauses = append(clauses, "processed = ?")
		args = append(args, boolToInt(*q.Processed))
	}
	if q.StartDate != nil {
		clauses = append(clauses, "received_at >= ?")
		args = append(args, q.StartDate.UnixMilli())
	}
	if q.EndDate != nil {
		clauses = append(clauses, "received_at <= ?")
		args = append(args, q.EndDate.UnixMilli())
	}
	if q.Search != "" {
		clauses = append(clauses, "(LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR LOWER(type) LIKE ?)")
		pattern := "%" + strings.ToLower(q.Search) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// GetMessageByID returns webhook.ErrNotFound when no row matches.
func (a *SQLiteAdapter) GetMessageByID(ctx context.Context, id string) (*webhook.Message, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	query := "SELECT " + messageColumns + " FROM webhook_messages WHERE id = ?"
	msg, err := scanMessage(a.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, webhook.ErrNotFound
		}
		return nil, fmt.Errorf("getting webhook message: %w", err)
	}
	return msg, nil
}

// UpdateMessage applies the non-nil fields of u and returns the updated row.
func (a *SQLiteAdapter) UpdateMessage(ctx context.Context, id string, u *webhook.Update) (*webhook.Message, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	var sets []string
	var args []any

	if u.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *u.Type)
	}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *u.Content)
	}
	if len(u.Values) > 0 {
		sets = append(sets, "values_json = ?")
		args = append(args, string(u.Values))
	}
	if u.Timestamp != nil {
		sets = append(sets, "timestamp = ?")
		args = append(args, *u.Timestamp)
	}
	if u.Processed != nil {
		sets = append(sets, "processed = ?")
		args = append(args, boolToInt(*u.Processed))
	}

	if len(sets) == 0 {
		return a.GetMessageByID(ctx, id)
	}

	query := "UPDATE webhook_messages SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating webhook message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return nil, webhook.ErrNotFound
	}

	return a.GetMessageByID(ctx, id)
}

// DeleteMessage removes a row; webhook.ErrNotFound when id is unknown.
func (a *SQLiteAdapter) DeleteMessage(ctx context.Context, id string) error {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	result, err := a.db.ExecContext(ctx, "DELETE FROM webhook_messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting webhook message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

// GetStats returns total, per-type, and last-24-hours counts.
func (a *SQLiteAdapter) GetStats(ctx context.Context) (*webhook.Stats, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	stats := &webhook.Stats{ByType: []webhook.TypeCount{}}

	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_messages").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("counting webhook messages: %w", err)
	}

	rows, err := a.db.QueryContext(ctx,
		"SELECT type, COUNT(*) AS count FROM webhook_messages GROUP BY type ORDER BY count DESC, type ASC")
	if err != nil {
		return nil, fmt.Errorf("counting messages by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc webhook.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		stats.ByType = append(stats.ByType, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating type counts: %w", err)
	}

	cutoff := time.Now().Add(-24 * time.Hour).UnixMilli()
	if err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM webhook_messages WHERE received_at >= ?", cutoff).Scan(&stats.Last24Hours); err != nil {
		return nil, fmt.Errorf("counting recent messages: %w", err)
	}

	return stats, nil
}

// SearchMessages is case-insensitive substring matching across
// title/content/type, combined with the query's filters.
func (a *SQLiteAdapter) SearchMessages(ctx context.Context, text string, q *webhook.Query) (*webhook.ListResult, error) {
	query := *q
	query.Search = text
	return a.GetMessages(ctx, &query)
}

// CleanupOldMessages deletes rows received more than olderThanDays days ago.
func (a *SQLiteAdapter) CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -olderThanDays).UnixMilli()
	result, err := a.db.ExecContext(ctx, "DELETE FROM webhook_messages WHERE received_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up webhook messages: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking cleanup result: %w", err)
	}
	return deleted, nil
}

// HealthStatus probes the database with a trivial query.
func (a *SQLiteAdapter) HealthStatus(ctx context.Context) (*webhook.HealthStatus, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return &webhook.HealthStatus{
			Status:  webhook.HealthUnhealthy,
			Details: map[string]any{"error": err.Error()},
		}, nil
	}

	return &webhook.HealthStatus{
		Status:  webhook.HealthHealthy,
		Details: map[string]any{"connection": "active"},
	}, nil
}

// Close releases the database handle. Idempotent.
func (a *SQLiteAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if a.cfg.WALMode {
		_, _ = a.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}

	return a.db.Close()
}

func scanMessage(row *sql.Row) (*webhook.Message, error) {
	var msg webhook.Message
	var valuesJSON, userAgent, sourceIP, signature sql.NullString
	var receivedAt int64
	var processed int

	err := row.Scan(
		&msg.ID,
		&msg.Type,
		&msg.Title,
		&msg.Content,
		&valuesJSON,
		&msg.Timestamp,
		&receivedAt,
		&userAgent,
		&sourceIP,
		&signature,
		&processed,
	)
	if err != nil {
		return nil, err
	}

	fillMessage(&msg, valuesJSON, userAgent, sourceIP, signature, receivedAt, processed)
	return &msg, nil
}

func scanMessages(rows *sql.Rows) ([]*webhook.Message, error) {
	msgs := []*webhook.Message{}

	for rows.Next() {
		var msg webhook.Message
		var valuesJSON, userAgent, sourceIP, signature sql.NullString
		var receivedAt int64
		var processed int

		err := rows.Scan(
			&msg.ID,
			&msg.Type,
			&msg.Title,
			&msg.Content,
			&valuesJSON,
			&msg.Timestamp,
			&receivedAt,
			&userAgent,
			&sourceIP,
			&signature,
			&processed,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook message row: %w", err)
		}

		fillMessage(&msg, valuesJSON, userAgent, sourceIP, signature, receivedAt, processed)
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhook message rows: %w", err)
	}

	return msgs, nil
}

func fillMessage(msg *webhook.Message, valuesJSON, userAgent, sourceIP, signature sql.NullString, receivedAt int64, processed int) {
	if valuesJSON.Valid && valuesJSON.String != "" {
		msg.Values = json.RawMessage(valuesJSON.String)
	}
	msg.ReceivedAt = time.UnixMilli(receivedAt).UTC()
	msg.UserAgent = userAgent.String
	msg.SourceIP = sourceIP.String
	msg.Signature = signature.String
	msg.Processed = processed == 1
}
