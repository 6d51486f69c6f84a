// Package webhook defines the webhook message domain model and the
// ingestion service that turns inbound requests into stored messages.
package webhook

import (
	"encoding/json"
	"time"
)

// Message is one ingested webhook notification record.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Values     json.RawMessage `json:"values,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	ReceivedAt time.Time       `json:"receivedAt"`
	UserAgent  string          `json:"userAgent,omitempty"`
	SourceIP   string          `json:"sourceIp,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Processed  bool            `json:"processed"`
}

// Incoming holds the caller-supplied fields of a message before the store
// assigns id and receivedAt.
type Incoming struct {
	Type      string
	Title     string
	Content   string
	Values    json.RawMessage
	Timestamp int64
	UserAgent string
	SourceIP  string
	Signature string
}

// Update describes a partial update. Nil fields are left unchanged.
type Update struct {
	Type      *string
	Title     *string
	Content   *string
	Values    json.RawMessage
	Timestamp *int64
	Processed *bool
}

// MarkProcessed returns an update that sets processed to true.
func MarkProcessed() *Update {
	processed := true
	return &Update{Processed: &processed}
}

// Query holds pagination and filter parameters for listing messages.
type Query struct {
	Page      int
	PageSize  int
	Type      string
	Processed *bool
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize fills in defaults for unset pagination fields.
func (q *Query) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
}

// Offset returns the number of records to skip for the current page.
func (q *Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// ListResult is one page of messages plus pagination metadata.
type ListResult struct {
	Messages   []*Message `json:"messages"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int64      `json:"totalPages"`
}

// TotalPagesFor computes ceil(total/pageSize).
func TotalPagesFor(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}

// TypeCount is one entry of the per-type stats breakdown.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Stats holds aggregate message counts.
type Stats struct {
	Total       int64       `json:"total"`
	ByType      []TypeCount `json:"byType"`
	Last24Hours int64       `json:"last24Hours"`
}

// Health is a coarse backend health level.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

// HealthStatus reports a backend's health with backend-specific details.
type HealthStatus struct {
	Status  Health         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
