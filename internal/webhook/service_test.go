package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memStore struct {
	messages  map[string]*Message
	healthErr error
}

func newMemStore() *memStore {
	return &memStore{messages: map[string]*Message{}}
}

func (m *memStore) Initialize(ctx context.Context) error { return nil }

func (m *memStore) StoreMessage(ctx context.Context, in *Incoming) (*Message, error) {
	msg := &Message{
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
	}
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *memStore) StoreMessages(ctx context.Context, in []*Incoming) ([]*Message, error) {
	out := make([]*Message, 0, len(in))
	for _, item := range in {
		msg, _ := m.StoreMessage(ctx, item)
		out = append(out, msg)
	}
	return out, nil
}

func (m *memStore) GetMessages(ctx context.Context, q *Query) (*ListResult, error) {
	msgs := make([]*Message, 0, len(m.messages))
	for _, msg := range m.messages {
		msgs = append(msgs, msg)
	}
	return &ListResult{Messages: msgs, Total: int64(len(msgs)), Page: 1, PageSize: DefaultPageSize}, nil
}

func (m *memStore) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

func (m *memStore) UpdateMessage(ctx context.Context, id string, u *Update) (*Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Processed != nil {
		msg.Processed = *u.Processed
	}
	if u.Title != nil {
		msg.Title = *u.Title
	}
	return msg, nil
}

func (m *memStore) DeleteMessage(ctx context.Context, id string) error {
	if _, ok := m.messages[id]; !ok {
		return ErrNotFound
	}
	delete(m.messages, id)
	return nil
}

func (m *memStore) GetStats(ctx context.Context) (*Stats, error) {
	return &Stats{Total: int64(len(m.messages)), ByType: []TypeCount{}}, nil
}

func (m *memStore) SearchMessages(ctx context.Context, text string, q *Query) (*ListResult, error) {
	return m.GetMessages(ctx, q)
}

func (m *memStore) CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

func (m *memStore) HealthStatus(ctx context.Context) (*HealthStatus, error) {
	if m.healthErr != nil {
		return nil, m.healthErr
	}
	return &HealthStatus{Status: HealthHealthy}, nil
}

func (m *memStore) Close() error { return nil }

type recordingBroadcaster struct {
	got []*Message
}

func (b *recordingBroadcaster) BroadcastMessage(msg *Message) {
	b.got = append(b.got, msg)
}

func validPayload() *Payload {
	return &Payload{
		Type:      "deploy",
		Title:     "Deploy finished",
		Content:   "v2 is live",
		Timestamp: time.Now().Unix(),
	}
}

func TestIngestStoresAndBroadcasts(t *testing.T) {
	store := newMemStore()
	broadcaster := &recordingBroadcaster{}
	service := NewService(store, WithBroadcaster(broadcaster))

	msg, err := service.Ingest(context.Background(), validPayload(), Metadata{SourceIP: "192.0.2.1"}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected an assigned id")
	}
	if len(broadcaster.got) != 1 || broadcaster.got[0].ID != msg.ID {
		t.Error("expected the stored message to be broadcast")
	}
}

func TestIngestRejectsMissingFields(t *testing.T) {
	service := NewService(newMemStore())

	for _, mutate := range []func(*Payload){
		func(p *Payload) { p.Type = "" },
		func(p *Payload) { p.Title = "" },
		func(p *Payload) { p.Content = "" },
		func(p *Payload) { p.Timestamp = 0 },
	} {
		p := validPayload()
		mutate(p)
		if _, err := service.Ingest(context.Background(), p, Metadata{}, nil); !errors.Is(err, ErrMissingFields) {
			t.Errorf("payload %+v: err = %v, want ErrMissingFields", p, err)
		}
	}
}

func TestIngestSignature(t *testing.T) {
	const secret = "shared-secret"
	store := newMemStore()
	service := NewService(store, WithSecret(secret))
	body := []byte(`{"type":"deploy"}`)

	// Wrong signature fails.
	_, err := service.Ingest(context.Background(), validPayload(), Metadata{Signature: "sha256=00"}, body)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("err = %v, want ErrSignatureInvalid", err)
	}

	// Matching signature succeeds.
	if _, err := service.Ingest(context.Background(), validPayload(), Metadata{Signature: Sign(secret, body)}, body); err != nil {
		t.Errorf("valid signature: %v", err)
	}

	// Absent signature skips verification.
	if _, err := service.Ingest(context.Background(), validPayload(), Metadata{}, body); err != nil {
		t.Errorf("no signature: %v", err)
	}
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	store := newMemStore()
	service := NewService(store)

	msg, err := service.Ingest(context.Background(), validPayload(), Metadata{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		updated, err := service.MarkProcessed(context.Background(), msg.ID)
		if err != nil {
			t.Fatalf("MarkProcessed #%d: %v", i+1, err)
		}
		if !updated.Processed {
			t.Errorf("MarkProcessed #%d: processed = false", i+1)
		}
	}
}

func TestHealthReport(t *testing.T) {
	service := NewService(newMemStore(), WithBackendType("sqlite"))

	report := service.HealthReport(context.Background())
	if !report.Initialized {
		t.Error("expected initialized report")
	}
	if !report.Storage.Healthy || report.Storage.Type != "sqlite" {
		t.Errorf("unexpected storage report: %+v", report.Storage)
	}

	broken := NewService(&memStore{healthErr: errors.New("down")}, WithBackendType("sqlite"))
	report = broken.HealthReport(context.Background())
	if report.Initialized || report.Storage.Healthy {
		t.Errorf("expected unhealthy report, got %+v", report)
	}
	if report.Storage.Status != HealthUnhealthy {
		t.Errorf("status = %q, want unhealthy", report.Storage.Status)
	}
}

func TestQueryNormalize(t *testing.T) {
	q := &Query{Page: 0, PageSize: 500}
	q.Normalize()
	if q.Page != 1 {
		t.Errorf("page = %d, want 1", q.Page)
	}
	if q.PageSize != MaxPageSize {
		t.Errorf("pageSize = %d, want %d", q.PageSize, MaxPageSize)
	}

	q = &Query{Page: 3, PageSize: 0}
	q.Normalize()
	if q.PageSize != DefaultPageSize {
		t.Errorf("pageSize = %d, want %d", q.PageSize, DefaultPageSize)
	}
	if q.Offset() != 2*DefaultPageSize {
		t.Errorf("offset = %d", q.Offset())
	}
}

func TestTotalPagesFor(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int64
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{100, 100, 1},
	}
	for _, tt := range tests {
		if got := TotalPagesFor(tt.total, tt.pageSize); got != tt.want {
			t.Errorf("TotalPagesFor(%d, %d) = %d, want %d", tt.total, tt.pageSize, got, tt.want)
		}
	}
}
