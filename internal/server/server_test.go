package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hooktide/hooktide/internal/auth"
	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/realtime"
	"github.com/hooktide/hooktide/internal/storage"
	"github.com/hooktide/hooktide/internal/webhook"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

type testEnv struct {
	server  *Server
	service *webhook.Service
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Storage.Primary = config.StorageConfig{
		Type:         config.BackendSQLite,
		Path:         ":memory:",
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	cfg.Storage.EnableFallback = false
	if mutate != nil {
		mutate(cfg)
	}

	adapter, err := storage.NewSQLiteAdapter(&cfg.Storage.Primary)
	if err != nil {
		t.Fatalf("NewSQLiteAdapter: %v", err)
	}
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	hub := realtime.NewHub(cfg.Realtime)
	t.Cleanup(hub.Stop)

	service := webhook.NewService(adapter,
		webhook.WithBroadcaster(hub),
		webhook.WithSecret(cfg.Webhook.Secret),
		webhook.WithBackendType(string(cfg.Storage.Primary.Type)),
	)

	return &testEnv{
		server:  New(cfg, service, hub),
		service: service,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func testPayload() map[string]any {
	return map[string]any{
		"type":      "deploy",
		"title":     "Deploy finished",
		"content":   "v2 rolled out",
		"values":    map[string]any{"env": "prod"},
		"timestamp": time.Now().Unix(),
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestIngestAndList(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/webhook", testPayload(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decode[map[string]any](t, rec)
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatal("expected a message id")
	}

	listRec := env.do(t, http.MethodGet, "/api/webhooks", nil, nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}
	list := decode[webhook.ListResult](t, listRec)
	if list.Total != 1 {
		t.Errorf("total = %d, want 1", list.Total)
	}
	if len(list.Messages) != 1 || list.Messages[0].ID != id {
		t.Errorf("expected the ingested message in the list")
	}
}

func TestIngestMissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/webhook", map[string]any{"type": "deploy"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestSignatureVerification(t *testing.T) {
	const secret = "webhook-secret"
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Webhook.Secret = secret
	})

	body, err := json.Marshal(testPayload())
	if err != nil {
		t.Fatal(err)
	}

	// Wrong signature is rejected.
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: status = %d, want 401", rec.Code)
	}

	// Correct signature is accepted.
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", webhook.Sign(secret, body))
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("good signature: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// No signature header still works: verification needs both sides.
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("no signature: status = %d, want 200", rec.Code)
	}
}

func TestListPaginationValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{
		"/api/webhooks?page=0",
		"/api/webhooks?page=abc",
		"/api/webhooks?pageSize=0",
		"/api/webhooks?pageSize=101",
		"/api/webhooks?processed=maybe",
		"/api/webhooks?startDate=yesterday",
	} {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestGetUpdateDeleteMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/webhook", testPayload(), nil)
	id := decode[map[string]any](t, rec)["id"].(string)

	getRec := env.do(t, http.MethodGet, "/api/webhooks/"+id, nil, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d", getRec.Code)
	}

	putRec := env.do(t, http.MethodPut, "/api/webhooks/"+id+"/processed", nil, nil)
	if putRec.Code != http.StatusOK {
		t.Fatalf("mark processed status = %d", putRec.Code)
	}
	updated := decode[webhook.Message](t, putRec)
	if !updated.Processed {
		t.Error("expected processed = true")
	}

	delRec := env.do(t, http.MethodDelete, "/api/webhooks/"+id, nil, nil)
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", delRec.Code)
	}

	missingRec := env.do(t, http.MethodGet, "/api/webhooks/"+id, nil, nil)
	if missingRec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", missingRec.Code)
	}
}

func TestUnknownMessageIs404(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/webhooks/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPost, "/webhook", testPayload(), nil)
	env.do(t, http.MethodPost, "/webhook", testPayload(), nil)

	rec := env.do(t, http.MethodGet, "/api/webhooks/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := decode[webhook.Stats](t, rec)
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/health", "/webhook/health", "/api/storage/health", "/api/queue/stats"} {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestStorageHealthServesCombinedReport(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/storage/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	report := decode[map[string]any](t, rec)
	for _, key := range []string{"storage", "queue", "initialized"} {
		if _, ok := report[key]; !ok {
			t.Errorf("missing top-level key %q in %v", key, report)
		}
	}

	storage, ok := report["storage"].(map[string]any)
	if !ok {
		t.Fatalf("storage is not an object: %v", report["storage"])
	}
	if storage["healthy"] != true || storage["type"] != "sqlite" || storage["status"] != "healthy" {
		t.Errorf("unexpected storage report: %v", storage)
	}
	if _, ok := storage["lastCheck"]; !ok {
		t.Error("missing lastCheck")
	}
	if report["initialized"] != true {
		t.Errorf("initialized = %v, want true", report["initialized"])
	}
}

func TestWebhookHealthIsLiveness(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/webhook/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["endpoint"] != "webhook" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestWebSocketInfo(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/websocket/info", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	info := decode[realtime.Info](t, rec)
	if info.Path != "/api/realtime" {
		t.Errorf("path = %q", info.Path)
	}
	if !info.Enabled {
		t.Error("expected enabled feed")
	}
}

func TestAPIRequiresAuthWhenConfigured(t *testing.T) {
	hash := mustHash(t, "hunter2hunter2")
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.JWT.Secret = "0123456789abcdef0123456789abcdef"
		cfg.Auth.AdminUsername = "admin"
		cfg.Auth.AdminPasswordHash = hash
	})

	protected := []string{
		"/api/webhooks",
		"/api/storage/health",
		"/api/queue/stats",
		"/api/websocket/info",
	}
	for _, path := range protected {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("unauthenticated %s: status = %d, want 401", path, rec.Code)
		}
	}

	loginRec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "hunter2hunter2",
	}, nil)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", loginRec.Code, loginRec.Body.String())
	}
	token := decode[map[string]any](t, loginRec)["token"].(string)

	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	for _, path := range protected {
		authedRec := env.do(t, http.MethodGet, path, nil, header)
		if authedRec.Code != http.StatusOK {
			t.Errorf("authenticated %s: status = %d, want 200", path, authedRec.Code)
		}
	}

	meRec := env.do(t, http.MethodGet, "/api/auth/me", nil, header)
	if meRec.Code != http.StatusOK {
		t.Fatalf("me status = %d", meRec.Code)
	}
	me := decode[map[string]any](t, meRec)
	if me["username"] != "admin" || me["authenticated"] != true {
		t.Errorf("unexpected me response: %v", me)
	}

	// The ingestion path stays open for webhook senders.
	ingestRec := env.do(t, http.MethodPost, "/webhook", testPayload(), nil)
	if ingestRec.Code != http.StatusOK {
		t.Errorf("ingest with auth enabled: status = %d, want 200", ingestRec.Code)
	}
}
