package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/webhook"
)

const indexMapping = `{
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0,
		"analysis": {
			"analyzer": {
				"webhook_analyzer": {
					"type": "custom",
					"tokenizer": "standard",
					"filter": ["lowercase", "stop"]
				}
			}
		}
	},
	"mappings": {
		"properties": {
			"id": {"type": "keyword"},
			"type": {"type": "keyword"},
			"title": {
				"type": "text",
				"analyzer": "webhook_analyzer",
				"fields": {"keyword": {"type": "keyword"}}
			},
			"content": {"type": "text", "analyzer": "webhook_analyzer"},
			"values": {"type": "object", "enabled": false},
			"timestamp": {"type": "long"},
			"receivedAt": {"type": "date"},
			"userAgent": {"type": "text"},
			"sourceIp": {"type": "ip"},
			"signature": {"type": "keyword"},
			"processed": {"type": "boolean"}
		}
	}
}`

// ElasticsearchAdapter implements the store contract on an Elasticsearch
// index. Writes request refresh=wait_for so documents are immediately visible
// to subsequent reads; stats use server-side aggregations.
type ElasticsearchAdapter struct {
	es     *elasticsearch.Client
	cfg    *config.StorageConfig
	index  string
	mu     sync.Mutex
	inited bool
}

// NewElasticsearchAdapter builds the client. The index is created lazily in
// Initialize.
func NewElasticsearchAdapter(cfg *config.StorageConfig) (*ElasticsearchAdapter, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = "webhook-messages"
	}

	return &ElasticsearchAdapter{es: es, cfg: cfg, index: index}, nil
}

func (a *ElasticsearchAdapter) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// Initialize creates the index with explicit mappings if it does not exist.
func (a *ElasticsearchAdapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inited {
		return nil
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	res, err := a.es.Indices.Exists([]string{a.index}, a.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		createRes, err := a.es.Indices.Create(a.index,
			a.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
			a.es.Indices.Create.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("creating index %s: %w", a.index, err)
		}
		defer createRes.Body.Close()
		if createRes.IsError() {
			return fmt.Errorf("creating index %s: %s", a.index, createRes.String())
		}
	} else if res.IsError() {
		return fmt.Errorf("checking index %s: %s", a.index, res.String())
	}

	a.inited = true
	return nil
}

// StoreMessage indexes one document with refresh=wait_for.
func (a *ElasticsearchAdapter) StoreMessage(ctx context.Context, in *webhook.Incoming) (*webhook.Message, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	msg := newMessage(in)

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling message: %w", err)
	}

	res, err := a.es.Index(a.index, bytes.NewReader(body),
		a.es.Index.WithDocumentID(msg.ID),
		a.es.Index.WithRefresh("wait_for"),
		a.es.Index.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("indexing message: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("indexing message: %s", res.String())
	}

	return msg, nil
}

// StoreMessages uses the bulk API with refresh=wait_for.
func (a *ElasticsearchAdapter) StoreMessages(ctx context.Context, in []*webhook.Incoming) ([]*webhook.Message, error) {
	if len(in) == 0 {
		return []*webhook.Message{}, nil
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	var buf bytes.Buffer
	msgs := make([]*webhook.Message, 0, len(in))

	for _, item := range in {
		msg := newMessage(item)
		msgs = append(msgs, msg)

		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": a.index, "_id": msg.ID},
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling bulk action: %w", err)
		}
		doc, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshaling message: %w", err)
		}

		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := a.es.Bulk(bytes.NewReader(buf.Bytes()),
		a.es.Bulk.WithRefresh("wait_for"),
		a.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("bulk indexing messages: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("bulk indexing messages: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int    `json:"status"`
			Error  any    `json:"error"`
			ID     string `json:"_id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return nil, fmt.Errorf("decoding bulk response: %w", err)
	}
	if bulkResp.Errors {
		return nil, fmt.Errorf("bulk indexing messages: one or more items failed")
	}

	return msgs, nil
}

// GetMessages builds a bool query from the filters and pages through hits
// sorted by receivedAt descending.
func (a *ElasticsearchAdapter) GetMessages(ctx context.Context, q *webhook.Query) (*webhook.ListResult, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	query := *q
	query.Normalize()

	body := map[string]any{
		"query": buildESQuery(&query),
		"sort":  []any{map[string]any{"receivedAt": map[string]any{"order": "desc"}}},
		"from":  query.Offset(),
		"size":  query.PageSize,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling search body: %w", err)
	}

	res, err := a.es.Search(
		a.es.Search.WithIndex(a.index),
		a.es.Search.WithBody(bytes.NewReader(raw)),
		a.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("searching messages: %s", res.String())
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source webhook.Message `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	msgs := make([]*webhook.Message, 0, len(searchResp.Hits.Hits))
	for i := range searchResp.Hits.Hits {
		msg := searchResp.Hits.Hits[i].Source
		msgs = append(msgs, &msg)
	}

	total := searchResp.Hits.Total.Value
	return &webhook.ListResult{
		Messages:   msgs,
		Total:      total,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: webhook.TotalPagesFor(total, query.PageSize),
	}, nil
}

func buildESQuery(q *webhook.Query) map[string]any {
	var filter []any
	var must []any

	if q.Type != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"type": q.Type}})
	}
	if q.Processed != nil {
		filter = append(filter, map[string]any{"term": map[string]any{"processed": *q.Processed}})
	}
	if q.StartDate != nil || q.EndDate != nil {
		rng := map[string]any{}
		if q.StartDate != nil {
			rng["gte"] = q.StartDate.UTC().Format(time.RFC3339)
		}
		if q.EndDate != nil {
			rng["lte"] = q.EndDate.UTC().Format(time.RFC3339)
		}
		filter = append(filter, map[string]any{"range": map[string]any{"receivedAt": rng}})
	}
	if q.Search != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     q.Search,
				"fields":    []string{"title^2", "content", "type"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		})
	}

	if len(filter) == 0 && len(must) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]any{"bool": boolQuery}
}

// GetMessageByID fetches a document; 404 maps to webhook.ErrNotFound.
func (a *ElasticsearchAdapter) GetMessageByID(ctx context.Context, id string) (*webhook.Message, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	res, err := a.es.Get(a.index, id, a.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, webhook.ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("getting message: %s", res.String())
	}

	var getResp struct {
		Source webhook.Message `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&getResp); err != nil {
		return nil, fmt.Errorf("decoding get response: %w", err)
	}

	return &getResp.Source, nil
}

// UpdateMessage sends a partial doc update and re-reads the canonical form.
func (a *ElasticsearchAdapter) UpdateMessage(ctx context.Context, id string, u *webhook.Update) (*webhook.Message, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	doc := map[string]any{}
	if u.Type != nil {
		doc["type"] = *u.Type
	}
	if u.Title != nil {
		doc["title"] = *u.Title
	}
	if u.Content != nil {
		doc["content"] = *u.Content
	}
	if len(u.Values) > 0 {
		doc["values"] = json.RawMessage(u.Values)
	}
	if u.Timestamp != nil {
		doc["timestamp"] = *u.Timestamp
	}
	if u.Processed != nil {
		doc["processed"] = *u.Processed
	}

	if len(doc) == 0 {
		return a.GetMessageByID(ctx, id)
	}

	body, err := json.Marshal(map[string]any{"doc": doc})
	if err != nil {
		return nil, fmt.Errorf("marshaling update body: %w", err)
	}

	res, err := a.es.Update(a.index, id, bytes.NewReader(body),
		a.es.Update.WithRefresh("wait_for"),
		a.es.Update.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, webhook.ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("updating message: %s", res.String())
	}

	return a.GetMessageByID(ctx, id)
}

// DeleteMessage removes a document; 404 maps to webhook.ErrNotFound.
func (a *ElasticsearchAdapter) DeleteMessage(ctx context.Context, id string) error {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	res, err := a.es.Delete(a.index, id,
		a.es.Delete.WithRefresh("wait_for"),
		a.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return webhook.ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("deleting message: %s", res.String())
	}
	return nil
}

// GetStats computes the aggregates server-side instead of pulling documents.
func (a *ElasticsearchAdapter) GetStats(ctx context.Context) (*webhook.Stats, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	body := `{
		"size": 0,
		"aggs": {
			"total": {"value_count": {"field": "id"}},
			"by_type": {"terms": {"field": "type", "size": 50}},
			"last_24_hours": {"filter": {"range": {"receivedAt": {"gte": "now-24h"}}}}
		}
	}`

	res, err := a.es.Search(
		a.es.Search.WithIndex(a.index),
		a.es.Search.WithBody(bytes.NewReader([]byte(body))),
		a.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating stats: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("aggregating stats: %s", res.String())
	}

	var aggResp struct {
		Aggregations struct {
			Total struct {
				Value float64 `json:"value"`
			} `json:"total"`
			ByType struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_type"`
			Last24Hours struct {
				DocCount int64 `json:"doc_count"`
			} `json:"last_24_hours"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResp); err != nil {
		return nil, fmt.Errorf("decoding stats response: %w", err)
	}

	stats := &webhook.Stats{
		Total:       int64(aggResp.Aggregations.Total.Value),
		ByType:      []webhook.TypeCount{},
		Last24Hours: aggResp.Aggregations.Last24Hours.DocCount,
	}
	for _, bucket := range aggResp.Aggregations.ByType.Buckets {
		stats.ByType = append(stats.ByType, webhook.TypeCount{Type: bucket.Key, Count: bucket.DocCount})
	}

	return stats, nil
}

// SearchMessages is fuzzy multi-field matching weighted toward title.
func (a *ElasticsearchAdapter) SearchMessages(ctx context.Context, text string, q *webhook.Query) (*webhook.ListResult, error) {
	query := *q
	query.Search = text
	return a.GetMessages(ctx, &query)
}

// CleanupOldMessages deletes by query with an immediate refresh.
func (a *ElasticsearchAdapter) CleanupOldMessages(ctx context.Context, olderThanDays int) (int64, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -olderThanDays).UTC().Format(time.RFC3339)
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"range": map[string]any{"receivedAt": map[string]any{"lt": cutoff}},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("marshaling cleanup body: %w", err)
	}

	res, err := a.es.DeleteByQuery([]string{a.index}, bytes.NewReader(body),
		a.es.DeleteByQuery.WithRefresh(true),
		a.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up messages: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("cleaning up messages: %s", res.String())
	}

	var delResp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&delResp); err != nil {
		return 0, fmt.Errorf("decoding cleanup response: %w", err)
	}

	return delResp.Deleted, nil
}

// HealthStatus maps cluster health for the index to the contract's levels.
func (a *ElasticsearchAdapter) HealthStatus(ctx context.Context) (*webhook.HealthStatus, error) {
	ctx, cancel := a.opContext(ctx)
	defer cancel()

	res, err := a.es.Cluster.Health(
		a.es.Cluster.Health.WithIndex(a.index),
		a.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return &webhook.HealthStatus{
			Status:  webhook.HealthUnhealthy,
			Details: map[string]any{"error": err.Error()},
		}, nil
	}
	defer res.Body.Close()
	if res.IsError() {
		return &webhook.HealthStatus{
			Status:  webhook.HealthUnhealthy,
			Details: map[string]any{"error": res.String()},
		}, nil
	}

	var health struct {
		Status        string `json:"status"`
		NumberOfNodes int    `json:"number_of_nodes"`
		ActiveShards  int    `json:"active_shards"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decoding cluster health: %w", err)
	}

	status := webhook.HealthUnhealthy
	switch health.Status {
	case "green":
		status = webhook.HealthHealthy
	case "yellow":
		status = webhook.HealthDegraded
	}

	return &webhook.HealthStatus{
		Status: status,
		Details: map[string]any{
			"cluster_status":  health.Status,
			"number_of_nodes": health.NumberOfNodes,
			"active_shards":   health.ActiveShards,
		},
	}, nil
}

// Close is a no-op: the underlying HTTP transport needs no teardown.
func (a *ElasticsearchAdapter) Close() error {
	return nil
}
