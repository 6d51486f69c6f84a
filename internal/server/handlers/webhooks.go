package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hooktide/hooktide/internal/webhook"
)

// WebhookHandlers serves the dashboard's message API.
type WebhookHandlers struct {
	service *webhook.Service
}

func NewWebhookHandlers(service *webhook.Service) *WebhookHandlers {
	return &WebhookHandlers{service: service}
}

// parseQuery extracts pagination and filters. Out-of-range pagination is an
// error rather than a silent clamp, so dashboards notice broken links.
func parseQuery(r *http.Request) (*webhook.Query, error) {
	q := &webhook.Query{
		Page:     1,
		PageSize: webhook.DefaultPageSize,
	}
	values := r.URL.Query()

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return nil, errors.New("page must be a positive integer")
		}
		q.Page = page
	}

	if raw := values.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > webhook.MaxPageSize {
			return nil, errors.New("pageSize must be between 1 and 100")
		}
		q.PageSize = size
	}

	q.Type = values.Get("type")
	q.Search = values.Get("search")

	if raw := values.Get("processed"); raw != "" {
		processed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("processed must be true or false")
		}
		q.Processed = &processed
	}

	if raw := values.Get("startDate"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("startDate must be an RFC 3339 timestamp")
		}
		q.StartDate = &start
	}

	if raw := values.Get("endDate"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("endDate must be an RFC 3339 timestamp")
		}
		q.EndDate = &end
	}

	return q, nil
}

// List handles GET /api/webhooks.
func (h *WebhookHandlers) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	result, err := h.service.GetMessages(r.Context(), q)
	if err != nil {
		InternalError(w, "Failed to fetch webhook messages")
		return
	}

	JSON(w, http.StatusOK, result)
}

// Search handles GET /api/webhooks/search.
func (h *WebhookHandlers) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	text := r.URL.Query().Get("q")
	if text == "" {
		BadRequest(w, "Query parameter q is required")
		return
	}

	result, err := h.service.SearchMessages(r.Context(), text, q)
	if err != nil {
		InternalError(w, "Failed to search webhook messages")
		return
	}

	JSON(w, http.StatusOK, result)
}

// Get handles GET /api/webhooks/{id}.
func (h *WebhookHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	msg, err := h.service.GetMessageByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			NotFound(w, "Webhook message not found")
			return
		}
		InternalError(w, "Failed to fetch webhook message")
		return
	}

	JSON(w, http.StatusOK, msg)
}

// MarkProcessed handles PUT /api/webhooks/{id}/processed.
func (h *WebhookHandlers) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	msg, err := h.service.MarkProcessed(r.Context(), id)
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			NotFound(w, "Webhook message not found")
			return
		}
		InternalError(w, "Failed to update webhook message")
		return
	}

	JSON(w, http.StatusOK, msg)
}

// Delete handles DELETE /api/webhooks/{id}.
func (h *WebhookHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.service.DeleteMessage(r.Context(), id); err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			NotFound(w, "Webhook message not found")
			return
		}
		InternalError(w, "Failed to delete webhook message")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Stats handles GET /api/webhooks/stats.
func (h *WebhookHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		InternalError(w, "Failed to fetch webhook stats")
		return
	}

	JSON(w, http.StatusOK, stats)
}

// Cleanup handles DELETE /api/webhooks/cleanup.
func (h *WebhookHandlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			BadRequest(w, "days must be a positive integer")
			return
		}
		days = parsed
	}

	deleted, err := h.service.CleanupOldMessages(r.Context(), days)
	if err != nil {
		InternalError(w, "Failed to clean up webhook messages")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
		"days":    days,
	})
}
