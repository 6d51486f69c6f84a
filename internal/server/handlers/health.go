package handlers

import (
	"net/http"
	"time"

	"github.com/hooktide/hooktide/internal/webhook"
)

// HealthHandlers serves liveness and storage health endpoints.
type HealthHandlers struct {
	service *webhook.Service
	started time.Time
}

func NewHealthHandlers(service *webhook.Service) *HealthHandlers {
	return &HealthHandlers{service: service, started: time.Now().UTC()}
}

// Liveness handles GET /health. It answers as long as the process is up.
func (h *HealthHandlers) Liveness(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// StorageHealth handles GET /api/storage/health. The dashboard reads the
// combined report: storage, queue, and the initialized flag.
func (h *HealthHandlers) StorageHealth(w http.ResponseWriter, r *http.Request) {
	report := h.service.HealthReport(r.Context())

	status := http.StatusOK
	if !report.Storage.Healthy && report.Storage.Status == webhook.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, report)
}

// QueueStats handles GET /api/queue/stats.
func (h *HealthHandlers) QueueStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.service.HealthReport(r.Context()).Queue)
}
