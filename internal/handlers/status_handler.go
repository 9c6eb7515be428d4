package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/pipeline"
	"github.com/ternarybob/colligo/internal/sources"
)

// StatusHandler serves the aggregated application status: adapter lineup,
// corpus counts and the last ingestion runs.
type StatusHandler struct {
	registry     *sources.Registry
	jobStorage   interfaces.JobStorage
	orchestrator *pipeline.Orchestrator
	browser      *browser.Service
	startedAt    time.Time
	logger       arbor.ILogger
}

func NewStatusHandler(
	registry *sources.Registry,
	jobStorage interfaces.JobStorage,
	orchestrator *pipeline.Orchestrator,
	browserService *browser.Service,
	logger arbor.ILogger,
) *StatusHandler {
	return &StatusHandler{
		registry:     registry,
		jobStorage:   jobStorage,
		orchestrator: orchestrator,
		browser:      browserService,
		startedAt:    time.Now(),
		logger:       logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx := r.Context()

	stats, err := h.jobStorage.Stats(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read job stats")
		stats = &models.JobStats{}
	}

	lastRuns := map[string]*models.RunSummary{}
	for _, kind := range []string{models.RunKindProviders, models.RunKindScrapers} {
		if summary, err := h.orchestrator.LastRun(ctx, kind); err == nil {
			lastRuns[kind] = summary
		}
	}

	browserAvailable := h.browser != nil && h.browser.Available()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"version":           common.GetVersion(),
		"uptime":            time.Since(h.startedAt).Round(time.Second).String(),
		"jobs":              stats,
		"adapters":          h.registry.Stats(),
		"browser_available": browserAvailable,
		"last_runs":         lastRuns,
	})
}

// HealthHandler handles GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
