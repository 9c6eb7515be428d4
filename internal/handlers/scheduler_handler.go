package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
)

// SchedulerHandler exposes the trigger table and manual dispatch.
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

func NewSchedulerHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler, logger: logger}
}

// ListJobsHandler handles GET /api/scheduler/jobs
func (h *SchedulerHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.JobStatuses(),
	})
}

// TriggerJobHandler handles POST /api/scheduler/trigger/{name}
func (h *SchedulerHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/scheduler/trigger/")
	if name == "" || strings.Contains(name, "/") {
		WriteError(w, http.StatusBadRequest, "job name required")
		return
	}

	if err := h.scheduler.TriggerJob(r.Context(), name); err != nil {
		h.logger.Warn().Err(err).Str("job_name", name).Msg("Manual trigger rejected")
		status := http.StatusConflict
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		WriteError(w, status, err.Error())
		return
	}

	WriteStarted(w, "job "+name+" triggered")
}
