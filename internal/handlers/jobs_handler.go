package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
)

// JobsHandler serves read-only views over the aggregated job corpus.
type JobsHandler struct {
	storage interfaces.JobStorage
	logger  arbor.ILogger
}

func NewJobsHandler(storage interfaces.JobStorage, logger arbor.ILogger) *JobsHandler {
	return &JobsHandler{storage: storage, logger: logger}
}

// GetJobStatsHandler handles GET /api/jobs/stats
func (h *JobsHandler) GetJobStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.storage.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read job stats")
		WriteError(w, http.StatusInternalServerError, "failed to read job stats")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
