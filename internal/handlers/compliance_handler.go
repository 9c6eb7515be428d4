package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
)

// ComplianceHandler exposes the per-source scraping permissions.
type ComplianceHandler struct {
	compliance interfaces.ComplianceService
	logger     arbor.ILogger
}

func NewComplianceHandler(compliance interfaces.ComplianceService, logger arbor.ILogger) *ComplianceHandler {
	return &ComplianceHandler{compliance: compliance, logger: logger}
}

// GetComplianceHandler handles GET /api/compliance
func (h *ComplianceHandler) GetComplianceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rows, err := h.compliance.Status(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read compliance status")
		WriteError(w, http.StatusInternalServerError, "failed to read compliance status")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": rows,
		"count":   len(rows),
	})
}
