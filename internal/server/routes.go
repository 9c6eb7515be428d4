package server

import (
	"net/http"
)

// setupRoutes configures the ops surface routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Liveness
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)

	// Aggregated status: adapters, corpus counts, last runs
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// Job corpus statistics
	mux.HandleFunc("/api/jobs/stats", s.app.JobsHandler.GetJobStatsHandler)

	// Per-source scraping permissions
	mux.HandleFunc("/api/compliance", s.app.ComplianceHandler.GetComplianceHandler)

	// Scheduler trigger table
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.ListJobsHandler)
	mux.HandleFunc("/api/scheduler/trigger/", s.app.SchedulerHandler.TriggerJobHandler)

	// Event stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	return mux
}
