package interfaces

import (
	"context"
	"time"
)

// JobStatus describes one scheduled job for the ops surface
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	Enabled     bool       `json:"enabled"`
	IsRunning   bool       `json:"is_running"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// SchedulerService - cron-driven trigger table. Handlers only dispatch work;
// they never execute ingestion inline.
type SchedulerService interface {
	// RegisterJob adds a named job with a cron schedule
	RegisterJob(name, schedule, description string, handler func(ctx context.Context) error) error

	Start() error
	Stop()

	// TriggerJob runs a job immediately, outside its schedule
	TriggerJob(ctx context.Context, name string) error

	// JobStatuses returns a snapshot of all registered jobs
	JobStatuses() []JobStatus
}

// SavedSearchRunner dispatches saved-search evaluation to the downstream
// consumer. The ingestion core only schedules it.
type SavedSearchRunner interface {
	RunSavedSearches(ctx context.Context) error
}
