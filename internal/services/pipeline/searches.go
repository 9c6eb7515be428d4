package pipeline

import (
	"context"

	"github.com/ternarybob/arbor"
)

// LogSearchRunner satisfies SavedSearchRunner when no downstream
// consumer is wired in. The scheduler still dispatches the tick so a
// consumer can be dropped in without touching the trigger table.
type LogSearchRunner struct {
	logger arbor.ILogger
}

func NewLogSearchRunner(logger arbor.ILogger) *LogSearchRunner {
	return &LogSearchRunner{logger: logger}
}

// RunSavedSearches logs the dispatch and returns.
func (r *LogSearchRunner) RunSavedSearches(ctx context.Context) error {
	r.logger.Debug().Msg("No saved-search consumer registered, dispatch skipped")
	return nil
}
