package scheduler

import (
	"context"
	"fmt"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/pipeline"
)

// Job names used in the trigger table and the ops API
const (
	JobFetchProviders = "fetch_providers"
	JobFetchScrapers  = "fetch_scrapers"
	JobDedupSemantic  = "dedup_semantic"
	JobCheckJobURLs   = "check_job_urls"
	JobRunSavedSearch = "run_saved_searches"
)

// RegisterIngestionJobs wires the standard trigger table: API providers
// on a minute cadence, scrapers on an hour cadence, the semantic sweep
// nightly, URL health weekly and saved-search dispatch hourly.
func RegisterIngestionJobs(
	s interfaces.SchedulerService,
	orchestrator *pipeline.Orchestrator,
	maintenance *pipeline.Maintenance,
	searches interfaces.SavedSearchRunner,
	config *common.SchedulerConfig,
) error {
	fetchMinutes := config.FetchIntervalMinutes
	if fetchMinutes <= 0 {
		fetchMinutes = 30
	}
	scraperHours := config.ScraperIntervalHours
	if scraperHours <= 0 {
		scraperHours = 6
	}
	searchMinutes := config.SearchIntervalMinutes
	if searchMinutes <= 0 {
		searchMinutes = 60
	}

	jobs := []struct {
		name        string
		schedule    string
		description string
		handler     func(ctx context.Context) error
	}{
		{
			name:        JobFetchProviders,
			schedule:    fmt.Sprintf("@every %dm", fetchMinutes),
			description: "Fetch jobs from all enabled API providers",
			handler: func(ctx context.Context) error {
				_, err := orchestrator.RunProviders(ctx)
				return err
			},
		},
		{
			name:        JobFetchScrapers,
			schedule:    fmt.Sprintf("@every %dh", scraperHours),
			description: "Fetch jobs from all enabled HTML scrapers",
			handler: func(ctx context.Context) error {
				_, err := orchestrator.RunScrapers(ctx)
				return err
			},
		},
		{
			name:        JobDedupSemantic,
			schedule:    "0 4 * * *",
			description: "Consolidate semantically duplicate postings",
			handler: func(ctx context.Context) error {
				if _, err := maintenance.BackfillEmbeddings(ctx, 0); err != nil {
					return err
				}
				_, err := maintenance.SemanticSweep(ctx, 0)
				return err
			},
		},
		{
			name:        JobCheckJobURLs,
			schedule:    "0 3 * * 0",
			description: "Deactivate postings whose URL no longer resolves",
			handler: func(ctx context.Context) error {
				_, err := maintenance.CheckJobURLs(ctx, 0)
				return err
			},
		},
		{
			name:        JobRunSavedSearch,
			schedule:    fmt.Sprintf("@every %dm", searchMinutes),
			description: "Dispatch saved-search evaluation to the consumer",
			handler:     searches.RunSavedSearches,
		},
	}

	for _, job := range jobs {
		if err := s.RegisterJob(job.name, job.schedule, job.description, job.handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.name, err)
		}
	}
	return nil
}
