package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/normalizer"
)

// validate checks record constraints after normalization, before persist
var validate = validator.New(validator.WithRequiredStructEnabled())

// KV keys for the last run summary per kind
const (
	kvLastProviderRun = "pipeline:last_run:providers"
	kvLastScraperRun  = "pipeline:last_run:scrapers"
)

// fetchEnvelope carries one adapter's phase-1 outcome into phase 2
type fetchEnvelope struct {
	source string
	jobs   []*models.Job
	err    error
}

// Orchestrator drives ingestion runs: a parallel fetch phase across the
// enabled adapters, then a sequential persist phase where each record is
// normalized, upserted and checked for cross-source duplicates. A failing
// adapter or record never aborts the run.
type Orchestrator struct {
	adapters    []interfaces.SourceAdapter
	storage     interfaces.StorageManager
	normalizer  *normalizer.Normalizer
	dedup       *dedup.Service
	maintenance *Maintenance
	events      interfaces.EventService
	config      *common.IngestConfig
	logger      arbor.ILogger

	// runMu rejects overlapping runs instead of queueing them
	runMu sync.Mutex
}

func NewOrchestrator(
	adapters []interfaces.SourceAdapter,
	storage interfaces.StorageManager,
	norm *normalizer.Normalizer,
	dedupService *dedup.Service,
	maintenance *Maintenance,
	events interfaces.EventService,
	config *common.IngestConfig,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		adapters:    adapters,
		storage:     storage,
		normalizer:  norm,
		dedup:       dedupService,
		maintenance: maintenance,
		events:      events,
		config:      config,
		logger:      logger,
	}
}

// RunProviders ingests from all enabled API providers.
func (o *Orchestrator) RunProviders(ctx context.Context) (*models.RunSummary, error) {
	return o.run(ctx, models.RunKindProviders, "api")
}

// RunScrapers ingests from all enabled HTML scrapers.
func (o *Orchestrator) RunScrapers(ctx context.Context) (*models.RunSummary, error) {
	return o.run(ctx, models.RunKindScrapers, "scraping")
}

func (o *Orchestrator) run(ctx context.Context, kind, method string) (*models.RunSummary, error) {
	if !o.runMu.TryLock() {
		return nil, fmt.Errorf("a run is already in progress")
	}
	defer o.runMu.Unlock()

	selected := o.selectAdapters(method)
	summary := &models.RunSummary{
		RunID:     common.NewRunID(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if o.config.HardTimeLimit > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.config.HardTimeLimit)
		defer cancel()
	}
	if o.config.SoftTimeLimit > 0 {
		softTimer := time.AfterFunc(o.config.SoftTimeLimit, func() {
			o.logger.Warn().
				Str("run_id", summary.RunID).
				Dur("soft_limit", o.config.SoftTimeLimit).
				Msg("Run exceeded soft time limit")
		})
		defer softTimer.Stop()
	}

	o.logger.Info().
		Str("run_id", summary.RunID).
		Str("kind", kind).
		Int("sources", len(selected)).
		Msg("Ingestion run started")
	o.events.Publish(ctx, models.NewEvent(models.EventRunStarted, map[string]interface{}{
		"run_id":  summary.RunID,
		"kind":    kind,
		"sources": len(selected),
	}))

	for _, envelope := range o.fetchAll(runCtx, selected) {
		result := o.persistSource(runCtx, envelope)
		summary.Add(result)

		o.events.Publish(ctx, models.NewEvent(models.EventSourceCompleted, map[string]interface{}{
			"run_id":  summary.RunID,
			"source":  result.Source,
			"fetched": result.Fetched,
			"new":     result.New,
			"updated": result.Updated,
			"dupes":   result.Dupes,
			"errors":  result.Errors,
			"skipped": result.Skipped,
		}))
	}

	summary.FinishedAt = time.Now().UTC()
	duration := summary.FinishedAt.Sub(summary.StartedAt)

	o.logger.Info().
		Str("run_id", summary.RunID).
		Str("kind", kind).
		Int("fetched", summary.Fetched).
		Int("new", summary.New).
		Int("updated", summary.Updated).
		Int("dupes", summary.Dupes).
		Int("errors", summary.Errors).
		Dur("duration", duration).
		Msg("Ingestion run completed")
	o.events.Publish(ctx, models.NewEvent(models.EventRunCompleted, map[string]interface{}{
		"run_id":      summary.RunID,
		"kind":        kind,
		"fetched":     summary.Fetched,
		"new":         summary.New,
		"updated":     summary.Updated,
		"dupes":       summary.Dupes,
		"errors":      summary.Errors,
		"duration_ms": duration.Milliseconds(),
	}))

	o.saveSummary(ctx, summary)
	if summary.New > 0 {
		o.triggerPostRun(summary.RunID)
	}

	return summary, nil
}

func (o *Orchestrator) selectAdapters(method string) []interfaces.SourceAdapter {
	var selected []interfaces.SourceAdapter
	for _, adapter := range o.adapters {
		if adapter.Method() != method {
			continue
		}
		if !adapter.Enabled() {
			o.logger.Debug().Str("source", adapter.Name()).Msg("Adapter disabled, skipping")
			continue
		}
		selected = append(selected, adapter)
	}
	return selected
}

// fetchAll runs phase 1: every adapter fetches concurrently under the
// semaphore, results land in adapter order.
func (o *Orchestrator) fetchAll(ctx context.Context, adapters []interfaces.SourceAdapter) []fetchEnvelope {
	concurrency := o.config.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	envelopes := make([]fetchEnvelope, len(adapters))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter interfaces.SourceAdapter) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			jobs, err := adapter.FetchJobs(ctx, o.config.DefaultQuery, o.config.DefaultLocation)
			if err != nil && !errors.Is(err, interfaces.ErrSkipped) {
				o.logger.Error().Err(err).Str("source", adapter.Name()).Msg("Adapter fetch failed")
			}
			envelopes[i] = fetchEnvelope{source: adapter.Name(), jobs: jobs, err: err}
		}(i, adapter)
	}
	wg.Wait()

	return envelopes
}

// persistSource runs phase 2 for one source. Every record is processed
// independently so a bad posting costs one error counter, not the batch.
func (o *Orchestrator) persistSource(ctx context.Context, envelope fetchEnvelope) models.SourceResult {
	result := models.SourceResult{Source: envelope.source}

	if envelope.err != nil {
		if errors.Is(envelope.err, interfaces.ErrSkipped) {
			result.Skipped = true
			return result
		}
		result.Errors = 1
		result.Err = envelope.err.Error()
		return result
	}

	result.Fetched = len(envelope.jobs)
	for _, job := range envelope.jobs {
		if err := o.persistJob(ctx, job, &result); err != nil {
			result.Errors++
			o.logger.Warn().
				Err(err).
				Str("source", envelope.source).
				Str("url", job.URL).
				Msg("Failed to persist job")
		}
	}

	o.logger.Info().
		Str("source", envelope.source).
		Int("fetched", result.Fetched).
		Int("new", result.New).
		Int("updated", result.Updated).
		Int("dupes", result.Dupes).
		Int("errors", result.Errors).
		Msg("Source persisted")
	return result
}

func (o *Orchestrator) persistJob(ctx context.Context, job *models.Job, result *models.SourceResult) error {
	if job.Title == "" || job.Company == "" || job.URL == "" {
		return fmt.Errorf("record missing title, company or url")
	}
	if job.Hash == "" {
		job.Hash = dedup.ComputeHash(job.Title, job.Company, job.URL)
	}

	o.normalizer.Normalize(job)
	job.FuzzyHash = dedup.ComputeFuzzyHash(job.Title, job.Company)

	if err := validate.Struct(job); err != nil {
		return fmt.Errorf("record validation failed: %w", err)
	}

	isNew, err := o.storage.JobStorage().UpsertJob(ctx, job)
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	if !isNew {
		result.Updated++
		return nil
	}
	result.New++

	// Only fresh rows can introduce a duplicate relationship.
	canonical, err := o.dedup.FindFuzzyDuplicate(ctx, job)
	if err != nil {
		return fmt.Errorf("fuzzy lookup failed: %w", err)
	}
	if canonical == nil {
		return nil
	}
	if err := o.dedup.MarkDuplicate(ctx, job, canonical); err != nil {
		return err
	}
	result.Dupes++

	o.events.Publish(ctx, models.NewEvent(models.EventJobsDeduplicated, map[string]interface{}{
		"hash":             job.Hash,
		"canonical":        canonical.Hash,
		"source":           job.Source,
		"canonical_source": canonical.Source,
	}))
	return nil
}

func (o *Orchestrator) saveSummary(ctx context.Context, summary *models.RunSummary) {
	key := kvLastProviderRun
	if summary.Kind == models.RunKindScrapers {
		key = kvLastScraperRun
	}
	if err := o.storage.KeyValueStorage().Set(ctx, key, summary); err != nil {
		o.logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("Failed to store run summary")
	}
}

// triggerPostRun kicks off embedding back-fill and the semantic sweep in
// the background. The run itself never waits on the Gemini API.
func (o *Orchestrator) triggerPostRun(runID string) {
	if !o.maintenance.embedder.IsAvailable() {
		o.logger.Debug().Str("run_id", runID).Msg("Embedding backend unavailable, post-run sweep skipped")
		return
	}

	common.SafeGo(o.logger, "postRunMaintenance", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if _, err := o.maintenance.BackfillEmbeddings(ctx, 0); err != nil {
			o.logger.Warn().Err(err).Str("run_id", runID).Msg("Post-run embedding back-fill failed")
			return
		}
		if _, err := o.maintenance.SemanticSweep(ctx, 0); err != nil {
			o.logger.Warn().Err(err).Str("run_id", runID).Msg("Post-run semantic sweep failed")
		}
	})
}

// LastRun returns the stored summary for a run kind, or nil when no run
// has completed yet.
func (o *Orchestrator) LastRun(ctx context.Context, kind string) (*models.RunSummary, error) {
	key := kvLastProviderRun
	if kind == models.RunKindScrapers {
		key = kvLastScraperRun
	}

	var summary models.RunSummary
	err := o.storage.KeyValueStorage().Get(ctx, key, &summary)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run summary: %w", err)
	}
	return &summary, nil
}
