package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/embeddings"
	"github.com/ternarybob/colligo/internal/services/fetcher"
)

// Maintenance task names, also used as sweep event payloads
const (
	TaskEmbeddingBackfill = "embedding_backfill"
	TaskSemanticSweep     = "dedup_semantic"
	TaskURLCheck          = "check_job_urls"
)

// urlFailThreshold deactivates a job after this many consecutive
// unreachable health checks. 404/410 deactivate immediately.
const urlFailThreshold = 3

// headDelay spaces out HEAD requests within a URL health batch
const headDelay = 500 * time.Millisecond

// Maintenance owns the background sweeps: embedding back-fill for new
// rows, the semantic duplicate sweep, and URL health checks.
type Maintenance struct {
	storage  interfaces.StorageManager
	dedup    *dedup.Service
	embedder interfaces.EmbeddingService
	fetcher  *fetcher.Fetcher
	events   interfaces.EventService
	config   *common.Config
	logger   arbor.ILogger
}

func NewMaintenance(
	storage interfaces.StorageManager,
	dedupService *dedup.Service,
	embedder interfaces.EmbeddingService,
	httpFetcher *fetcher.Fetcher,
	events interfaces.EventService,
	config *common.Config,
	logger arbor.ILogger,
) *Maintenance {
	return &Maintenance{
		storage:  storage,
		dedup:    dedupService,
		embedder: embedder,
		fetcher:  httpFetcher,
		events:   events,
		config:   config,
		logger:   logger,
	}
}

// BackfillEmbeddings generates vectors for active, non-duplicate rows
// that have none yet. A batchSize of 0 uses the configured default.
func (m *Maintenance) BackfillEmbeddings(ctx context.Context, batchSize int) (*models.SweepResult, error) {
	result := &models.SweepResult{Task: TaskEmbeddingBackfill}
	defer func() { result.FinishedAt = time.Now().UTC() }()

	if !m.embedder.IsAvailable() {
		m.logger.Debug().Msg("Embedding backend unavailable, back-fill skipped")
		return result, nil
	}
	if batchSize <= 0 {
		batchSize = m.config.Ingest.EmbedBatchSize
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	jobs, err := m.storage.JobStorage().ListMissingEmbeddings(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list jobs without embeddings: %w", err)
	}
	result.Scanned = len(jobs)
	if len(jobs) == 0 {
		return result, nil
	}

	requestBatch := m.config.Embeddings.BatchSize
	if requestBatch <= 0 {
		requestBatch = 100
	}

	for start := 0; start < len(jobs); start += requestBatch {
		end := start + requestBatch
		if end > len(jobs) {
			end = len(jobs)
		}
		chunk := jobs[start:end]

		texts := make([]string, len(chunk))
		for i, job := range chunk {
			texts[i] = embeddings.JobText(job)
		}

		vectors, err := m.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			result.Errors += len(chunk)
			m.logger.Warn().Err(err).Int("batch", len(chunk)).Msg("Embedding batch failed")
			continue
		}

		for i, job := range chunk {
			if err := m.storage.JobStorage().UpdateEmbedding(ctx, job.Hash, vectors[i]); err != nil {
				result.Errors++
				m.logger.Warn().Err(err).Str("hash", job.Hash).Msg("Failed to store embedding")
				continue
			}
			result.Updated++
		}
	}

	m.logger.Info().
		Int("scanned", result.Scanned).
		Int("embedded", result.Updated).
		Int("errors", result.Errors).
		Msg("Embedding back-fill completed")
	m.publishSweep(ctx, result)
	return result, nil
}

// SemanticSweep consolidates active rows whose embeddings sit within the
// cosine threshold. The batch cap applies to the candidates only; each
// candidate is compared against the whole embedded corpus, so an old
// canonical outside the newest-first window is still found. The row with
// the earlier FirstSeenAt stays canonical.
func (m *Maintenance) SemanticSweep(ctx context.Context, batchSize int) (*models.SweepResult, error) {
	result := &models.SweepResult{Task: TaskSemanticSweep}
	defer func() { result.FinishedAt = time.Now().UTC() }()

	if batchSize <= 0 {
		batchSize = m.config.Ingest.SweepBatchSize
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	candidates, err := m.storage.JobStorage().ListActiveWithEmbeddings(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list embedded jobs: %w", err)
	}
	result.Scanned = len(candidates)

	folded := make(map[string]bool)
	for _, candidate := range candidates {
		if folded[candidate.Hash] {
			continue
		}

		neighbor, err := m.dedup.FindSemanticDuplicate(ctx, candidate)
		if err != nil {
			result.Errors++
			m.logger.Warn().Err(err).Str("hash", candidate.Hash).Msg("Semantic neighbor lookup failed")
			continue
		}
		if neighbor == nil || folded[neighbor.Hash] {
			continue
		}

		keep, fold := candidate, neighbor
		if candidate.FirstSeenAt.After(neighbor.FirstSeenAt) {
			keep, fold = neighbor, candidate
		}

		if err := m.dedup.MarkDuplicate(ctx, fold, keep); err != nil {
			result.Errors++
			m.logger.Warn().Err(err).Str("hash", fold.Hash).Msg("Failed to fold semantic duplicate")
			continue
		}
		folded[fold.Hash] = true
		result.Deactivated++
	}

	m.logger.Info().
		Int("scanned", result.Scanned).
		Int("deduplicated", result.Deactivated).
		Int("errors", result.Errors).
		Msg("Semantic sweep completed")
	m.publishSweep(ctx, result)
	return result, nil
}

// CheckJobURLs HEAD-requests stale active postings and deactivates dead
// ones. 404 and 410 deactivate immediately; other failures accumulate
// until the unreachable threshold.
func (m *Maintenance) CheckJobURLs(ctx context.Context, batchSize int) (*models.SweepResult, error) {
	result := &models.SweepResult{Task: TaskURLCheck}
	defer func() { result.FinishedAt = time.Now().UTC() }()

	if batchSize <= 0 {
		batchSize = m.config.HTTP.URLCheckBatch
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	recheckDays := m.config.HTTP.URLRecheckDays
	if recheckDays <= 0 {
		recheckDays = 7
	}
	olderThan := time.Now().UTC().AddDate(0, 0, -recheckDays)

	jobs, err := m.storage.JobStorage().ListActiveForURLCheck(ctx, olderThan, batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list jobs for URL check: %w", err)
	}
	result.Scanned = len(jobs)

	for i, job := range jobs {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(headDelay):
			}
		}

		checkedAt := time.Now().UTC()
		status, err := m.fetcher.Head(ctx, job.URL)

		switch {
		case err != nil:
			failCount := job.URLFailCount + 1
			stillActive := failCount < urlFailThreshold
			if setErr := m.storage.JobStorage().SetURLCheck(ctx, job.Hash, checkedAt, stillActive, failCount); setErr != nil {
				result.Errors++
				continue
			}
			if !stillActive {
				result.Deactivated++
				m.logger.Info().
					Str("hash", job.Hash).
					Str("url", job.URL).
					Int("fail_count", failCount).
					Msg("Job deactivated, URL unreachable")
			}
		case status == 404 || status == 410:
			if setErr := m.storage.JobStorage().SetURLCheck(ctx, job.Hash, checkedAt, false, job.URLFailCount+1); setErr != nil {
				result.Errors++
				continue
			}
			result.Deactivated++
			m.logger.Info().
				Str("hash", job.Hash).
				Str("url", job.URL).
				Int("status", status).
				Msg("Job deactivated, posting removed")
		default:
			if setErr := m.storage.JobStorage().SetURLCheck(ctx, job.Hash, checkedAt, true, 0); setErr != nil {
				result.Errors++
				continue
			}
			result.Updated++
		}
	}

	m.logger.Info().
		Int("scanned", result.Scanned).
		Int("healthy", result.Updated).
		Int("deactivated", result.Deactivated).
		Int("errors", result.Errors).
		Msg("URL health check completed")
	m.publishSweep(ctx, result)
	return result, nil
}

func (m *Maintenance) publishSweep(ctx context.Context, result *models.SweepResult) {
	m.events.Publish(ctx, models.NewEvent(models.EventSweepCompleted, map[string]interface{}{
		"task":        result.Task,
		"scanned":     result.Scanned,
		"updated":     result.Updated,
		"deactivated": result.Deactivated,
		"errors":      result.Errors,
	}))
}
