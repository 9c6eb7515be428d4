package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// JobStorage persists aggregated jobs keyed by their content hash.
// All writes funnel through here; adapters never touch the store directly.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a job storage backed by the given connection.
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertJob inserts a new job or refreshes the sighting of a known one.
// A known hash only gets LastSeenAt bumped and IsActive set back to true;
// FirstSeenAt, DuplicateOf and the embedding survive re-sightings untouched.
// Returns true iff the row did not exist before.
func (s *JobStorage) UpsertJob(ctx context.Context, job *models.Job) (bool, error) {
	if job == nil || job.Hash == "" {
		return false, fmt.Errorf("job hash is required")
	}

	now := time.Now().UTC()

	var existing models.Job
	err := s.db.Store().Get(job.Hash, &existing)
	if err == nil {
		existing.LastSeenAt = now
		existing.IsActive = true
		if err := s.db.Store().Upsert(job.Hash, &existing); err != nil {
			return false, fmt.Errorf("failed to refresh job %s: %w", job.Hash, err)
		}
		return false, nil
	}
	if err != badgerhold.ErrNotFound {
		return false, fmt.Errorf("failed to read job %s: %w", job.Hash, err)
	}

	// A posting URL must not appear under two different hashes.
	if job.URL != "" {
		byURL, err := s.GetJobByURL(ctx, job.URL)
		if err != nil && err != interfaces.ErrNotFound {
			return false, err
		}
		if byURL != nil && byURL.Hash != job.Hash {
			return false, fmt.Errorf("%w: %s", interfaces.ErrURLConflict, job.URL)
		}
	}

	if job.FirstSeenAt.IsZero() {
		job.FirstSeenAt = now
	}
	job.LastSeenAt = now
	job.IsActive = true

	if err := s.db.Store().Upsert(job.Hash, job); err != nil {
		return false, fmt.Errorf("failed to insert job %s: %w", job.Hash, err)
	}

	return true, nil
}

// MarkDuplicate folds hash into canonicalHash: sets DuplicateOf and
// deactivates the row. Idempotent; marking a row as its own duplicate or
// marking a missing row is a no-op.
func (s *JobStorage) MarkDuplicate(ctx context.Context, hash, canonicalHash string) error {
	if hash == "" || canonicalHash == "" || hash == canonicalHash {
		return nil
	}

	var job models.Job
	if err := s.db.Store().Get(hash, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to read job %s: %w", hash, err)
	}

	if job.DuplicateOf == canonicalHash && !job.IsActive {
		return nil
	}

	job.DuplicateOf = canonicalHash
	job.IsActive = false

	if err := s.db.Store().Upsert(hash, &job); err != nil {
		return fmt.Errorf("failed to mark job %s as duplicate: %w", hash, err)
	}

	s.logger.Debug().
		Str("hash", hash).
		Str("canonical", canonicalHash).
		Msg("Job marked as duplicate")

	return nil
}

// GetJob retrieves a job by hash.
func (s *JobStorage) GetJob(ctx context.Context, hash string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(hash, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", hash, err)
	}
	return &job, nil
}

// GetJobByURL retrieves the job stored under the given posting URL.
func (s *JobStorage) GetJobByURL(ctx context.Context, url string) (*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("URL").Eq(url).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to find job by url: %w", err)
	}
	if len(jobs) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &jobs[0], nil
}

// FindByFuzzyHash returns active rows sharing a fuzzy hash, oldest first,
// so callers can treat the first match as the canonical record.
func (s *JobStorage) FindByFuzzyHash(ctx context.Context, fuzzyHash string) ([]*models.Job, error) {
	if fuzzyHash == "" {
		return nil, nil
	}

	var jobs []models.Job
	query := badgerhold.Where("FuzzyHash").Eq(fuzzyHash).And("IsActive").Eq(true).SortBy("FirstSeenAt")
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to find jobs by fuzzy hash: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// ListMissingEmbeddings returns active, non-duplicate jobs without a vector,
// oldest first, capped at limit.
func (s *JobStorage) ListMissingEmbeddings(ctx context.Context, limit int) ([]*models.Job, error) {
	var jobs []models.Job
	query := badgerhold.Where("IsActive").Eq(true).And("DuplicateOf").Eq("").SortBy("FirstSeenAt")
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs without embeddings: %w", err)
	}

	// Vector presence is a slice-length predicate badgerhold cannot query on
	result := make([]*models.Job, 0, limit)
	for i := range jobs {
		if len(jobs[i].Embedding) > 0 {
			continue
		}
		result = append(result, &jobs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// ListActiveWithEmbeddings returns active, non-duplicate jobs that carry a
// full-size vector, newest first, capped at limit.
func (s *JobStorage) ListActiveWithEmbeddings(ctx context.Context, limit int) ([]*models.Job, error) {
	var jobs []models.Job
	query := badgerhold.Where("IsActive").Eq(true).And("DuplicateOf").Eq("").SortBy("FirstSeenAt").Reverse()
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list embedded jobs: %w", err)
	}

	result := make([]*models.Job, 0, limit)
	for i := range jobs {
		if !jobs[i].HasEmbedding() {
			continue
		}
		result = append(result, &jobs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// ListActiveForURLCheck returns active jobs whose URL has never been checked
// or was last checked before olderThan. Never-checked rows come first, then
// stalest checks, capped at limit.
func (s *JobStorage) ListActiveForURLCheck(ctx context.Context, olderThan time.Time, limit int) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list jobs for url check: %w", err)
	}

	result := make([]*models.Job, 0, limit)
	for i := range jobs {
		checked := jobs[i].URLLastCheck
		if checked == nil || checked.Before(olderThan) {
			result = append(result, &jobs[i])
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].URLLastCheck, result[j].URLLastCheck
		switch {
		case a == nil && b == nil:
			return result[i].FirstSeenAt.Before(result[j].FirstSeenAt)
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateEmbedding stores the vector for a job.
func (s *JobStorage) UpdateEmbedding(ctx context.Context, hash string, embedding []float32) error {
	var job models.Job
	if err := s.db.Store().Get(hash, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to read job %s: %w", hash, err)
	}

	job.Embedding = embedding
	if err := s.db.Store().Upsert(hash, &job); err != nil {
		return fmt.Errorf("failed to store embedding for job %s: %w", hash, err)
	}
	return nil
}

// SetURLCheck stamps a URL health check result on a job. Passing
// active=false deactivates the row.
func (s *JobStorage) SetURLCheck(ctx context.Context, hash string, checkedAt time.Time, active bool, failCount int) error {
	var job models.Job
	if err := s.db.Store().Get(hash, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to read job %s: %w", hash, err)
	}

	checked := checkedAt
	job.URLLastCheck = &checked
	job.IsActive = active
	job.URLFailCount = failCount

	if err := s.db.Store().Upsert(hash, &job); err != nil {
		return fmt.Errorf("failed to record url check for job %s: %w", hash, err)
	}
	return nil
}

// CountActive returns the number of active jobs.
func (s *JobStorage) CountActive(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("IsActive").Eq(true))
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return int(count), nil
}

// Stats summarizes the stored corpus in a single pass.
func (s *JobStorage) Stats(ctx context.Context) (*models.JobStats, error) {
	var jobs []models.Job
	query := badgerhold.Where("Hash").Ne("") // Select all
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to load jobs for stats: %w", err)
	}

	stats := &models.JobStats{BySource: make(map[string]int)}
	for i := range jobs {
		job := &jobs[i]
		stats.Total++
		if job.IsActive {
			stats.Active++
		}
		if job.IsDuplicate() {
			stats.Duplicates++
		}
		if job.HasEmbedding() {
			stats.Embedded++
		}
		stats.BySource[job.Source]++
	}
	return stats, nil
}
