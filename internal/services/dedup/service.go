package dedup

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service resolves duplicate postings across sources. Exact identity is
// the md5 hash primary key; near-identity uses the fuzzy hash; the
// semantic pass over embeddings runs separately in maintenance.
type Service struct {
	storage interfaces.JobStorage
	logger  arbor.ILogger
}

func NewService(storage interfaces.JobStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// FindFuzzyDuplicate returns the canonical row a newly inserted job
// duplicates, or nil when it stands alone. Candidates share the fuzzy
// hash, are active, and come from a different source; the oldest one is
// canonical. Same-source matches are legitimate reposts and never
// consolidated.
func (s *Service) FindFuzzyDuplicate(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.FuzzyHash == "" {
		return nil, nil
	}

	candidates, err := s.storage.FindByFuzzyHash(ctx, job.FuzzyHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query fuzzy candidates: %w", err)
	}

	for _, candidate := range candidates {
		if candidate.Hash == job.Hash {
			continue
		}
		if candidate.Source == job.Source {
			continue
		}
		// A re-activated row still pointing at its canonical must not be
		// elected canonical itself; that would start a chain.
		if candidate.IsDuplicate() {
			continue
		}

		s.logger.Debug().
			Str("hash", job.Hash).
			Str("canonical", candidate.Hash).
			Str("fuzzy_hash", job.FuzzyHash).
			Msg("Fuzzy duplicate found")
		return candidate, nil
	}

	return nil, nil
}

// FindSemanticDuplicate returns the closest active, non-duplicate,
// embedded row within the similarity threshold, or nil. The whole
// embedded corpus is the candidate universe, not just a recent window.
func (s *Service) FindSemanticDuplicate(ctx context.Context, job *models.Job) (*models.Job, error) {
	if !job.HasEmbedding() {
		return nil, nil
	}

	rows, err := s.storage.ListActiveWithEmbeddings(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded jobs: %w", err)
	}

	var best *models.Job
	bestSimilarity := SemanticSimilarityThreshold
	for _, candidate := range rows {
		if candidate.Hash == job.Hash {
			continue
		}
		similarity := CosineSimilarity(job.Embedding, candidate.Embedding)
		if similarity <= bestSimilarity {
			continue
		}
		best = candidate
		bestSimilarity = similarity
	}

	if best != nil {
		s.logger.Debug().
			Str("hash", job.Hash).
			Str("neighbor", best.Hash).
			Float64("similarity", bestSimilarity).
			Msg("Semantic duplicate found")
	}
	return best, nil
}

// MarkDuplicate folds a job into its canonical row.
func (s *Service) MarkDuplicate(ctx context.Context, job *models.Job, canonical *models.Job) error {
	if err := s.storage.MarkDuplicate(ctx, job.Hash, canonical.Hash); err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}

	s.logger.Info().
		Str("hash", job.Hash).
		Str("canonical", canonical.Hash).
		Str("source", job.Source).
		Str("canonical_source", canonical.Source).
		Msg("Job marked as cross-source duplicate")
	return nil
}
