package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrURLConflict is returned when an insert would violate URL uniqueness
// (same URL already stored under a different hash)
var ErrURLConflict = errors.New("url already stored under a different hash")

// JobStorage - interface for aggregated job persistence.
// The repository owns all Job mutations; adapters and services read only.
type JobStorage interface {
	// UpsertJob inserts a new row or, for a known hash, refreshes
	// LastSeenAt and reactivates the row. Returns true iff the row did not
	// exist before. FirstSeenAt and DuplicateOf are never modified on update.
	UpsertJob(ctx context.Context, job *models.Job) (bool, error)

	// MarkDuplicate points hash at canonicalHash and deactivates it. Idempotent.
	MarkDuplicate(ctx context.Context, hash, canonicalHash string) error

	GetJob(ctx context.Context, hash string) (*models.Job, error)
	GetJobByURL(ctx context.Context, url string) (*models.Job, error)

	// FindByFuzzyHash returns active rows sharing the fuzzy hash, oldest first
	FindByFuzzyHash(ctx context.Context, fuzzyHash string) ([]*models.Job, error)

	// ListMissingEmbeddings returns active, non-duplicate rows without vectors
	ListMissingEmbeddings(ctx context.Context, limit int) ([]*models.Job, error)

	// ListActiveWithEmbeddings returns active, non-duplicate, embedded rows,
	// newest first
	ListActiveWithEmbeddings(ctx context.Context, limit int) ([]*models.Job, error)

	// ListActiveForURLCheck returns active rows whose URL has not been
	// checked since olderThan
	ListActiveForURLCheck(ctx context.Context, olderThan time.Time, limit int) ([]*models.Job, error)

	UpdateEmbedding(ctx context.Context, hash string, embedding []float32) error

	// SetURLCheck stamps a health check; active=false deactivates the row
	SetURLCheck(ctx context.Context, hash string, checkedAt time.Time, active bool, failCount int) error

	CountActive(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*models.JobStats, error)
}

// ComplianceStorage - interface for SourceCompliance persistence
type ComplianceStorage interface {
	Get(ctx context.Context, sourceKey string) (*models.SourceCompliance, error)
	Save(ctx context.Context, row *models.SourceCompliance) error
	List(ctx context.Context) ([]*models.SourceCompliance, error)
}

// KeyValueStorage - small typed KV store for operational state
// (last run summaries, sweep cursors)
type KeyValueStorage interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	JobStorage() JobStorage
	ComplianceStorage() ComplianceStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
