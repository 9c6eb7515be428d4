package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ComplianceStorage persists per-source compliance rows keyed by source key.
type ComplianceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewComplianceStorage creates a compliance storage backed by the given connection.
func NewComplianceStorage(db *BadgerDB, logger arbor.ILogger) *ComplianceStorage {
	return &ComplianceStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the compliance row for a source key.
func (s *ComplianceStorage) Get(ctx context.Context, sourceKey string) (*models.SourceCompliance, error) {
	var row models.SourceCompliance
	if err := s.db.Store().Get(sourceKey, &row); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get compliance for %s: %w", sourceKey, err)
	}
	return &row, nil
}

// Save writes a compliance row, stamping UpdatedAt.
func (s *ComplianceStorage) Save(ctx context.Context, row *models.SourceCompliance) error {
	if row == nil || row.SourceKey == "" {
		return fmt.Errorf("compliance source key is required")
	}

	row.UpdatedAt = time.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}

	if err := s.db.Store().Upsert(row.SourceKey, row); err != nil {
		return fmt.Errorf("failed to save compliance for %s: %w", row.SourceKey, err)
	}
	return nil
}

// List returns all compliance rows sorted by source key.
func (s *ComplianceStorage) List(ctx context.Context) ([]*models.SourceCompliance, error) {
	var rows []models.SourceCompliance
	query := badgerhold.Where("SourceKey").Ne("").SortBy("SourceKey") // Select all
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list compliance rows: %w", err)
	}

	result := make([]*models.SourceCompliance, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}
