package compliance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// DefaultBlockThreshold disables a source after this many consecutive blocks
const DefaultBlockThreshold = 3

// Service gates every outbound request against the persisted per-source
// compliance rows. An unknown source, a storage error, or a tripped
// kill-switch all resolve to "do not fetch".
type Service struct {
	storage        interfaces.ComplianceStorage
	events         interfaces.EventService
	blockThreshold int
	logger         arbor.ILogger

	// serializes read-modify-write of block counters
	mu sync.Mutex
}

// NewService creates a compliance service. A non-positive threshold falls
// back to the default of 3 consecutive blocks.
func NewService(storage interfaces.ComplianceStorage, events interfaces.EventService, blockThreshold int, logger arbor.ILogger) interfaces.ComplianceService {
	if blockThreshold <= 0 {
		blockThreshold = DefaultBlockThreshold
	}
	return &Service{
		storage:        storage,
		events:         events,
		blockThreshold: blockThreshold,
		logger:         logger,
	}
}

// CanScrape reports whether the source may be fetched. Unknown sources and
// storage errors resolve to false.
func (s *Service) CanScrape(ctx context.Context, sourceKey string) bool {
	row, err := s.storage.Get(ctx, sourceKey)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Warn().
				Err(err).
				Str("source", sourceKey).
				Msg("Compliance pre-check failed, blocking fetch")
		}
		return false
	}

	return row.IsAllowed && row.RobotsTxtOK
}

// ReportBlock records a 403/429 style rejection. When the consecutive block
// count reaches the threshold and auto-disable is armed, the source is
// switched off in the same write.
func (s *Service) ReportBlock(ctx context.Context, sourceKey string, statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.storage.Get(ctx, sourceKey)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Warn().
				Err(err).
				Str("source", sourceKey).
				Msg("Failed to load compliance row for block report")
		}
		return
	}

	now := time.Now()
	row.ConsecutiveBlocks++
	row.LastBlockedAt = &now

	disabled := false
	if row.AutoDisableOnBlock && row.IsAllowed && row.ConsecutiveBlocks >= s.blockThreshold {
		row.IsAllowed = false
		disabled = true
	}

	if err := s.storage.Save(ctx, row); err != nil {
		s.logger.Error().
			Err(err).
			Str("source", sourceKey).
			Msg("Failed to persist block report")
		return
	}

	s.logger.Warn().
		Str("source", sourceKey).
		Int("status", statusCode).
		Int("consecutive_blocks", row.ConsecutiveBlocks).
		Msg("Source reported a block")

	if disabled {
		s.logger.Warn().
			Str("source", sourceKey).
			Int("threshold", s.blockThreshold).
			Msg("Source auto-disabled after repeated blocks, manual review required")

		if s.events != nil {
			s.events.Publish(ctx, models.NewEvent(models.EventComplianceDisabled, map[string]interface{}{
				"source":             sourceKey,
				"status_code":        statusCode,
				"consecutive_blocks": row.ConsecutiveBlocks,
			}))
		}
	}
}

// ResetBlocks zeros the consecutive block counter after a verified success.
func (s *Service) ResetBlocks(ctx context.Context, sourceKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.storage.Get(ctx, sourceKey)
	if err != nil {
		return
	}
	if row.ConsecutiveBlocks == 0 {
		return
	}

	row.ConsecutiveBlocks = 0
	if err := s.storage.Save(ctx, row); err != nil {
		s.logger.Warn().
			Err(err).
			Str("source", sourceKey).
			Msg("Failed to reset block counter")
		return
	}

	s.logger.Debug().
		Str("source", sourceKey).
		Msg("Block counter reset after successful run")
}

// EnsureSource seeds a default compliance row for a registered source.
// Existing rows are left untouched so manual overrides survive restarts.
func (s *Service) EnsureSource(ctx context.Context, sourceKey, method string) error {
	_, err := s.storage.Get(ctx, sourceKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return err
	}

	row := models.NewSourceCompliance(common.NewID(), sourceKey, method)
	if err := s.storage.Save(ctx, row); err != nil {
		return err
	}

	s.logger.Info().
		Str("source", sourceKey).
		Str("method", method).
		Msg("Compliance row seeded with defaults")
	return nil
}

// Status returns all compliance rows for the ops surface.
func (s *Service) Status(ctx context.Context) ([]*models.SourceCompliance, error) {
	return s.storage.List(ctx)
}
