package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// ComplianceService - the gate in front of every outbound request.
// Mutations to SourceCompliance rows go through here and nowhere else.
type ComplianceService interface {
	// CanScrape reports whether the source may be fetched. Unknown sources
	// and storage errors resolve to false (fail closed).
	CanScrape(ctx context.Context, sourceKey string) bool

	// ReportBlock records a 403/429 style rejection; trips the kill-switch
	// after the configured threshold of consecutive blocks.
	ReportBlock(ctx context.Context, sourceKey string, statusCode int)

	// ResetBlocks zeros the consecutive block counter after a verified success
	ResetBlocks(ctx context.Context, sourceKey string)

	// EnsureSource seeds a default compliance row for a registered source
	EnsureSource(ctx context.Context, sourceKey, method string) error

	// Status returns all rows ordered by source key
	Status(ctx context.Context) ([]*models.SourceCompliance, error)
}
