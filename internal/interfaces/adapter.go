package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/colligo/internal/models"
)

// ErrSkipped is returned by FetchJobs when compliance or circuit state
// kept the adapter from fetching anything. Not an error condition for
// run accounting.
var ErrSkipped = errors.New("source skipped")

// SourceAdapter is the single contract shared by API providers and HTML
// scrapers. Adapters fetch and normalize; they never write to storage.
type SourceAdapter interface {
	// Name returns the stable lowercase source key
	// (matches SourceCompliance.SourceKey)
	Name() string

	// Method returns "api" or "scraping"
	Method() string

	// Enabled reports whether the adapter can run; key-gated adapters
	// return false when their credential is absent
	Enabled() bool

	// FetchJobs returns normalized records for the query/location.
	// Partial results with a nil error are valid (early page-loop stops).
	FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error)
}

// AdapterStats is the per-source fetch bookkeeping exposed to the ops surface
type AdapterStats struct {
	Source       string `json:"source"`
	Method       string `json:"method"`
	Enabled      bool   `json:"enabled"`
	TotalFetched int    `json:"total_fetched"`
	LastFetchAt  string `json:"last_fetch_at,omitempty"`
	Errors       int    `json:"errors"`
	CircuitState string `json:"circuit_state"`
}

// StatProvider is implemented by adapters that expose fetch statistics.
// The enabled flag is passed in because the shared bookkeeping does not
// know about credential gating.
type StatProvider interface {
	Stats(enabled bool) AdapterStats
}
