package adapter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/breaker"
)

// Adapter methods, matching SourceCompliance.Method
const (
	MethodAPI      = "api"
	MethodScraping = "scraping"
)

// Core carries what every source adapter shares: the per-source circuit
// breaker and fetch statistics. Concrete adapters embed a Core and add
// their transport and parsing on top (composition, not inheritance).
type Core struct {
	name    string
	method  string
	breaker *breaker.CircuitBreaker
	logger  arbor.ILogger

	mu           sync.Mutex
	totalFetched int
	lastFetchAt  time.Time
	errors       int
}

// NewCore creates the shared state for a named source.
func NewCore(name, method string, cfg *common.BreakerConfig, logger arbor.ILogger) *Core {
	return &Core{
		name:    name,
		method:  method,
		breaker: breaker.New(name, cfg.FailureThreshold, cfg.RecoveryTimeout, logger),
		logger:  logger,
	}
}

// Name returns the stable lowercase source key.
func (c *Core) Name() string {
	return c.name
}

// Method returns "api" or "scraping".
func (c *Core) Method() string {
	return c.method
}

// Call runs an outbound operation through the source's circuit breaker.
func (c *Core) Call(ctx context.Context, op func(ctx context.Context) error) error {
	return c.breaker.Call(ctx, op)
}

// RecordError bumps the adapter's error counter.
func (c *Core) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
}

// FinishFetch records the outcome of one fetch cycle.
func (c *Core) FinishFetch(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalFetched += count
	c.lastFetchAt = time.Now().UTC()
}

// Stats snapshots the adapter's bookkeeping for the ops surface.
func (c *Core) Stats(enabled bool) interfaces.AdapterStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := interfaces.AdapterStats{
		Source:       c.name,
		Method:       c.method,
		Enabled:      enabled,
		TotalFetched: c.totalFetched,
		Errors:       c.errors,
		CircuitState: c.breaker.State(),
	}
	if !c.lastFetchAt.IsZero() {
		stats.LastFetchAt = c.lastFetchAt.Format(time.RFC3339)
	}
	return stats
}

// Snippet truncates plain text for Job.DescriptionSnippet.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= models.SnippetLength {
		return text
	}
	return string(runes[:models.SnippetLength])
}

// CapTags dedupes tags case-insensitively, preserving first-seen order,
// and caps the list at the model limit.
func CapTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var kept []string
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		kept = append(kept, trimmed)
		if len(kept) == models.MaxTags {
			break
		}
	}
	return kept
}
