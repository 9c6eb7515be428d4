package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/sources/adapter"
	"github.com/ternarybob/colligo/internal/sources/providers"
	"github.com/ternarybob/colligo/internal/sources/scrapers"
)

// Deps carries everything the adapters need. Browser may be nil when the
// rendered-fetch path is disabled.
type Deps struct {
	Config     *common.Config
	Fetcher    *fetcher.Fetcher
	Browser    *browser.Service
	Compliance interfaces.ComplianceService
	Logger     arbor.ILogger
}

// Registry holds every registered source adapter. Key-gated adapters
// without credentials are constructed anyway so the ops surface can show
// them as disabled; the orchestrator skips them via Enabled.
type Registry struct {
	adapters   []interfaces.SourceAdapter
	compliance interfaces.ComplianceService
	logger     arbor.ILogger
}

// New builds all adapters: six API providers and three HTML scrapers.
func New(deps Deps) *Registry {
	cfg := deps.Config
	breakerCfg := &cfg.Breaker
	httpCfg := &cfg.HTTP
	creds := cfg.Providers
	logger := deps.Logger

	var browserService *browser.Service
	if cfg.Browser.Enabled {
		browserService = deps.Browser
	}

	adapters := []interfaces.SourceAdapter{
		providers.NewArbeitnow(deps.Fetcher, breakerCfg, logger),
		providers.NewJooble(deps.Fetcher, creds.JoobleAPIKey, breakerCfg, logger),
		providers.NewAdzuna(deps.Fetcher, creds.AdzunaAppID, creds.AdzunaAppKey, breakerCfg, logger),
		providers.NewRemoteOK(deps.Fetcher, breakerCfg, logger),
		providers.NewJobicy(deps.Fetcher, breakerCfg, logger),
		providers.NewWeWorkRemotely(deps.Fetcher, breakerCfg, logger),
		scrapers.New(scrapers.NewMyScience(), deps.Fetcher, browserService, deps.Compliance, httpCfg, breakerCfg, logger),
		scrapers.New(scrapers.NewGastrojob(), deps.Fetcher, browserService, deps.Compliance, httpCfg, breakerCfg, logger),
		scrapers.New(scrapers.NewZentraljob(), deps.Fetcher, browserService, deps.Compliance, httpCfg, breakerCfg, logger),
	}

	return &Registry{adapters: adapters, compliance: deps.Compliance, logger: logger}
}

// All returns every registered adapter, enabled or not.
func (r *Registry) All() []interfaces.SourceAdapter {
	return r.adapters
}

// Providers returns the API adapters.
func (r *Registry) Providers() []interfaces.SourceAdapter {
	return r.byMethod(adapter.MethodAPI)
}

// Scrapers returns the HTML scraping adapters.
func (r *Registry) Scrapers() []interfaces.SourceAdapter {
	return r.byMethod(adapter.MethodScraping)
}

func (r *Registry) byMethod(method string) []interfaces.SourceAdapter {
	var matched []interfaces.SourceAdapter
	for _, a := range r.adapters {
		if a.Method() == method {
			matched = append(matched, a)
		}
	}
	return matched
}

// Get returns the adapter for a source key, or nil.
func (r *Registry) Get(name string) interfaces.SourceAdapter {
	for _, a := range r.adapters {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// SeedCompliance ensures a compliance row exists for every registered
// source so the kill-switch has somewhere to record state.
func (r *Registry) SeedCompliance(ctx context.Context) error {
	for _, a := range r.adapters {
		if err := r.compliance.EnsureSource(ctx, a.Name(), a.Method()); err != nil {
			return fmt.Errorf("failed to seed compliance for %s: %w", a.Name(), err)
		}
	}
	return nil
}

// Stats snapshots all adapters, sorted by source key.
func (r *Registry) Stats() []interfaces.AdapterStats {
	var stats []interfaces.AdapterStats
	for _, a := range r.adapters {
		if sp, ok := a.(interfaces.StatProvider); ok {
			stats = append(stats, sp.Stats(a.Enabled()))
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Source < stats[j].Source })
	return stats
}

// LogStatus reports the adapter lineup at startup, naming every disabled
// adapter so missing credentials are visible immediately.
func (r *Registry) LogStatus() {
	enabled := 0
	for _, a := range r.adapters {
		if a.Enabled() {
			enabled++
			continue
		}
		r.logger.Warn().
			Str("source", a.Name()).
			Str("method", a.Method()).
			Msg("Adapter disabled (missing credential or browser)")
	}
	r.logger.Info().
		Int("enabled", enabled).
		Int("registered", len(r.adapters)).
		Msg("Source adapters registered")
}
