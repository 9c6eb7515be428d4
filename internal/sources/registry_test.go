package sources

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/fetcher"
)

type seededCompliance struct {
	seeded map[string]string
}

func (c *seededCompliance) CanScrape(ctx context.Context, sourceKey string) bool  { return true }
func (c *seededCompliance) ReportBlock(ctx context.Context, key string, code int) {}
func (c *seededCompliance) ResetBlocks(ctx context.Context, sourceKey string)     {}
func (c *seededCompliance) EnsureSource(ctx context.Context, sourceKey, method string) error {
	c.seeded[sourceKey] = method
	return nil
}
func (c *seededCompliance) Status(ctx context.Context) ([]*models.SourceCompliance, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T, mutate func(*common.Config)) (*Registry, *seededCompliance) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Browser.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	logger := arbor.NewLogger()
	comp := &seededCompliance{seeded: make(map[string]string)}
	reg := New(Deps{
		Config:     cfg,
		Fetcher:    fetcher.New(&cfg.HTTP, logger),
		Compliance: comp,
		Logger:     logger,
	})
	return reg, comp
}

func TestRegistryPartition(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	if got := len(reg.All()); got != 9 {
		t.Fatalf("Expected 9 adapters, got %d", got)
	}
	if got := len(reg.Providers()); got != 6 {
		t.Errorf("Expected 6 API providers, got %d", got)
	}
	if got := len(reg.Scrapers()); got != 3 {
		t.Errorf("Expected 3 scrapers, got %d", got)
	}
}

func TestRegistryKeyGating(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	for _, name := range []string{"jooble", "adzuna"} {
		a := reg.Get(name)
		if a == nil {
			t.Fatalf("Expected %s registered", name)
		}
		if a.Enabled() {
			t.Errorf("Expected %s disabled without credentials", name)
		}
	}

	reg, _ = newTestRegistry(t, func(cfg *common.Config) {
		cfg.Providers.JoobleAPIKey = "key"
		cfg.Providers.AdzunaAppID = "id"
		cfg.Providers.AdzunaAppKey = "key"
	})
	for _, name := range []string{"jooble", "adzuna"} {
		if !reg.Get(name).Enabled() {
			t.Errorf("Expected %s enabled with credentials", name)
		}
	}
}

func TestRegistryBrowserGating(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	if reg.Get("zentraljob").Enabled() {
		t.Error("Expected browser-dependent scraper disabled when the browser is off")
	}
	if !reg.Get("myscience").Enabled() {
		t.Error("Expected plain HTTP scraper enabled without a browser")
	}
}

func TestRegistrySeedCompliance(t *testing.T) {
	reg, comp := newTestRegistry(t, nil)

	if err := reg.SeedCompliance(context.Background()); err != nil {
		t.Fatalf("Expected seed success, got %v", err)
	}
	if len(comp.seeded) != 9 {
		t.Fatalf("Expected all 9 sources seeded, got %d", len(comp.seeded))
	}
	if comp.seeded["arbeitnow"] != "api" {
		t.Errorf("Expected arbeitnow seeded as api, got %q", comp.seeded["arbeitnow"])
	}
	if comp.seeded["gastrojob"] != "scraping" {
		t.Errorf("Expected gastrojob seeded as scraping, got %q", comp.seeded["gastrojob"])
	}
}

func TestRegistryStats(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	stats := reg.Stats()
	if len(stats) != 9 {
		t.Fatalf("Expected stats for all 9 adapters, got %d", len(stats))
	}

	for i := 1; i < len(stats); i++ {
		if stats[i-1].Source > stats[i].Source {
			t.Fatalf("Expected stats sorted by source, got %s before %s", stats[i-1].Source, stats[i].Source)
		}
	}

	for _, s := range stats {
		if s.Source == "jooble" && s.Enabled {
			t.Error("Expected jooble reported disabled")
		}
		if s.CircuitState == "" {
			t.Errorf("Expected circuit state populated for %s", s.Source)
		}
	}
}
