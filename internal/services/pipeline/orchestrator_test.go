package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/services/fetcher"
	"github.com/ternarybob/colligo/internal/services/normalizer"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

// fakeAdapter returns canned jobs or a canned error
type fakeAdapter struct {
	name    string
	method  string
	enabled bool
	jobs    []*models.Job
	err     error
	calls   int32
	block   chan struct{}
}

func (a *fakeAdapter) Name() string   { return a.name }
func (a *fakeAdapter) Method() string { return a.method }
func (a *fakeAdapter) Enabled() bool  { return a.enabled }

func (a *fakeAdapter) FetchJobs(ctx context.Context, query, location string) ([]*models.Job, error) {
	atomic.AddInt32(&a.calls, 1)
	if a.block != nil {
		<-a.block
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.jobs, nil
}

// fakeEmbedder returns a fixed vector per call when available
type fakeEmbedder struct {
	available bool
	vector    []float32
	calls     int32
}

func (e *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&e.calls, 1)
	if !e.available {
		return nil, fmt.Errorf("embedding service not available")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = e.vector
	}
	return vectors, nil
}

func (e *fakeEmbedder) Dimension() int    { return models.EmbeddingDimension }
func (e *fakeEmbedder) IsAvailable() bool { return e.available }

type harness struct {
	orchestrator *Orchestrator
	maintenance  *Maintenance
	storage      interfaces.StorageManager
	config       *common.Config
}

func newHarness(t *testing.T, adapters []interfaces.SourceAdapter, embedder interfaces.EmbeddingService) *harness {
	t.Helper()

	logger := arbor.NewLogger()
	config := common.NewDefaultConfig()
	config.Storage.Badger.Path = t.TempDir()
	config.HTTP.MaxRetries = 0
	config.HTTP.BackoffFactor = time.Millisecond
	config.HTTP.Timeout = 2 * time.Second

	manager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})

	eventBus := events.NewService(logger)
	dedupService := dedup.NewService(manager.JobStorage(), logger)
	maintenance := NewMaintenance(manager, dedupService, embedder, fetcher.New(&config.HTTP, logger), eventBus, config, logger)
	orchestrator := NewOrchestrator(adapters, manager, normalizer.New(logger), dedupService, maintenance, eventBus, &config.Ingest, logger)

	return &harness{
		orchestrator: orchestrator,
		maintenance:  maintenance,
		storage:      manager,
		config:       config,
	}
}

func sampleJob(source, title, company, url string) *models.Job {
	return &models.Job{
		Source:  source,
		Title:   title,
		Company: company,
		URL:     url,
	}
}

func TestRunIsolatesAdapterFailures(t *testing.T) {
	adapters := []interfaces.SourceAdapter{
		&fakeAdapter{name: "arbeitnow", method: "api", enabled: true, jobs: []*models.Job{
			sampleJob("arbeitnow", "Software Engineer", "Swisscom", "https://arbeitnow.com/1"),
			sampleJob("arbeitnow", "Data Analyst", "SBB", "https://arbeitnow.com/2"),
		}},
		&fakeAdapter{name: "jooble", method: "api", enabled: true, err: errors.New("connection refused")},
		&fakeAdapter{name: "jobicy", method: "api", enabled: true, jobs: []*models.Job{
			sampleJob("jobicy", "DevOps Engineer", "Ricardo", "https://jobicy.com/3"),
		}},
	}
	h := newHarness(t, adapters, &fakeEmbedder{})

	summary, err := h.orchestrator.RunProviders(context.Background())
	if err != nil {
		t.Fatalf("RunProviders failed: %v", err)
	}

	// 1. One source failed, the other two still landed their jobs.
	if summary.Errors < 1 {
		t.Errorf("Expected at least one error, got %d", summary.Errors)
	}
	if summary.New != 3 {
		t.Errorf("Expected 3 new jobs, got %d", summary.New)
	}
	if summary.Sources != 3 {
		t.Errorf("Expected 3 source results, got %d", summary.Sources)
	}

	// 2. The failing source carries its error message.
	var failed *models.SourceResult
	for i := range summary.Results {
		if summary.Results[i].Source == "jooble" {
			failed = &summary.Results[i]
		}
	}
	if failed == nil || failed.Err == "" {
		t.Error("Expected the jooble result to carry the fetch error")
	}

	// 3. Storage agrees with the counters.
	active, err := h.storage.JobStorage().CountActive(context.Background())
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if active != 3 {
		t.Errorf("Expected 3 active jobs in storage, got %d", active)
	}
}

func TestRunMarksCrossSourceDuplicates(t *testing.T) {
	adapters := []interfaces.SourceAdapter{
		&fakeAdapter{name: "jobicy", method: "api", enabled: true, jobs: []*models.Job{
			sampleJob("jobicy", "Senior Python Developer (m/f/d)", "Acme AG", "https://jobicy.com/acme"),
		}},
		&fakeAdapter{name: "jooble", method: "api", enabled: true, jobs: []*models.Job{
			sampleJob("jooble", "Python Developer", "Acme", "https://jooble.org/acme"),
		}},
	}
	h := newHarness(t, adapters, &fakeEmbedder{})

	summary, err := h.orchestrator.RunProviders(context.Background())
	if err != nil {
		t.Fatalf("RunProviders failed: %v", err)
	}

	if summary.New != 2 {
		t.Errorf("Expected 2 new rows, got %d", summary.New)
	}
	if summary.Dupes != 1 {
		t.Errorf("Expected 1 duplicate, got %d", summary.Dupes)
	}

	// The jooble sighting folded into the older jobicy row.
	canonicalHash := dedup.ComputeHash("Senior Python Developer (m/f/d)", "Acme AG", "https://jobicy.com/acme")
	dupHash := dedup.ComputeHash("Python Developer", "Acme", "https://jooble.org/acme")

	folded, err := h.storage.JobStorage().GetJob(context.Background(), dupHash)
	if err != nil {
		t.Fatalf("Failed to load folded row: %v", err)
	}
	if folded.DuplicateOf != canonicalHash {
		t.Errorf("Expected DuplicateOf=%s, got %q", canonicalHash, folded.DuplicateOf)
	}
	if folded.IsActive {
		t.Error("Folded row should be inactive")
	}

	kept, err := h.storage.JobStorage().GetJob(context.Background(), canonicalHash)
	if err != nil {
		t.Fatalf("Failed to load canonical row: %v", err)
	}
	if !kept.IsActive || kept.DuplicateOf != "" {
		t.Error("Canonical row should stay active and unmarked")
	}
}

func TestRunSecondSightingUpdates(t *testing.T) {
	adapter := &fakeAdapter{name: "arbeitnow", method: "api", enabled: true, jobs: []*models.Job{
		sampleJob("arbeitnow", "Polymechaniker", "Stadler Rail", "https://arbeitnow.com/poly"),
	}}
	h := newHarness(t, []interfaces.SourceAdapter{adapter}, &fakeEmbedder{})
	ctx := context.Background()

	first, err := h.orchestrator.RunProviders(ctx)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if first.New != 1 || first.Updated != 0 {
		t.Errorf("First run: expected new=1 updated=0, got new=%d updated=%d", first.New, first.Updated)
	}

	// Adapters hand over fresh structs each fetch.
	adapter.jobs = []*models.Job{sampleJob("arbeitnow", "Polymechaniker", "Stadler Rail", "https://arbeitnow.com/poly")}

	second, err := h.orchestrator.RunProviders(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if second.New != 0 || second.Updated != 1 {
		t.Errorf("Second run: expected new=0 updated=1, got new=%d updated=%d", second.New, second.Updated)
	}

	// The stored summary reflects the latest run.
	stored, err := h.orchestrator.LastRun(ctx, models.RunKindProviders)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if stored == nil || stored.RunID != second.RunID {
		t.Error("Expected the second run summary in the KV store")
	}
}

func TestRunFiltersAdaptersByMethodAndState(t *testing.T) {
	provider := &fakeAdapter{name: "arbeitnow", method: "api", enabled: true, jobs: []*models.Job{
		sampleJob("arbeitnow", "Koch", "Gastro AG", "https://arbeitnow.com/koch"),
	}}
	disabled := &fakeAdapter{name: "jooble", method: "api", enabled: false}
	scraper := &fakeAdapter{name: "myscience", method: "scraping", enabled: true}
	skipped := &fakeAdapter{name: "adzuna", method: "api", enabled: true,
		err: fmt.Errorf("%w: compliance denied", interfaces.ErrSkipped)}

	h := newHarness(t, []interfaces.SourceAdapter{provider, disabled, scraper, skipped}, &fakeEmbedder{})

	summary, err := h.orchestrator.RunProviders(context.Background())
	if err != nil {
		t.Fatalf("RunProviders failed: %v", err)
	}

	if atomic.LoadInt32(&disabled.calls) != 0 {
		t.Error("Disabled adapter must not be fetched")
	}
	if atomic.LoadInt32(&scraper.calls) != 0 {
		t.Error("Scraper must not run in a provider run")
	}

	// A compliance skip is not an error.
	var skippedResult *models.SourceResult
	for i := range summary.Results {
		if summary.Results[i].Source == "adzuna" {
			skippedResult = &summary.Results[i]
		}
	}
	if skippedResult == nil || !skippedResult.Skipped {
		t.Fatal("Expected a skipped result for adzuna")
	}
	if skippedResult.Errors != 0 {
		t.Errorf("Skip should not count as error, got %d", skippedResult.Errors)
	}
	if summary.Errors != 0 {
		t.Errorf("Expected no run errors, got %d", summary.Errors)
	}
	if summary.New != 1 {
		t.Errorf("Expected 1 new job, got %d", summary.New)
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	block := make(chan struct{})
	slow := &fakeAdapter{name: "arbeitnow", method: "api", enabled: true, block: block}
	h := newHarness(t, []interfaces.SourceAdapter{slow}, &fakeEmbedder{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.orchestrator.RunProviders(context.Background())
	}()

	// Wait until the first run is inside its fetch phase.
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&slow.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("First run never started fetching")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := h.orchestrator.RunProviders(context.Background()); err == nil {
		t.Error("Expected the overlapping run to be rejected")
	}

	close(block)
	<-done
}

func TestRunBadRecordCountsOneError(t *testing.T) {
	adapter := &fakeAdapter{name: "jobicy", method: "api", enabled: true, jobs: []*models.Job{
		sampleJob("jobicy", "Valid Role", "Valid AG", "https://jobicy.com/ok"),
		{Source: "jobicy", Title: "", Company: "Broken", URL: "https://jobicy.com/broken"},
	}}
	h := newHarness(t, []interfaces.SourceAdapter{adapter}, &fakeEmbedder{})

	summary, err := h.orchestrator.RunProviders(context.Background())
	if err != nil {
		t.Fatalf("RunProviders failed: %v", err)
	}

	if summary.Fetched != 2 {
		t.Errorf("Expected fetched=2, got %d", summary.Fetched)
	}
	if summary.New != 1 {
		t.Errorf("Expected the valid record to land, got new=%d", summary.New)
	}
	if summary.Errors != 1 {
		t.Errorf("Expected exactly one record error, got %d", summary.Errors)
	}
}
