package compliance

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// memStorage is an in-memory ComplianceStorage for tests
type memStorage struct {
	rows    map[string]*models.SourceCompliance
	failAll bool
}

func newMemStorage() *memStorage {
	return &memStorage{rows: make(map[string]*models.SourceCompliance)}
}

func (m *memStorage) Get(ctx context.Context, sourceKey string) (*models.SourceCompliance, error) {
	if m.failAll {
		return nil, errors.New("storage down")
	}
	row, ok := m.rows[sourceKey]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *memStorage) Save(ctx context.Context, row *models.SourceCompliance) error {
	if m.failAll {
		return errors.New("storage down")
	}
	copied := *row
	m.rows[row.SourceKey] = &copied
	return nil
}

func (m *memStorage) List(ctx context.Context) ([]*models.SourceCompliance, error) {
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]*models.SourceCompliance, 0, len(keys))
	for _, k := range keys {
		copied := *m.rows[k]
		result = append(result, &copied)
	}
	return result, nil
}

func TestKillSwitchAfterThreeBlocks(t *testing.T) {
	storage := newMemStorage()
	svc := NewService(storage, nil, 3, arbor.NewLogger())
	ctx := context.Background()

	if err := svc.EnsureSource(ctx, "myscience", models.MethodScraping); err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}

	// 1. Two blocks leave the source allowed
	svc.ReportBlock(ctx, "myscience", 403)
	svc.ReportBlock(ctx, "myscience", 403)
	if !svc.CanScrape(ctx, "myscience") {
		t.Fatal("Expected source to stay allowed after two blocks")
	}

	// 2. The third consecutive block trips the kill-switch
	svc.ReportBlock(ctx, "myscience", 429)
	if svc.CanScrape(ctx, "myscience") {
		t.Fatal("Expected source to be disabled after three blocks")
	}

	row, err := storage.Get(ctx, "myscience")
	if err != nil {
		t.Fatalf("Failed to read row: %v", err)
	}
	if row.IsAllowed {
		t.Error("Expected is_allowed=false after kill-switch")
	}
	if row.ConsecutiveBlocks != 3 {
		t.Errorf("Expected 3 consecutive blocks, got %d", row.ConsecutiveBlocks)
	}
	if row.LastBlockedAt == nil {
		t.Error("Expected last_blocked_at to be stamped")
	}

	// 3. Resetting the counter must not re-enable the source
	svc.ResetBlocks(ctx, "myscience")
	if svc.CanScrape(ctx, "myscience") {
		t.Error("Expected disabled source to require manual re-enable")
	}
}

func TestBlockCounterResetBreaksStreak(t *testing.T) {
	storage := newMemStorage()
	svc := NewService(storage, nil, 3, arbor.NewLogger())
	ctx := context.Background()

	if err := svc.EnsureSource(ctx, "gastrojob", models.MethodScraping); err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}

	svc.ReportBlock(ctx, "gastrojob", 403)
	svc.ReportBlock(ctx, "gastrojob", 403)
	svc.ResetBlocks(ctx, "gastrojob")

	// Two more blocks only bring the streak back to two
	svc.ReportBlock(ctx, "gastrojob", 403)
	svc.ReportBlock(ctx, "gastrojob", 403)
	if !svc.CanScrape(ctx, "gastrojob") {
		t.Error("Expected source to stay allowed after a broken streak")
	}
}

func TestCanScrapeFailsClosed(t *testing.T) {
	storage := newMemStorage()
	svc := NewService(storage, nil, 3, arbor.NewLogger())
	ctx := context.Background()

	// Unknown sources are denied
	if svc.CanScrape(ctx, "unknown") {
		t.Error("Expected unknown source to be denied")
	}

	// Blocks for unknown sources are ignored, not invented
	svc.ReportBlock(ctx, "unknown", 403)
	if len(storage.rows) != 0 {
		t.Error("Expected no row to be created by a block report")
	}

	// Storage errors are denied too
	if err := svc.EnsureSource(ctx, "myscience", models.MethodScraping); err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}
	storage.failAll = true
	if svc.CanScrape(ctx, "myscience") {
		t.Error("Expected storage failure to deny the fetch")
	}
}

func TestEnsureSourceKeepsManualOverrides(t *testing.T) {
	storage := newMemStorage()
	svc := NewService(storage, nil, 3, arbor.NewLogger())
	ctx := context.Background()

	if err := svc.EnsureSource(ctx, "zentraljob", models.MethodScraping); err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}

	// Operator turns the source off by hand
	row, _ := storage.Get(ctx, "zentraljob")
	row.IsAllowed = false
	if err := storage.Save(ctx, row); err != nil {
		t.Fatalf("Failed to save override: %v", err)
	}

	// Re-registering at startup must not resurrect it
	if err := svc.EnsureSource(ctx, "zentraljob", models.MethodScraping); err != nil {
		t.Fatalf("Failed to re-ensure source: %v", err)
	}
	if svc.CanScrape(ctx, "zentraljob") {
		t.Error("Expected manual disable to survive re-registration")
	}
}

func TestDisabledEventPublished(t *testing.T) {
	storage := newMemStorage()
	events := &captureEvents{}
	svc := NewService(storage, events, 3, arbor.NewLogger())
	ctx := context.Background()

	if err := svc.EnsureSource(ctx, "myscience", models.MethodScraping); err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}

	for i := 0; i < 3; i++ {
		svc.ReportBlock(ctx, "myscience", 403)
	}

	if len(events.published) != 1 {
		t.Fatalf("Expected exactly one disabled event, got %d", len(events.published))
	}
	if events.published[0].Type != models.EventComplianceDisabled {
		t.Errorf("Expected compliance_disabled event, got %s", events.published[0].Type)
	}
	if events.published[0].Payload["source"] != "myscience" {
		t.Errorf("Unexpected event payload: %v", events.published[0].Payload)
	}
}

// captureEvents records published events without fan-out
type captureEvents struct {
	published []models.Event
}

func (c *captureEvents) Publish(ctx context.Context, event models.Event) {
	c.published = append(c.published, event)
}

func (c *captureEvents) Subscribe(eventType models.EventType, handler interfaces.EventHandler) func() {
	return func() {}
}

func (c *captureEvents) SubscribeAll(handler interfaces.EventHandler) func() {
	return func() {}
}
