package dedup

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

func newTestStorage(t *testing.T) interfaces.JobStorage {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	return badger.NewJobStorage(db, logger)
}

func insertJob(t *testing.T, storage interfaces.JobStorage, job *models.Job) {
	t.Helper()

	isNew, err := storage.UpsertJob(context.Background(), job)
	if err != nil {
		t.Fatalf("Failed to insert %s: %v", job.Hash, err)
	}
	if !isNew {
		t.Fatalf("Expected %s to be a new row", job.Hash)
	}
}

func TestComputeHash(t *testing.T) {
	hash := ComputeHash("Senior Python Developer", "Acme AG", "https://example.ch/jobs/1")

	if len(hash) != 32 {
		t.Errorf("Expected 32-char md5 hex, got %d chars", len(hash))
	}

	// Case and surrounding whitespace must not change the identity.
	same := ComputeHash("  senior python developer ", "ACME AG", "https://example.ch/jobs/1")
	if same != hash {
		t.Error("Hash should be case and whitespace insensitive for title and company")
	}

	// A different URL is a different posting.
	other := ComputeHash("Senior Python Developer", "Acme AG", "https://example.ch/jobs/2")
	if other == hash {
		t.Error("Hash should distinguish different URLs")
	}
}

func TestComputeFuzzyHashCollapsesVariants(t *testing.T) {
	// Two sightings of the same role from different boards.
	a := ComputeFuzzyHash("Senior Python Developer (m/f/d)", "Acme AG")
	b := ComputeFuzzyHash("Python Developer", "Acme")

	if a != b {
		t.Errorf("Expected matching fuzzy hashes, got %s vs %s", a, b)
	}
}

func TestComputeFuzzyHashStability(t *testing.T) {
	base := ComputeFuzzyHash("Data Engineer", "Helvetia")

	variants := []struct {
		title   string
		company string
	}{
		{"Data Engineer (m/w/d)", "Helvetia"},
		{"Senior Data Engineer", "Helvetia AG"},
		{"Junior Data Engineer", "Helvetia GmbH"},
		{"Data Engineer m/f/d", "Helvetia A.G."},
		{"  Data   Engineer  ", "Helvetia"},
	}
	for _, v := range variants {
		if got := ComputeFuzzyHash(v.title, v.company); got != base {
			t.Errorf("ComputeFuzzyHash(%q, %q) = %s, want %s", v.title, v.company, got, base)
		}
	}

	// A genuinely different role must not collapse.
	if ComputeFuzzyHash("Data Scientist", "Helvetia") == base {
		t.Error("Different titles should produce different fuzzy hashes")
	}
}

func TestFindFuzzyDuplicateCrossSource(t *testing.T) {
	storage := newTestStorage(t)
	service := NewService(storage, arbor.NewLogger())
	ctx := context.Background()
	base := time.Now().Add(-48 * time.Hour).UTC()

	canonical := &models.Job{
		Hash:        ComputeHash("Senior Python Developer (m/f/d)", "Acme AG", "https://jobicy.com/1"),
		Title:       "Senior Python Developer (m/f/d)",
		Company:     "Acme AG",
		URL:         "https://jobicy.com/1",
		Source:      "jobicy",
		FuzzyHash:   ComputeFuzzyHash("Senior Python Developer (m/f/d)", "Acme AG"),
		FirstSeenAt: base,
	}
	insertJob(t, storage, canonical)

	newcomer := &models.Job{
		Hash:        ComputeHash("Python Developer", "Acme", "https://jooble.org/2"),
		Title:       "Python Developer",
		Company:     "Acme",
		URL:         "https://jooble.org/2",
		Source:      "jooble",
		FuzzyHash:   ComputeFuzzyHash("Python Developer", "Acme"),
		FirstSeenAt: base.Add(time.Hour),
	}
	if newcomer.FuzzyHash != canonical.FuzzyHash {
		t.Fatalf("Test setup: fuzzy hashes should match, got %s vs %s", newcomer.FuzzyHash, canonical.FuzzyHash)
	}
	insertJob(t, storage, newcomer)

	// 1. The newcomer resolves to the older row from the other source.
	found, err := service.FindFuzzyDuplicate(ctx, newcomer)
	if err != nil {
		t.Fatalf("FindFuzzyDuplicate failed: %v", err)
	}
	if found == nil {
		t.Fatal("Expected a fuzzy duplicate")
	}
	if found.Hash != canonical.Hash {
		t.Errorf("Expected canonical %s, got %s", canonical.Hash, found.Hash)
	}

	// 2. Marking folds the newcomer and leaves the canonical row active.
	if err := service.MarkDuplicate(ctx, newcomer, found); err != nil {
		t.Fatalf("MarkDuplicate failed: %v", err)
	}

	marked, err := storage.GetJob(ctx, newcomer.Hash)
	if err != nil {
		t.Fatalf("Failed to reload newcomer: %v", err)
	}
	if marked.DuplicateOf != canonical.Hash {
		t.Errorf("Expected DuplicateOf=%s, got %q", canonical.Hash, marked.DuplicateOf)
	}
	if marked.IsActive {
		t.Error("Duplicate should be inactive")
	}

	kept, err := storage.GetJob(ctx, canonical.Hash)
	if err != nil {
		t.Fatalf("Failed to reload canonical: %v", err)
	}
	if !kept.IsActive || kept.DuplicateOf != "" {
		t.Error("Canonical row should stay active and unmarked")
	}
}

func TestFindFuzzyDuplicateSameSourceIgnored(t *testing.T) {
	storage := newTestStorage(t)
	service := NewService(storage, arbor.NewLogger())
	ctx := context.Background()
	base := time.Now().Add(-48 * time.Hour).UTC()

	fuzzyHash := ComputeFuzzyHash("Logistiker", "Migros")
	existing := &models.Job{
		Hash:        "mig001",
		Title:       "Logistiker",
		Company:     "Migros",
		URL:         "https://arbeitnow.com/1",
		Source:      "arbeitnow",
		FuzzyHash:   fuzzyHash,
		FirstSeenAt: base,
	}
	insertJob(t, storage, existing)

	// A repost on the same board is a legitimate new listing.
	repost := &models.Job{
		Hash:        "mig002",
		Title:       "Logistiker",
		Company:     "Migros",
		URL:         "https://arbeitnow.com/2",
		Source:      "arbeitnow",
		FuzzyHash:   fuzzyHash,
		FirstSeenAt: base.Add(time.Hour),
	}
	insertJob(t, storage, repost)

	found, err := service.FindFuzzyDuplicate(ctx, repost)
	if err != nil {
		t.Fatalf("FindFuzzyDuplicate failed: %v", err)
	}
	if found != nil {
		t.Errorf("Same-source match should not be consolidated, got %s", found.Hash)
	}
}

func TestFindFuzzyDuplicateOldestWins(t *testing.T) {
	storage := newTestStorage(t)
	service := NewService(storage, arbor.NewLogger())
	ctx := context.Background()
	base := time.Now().Add(-72 * time.Hour).UTC()

	fuzzyHash := ComputeFuzzyHash("Pflegefachperson", "Hirslanden")
	oldest := &models.Job{
		Hash: "pf_old", Title: "Pflegefachperson", Company: "Hirslanden",
		URL: "https://jobicy.com/10", Source: "jobicy",
		FuzzyHash: fuzzyHash, FirstSeenAt: base,
	}
	middle := &models.Job{
		Hash: "pf_mid", Title: "Pflegefachperson", Company: "Hirslanden",
		URL: "https://adzuna.com/11", Source: "adzuna",
		FuzzyHash: fuzzyHash, FirstSeenAt: base.Add(12 * time.Hour),
	}
	insertJob(t, storage, oldest)
	insertJob(t, storage, middle)

	newcomer := &models.Job{
		Hash: "pf_new", Title: "Pflegefachperson", Company: "Hirslanden AG",
		URL: "https://jooble.org/12", Source: "jooble",
		FuzzyHash: fuzzyHash, FirstSeenAt: base.Add(24 * time.Hour),
	}
	insertJob(t, storage, newcomer)

	found, err := service.FindFuzzyDuplicate(ctx, newcomer)
	if err != nil {
		t.Fatalf("FindFuzzyDuplicate failed: %v", err)
	}
	if found == nil || found.Hash != "pf_old" {
		t.Fatalf("Expected oldest row pf_old as canonical, got %+v", found)
	}

	// Once the oldest is itself folded elsewhere it drops out of the
	// candidate set and the next-oldest takes over.
	if err := storage.MarkDuplicate(ctx, "pf_old", "pf_mid"); err != nil {
		t.Fatalf("MarkDuplicate failed: %v", err)
	}
	found, err = service.FindFuzzyDuplicate(ctx, newcomer)
	if err != nil {
		t.Fatalf("FindFuzzyDuplicate failed: %v", err)
	}
	if found == nil || found.Hash != "pf_mid" {
		t.Fatalf("Expected pf_mid as canonical after pf_old was folded, got %+v", found)
	}
}

func TestFindFuzzyDuplicateSkipsReactivatedPointerRows(t *testing.T) {
	storage := newTestStorage(t)
	service := NewService(storage, arbor.NewLogger())
	ctx := context.Background()
	base := time.Now().Add(-72 * time.Hour).UTC()

	fuzzyHash := ComputeFuzzyHash("Elektroinstallateur", "Burkhalter")
	pointer := &models.Job{
		Hash: "el_ptr", Title: "Elektroinstallateur", Company: "Burkhalter",
		URL: "https://jobicy.com/20", Source: "jobicy",
		FuzzyHash: fuzzyHash, FirstSeenAt: base,
	}
	clean := &models.Job{
		Hash: "el_cln", Title: "Elektroinstallateur", Company: "Burkhalter AG",
		URL: "https://adzuna.com/21", Source: "adzuna",
		FuzzyHash: fuzzyHash, FirstSeenAt: base.Add(12 * time.Hour),
	}
	insertJob(t, storage, pointer)
	insertJob(t, storage, clean)

	// Fold the oldest row, then re-sight it: the re-upsert re-activates
	// but keeps DuplicateOf.
	if err := storage.MarkDuplicate(ctx, "el_ptr", "el_cln"); err != nil {
		t.Fatalf("MarkDuplicate failed: %v", err)
	}
	if _, err := storage.UpsertJob(ctx, pointer); err != nil {
		t.Fatalf("Re-upsert failed: %v", err)
	}
	reactivated, err := storage.GetJob(ctx, "el_ptr")
	if err != nil {
		t.Fatalf("Failed to reload el_ptr: %v", err)
	}
	if !reactivated.IsActive || reactivated.DuplicateOf != "el_cln" {
		t.Fatalf("Test setup: expected active pointer row, got active=%v duplicate_of=%q",
			reactivated.IsActive, reactivated.DuplicateOf)
	}

	// The pointer row is oldest and active but must not be elected
	// canonical; the clean row wins.
	newcomer := &models.Job{
		Hash: "el_new", Title: "Elektroinstallateur", Company: "Burkhalter",
		URL: "https://jooble.org/22", Source: "jooble",
		FuzzyHash: fuzzyHash, FirstSeenAt: base.Add(24 * time.Hour),
	}
	insertJob(t, storage, newcomer)

	found, err := service.FindFuzzyDuplicate(ctx, newcomer)
	if err != nil {
		t.Fatalf("FindFuzzyDuplicate failed: %v", err)
	}
	if found == nil || found.Hash != "el_cln" {
		t.Fatalf("Expected el_cln as canonical, got %+v", found)
	}
}

func TestFindFuzzyDuplicateSelfOnly(t *testing.T) {
	storage := newTestStorage(t)
	service := NewService(storage, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{
		Hash: "solo01", Title: "Gärtner", Company: "Stadt Bern",
		URL: "https://arbeitnow.com/solo", Source: "arbeitnow",
		FuzzyHash:   ComputeFuzzyHash("Gärtner", "Stadt Bern"),
		FirstSeenAt: time.Now().UTC(),
	}
	insertJob(t, storage, job)

	// The row the pipeline just inserted is the only match.
	found, err := service.FindFuzzyDuplicate(ctx, job)
	if err != nil {
		t.Fatalf("FindFuzzyDuplicate failed: %v", err)
	}
	if found != nil {
		t.Errorf("Job should not duplicate itself, got %s", found.Hash)
	}

	// No fuzzy hash, no lookup.
	found, err = service.FindFuzzyDuplicate(ctx, &models.Job{Hash: "nofh01", Source: "jooble"})
	if err != nil {
		t.Fatalf("FindFuzzyDuplicate failed: %v", err)
	}
	if found != nil {
		t.Error("Empty fuzzy hash should never match")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"mismatched length", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestIsSemanticMatch(t *testing.T) {
	// Similarity 0.99, well above the consolidation threshold.
	near := []float32{0.99, 0.141067, 0}
	if !IsSemanticMatch([]float32{1, 0, 0}, near) {
		t.Error("Vectors at similarity 0.99 should match")
	}

	// Similarity 0.90, below it.
	far := []float32{0.9, 0.43589, 0}
	if IsSemanticMatch([]float32{1, 0, 0}, far) {
		t.Error("Vectors at similarity 0.90 should not match")
	}
}
