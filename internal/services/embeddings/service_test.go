package embeddings

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

func TestServiceWithoutAPIKey(t *testing.T) {
	service, err := NewService(context.Background(), &common.EmbeddingConfig{
		Model:     "text-embedding-004",
		Dimension: 384,
		Timeout:   time.Second,
	}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Construction without a key should succeed: %v", err)
	}

	if service.IsAvailable() {
		t.Error("Service without an API key should report unavailable")
	}
	if service.Dimension() != 384 {
		t.Errorf("Expected dimension 384, got %d", service.Dimension())
	}

	if _, err := service.GenerateEmbedding(context.Background(), "some text"); err == nil {
		t.Error("Expected an error when generating without a backend")
	}
}

func TestJobText(t *testing.T) {
	job := &models.Job{
		Title:       "Senior Python Developer",
		Company:     "Acme AG",
		Location:    "Zürich",
		Description: "Build data pipelines for Swiss retail analytics.",
	}

	text := JobText(job)
	for _, want := range []string{"Senior Python Developer", "Acme AG", "Zürich", "data pipelines"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected embedding text to contain %q, got: %s", want, text)
		}
	}

	// Snippet stands in when the full description is missing.
	short := &models.Job{Title: "Koch", Company: "Gastro Bern", DescriptionSnippet: "Saisonstelle im Berner Oberland"}
	if !strings.Contains(JobText(short), "Saisonstelle") {
		t.Error("Expected snippet fallback in embedding text")
	}

	// Oversized descriptions are capped.
	long := &models.Job{Title: "T", Company: "C", Description: strings.Repeat("x", maxEmbedChars*2)}
	if len(JobText(long)) > maxEmbedChars+100 {
		t.Errorf("Expected capped embedding text, got %d chars", len(JobText(long)))
	}
}

func TestNormalize(t *testing.T) {
	vector := normalize([]float32{3, 4})

	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
		t.Errorf("Expected unit length after normalization, got %f", math.Sqrt(sum))
	}
	if math.Abs(float64(vector[0])-0.6) > 1e-6 || math.Abs(float64(vector[1])-0.8) > 1e-6 {
		t.Errorf("Expected [0.6 0.8], got %v", vector)
	}

	// Zero vectors pass through untouched.
	zero := normalize([]float32{0, 0, 0})
	for _, v := range zero {
		if v != 0 {
			t.Errorf("Expected zero vector to stay zero, got %v", zero)
		}
	}
}
