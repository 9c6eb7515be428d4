package interfaces

import (
	"context"
)

// EmbeddingService - interface for generating job embeddings
type EmbeddingService interface {
	// GenerateEmbedding returns a normalized vector for the text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddings embeds a batch of texts in one request where the
	// backend supports it
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the configured vector length
	Dimension() int

	// IsAvailable reports whether the backend is configured and reachable
	IsAvailable() bool
}
