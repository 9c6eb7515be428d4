package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// maxEmbedChars caps the description portion of the embedding input.
// Gemini truncates long inputs anyway; capping here keeps requests small.
const maxEmbedChars = 2000

// Service generates job embeddings through the Gemini API. Without an
// API key the service stays constructed but unavailable, and the
// semantic dedup pass is skipped.
type Service struct {
	client    *genai.Client
	model     string
	dimension int
	timeout   time.Duration
	logger    arbor.ILogger
}

func NewService(ctx context.Context, config *common.EmbeddingConfig, logger arbor.ILogger) (interfaces.EmbeddingService, error) {
	service := &Service{
		model:     config.Model,
		dimension: config.Dimension,
		timeout:   config.Timeout,
		logger:    logger,
	}
	if service.dimension <= 0 {
		service.dimension = models.EmbeddingDimension
	}

	if config.APIKey == "" {
		logger.Info().Msg("No Gemini API key configured, semantic deduplication disabled")
		return service, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	service.client = client

	logger.Info().
		Str("model", service.model).
		Int("dimension", service.dimension).
		Msg("Embedding service initialized")
	return service, nil
}

// GenerateEmbedding creates a normalized vector for the text.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings embeds a batch of texts in a single API call.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.client == nil {
		return nil, fmt.Errorf("embedding service not available")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("text cannot be empty")
		}
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	outputDim := int32(s.dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.client.Models.EmbedContent(ctx, s.model, contents, embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, item := range result.Embeddings {
		if len(item.Values) != s.dimension {
			return nil, fmt.Errorf("expected %d-dimensional embedding, got %d", s.dimension, len(item.Values))
		}
		// Truncated Gemini embeddings are not unit length, so cosine
		// comparisons need an explicit normalization.
		vectors[i] = normalize(item.Values)
	}

	s.logger.Debug().
		Str("model", s.model).
		Int("batch", len(texts)).
		Dur("duration", time.Since(start)).
		Msg("Generated embeddings")
	return vectors, nil
}

// Dimension returns the configured vector length.
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable reports whether the Gemini backend is configured.
func (s *Service) IsAvailable() bool {
	return s.client != nil
}

// JobText builds the embedding input for a job posting.
func JobText(job *models.Job) string {
	description := job.Description
	if description == "" {
		description = job.DescriptionSnippet
	}
	if len(description) > maxEmbedChars {
		description = description[:maxEmbedChars]
	}
	return fmt.Sprintf("%s\n%s %s\n\n%s", job.Title, job.Company, job.Location, description)
}

func normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}

	norm := math.Sqrt(sum)
	normalized := make([]float32, len(vector))
	for i, v := range vector {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}
