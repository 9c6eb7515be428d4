package dedup

import "math"

// SemanticSimilarityThreshold is the cosine similarity above which two
// postings are treated as the same job. Equivalent to a cosine distance
// below 0.05.
const SemanticSimilarityThreshold = 0.95

// CosineSimilarity returns the cosine similarity of two embedding
// vectors. Mismatched lengths and zero vectors yield 0 so callers never
// consolidate on degenerate input.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsSemanticMatch reports whether two embeddings are close enough to
// consolidate.
func IsSemanticMatch(a, b []float32) bool {
	return CosineSimilarity(a, b) > SemanticSimilarityThreshold
}
