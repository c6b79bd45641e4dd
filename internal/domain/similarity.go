package domain

import "math"

// CosineSimilarity computes the cosine similarity between two vectors:
// dot(a,b) / (|a|*|b|). It returns 0 when the vectors differ in length or
// when either norm is zero, so a degenerate embedding can never rank as
// "most similar".
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
