package identify

import "math"

// CosineSimilarity returns the cosine of two equal-length vectors.
// Nil, empty or mismatched inputs yield 0 rather than an error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// HashSimilarity compares two hash strings position by position, treating a
// missing character as '0', and returns 1 - mismatches/length. This is a
// cheap proxy for perceptual closeness, not a real perceptual distance.
func HashSimilarity(h1, h2 string) float64 {
	if h1 == "" || h2 == "" {
		return 0
	}

	maxLen := len(h1)
	if len(h2) > maxLen {
		maxLen = len(h2)
	}

	differences := 0
	for i := 0; i < maxLen; i++ {
		c1, c2 := byte('0'), byte('0')
		if i < len(h1) {
			c1 = h1[i]
		}
		if i < len(h2) {
			c2 = h2[i]
		}
		if c1 != c2 {
			differences++
		}
	}

	return 1 - float64(differences)/float64(maxLen)
}
