package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{0.1, 0.5, 0.9, 0.3}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityOpposite(t *testing.T) {
	a := []float32{1, 1}
	b := []float32{-1, -1}
	assert.InDelta(t, -1.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	v := []float32{1, 2, 3}
	zero := []float32{0, 0, 0}

	assert.Zero(t, CosineSimilarity(nil, v))
	assert.Zero(t, CosineSimilarity(v, nil))
	assert.Zero(t, CosineSimilarity([]float32{}, []float32{}))
	assert.Zero(t, CosineSimilarity(v, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity(zero, v))
}

func TestHashSimilarityIdentical(t *testing.T) {
	h := "abcdef0123456789"
	assert.Equal(t, 1.0, HashSimilarity(h, h))
}

func TestHashSimilarityEmpty(t *testing.T) {
	assert.Zero(t, HashSimilarity("", "abc"))
	assert.Zero(t, HashSimilarity("abc", ""))
	assert.Zero(t, HashSimilarity("", ""))
}

func TestHashSimilarityCountsMismatches(t *testing.T) {
	// One differing position out of four.
	assert.Equal(t, 0.75, HashSimilarity("abcd", "abce"))
	// All positions differ.
	assert.Equal(t, 0.0, HashSimilarity("aaaa", "bbbb"))
}

func TestHashSimilarityPadsShorterWithZeros(t *testing.T) {
	// "ab" against "ab00" matches at every position: the shorter string is
	// treated as zero-padded to the longer length.
	assert.Equal(t, 1.0, HashSimilarity("ab", "ab00"))

	// "ab" against "abcd": positions 2 and 3 compare '0' with 'c' and 'd'.
	assert.Equal(t, 0.5, HashSimilarity("ab", "abcd"))
}

func TestHashSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"0000", "ffff"},
		{"a", "abcdefabcdef"},
		{"deadbeef", "deadbeef"},
		{"1", "2"},
	}
	for _, p := range pairs {
		s := HashSimilarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
