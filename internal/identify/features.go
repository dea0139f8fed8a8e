package identify

import (
	"context"
	"crypto/sha256"
	"log/slog"
)

// FeatureDim is the length of the pseudo-feature vector derived locally.
const FeatureDim = 64

// FeatureStrategy derives a numeric vector from image bytes. Strategies are
// tried in order; a failing strategy falls through to the next one.
type FeatureStrategy interface {
	Name() string
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// Extractor runs an ordered list of feature strategies.
type Extractor struct {
	strategies []FeatureStrategy
}

func NewExtractor(strategies ...FeatureStrategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Extract returns the first strategy result that succeeds, or nil if every
// strategy failed. With LocalFeatures last in the list it never returns nil.
func (e *Extractor) Extract(ctx context.Context, image []byte) []float32 {
	for _, s := range e.strategies {
		vec, err := s.Extract(ctx, image)
		if err != nil {
			slog.Warn("feature strategy failed, falling through",
				"strategy", s.Name(), "error", err)
			continue
		}
		if len(vec) > 0 {
			return vec
		}
	}
	return nil
}

// LocalFeatures derives a deterministic pseudo-feature vector from the
// SHA-256 digest of the bytes, each digest byte normalized to [0,1].
// A similarity surrogate, not a visual embedding, but it is reproducible,
// fast, and needs no external dependency.
type LocalFeatures struct{}

func (LocalFeatures) Name() string { return "local" }

func (LocalFeatures) Extract(_ context.Context, image []byte) ([]float32, error) {
	// One digest gives 32 bytes; a second round over the first fills the
	// remaining 32 positions deterministically.
	first := sha256.Sum256(image)
	second := sha256.Sum256(first[:])

	features := make([]float32, 0, FeatureDim)
	for _, b := range append(first[:], second[:]...) {
		features = append(features, float32(b)/255)
	}
	return features, nil
}
