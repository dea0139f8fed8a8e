package identify

import (
	"context"
	"encoding/json"
	"strings"
)

// Classifier is the narrow contract to an external vision classification API.
type Classifier interface {
	Identify(ctx context.Context, image []byte) (*Classification, error)
	Provider() string
}

// Classification is a validated-shape response from a Classifier.
type Classification struct {
	Suggestions []Suggestion
	Raw         json.RawMessage // opaque payload preserved for audit
}

// Suggestion is one candidate classification.
type Suggestion struct {
	Name           string
	ScientificName string
	CommonNames    []string
	Probability    float64
	Description    string
	WikiURL        string
	Taxonomy       map[string]any
	IsPlant        *bool // explicit provider flag, when present
}

// denylist of generic or non-plant labels rejected outright.
var denylist = []string{
	"unknown", "unidentified", "animal", "person", "object", "food", "product",
}

func denylisted(name string) bool {
	lower := strings.ToLower(name)
	for _, bad := range denylist {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

// isPlantSuggestion applies the plant-only gate: an explicit provider flag
// wins; otherwise the taxonomy kingdom decides; absent both, the suggestion
// passes.
func isPlantSuggestion(s Suggestion) bool {
	if s.IsPlant != nil {
		return *s.IsPlant
	}
	if kingdom, ok := s.Taxonomy["kingdom"].(string); ok {
		return strings.EqualFold(kingdom, "plantae")
	}
	return true
}
