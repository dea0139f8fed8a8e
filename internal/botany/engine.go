// Package botany extracts coarse botanical descriptors from free text and
// scores them against a curated reference catalog with weighted matching.
package botany

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/herbid/internal/models"
)

// Features holds the extracted descriptors as a feature-name → category map.
type Features map[string]string

// ExtractFeatures derives descriptors from a plant's name and free-text
// description by keyword matching. First matching keyword wins; no match
// falls back to the feature's default category.
func ExtractFeatures(name, description string) Features {
	desc := strings.ToLower(description)
	lowerName := strings.ToLower(name)

	return Features{
		LeafColor:     extractLeafColor(desc, lowerName),
		LeafShape:     matchRules(desc, leafShapeRules, defaults[LeafShape]),
		FlowerColor:   extractFlowerColor(desc, lowerName),
		FlowerShape:   matchRules(desc, flowerShapeRules, defaults[FlowerShape]),
		GrowthPattern: matchRules(desc, growthPatternRules, defaults[GrowthPattern]),
		Texture:       matchRules(desc, textureRules, defaults[Texture]),
		SizeCategory:  matchRules(desc, sizeCategoryRules, defaults[SizeCategory]),
	}
}

// extractLeafColor also consults the name for the "dark" cue, mirroring how
// cultivar names carry color information.
func extractLeafColor(desc, name string) string {
	if strings.Contains(desc, "dark green") || strings.Contains(name, "dark") {
		return "dark_green"
	}
	return matchRules(desc, leafColorRules[1:], defaults[LeafColor])
}

// extractFlowerColor checks both the description and the name for each color
// keyword before moving to the next one.
func extractFlowerColor(desc, name string) string {
	for _, r := range flowerColorRules {
		for _, kw := range r.keywords {
			if strings.Contains(desc, kw) || strings.Contains(name, kw) {
				return r.category
			}
		}
	}
	return defaults[FlowerColor]
}

func matchRules(desc string, rules []rule, fallback string) string {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(desc, kw) {
				return r.category
			}
		}
	}
	return fallback
}

// Score is the weighted-similarity outcome for one candidate.
type Score struct {
	Percentage      float64 `json:"percentage"`
	MatchedFeatures int     `json:"matched_features"`
	TotalFeatures   int     `json:"total_features"`
	Confidence      string  `json:"confidence"`
}

// Similarity computes the weighted feature similarity between two feature
// sets. A feature counts only when both sides carry a non-default value;
// exact matches earn full weight, similar-pair matches half weight.
func Similarity(input, candidate Features) Score {
	var weightedScore, totalWeight float64
	matched, total := 0, 0

	for _, feature := range featureOrder {
		inputValue, ok := input[feature]
		if !ok || inputValue == "" || inputValue == defaults[feature] {
			continue
		}
		candidateValue, ok := candidate[feature]
		if !ok || candidateValue == "" || candidateValue == defaults[feature] {
			continue
		}

		total++
		weight := weights[feature]
		totalWeight += weight

		switch {
		case inputValue == candidateValue:
			matched++
			weightedScore += weight
		case isSimilarCategory(feature, inputValue, candidateValue):
			weightedScore += weight * 0.5
		}
	}

	percentage := 0.0
	if totalWeight > 0 {
		percentage = weightedScore / totalWeight * 100
	}
	percentage = math.Round(percentage*10) / 10

	return Score{
		Percentage:      percentage,
		MatchedFeatures: matched,
		TotalFeatures:   total,
		Confidence:      ConfidenceLabel(percentage),
	}
}

func isSimilarCategory(feature, a, b string) bool {
	for _, group := range similarGroups[feature] {
		inA, inB := false, false
		for _, v := range group {
			if v == a {
				inA = true
			}
			if v == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// ConfidenceLabel maps a similarity percentage to a coarse confidence band.
func ConfidenceLabel(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Very High"
	case percentage >= 75:
		return "High"
	case percentage >= 60:
		return "Moderate"
	case percentage >= 40:
		return "Low"
	default:
		return "Very Low"
	}
}

// Comparison is one candidate's scored result.
type Comparison struct {
	PlantID         uuid.UUID `json:"plant_id"`
	CommonName      string    `json:"common_name"`
	ScientificName  string    `json:"scientific_name"`
	BotanicalFamily string    `json:"botanical_family,omitempty"`
	Score           Score     `json:"score"`
	MedicinalUses   []string  `json:"medicinal_uses,omitempty"`
	SafetyRating    string    `json:"safety_rating,omitempty"`
	Features        Features  `json:"features"`
}

// Report is the full outcome of comparing one input against the catalog.
type Report struct {
	InputFeatures Features     `json:"input_features"`
	Comparisons   []Comparison `json:"comparisons"`
	BestMatch     *Comparison  `json:"best_match"`
	TopMatches    []Comparison `json:"top_matches"`
	Message       string       `json:"message,omitempty"`
}

// CatalogSource provides the verified reference plants to compare against.
type CatalogSource interface {
	VerifiedCatalogPlants(ctx context.Context) ([]models.CatalogPlant, error)
}

// Engine scores free-text plant descriptions against the reference catalog.
type Engine struct {
	catalog CatalogSource
}

func NewEngine(catalog CatalogSource) *Engine {
	return &Engine{catalog: catalog}
}

// Compare extracts features from the input and ranks every verified catalog
// plant by weighted similarity.
func (e *Engine) Compare(ctx context.Context, name, description string) (*Report, error) {
	inputFeatures := ExtractFeatures(name, description)

	plants, err := e.catalog.VerifiedCatalogPlants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference catalog: %w", err)
	}

	if len(plants) == 0 {
		return &Report{
			InputFeatures: inputFeatures,
			Comparisons:   []Comparison{},
			TopMatches:    []Comparison{},
			Message:       "no reference plants available for comparison",
		}, nil
	}

	comparisons := make([]Comparison, 0, len(plants))
	for _, p := range plants {
		candidate := Features{}
		for k, v := range p.Features {
			candidate[k] = v
		}
		comparisons = append(comparisons, Comparison{
			PlantID:         p.ID,
			CommonName:      p.CommonName,
			ScientificName:  p.ScientificName,
			BotanicalFamily: p.BotanicalFamily,
			Score:           Similarity(inputFeatures, candidate),
			MedicinalUses:   p.MedicinalUses,
			SafetyRating:    p.SafetyRating,
			Features:        candidate,
		})
	}

	sort.SliceStable(comparisons, func(i, j int) bool {
		return comparisons[i].Score.Percentage > comparisons[j].Score.Percentage
	})

	top := comparisons
	if len(top) > 5 {
		top = top[:5]
	}

	return &Report{
		InputFeatures: inputFeatures,
		Comparisons:   comparisons,
		BestMatch:     &comparisons[0],
		TopMatches:    top,
	}, nil
}
