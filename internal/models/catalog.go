package models

import (
	"time"

	"github.com/google/uuid"
)

// CatalogPlant is a curated medicinal-plant reference entry used by the
// feature-comparison engine. Features holds the coarse botanical descriptors
// (leaf_color, leaf_shape, ...) as a loose key/value map.
type CatalogPlant struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	CommonName      string            `json:"common_name" db:"common_name"`
	ScientificName  string            `json:"scientific_name" db:"scientific_name"`
	BotanicalFamily string            `json:"botanical_family,omitempty" db:"botanical_family"`
	Description     string            `json:"description,omitempty" db:"description"`
	MedicinalUses   []string          `json:"medicinal_uses" db:"medicinal_uses"`
	SafetyRating    string            `json:"safety_rating,omitempty" db:"safety_rating"`
	Features        map[string]string `json:"features" db:"features"`
	Verified        bool              `json:"verified" db:"verified"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}
