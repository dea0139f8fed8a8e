package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Identification is a cached plant-identification result, keyed by the
// content hash of the image that produced it.
type Identification struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	UserID            *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	ImageHash         string          `json:"image_hash" db:"image_hash"`
	ImageKey          string          `json:"image_key,omitempty" db:"image_key"` // MinIO key of the original upload
	PlantName         string          `json:"plant_name" db:"plant_name"`
	ScientificName    string          `json:"scientific_name,omitempty" db:"scientific_name"`
	CommonNames       []string        `json:"common_names" db:"common_names"`
	Family            string          `json:"family,omitempty" db:"family"`
	Probability       float64         `json:"probability" db:"probability"`
	Description       string          `json:"description,omitempty" db:"description"`
	WikiURL           string          `json:"wiki_url,omitempty" db:"wiki_url"`
	Taxonomy          map[string]any  `json:"taxonomy" db:"taxonomy"`
	MedicinalUses     []string        `json:"medicinal_uses" db:"medicinal_uses"`
	ActiveCompounds   []string        `json:"active_compounds" db:"active_compounds"`
	Contraindications []string        `json:"contraindications" db:"contraindications"`
	SafetyInfo        string          `json:"safety_info,omitempty" db:"safety_info"`
	GrowingConditions string          `json:"growing_conditions,omitempty" db:"growing_conditions"`
	Origin            string          `json:"origin,omitempty" db:"origin"`
	Habitat           string          `json:"habitat,omitempty" db:"habitat"`
	Features          []float32       `json:"-" db:"features"` // deterministic pseudo-feature vector
	RawResponse       json.RawMessage `json:"-" db:"raw_response"`
	Provider          string          `json:"provider" db:"provider"`
	CacheHitCount     int             `json:"cache_hit_count" db:"cache_hit_count"`
	LastAccessedAt    *time.Time      `json:"last_accessed_at,omitempty" db:"last_accessed_at"`
	IsVerified        bool            `json:"is_verified" db:"is_verified"`
	VerifiedBy        *uuid.UUID      `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// Feedback is an append-only user correction for an identification.
type Feedback struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	IdentificationID uuid.UUID  `json:"identification_id" db:"identification_id"`
	UserID           *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	IsCorrect        bool       `json:"is_correct" db:"is_correct"`
	CorrectPlantName string     `json:"correct_plant_name,omitempty" db:"correct_plant_name"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// IdentificationEvent is the message published to NATS after a successful
// identification, consumed by the API for WebSocket delivery.
type IdentificationEvent struct {
	IdentificationID uuid.UUID `json:"identification_id"`
	ImageHash        string    `json:"image_hash"`
	PlantName        string    `json:"plant_name"`
	ScientificName   string    `json:"scientific_name,omitempty"`
	Source           string    `json:"source"`     // cache | api
	MatchType        string    `json:"match_type"` // exact | similar | new
	Confidence       float64   `json:"confidence"`
	Timestamp        time.Time `json:"timestamp"`
}

// PopularPlant is an aggregate row for the most-identified plants listing.
type PopularPlant struct {
	PlantName            string `json:"plant_name" db:"plant_name"`
	ScientificName       string `json:"scientific_name,omitempty" db:"scientific_name"`
	TotalIdentifications int    `json:"total_identifications" db:"total_identifications"`
	CacheHitCount        int    `json:"cache_hit_count" db:"cache_hit_count"`
}

// IdentificationStats summarises cache effectiveness.
type IdentificationStats struct {
	TotalRecords  int `json:"total_records"`
	VerifiedCount int `json:"verified_count"`
	TotalHits     int `json:"total_hits"`
}
