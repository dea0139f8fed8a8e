package dto

// CompareRequest identifies a plant by name and/or free-text description for
// the feature-comparison engine.
type CompareRequest struct {
	PlantName   string `json:"plant_name"`
	Description string `json:"description"`
}

type SimilarRequest struct {
	ImageBase64 string  `json:"image_base64" binding:"required"`
	Threshold   float64 `json:"threshold"`
	Limit       int     `json:"limit"`
}
