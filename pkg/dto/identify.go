package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/herbid/internal/identify"
	"github.com/your-org/herbid/internal/models"
)

// IdentifyRequest is the JSON alternative to a multipart image upload.
type IdentifyRequest struct {
	ImageBase64 string     `json:"image_base64" binding:"required"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
}

type IdentifyResponse struct {
	Success      bool                   `json:"success"`
	Source       string                 `json:"source"`
	MatchType    string                 `json:"match_type"`
	Confidence   float64                `json:"confidence"`
	Data         *models.Identification `json:"data"`
	Alternatives []identify.Alternative `json:"alternatives,omitempty"`
	FromCache    bool                   `json:"from_cache"`
}

func NewIdentifyResponse(res *identify.Result) IdentifyResponse {
	return IdentifyResponse{
		Success:      res.Success,
		Source:       res.Source,
		MatchType:    res.MatchType,
		Confidence:   res.Confidence,
		Data:         res.Record,
		Alternatives: res.Alternatives,
		FromCache:    res.FromCache,
	}
}

// BatchItemResponse is one image's outcome inside a batch response.
type BatchItemResponse struct {
	Index   int               `json:"index"`
	Success bool              `json:"success"`
	Result  *IdentifyResponse `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type BatchResponse struct {
	Results []BatchItemResponse `json:"results"`
	Total   int                 `json:"total"`
}

// BatchRequest carries multiple base64 images for batch identification.
type BatchRequest struct {
	Images []string   `json:"images" binding:"required"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

type FeedbackRequest struct {
	IsCorrect        bool       `json:"is_correct"`
	CorrectPlantName string     `json:"correct_plant_name,omitempty"`
	UserID           *uuid.UUID `json:"user_id,omitempty"`
}

type VerifyRequest struct {
	VerifierID uuid.UUID `json:"verifier_id" binding:"required"`
}

// WSEvent is a WebSocket message for real-time identification delivery.
type WSEvent struct {
	Type   string                     `json:"type"` // plant_identified
	Source string                     `json:"source"`
	Data   models.IdentificationEvent `json:"data"`
}
