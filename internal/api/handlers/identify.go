package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/herbid/internal/identify"
	"github.com/your-org/herbid/internal/storage"
	"github.com/your-org/herbid/pkg/dto"
)

type IdentifyHandler struct {
	svc   *identify.Service
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	// ExtractFn derives the pseudo-feature vector used for vector search.
	ExtractFn func(ctx context.Context, image []byte) []float32
}

func NewIdentifyHandler(svc *identify.Service, db *storage.PostgresStore, minio *storage.MinIOStore) *IdentifyHandler {
	return &IdentifyHandler{svc: svc, db: db, minio: minio}
}

// Identify accepts a multipart image upload or a JSON base64 payload and
// runs the identification pipeline.
func (h *IdentifyHandler) Identify(c *gin.Context) {
	image, userID, ok := h.readImage(c)
	if !ok {
		return
	}

	res, err := h.svc.Identify(c.Request.Context(), image, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewIdentifyResponse(res))
}

// IdentifyBatch processes multiple images; one image's failure is reported
// in place without aborting the rest.
func (h *IdentifyHandler) IdentifyBatch(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	images := make([][]byte, 0, len(req.Images))
	for _, encoded := range req.Images {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			// Leave the slot in place so indices line up; the pipeline
			// rejects the empty payload with a validation error.
			decoded = nil
		}
		images = append(images, decoded)
	}

	items := h.svc.IdentifyBatch(c.Request.Context(), images, req.UserID)

	results := make([]dto.BatchItemResponse, 0, len(items))
	for _, item := range items {
		r := dto.BatchItemResponse{Index: item.Index}
		if item.Err != nil {
			r.Error = item.Err.Error()
		} else {
			r.Success = true
			resp := dto.NewIdentifyResponse(item.Result)
			r.Result = &resp
		}
		results = append(results, r)
	}

	c.JSON(http.StatusOK, dto.BatchResponse{Results: results, Total: len(results)})
}

// Feedback records a user correction for an identification.
func (h *IdentifyHandler) Feedback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identification id"})
		return
	}

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.RecordFeedback(c.Request.Context(), id, req.IsCorrect, req.CorrectPlantName, req.UserID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// Verify marks an identification as reviewed.
func (h *IdentifyHandler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identification id"})
		return
	}

	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.Verify(c.Request.Context(), id, req.VerifierID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// History returns a user's identifications, newest first.
func (h *IdentifyHandler) History(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	limit := intQuery(c, "limit", 20)
	recs, err := h.db.UserHistory(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": recs, "count": len(recs)})
}

// Image serves the original uploaded image for an identification.
func (h *IdentifyHandler) Image(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identification id"})
		return
	}

	rec, err := h.db.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil || rec.ImageKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), rec.ImageKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image unavailable"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

// Similar searches stored pseudo-feature vectors for identifications close
// to the submitted image.
func (h *IdentifyHandler) Similar(c *gin.Context) {
	var req dto.SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 image"})
		return
	}

	if h.ExtractFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feature extraction not available"})
		return
	}

	features := h.ExtractFn(c.Request.Context(), image)
	if features == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not derive features from image"})
		return
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = 0.9
	}

	matches, err := h.db.FindSimilarByFeatures(c.Request.Context(), features, threshold, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": matches, "total": len(matches)})
}

// readImage pulls the image from a multipart form or JSON body, along with
// an optional user reference.
func (h *IdentifyHandler) readImage(c *gin.Context) ([]byte, *uuid.UUID, bool) {
	var userID *uuid.UUID
	if idStr := c.Query("user_id"); idStr != "" {
		if id, err := uuid.Parse(idStr); err == nil {
			userID = &id
		}
	}

	if file, _, err := c.Request.FormFile("image"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
			return nil, nil, false
		}
		return data, userID, true
	}

	var req dto.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file or image_base64 required"})
		return nil, nil, false
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 image"})
		return nil, nil, false
	}
	if req.UserID != nil {
		userID = req.UserID
	}
	return data, userID, true
}

// writeError maps pipeline error kinds to HTTP statuses.
func writeError(c *gin.Context, err error) {
	status, body := statusForError(err)
	c.JSON(status, body)
}

func statusForError(err error) (int, gin.H) {
	var (
		validationErr  *identify.ValidationError
		notFoundErr    *identify.NotFoundError
		noPlantErr     *identify.NoPlantDetectedError
		lowConfErr     *identify.LowConfidenceError
		notAPlantErr   *identify.NotAPlantError
		externalErr    *identify.ExternalServiceError
		persistenceErr *identify.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, gin.H{"success": false, "error": err.Error()}
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, gin.H{"success": false, "error": err.Error()}
	case errors.As(err, &noPlantErr), errors.As(err, &lowConfErr), errors.As(err, &notAPlantErr):
		return http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()}
	case errors.As(err, &externalErr):
		status := http.StatusBadGateway
		switch externalErr.Kind {
		case identify.KindRateLimit:
			status = http.StatusTooManyRequests
		case identify.KindTimeout:
			status = http.StatusGatewayTimeout
		}
		return status, gin.H{
			"success":     false,
			"error":       err.Error(),
			"remediation": externalErr.Remediation(),
		}
	case errors.As(err, &persistenceErr):
		return http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()}
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
