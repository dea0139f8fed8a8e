package identify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/herbid/internal/config"
	"github.com/your-org/herbid/internal/models"
	"github.com/your-org/herbid/internal/observability"
)

// Store is the persistence contract for the identification cache.
// Lookup methods return (nil, nil) when no record matches.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Identification, error)
	FindByHash(ctx context.Context, hash string) (*models.Identification, error)
	FindRecentCandidates(ctx context.Context, limit int) ([]models.Identification, error)
	Insert(ctx context.Context, rec *models.Identification) error
	Touch(ctx context.Context, id uuid.UUID) error
	MarkVerified(ctx context.Context, id, verifier uuid.UUID) (*models.Identification, error)
	PurgeUnverifiedOlderThan(ctx context.Context, age time.Duration) ([]string, error)
	InsertFeedback(ctx context.Context, fb *models.Feedback) error
}

// ImageStore persists the original image payload. Optional; failures are
// logged and never fail an identification.
type ImageStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObjects(ctx context.Context, keys []string) error
}

// EventPublisher emits identification events for real-time consumers.
// Optional; publish failures are logged and swallowed.
type EventPublisher interface {
	PublishIdentification(ctx context.Context, ev models.IdentificationEvent) error
}

// Alternative is a runner-up from a similarity match.
type Alternative struct {
	PlantName      string  `json:"plant_name"`
	ScientificName string  `json:"scientific_name,omitempty"`
	Similarity     float64 `json:"similarity"`
}

// Result is the outcome of one identification request.
type Result struct {
	Success      bool                   `json:"success"`
	Source       string                 `json:"source"`     // cache | api
	MatchType    string                 `json:"match_type"` // exact | similar | new
	Confidence   float64                `json:"confidence"`
	Record       *models.Identification `json:"data"`
	Alternatives []Alternative          `json:"alternatives,omitempty"`
	FromCache    bool                   `json:"from_cache"`
}

// BatchItem holds one image's outcome inside a batch. Err is set when that
// item failed; the rest of the batch is unaffected.
type BatchItem struct {
	Index  int
	Result *Result
	Err    error
}

const (
	SourceCache = "cache"
	SourceAPI   = "api"

	MatchExact   = "exact"
	MatchSimilar = "similar"
	MatchNew     = "new"
)

// Service runs the multi-stage identification pipeline:
// validate → exact hash lookup → similarity scan → external classify → persist.
type Service struct {
	cfg        config.IdentifyConfig
	store      Store
	images     ImageStore
	classifier Classifier
	extractor  *Extractor
	publisher  EventPublisher
}

func NewService(
	cfg config.IdentifyConfig,
	store Store,
	images ImageStore,
	classifier Classifier,
	extractor *Extractor,
	publisher EventPublisher,
) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		images:     images,
		classifier: classifier,
		extractor:  extractor,
		publisher:  publisher,
	}
}

// Identify runs the full pipeline for one image.
func (s *Service) Identify(ctx context.Context, image []byte, userID *uuid.UUID) (*Result, error) {
	if err := s.validate(image); err != nil {
		return nil, err
	}

	hash := HashImage(image)

	// Exact match.
	start := time.Now()
	rec, err := s.store.FindByHash(ctx, hash)
	observability.PipelineStageDuration.WithLabelValues("exact_lookup").Observe(time.Since(start).Seconds())
	if err != nil {
		// A broken cache must not break identification; treat as a miss.
		slog.Warn("cache lookup failed, treating as miss", "hash", hash, "error", err)
	}
	if rec != nil {
		s.touch(ctx, rec)
		observability.CacheHits.WithLabelValues(MatchExact).Inc()
		res := &Result{
			Success:    true,
			Source:     SourceCache,
			MatchType:  MatchExact,
			Confidence: 1.0,
			Record:     rec,
			FromCache:  true,
		}
		s.publish(ctx, res)
		return res, nil
	}

	// Similarity scan over the most reused cache entries.
	if res := s.similarityScan(ctx, image, hash); res != nil {
		s.publish(ctx, res)
		return res, nil
	}

	// Full miss: delegate to the external classifier.
	start = time.Now()
	classification, err := s.classifier.Identify(ctx, image)
	observability.PipelineStageDuration.WithLabelValues("external").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ExternalCalls.WithLabelValues(s.classifier.Provider(), "error").Inc()
		return nil, err
	}
	observability.ExternalCalls.WithLabelValues(s.classifier.Provider(), "ok").Inc()

	top, err := s.acceptSuggestion(classification)
	if err != nil {
		return nil, err
	}

	saved := s.persist(ctx, image, hash, userID, classification, top)

	res := &Result{
		Success:    true,
		Source:     SourceAPI,
		MatchType:  MatchNew,
		Confidence: top.Probability,
		Record:     saved,
	}
	s.publish(ctx, res)
	return res, nil
}

// IdentifyBatch processes each image independently and sequentially; one
// item's failure never aborts the rest.
func (s *Service) IdentifyBatch(ctx context.Context, images [][]byte, userID *uuid.UUID) []BatchItem {
	items := make([]BatchItem, 0, len(images))
	for i, img := range images {
		res, err := s.Identify(ctx, img, userID)
		items = append(items, BatchItem{Index: i, Result: res, Err: err})
	}
	return items
}

// RecordFeedback appends a user correction for an identification.
func (s *Service) RecordFeedback(ctx context.Context, identificationID uuid.UUID, isCorrect bool, correctName string, userID *uuid.UUID) error {
	rec, err := s.store.FindByID(ctx, identificationID)
	if err != nil {
		return &PersistenceError{Op: "find identification", Err: err}
	}
	if rec == nil {
		return &NotFoundError{Resource: "identification"}
	}

	fb := &models.Feedback{
		IdentificationID: identificationID,
		UserID:           userID,
		IsCorrect:        isCorrect,
		CorrectPlantName: correctName,
	}
	if err := s.store.InsertFeedback(ctx, fb); err != nil {
		return &PersistenceError{Op: "insert feedback", Err: err}
	}
	return nil
}

// Verify marks a record as reviewed by a herbalist.
func (s *Service) Verify(ctx context.Context, id, verifier uuid.UUID) (*models.Identification, error) {
	rec, err := s.store.MarkVerified(ctx, id, verifier)
	if err != nil {
		return nil, &PersistenceError{Op: "mark verified", Err: err}
	}
	if rec == nil {
		return nil, &NotFoundError{Resource: "identification"}
	}
	return rec, nil
}

// Cleanup removes unverified records older than the given age, along with
// their stored images. Not on the hot path.
func (s *Service) Cleanup(ctx context.Context, age time.Duration) (int, error) {
	keys, err := s.store.PurgeUnverifiedOlderThan(ctx, age)
	if err != nil {
		return 0, &PersistenceError{Op: "purge unverified", Err: err}
	}
	if s.images != nil && len(keys) > 0 {
		if err := s.images.DeleteObjects(ctx, keys); err != nil {
			slog.Warn("delete purged images", "count", len(keys), "error", err)
		}
	}
	observability.RecordsPurged.Add(float64(len(keys)))
	return len(keys), nil
}

func (s *Service) validate(image []byte) error {
	if len(image) < s.cfg.MinImageBytes {
		return &ValidationError{Msg: fmt.Sprintf(
			"image too small: %d bytes, minimum is %d", len(image), s.cfg.MinImageBytes)}
	}
	if len(image) > s.cfg.MaxImageBytes {
		return &ValidationError{Msg: fmt.Sprintf(
			"image too large: %d bytes, maximum is %d", len(image), s.cfg.MaxImageBytes)}
	}
	return nil
}

type scored struct {
	rec   models.Identification
	score float64
}

// similarityScan compares the input hash against the most reused cache
// entries and returns a result when the best score clears the threshold.
func (s *Service) similarityScan(ctx context.Context, image []byte, hash string) *Result {
	start := time.Now()
	defer func() {
		observability.PipelineStageDuration.WithLabelValues("similarity_scan").Observe(time.Since(start).Seconds())
	}()

	candidates, err := s.store.FindRecentCandidates(ctx, s.cfg.CandidateWindow)
	if err != nil {
		slog.Warn("fetch similarity candidates failed", "error", err)
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	// The extractor gates the scan the way the embedding step did upstream:
	// no features, no approximate matching.
	if features := s.extractor.Extract(ctx, image); features == nil {
		return nil
	}

	var matches []scored
	for _, c := range candidates {
		score := HashSimilarity(hash, c.ImageHash)
		if score >= s.cfg.SimilarityThreshold {
			matches = append(matches, scored{rec: c, score: score})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	best := matches[0]
	s.touch(ctx, &best.rec)
	observability.CacheHits.WithLabelValues(MatchSimilar).Inc()

	var alts []Alternative
	for _, m := range matches[1:] {
		if len(alts) == 3 {
			break
		}
		alts = append(alts, Alternative{
			PlantName:      m.rec.PlantName,
			ScientificName: m.rec.ScientificName,
			Similarity:     m.score,
		})
	}

	return &Result{
		Success:      true,
		Source:       SourceCache,
		MatchType:    MatchSimilar,
		Confidence:   best.score,
		Record:       &best.rec,
		Alternatives: alts,
		FromCache:    true,
	}
}

// acceptSuggestion validates the classifier response and picks the top
// suggestion, applying the plant-only gate.
func (s *Service) acceptSuggestion(c *Classification) (*Suggestion, error) {
	if len(c.Suggestions) == 0 {
		return nil, &NoPlantDetectedError{}
	}

	top := c.Suggestions[0]
	if top.Probability < s.cfg.MinConfidence {
		return nil, &LowConfidenceError{Probability: top.Probability}
	}
	if denylisted(top.Name) {
		return nil, &NotAPlantError{Name: top.Name}
	}

	plants := make([]Suggestion, 0, len(c.Suggestions))
	for _, sg := range c.Suggestions {
		if isPlantSuggestion(sg) {
			plants = append(plants, sg)
		}
	}
	if len(plants) == 0 {
		// The classifier technically succeeded, but nothing survived the
		// plant-kingdom gate.
		return nil, &NotAPlantError{}
	}

	return &plants[0], nil
}

// persist writes the image and a new cache record, best-effort. The caller
// still gets the identification when either write fails.
func (s *Service) persist(ctx context.Context, image []byte, hash string, userID *uuid.UUID, c *Classification, top *Suggestion) *models.Identification {
	imageKey := ""
	if s.images != nil {
		imageKey = "images/" + hash + ".jpg"
		if err := s.images.PutObject(ctx, imageKey, image, "image/jpeg"); err != nil {
			slog.Warn("store image payload", "key", imageKey, "error", err)
			imageKey = ""
		}
	}

	rec := &models.Identification{
		UserID:         userID,
		ImageHash:      hash,
		ImageKey:       imageKey,
		PlantName:      top.Name,
		ScientificName: top.ScientificName,
		CommonNames:    top.CommonNames,
		Family:         taxonomyFamily(top.Taxonomy),
		Probability:    top.Probability,
		Description:    top.Description,
		WikiURL:        top.WikiURL,
		Taxonomy:       top.Taxonomy,
		Features:       s.extractor.Extract(ctx, image),
		RawResponse:    c.Raw,
		Provider:       s.classifier.Provider(),
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		slog.Warn("cache save failed (non-critical)", "hash", hash, "error", err)
		return rec
	}
	return rec
}

func (s *Service) touch(ctx context.Context, rec *models.Identification) {
	if err := s.store.Touch(ctx, rec.ID); err != nil {
		// Bookkeeping only; the hit response is unaffected.
		slog.Warn("touch cache record", "id", rec.ID, "error", err)
		return
	}
	rec.CacheHitCount++
	now := time.Now()
	rec.LastAccessedAt = &now
}

func (s *Service) publish(ctx context.Context, res *Result) {
	observability.Identifications.WithLabelValues(res.Source, res.MatchType).Inc()
	if s.publisher == nil || res.Record == nil {
		return
	}
	ev := models.IdentificationEvent{
		IdentificationID: res.Record.ID,
		ImageHash:        res.Record.ImageHash,
		PlantName:        res.Record.PlantName,
		ScientificName:   res.Record.ScientificName,
		Source:           res.Source,
		MatchType:        res.MatchType,
		Confidence:       res.Confidence,
		Timestamp:        time.Now(),
	}
	if err := s.publisher.PublishIdentification(ctx, ev); err != nil {
		slog.Warn("publish identification event", "error", err)
	}
}

func taxonomyFamily(taxonomy map[string]any) string {
	if family, ok := taxonomy["family"].(string); ok {
		return family
	}
	return ""
}
