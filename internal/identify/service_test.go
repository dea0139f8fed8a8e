package identify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/herbid/internal/config"
	"github.com/your-org/herbid/internal/models"
)

// --- fakes ---

type fakeStore struct {
	byHash     map[string]*models.Identification
	byID       map[uuid.UUID]*models.Identification
	candidates []models.Identification

	inserted []*models.Identification
	touched  []uuid.UUID
	feedback []*models.Feedback

	findErr   error
	insertErr error
	touchErr  error
	purgeKeys []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byHash: map[string]*models.Identification{},
		byID:   map[uuid.UUID]*models.Identification{},
	}
}

func (f *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*models.Identification, error) {
	return f.byID[id], f.findErr
}

func (f *fakeStore) FindByHash(_ context.Context, hash string) (*models.Identification, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byHash[hash], nil
}

func (f *fakeStore) FindRecentCandidates(context.Context, int) ([]models.Identification, error) {
	return f.candidates, nil
}

func (f *fakeStore) Insert(_ context.Context, rec *models.Identification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	rec.ID = uuid.New()
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeStore) Touch(_ context.Context, id uuid.UUID) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeStore) MarkVerified(_ context.Context, id, verifier uuid.UUID) (*models.Identification, error) {
	rec := f.byID[id]
	if rec == nil {
		return nil, nil
	}
	rec.IsVerified = true
	rec.VerifiedBy = &verifier
	return rec, nil
}

func (f *fakeStore) PurgeUnverifiedOlderThan(context.Context, time.Duration) ([]string, error) {
	return f.purgeKeys, nil
}

func (f *fakeStore) InsertFeedback(_ context.Context, fb *models.Feedback) error {
	f.feedback = append(f.feedback, fb)
	return nil
}

type fakeClassifier struct {
	result *Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Identify(context.Context, []byte) (*Classification, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeClassifier) Provider() string { return "fake" }

type fakeImages struct {
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newFakeImages() *fakeImages {
	return &fakeImages{objects: map[string][]byte{}}
}

func (f *fakeImages) PutObject(_ context.Context, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeImages) DeleteObjects(_ context.Context, keys []string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

type fakePublisher struct {
	events []models.IdentificationEvent
}

func (f *fakePublisher) PublishIdentification(_ context.Context, ev models.IdentificationEvent) error {
	f.events = append(f.events, ev)
	return nil
}

// --- helpers ---

func testCfg() config.IdentifyConfig {
	return config.IdentifyConfig{
		MinImageBytes:       10,
		MaxImageBytes:       100,
		SimilarityThreshold: 0.85,
		CandidateWindow:     100,
		MinConfidence:       0.05,
	}
}

func suggestion(name string, prob float64) Suggestion {
	return Suggestion{Name: name, ScientificName: name + " officinalis", Probability: prob}
}

func classification(suggestions ...Suggestion) *Classification {
	return &Classification{Suggestions: suggestions, Raw: json.RawMessage(`{}`)}
}

func newTestService(store *fakeStore, cls Classifier, images ImageStore, pub EventPublisher) *Service {
	return NewService(testCfg(), store, images, cls, NewExtractor(LocalFeatures{}), pub)
}

// --- validation ---

func TestIdentifyRejectsTooSmallImage(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeClassifier{}, nil, nil)

	_, err := svc.Identify(context.Background(), make([]byte, 9), nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "too small")
}

func TestIdentifyAcceptsBoundarySizes(t *testing.T) {
	cls := &fakeClassifier{result: classification(suggestion("Mint", 0.9))}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	for _, size := range []int{10, 100} {
		_, err := svc.Identify(context.Background(), make([]byte, size), nil)
		assert.NoError(t, err, "size %d", size)
	}
}

func TestIdentifyRejectsTooLargeImage(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeClassifier{}, nil, nil)

	_, err := svc.Identify(context.Background(), make([]byte, 101), nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "too large")
}

// --- exact cache hit ---

func TestIdentifyExactHit(t *testing.T) {
	img := []byte("a green leaf photo")
	store := newFakeStore()
	rec := &models.Identification{ID: uuid.New(), ImageHash: HashImage(img), PlantName: "Mint"}
	store.byHash[rec.ImageHash] = rec
	cls := &fakeClassifier{}
	pub := &fakePublisher{}
	svc := newTestService(store, cls, nil, pub)

	res, err := svc.Identify(context.Background(), img, nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, MatchExact, res.MatchType)
	assert.Equal(t, 1.0, res.Confidence)
	assert.True(t, res.FromCache)
	assert.Equal(t, "Mint", res.Record.PlantName)

	// The hit never reaches the external classifier and bumps the counter.
	assert.Zero(t, cls.calls)
	assert.Equal(t, []uuid.UUID{rec.ID}, store.touched)
	assert.Equal(t, 1, res.Record.CacheHitCount)
	require.Len(t, pub.events, 1)
	assert.Equal(t, MatchExact, pub.events[0].MatchType)
}

func TestIdentifyExactHitIsIdempotent(t *testing.T) {
	img := []byte("a green leaf photo")
	store := newFakeStore()
	rec := &models.Identification{ID: uuid.New(), ImageHash: HashImage(img), PlantName: "Mint"}
	store.byHash[rec.ImageHash] = rec
	svc := newTestService(store, &fakeClassifier{}, nil, nil)

	for i := 0; i < 3; i++ {
		res, err := svc.Identify(context.Background(), img, nil)
		require.NoError(t, err)
		assert.Equal(t, MatchExact, res.MatchType)
	}
	assert.Len(t, store.touched, 3)
}

func TestIdentifyTouchFailureDoesNotFailHit(t *testing.T) {
	img := []byte("a green leaf photo")
	store := newFakeStore()
	rec := &models.Identification{ID: uuid.New(), ImageHash: HashImage(img), PlantName: "Mint"}
	store.byHash[rec.ImageHash] = rec
	store.touchErr = errors.New("db down")
	svc := newTestService(store, &fakeClassifier{}, nil, nil)

	res, err := svc.Identify(context.Background(), img, nil)
	require.NoError(t, err)
	assert.Equal(t, MatchExact, res.MatchType)
	// The local counter only moves when the write succeeded.
	assert.Zero(t, res.Record.CacheHitCount)
}

// --- similarity hit ---

func TestIdentifySimilarHit(t *testing.T) {
	img := []byte("a green leaf photo")
	hash := HashImage(img)

	store := newFakeStore()
	// A candidate with the same hash but not registered for exact lookup,
	// so the pipeline falls through to the similarity scan.
	near := models.Identification{ID: uuid.New(), ImageHash: hash, PlantName: "Basil"}
	far := models.Identification{ID: uuid.New(), ImageHash: "ffffffffffffffffffffffffffffffff", PlantName: "Oak"}
	store.candidates = []models.Identification{far, near}

	cls := &fakeClassifier{}
	svc := newTestService(store, cls, nil, nil)

	res, err := svc.Identify(context.Background(), img, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, MatchSimilar, res.MatchType)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "Basil", res.Record.PlantName)
	assert.Zero(t, cls.calls)
	assert.Equal(t, []uuid.UUID{near.ID}, store.touched)
}

func TestIdentifySimilarBelowThresholdGoesToAPI(t *testing.T) {
	img := []byte("a green leaf photo")
	store := newFakeStore()
	store.candidates = []models.Identification{
		{ID: uuid.New(), ImageHash: "00000000000000000000000000000000", PlantName: "Oak"},
	}
	cls := &fakeClassifier{result: classification(suggestion("Mint", 0.9))}
	svc := newTestService(store, cls, nil, nil)

	res, err := svc.Identify(context.Background(), img, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceAPI, res.Source)
	assert.Equal(t, MatchNew, res.MatchType)
	assert.Equal(t, 1, cls.calls)
}

// --- external classification ---

func TestIdentifyMissCallsAPIAndPersists(t *testing.T) {
	store := newFakeStore()
	images := newFakeImages()
	cls := &fakeClassifier{result: classification(suggestion("Mint", 0.92))}
	pub := &fakePublisher{}
	svc := newTestService(store, cls, images, pub)

	img := []byte("a brand new plant photo")
	res, err := svc.Identify(context.Background(), img, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceAPI, res.Source)
	assert.Equal(t, MatchNew, res.MatchType)
	assert.Equal(t, 0.92, res.Confidence)
	assert.False(t, res.FromCache)

	require.Len(t, store.inserted, 1)
	saved := store.inserted[0]
	assert.Equal(t, HashImage(img), saved.ImageHash)
	assert.Equal(t, "fake", saved.Provider)
	assert.Len(t, saved.Features, FeatureDim)
	assert.Zero(t, saved.CacheHitCount)

	// Image payload stored under its hash key.
	assert.Contains(t, images.objects, "images/"+saved.ImageHash+".jpg")
	require.Len(t, pub.events, 1)
	assert.Equal(t, SourceAPI, pub.events[0].Source)
}

func TestIdentifyPersistFailureStillReturnsResult(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("db down")
	cls := &fakeClassifier{result: classification(suggestion("Mint", 0.9))}
	svc := newTestService(store, cls, nil, nil)

	res, err := svc.Identify(context.Background(), []byte("a brand new photo"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Mint", res.Record.PlantName)
}

func TestIdentifyCacheLookupFailureTreatedAsMiss(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("db down")
	cls := &fakeClassifier{result: classification(suggestion("Mint", 0.9))}
	svc := newTestService(store, cls, nil, nil)

	res, err := svc.Identify(context.Background(), []byte("a plant photo"), nil)
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, res.Source)
}

func TestIdentifyNoSuggestions(t *testing.T) {
	cls := &fakeClassifier{result: classification()}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	_, err := svc.Identify(context.Background(), []byte("an empty meadow"), nil)

	var npErr *NoPlantDetectedError
	assert.ErrorAs(t, err, &npErr)
}

func TestIdentifyConfidenceThreshold(t *testing.T) {
	// 0.049 is rejected, 0.05 exactly is accepted.
	cls := &fakeClassifier{result: classification(suggestion("Mint", 0.049))}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	_, err := svc.Identify(context.Background(), []byte("a blurry photo"), nil)
	var lcErr *LowConfidenceError
	require.ErrorAs(t, err, &lcErr)
	assert.Equal(t, 0.049, lcErr.Probability)

	cls.result = classification(suggestion("Mint", 0.05))
	_, err = svc.Identify(context.Background(), []byte("a blurry photo"), nil)
	assert.NoError(t, err)
}

func TestIdentifyDenylistedLabel(t *testing.T) {
	cls := &fakeClassifier{result: classification(suggestion("Unknown Object", 0.8))}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	_, err := svc.Identify(context.Background(), []byte("not a plant at all"), nil)

	var naErr *NotAPlantError
	require.ErrorAs(t, err, &naErr)
	assert.Equal(t, "Unknown Object", naErr.Name)
}

func TestIdentifyPlantKingdomGate(t *testing.T) {
	notPlant := false
	sg := suggestion("Tabby Cat", 0.9)
	sg.IsPlant = &notPlant

	cls := &fakeClassifier{result: classification(sg)}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	_, err := svc.Identify(context.Background(), []byte("a cat in the garden"), nil)

	var naErr *NotAPlantError
	assert.ErrorAs(t, err, &naErr)
}

func TestIdentifyKingdomFromTaxonomy(t *testing.T) {
	sg := suggestion("Mentha", 0.9)
	sg.Taxonomy = map[string]any{"kingdom": "Plantae"}

	cls := &fakeClassifier{result: classification(sg)}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	res, err := svc.Identify(context.Background(), []byte("a mint plant"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Mentha", res.Record.PlantName)
}

func TestIdentifyExternalError(t *testing.T) {
	cls := &fakeClassifier{err: &ExternalServiceError{Provider: "fake", Kind: KindRateLimit, Err: errors.New("429")}}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	_, err := svc.Identify(context.Background(), []byte("a plant photo"), nil)

	var extErr *ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, KindRateLimit, extErr.Kind)
}

// --- batch ---

func TestIdentifyBatchIsolatesFailures(t *testing.T) {
	cls := &fakeClassifier{result: classification(suggestion("Mint", 0.9))}
	svc := newTestService(newFakeStore(), cls, nil, nil)

	images := [][]byte{
		[]byte("first plant photo"),
		make([]byte, 3), // below minimum size
		[]byte("third plant photo"),
	}

	items := svc.IdentifyBatch(context.Background(), images, nil)
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err)
	assert.NotNil(t, items[0].Result)

	var verr *ValidationError
	assert.ErrorAs(t, items[1].Err, &verr)
	assert.Nil(t, items[1].Result)

	assert.NoError(t, items[2].Err)
	assert.Equal(t, 2, items[2].Index)
}

// --- feedback / verify / cleanup ---

func TestRecordFeedback(t *testing.T) {
	store := newFakeStore()
	rec := &models.Identification{ID: uuid.New()}
	store.byID[rec.ID] = rec
	svc := newTestService(store, &fakeClassifier{}, nil, nil)

	err := svc.RecordFeedback(context.Background(), rec.ID, false, "Basil", nil)
	require.NoError(t, err)

	require.Len(t, store.feedback, 1)
	assert.Equal(t, rec.ID, store.feedback[0].IdentificationID)
	assert.Equal(t, "Basil", store.feedback[0].CorrectPlantName)
}

func TestRecordFeedbackUnknownRecord(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeClassifier{}, nil, nil)

	err := svc.RecordFeedback(context.Background(), uuid.New(), true, "", nil)

	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestVerify(t *testing.T) {
	store := newFakeStore()
	rec := &models.Identification{ID: uuid.New()}
	store.byID[rec.ID] = rec
	svc := newTestService(store, &fakeClassifier{}, nil, nil)

	verifier := uuid.New()
	out, err := svc.Verify(context.Background(), rec.ID, verifier)
	require.NoError(t, err)
	assert.True(t, out.IsVerified)
	assert.Equal(t, verifier, *out.VerifiedBy)
}

func TestVerifyUnknownRecord(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeClassifier{}, nil, nil)

	_, err := svc.Verify(context.Background(), uuid.New(), uuid.New())

	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestCleanupRemovesImages(t *testing.T) {
	store := newFakeStore()
	store.purgeKeys = []string{"images/a.jpg", "images/b.jpg"}
	images := newFakeImages()
	svc := newTestService(store, &fakeClassifier{}, images, nil)

	purged, err := svc.Cleanup(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	assert.Equal(t, store.purgeKeys, images.deleted)
}
