package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/herbid/internal/config"
	"github.com/your-org/herbid/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const identificationColumns = `id, user_id, image_hash, image_key, plant_name, scientific_name,
	common_names, family, probability, description, wiki_url, taxonomy,
	medicinal_uses, active_compounds, contraindications, safety_info,
	growing_conditions, origin, habitat, features, raw_response, provider,
	cache_hit_count, last_accessed_at, is_verified, verified_by, verified_at, created_at`

func scanIdentification(row pgx.Row) (*models.Identification, error) {
	rec := &models.Identification{}
	var features *pgvector.Vector
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ImageHash, &rec.ImageKey, &rec.PlantName, &rec.ScientificName,
		&rec.CommonNames, &rec.Family, &rec.Probability, &rec.Description, &rec.WikiURL, &rec.Taxonomy,
		&rec.MedicinalUses, &rec.ActiveCompounds, &rec.Contraindications, &rec.SafetyInfo,
		&rec.GrowingConditions, &rec.Origin, &rec.Habitat, &features, &rec.RawResponse, &rec.Provider,
		&rec.CacheHitCount, &rec.LastAccessedAt, &rec.IsVerified, &rec.VerifiedBy, &rec.VerifiedAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if features != nil {
		rec.Features = features.Slice()
	}
	return rec, nil
}

// --- Identifications ---

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Identification, error) {
	rec, err := scanIdentification(s.pool.QueryRow(ctx,
		`SELECT `+identificationColumns+` FROM plant_identifications WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find identification: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*models.Identification, error) {
	rec, err := scanIdentification(s.pool.QueryRow(ctx,
		`SELECT `+identificationColumns+` FROM plant_identifications WHERE image_hash = $1`, hash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return rec, nil
}

// FindRecentCandidates returns up to limit records ordered by descending
// cache_hit_count, a popular-first heuristic for the similarity scan.
func (s *PostgresStore) FindRecentCandidates(ctx context.Context, limit int) ([]models.Identification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+identificationColumns+` FROM plant_identifications
		 ORDER BY cache_hit_count DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var recs []models.Identification
	for rows.Next() {
		rec, err := scanIdentification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// Insert creates a new cache record. Two concurrent misses for the same
// image may race on the hash; the loser's row is silently dropped.
func (s *PostgresStore) Insert(ctx context.Context, rec *models.Identification) error {
	rec.ID = uuid.New()
	if rec.Taxonomy == nil {
		rec.Taxonomy = map[string]any{}
	}
	var features *pgvector.Vector
	if len(rec.Features) > 0 {
		v := pgvector.NewVector(rec.Features)
		features = &v
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO plant_identifications (
			id, user_id, image_hash, image_key, plant_name, scientific_name,
			common_names, family, probability, description, wiki_url, taxonomy,
			medicinal_uses, active_compounds, contraindications, safety_info,
			growing_conditions, origin, habitat, features, raw_response, provider)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		 ON CONFLICT (image_hash) DO NOTHING
		 RETURNING created_at`,
		rec.ID, rec.UserID, rec.ImageHash, rec.ImageKey, rec.PlantName, rec.ScientificName,
		rec.CommonNames, rec.Family, rec.Probability, rec.Description, rec.WikiURL, rec.Taxonomy,
		rec.MedicinalUses, rec.ActiveCompounds, rec.Contraindications, rec.SafetyInfo,
		rec.GrowingConditions, rec.Origin, rec.Habitat, features, rec.RawResponse, rec.Provider,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Lost the race to a concurrent insert for the same hash.
			return nil
		}
		return fmt.Errorf("insert identification: %w", err)
	}
	return nil
}

// Touch bumps the hit counter and the last-access timestamp.
func (s *PostgresStore) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE plant_identifications
		 SET cache_hit_count = cache_hit_count + 1, last_accessed_at = now()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch identification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identification %s not found", id)
	}
	return nil
}

// MarkVerified sets the review fields. Returns (nil, nil) when the record
// does not exist.
func (s *PostgresStore) MarkVerified(ctx context.Context, id, verifier uuid.UUID) (*models.Identification, error) {
	rec, err := scanIdentification(s.pool.QueryRow(ctx,
		`UPDATE plant_identifications
		 SET is_verified = true, verified_by = $2, verified_at = now()
		 WHERE id = $1
		 RETURNING `+identificationColumns, id, verifier))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	return rec, nil
}

// PurgeUnverifiedOlderThan deletes unverified records past the age threshold
// and returns the image keys of the removed rows.
func (s *PostgresStore) PurgeUnverifiedOlderThan(ctx context.Context, age time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-age)
	rows, err := s.pool.Query(ctx,
		`DELETE FROM plant_identifications
		 WHERE is_verified = false AND created_at < $1
		 RETURNING image_key`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge unverified: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan purged key: %w", err)
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

// FindSimilarByFeatures searches stored pseudo-feature vectors by cosine
// similarity.
func (s *PostgresStore) FindSimilarByFeatures(ctx context.Context, features []float32, threshold float64, limit int) ([]SimilarMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(features)

	rows, err := s.pool.Query(ctx,
		`SELECT id, plant_name, scientific_name, image_hash, 1 - (features <=> $1) AS score
		 FROM plant_identifications
		 WHERE features IS NOT NULL AND 1 - (features <=> $1) >= $2
		 ORDER BY features <=> $1
		 LIMIT $3`, vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search by features: %w", err)
	}
	defer rows.Close()

	var matches []SimilarMatch
	for rows.Next() {
		var m SimilarMatch
		if err := rows.Scan(&m.ID, &m.PlantName, &m.ScientificName, &m.ImageHash, &m.Score); err != nil {
			return nil, fmt.Errorf("scan similar match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

type SimilarMatch struct {
	ID             uuid.UUID `json:"id"`
	PlantName      string    `json:"plant_name"`
	ScientificName string    `json:"scientific_name,omitempty"`
	ImageHash      string    `json:"image_hash"`
	Score          float64   `json:"score"`
}

// UserHistory returns a user's identifications, newest first.
func (s *PostgresStore) UserHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.Identification, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+identificationColumns+` FROM plant_identifications
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("user history: %w", err)
	}
	defer rows.Close()

	var recs []models.Identification
	for rows.Next() {
		rec, err := scanIdentification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// SearchByName matches plant or scientific names, popular first.
func (s *PostgresStore) SearchByName(ctx context.Context, term string, limit int) ([]models.Identification, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + term + "%"
	rows, err := s.pool.Query(ctx,
		`SELECT `+identificationColumns+` FROM plant_identifications
		 WHERE plant_name ILIKE $1 OR scientific_name ILIKE $1
		 ORDER BY cache_hit_count DESC LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search by name: %w", err)
	}
	defer rows.Close()

	var recs []models.Identification
	for rows.Next() {
		rec, err := scanIdentification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// PopularPlants aggregates the most identified plants.
func (s *PostgresStore) PopularPlants(ctx context.Context, limit int) ([]models.PopularPlant, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT plant_name, min(scientific_name), count(*), COALESCE(sum(cache_hit_count), 0)
		 FROM plant_identifications
		 GROUP BY plant_name
		 ORDER BY COALESCE(sum(cache_hit_count), 0) DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("popular plants: %w", err)
	}
	defer rows.Close()

	var plants []models.PopularPlant
	for rows.Next() {
		var p models.PopularPlant
		if err := rows.Scan(&p.PlantName, &p.ScientificName, &p.TotalIdentifications, &p.CacheHitCount); err != nil {
			return nil, fmt.Errorf("scan popular plant: %w", err)
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}

// Stats summarises cache effectiveness.
func (s *PostgresStore) Stats(ctx context.Context) (*models.IdentificationStats, error) {
	st := &models.IdentificationStats{}
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE is_verified),
		        COALESCE(sum(cache_hit_count), 0)
		 FROM plant_identifications`).
		Scan(&st.TotalRecords, &st.VerifiedCount, &st.TotalHits)
	if err != nil {
		return nil, fmt.Errorf("identification stats: %w", err)
	}
	return st, nil
}

// --- Feedback ---

func (s *PostgresStore) InsertFeedback(ctx context.Context, fb *models.Feedback) error {
	fb.ID = uuid.New()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identification_feedback (id, identification_id, user_id, is_correct, correct_plant_name)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		fb.ID, fb.IdentificationID, fb.UserID, fb.IsCorrect, fb.CorrectPlantName,
	).Scan(&fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// --- Catalog ---

// VerifiedCatalogPlants returns the curated reference plants used by the
// feature-comparison engine.
func (s *PostgresStore) VerifiedCatalogPlants(ctx context.Context) ([]models.CatalogPlant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, common_name, scientific_name, botanical_family, description,
		        medicinal_uses, safety_rating, features, verified, created_at
		 FROM catalog_plants WHERE verified = true`)
	if err != nil {
		return nil, fmt.Errorf("catalog plants: %w", err)
	}
	defer rows.Close()

	var plants []models.CatalogPlant
	for rows.Next() {
		var p models.CatalogPlant
		if err := rows.Scan(&p.ID, &p.CommonName, &p.ScientificName, &p.BotanicalFamily, &p.Description,
			&p.MedicinalUses, &p.SafetyRating, &p.Features, &p.Verified, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan catalog plant: %w", err)
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}
