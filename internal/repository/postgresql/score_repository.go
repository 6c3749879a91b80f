package postgresql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

// ScoreRow is one post's raw dimension scores as produced by the external scorer.
type ScoreRow struct {
	ID         uuid.UUID
	PostID     uuid.UUID
	Scores     map[string]float64
	Categories []string
}

// StagedScore is a computed final score waiting to be applied.
type StagedScore struct {
	PostID     uuid.UUID
	FinalScore float64
}

// ScoreRepository serves the recompute job: it reads raw scores, stages final
// scores per job and applies them in one step.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

func (r *ScoreRepository) CountScored(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM llm_scores`).Scan(&n); err != nil {
		return 0, storeErr("count scored posts", err)
	}
	return n, nil
}

// ScoreBatch pages through llm_scores by id. Pass uuid.Nil to start.
func (r *ScoreRepository) ScoreBatch(ctx context.Context, after uuid.UUID, limit int) ([]ScoreRow, error) {
	const q = `
SELECT id, post_id, scores, COALESCE(categories, '{}')
FROM llm_scores
WHERE id > $1
ORDER BY id
LIMIT $2`

	rows, err := r.pool.Query(ctx, q, after, limit)
	if err != nil {
		return nil, storeErr("read score batch", err)
	}
	defer rows.Close()

	var out []ScoreRow
	for rows.Next() {
		var (
			row    ScoreRow
			scores []byte
		)
		if err := rows.Scan(&row.ID, &row.PostID, &scores, &row.Categories); err != nil {
			return nil, storeErr("read score batch", err)
		}
		if len(scores) > 0 {
			// rows the scorer wrote malformed keep a nil map and score as all-missing
			_ = json.Unmarshal(scores, &row.Scores)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read score batch", err)
	}
	return out, nil
}

func (r *ScoreRepository) TopicFrequencies(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT category, count_30d FROM topic_frequencies`)
	if err != nil {
		return nil, storeErr("read topic frequencies", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var tf entity.TopicFrequency
		if err := rows.Scan(&tf.Category, &tf.Count30d); err != nil {
			return nil, storeErr("read topic frequencies", err)
		}
		out[tf.Category] = tf.Count30d
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read topic frequencies", err)
	}
	return out, nil
}

// LookupFrequency returns the rolling count for one category, 0 when unknown.
func (r *ScoreRepository) LookupFrequency(ctx context.Context, category string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count_30d FROM topic_frequencies WHERE category = $1`, category).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, storeErr("read topic frequency", err)
	}
	return n, nil
}

func (r *ScoreRepository) WeightsFor(ctx context.Context, configID uuid.UUID) (entity.Weights, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, `SELECT weights FROM weight_configs WHERE id = $1`, configID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("weight configuration")
		}
		return nil, storeErr("read weights", err)
	}
	var w entity.Weights
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, apperr.Validation("stored weights are not a JSON object")
	}
	return w, nil
}

// Stage upserts computed scores for a job into post_scores_staging.
func (r *ScoreRepository) Stage(ctx context.Context, jobID, configID uuid.UUID, scores []StagedScore) error {
	if len(scores) == 0 {
		return nil
	}
	postIDs := make([]uuid.UUID, len(scores))
	finals := make([]float64, len(scores))
	for i, s := range scores {
		postIDs[i] = s.PostID
		finals[i] = s.FinalScore
	}

	const q = `
INSERT INTO post_scores_staging (job_id, post_id, weight_config_id, final_score, computed_at)
SELECT $1, u.post_id, $2, u.final_score, now()
FROM unnest($3::uuid[], $4::float8[]) AS u(post_id, final_score)
ON CONFLICT (job_id, post_id)
DO UPDATE SET final_score = EXCLUDED.final_score, computed_at = EXCLUDED.computed_at`

	if _, err := r.pool.Exec(ctx, q, jobID, configID, postIDs, finals); err != nil {
		return storeErr("stage scores", err)
	}
	return nil
}

// ApplyStaged moves a job's staged scores into post_scores atomically.
func (r *ScoreRepository) ApplyStaged(ctx context.Context, jobID, configID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `SELECT apply_post_scores_from_staging($1, $2)`, jobID, configID); err != nil {
		return storeErr("apply staged scores", err)
	}
	return nil
}

func (r *ScoreRepository) CleanupStaging(ctx context.Context, jobID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM post_scores_staging WHERE job_id = $1`, jobID); err != nil {
		return storeErr("cleanup staging", err)
	}
	return nil
}
