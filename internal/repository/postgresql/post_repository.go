package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

// RankQuery parameterizes the ranked listing procedure. Exactly one of ConfigID
// (persisted scores) or Weights (inline preview) is set.
type RankQuery struct {
	ConfigID *uuid.UUID
	Weights  entity.Weights
	Filter   entity.PostFilter
	Limit    int
	Offset   int
}

const rankSQL = `
SELECT id, url, text, neighborhood, categories, scores, final_score, reactions,
       saved, ignored, used_on_episode, created_at, why_podcast_worthy, total_count
FROM get_posts_with_scores(
    p_weight_config_id => $1,
    p_weights          => $2,
    p_category         => $3,
    p_neighborhood_ids => $4,
    p_min_score        => $5,
    p_min_podcast_score => $6,
    p_min_reactions    => $7,
    p_saved_only       => $8,
    p_ignored_only     => $9,
    p_unused_only      => $10,
    p_order_by         => $11,
    p_order_dir        => $12,
    p_limit            => $13,
    p_offset           => $14
)`

const searchSQL = `
SELECT id, url, text, neighborhood, categories, final_score, reactions,
       saved, ignored, used_on_episode, created_at, similarity
FROM search_posts_by_embedding($1::vector, $2, $3)`

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// Rank calls the ranked listing procedure. Total is the full match count before
// limit/offset.
func (r *PostRepository) Rank(ctx context.Context, q RankQuery) (entity.PostPage, error) {
	args, err := rankArgs(q)
	if err != nil {
		return entity.PostPage{}, err
	}

	rows, err := r.pool.Query(ctx, rankSQL, args...)
	if err != nil {
		return entity.PostPage{}, storeErr("rank posts", err)
	}
	defer rows.Close()

	page := entity.PostPage{Posts: []entity.Post{}}
	for rows.Next() {
		var (
			p      entity.Post
			scores []byte
			total  int
		)
		if err := rows.Scan(&p.ID, &p.URL, &p.Text, &p.Neighborhood, &p.Categories, &scores, &p.FinalScore,
			&p.Reactions, &p.Saved, &p.Ignored, &p.UsedOnEpisode, &p.CreatedAt, &p.WhyPodcastWorthy, &total); err != nil {
			return entity.PostPage{}, storeErr("rank posts", err)
		}
		if len(scores) > 0 {
			p.Scores = json.RawMessage(scores)
		}
		page.Total = total
		page.Posts = append(page.Posts, p)
	}
	if err := rows.Err(); err != nil {
		return entity.PostPage{}, storeErr("rank posts", err)
	}
	return page, nil
}

func rankArgs(q RankQuery) ([]interface{}, error) {
	f := q.Filter
	f.Normalize()

	var weights []byte
	if q.Weights != nil {
		b, err := json.Marshal(q.Weights)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		weights = b
	}
	var category *string
	if f.Category != "" {
		category = &f.Category
	}
	var neighborhoods []uuid.UUID
	if len(f.NeighborhoodIDs) > 0 {
		neighborhoods = f.NeighborhoodIDs
	}

	return []interface{}{
		q.ConfigID,
		weights,
		category,
		neighborhoods,
		f.MinScore,
		f.MinPodcastScore,
		f.MinReactions,
		f.SavedOnly,
		f.IgnoredOnly,
		f.UnusedOnly,
		string(f.Sort),
		string(f.Order),
		q.Limit,
		q.Offset,
	}, nil
}

// Search returns posts whose embedding is within threshold of the query vector,
// most similar first.
func (r *PostRepository) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]entity.Post, error) {
	rows, err := r.pool.Query(ctx, searchSQL, vectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, storeErr("search posts", err)
	}
	defer rows.Close()

	out := []entity.Post{}
	for rows.Next() {
		var p entity.Post
		if err := rows.Scan(&p.ID, &p.URL, &p.Text, &p.Neighborhood, &p.Categories, &p.FinalScore, &p.Reactions,
			&p.Saved, &p.Ignored, &p.UsedOnEpisode, &p.CreatedAt, &p.Similarity); err != nil {
			return nil, storeErr("search posts", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("search posts", err)
	}
	return out, nil
}

// ApplyAction sets the action's flag on every listed post and returns how many
// posts matched. Postgres counts matched rows even when the value is unchanged,
// so repeating an action reports the same count.
func (r *PostRepository) ApplyAction(ctx context.Context, ids []uuid.UUID, action entity.BulkAction) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	sql, args, err := buildActionUpdate(ids, action)
	if err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, storeErr("apply post action", err)
	}
	return int(tag.RowsAffected()), nil
}

func buildActionUpdate(ids []uuid.UUID, action entity.BulkAction) (string, []interface{}, error) {
	col, val, ok := action.Column()
	if !ok {
		return "", nil, apperr.ValidationFields([]apperr.FieldError{{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}})
	}
	b := psql.Update("posts").
		Set(col, val).
		Where(sq.Expr("id = ANY(?)", ids))
	return b.ToSql()
}

// Exists reports which of ids are present. Used to name missing posts when a
// bulk action on explicit ids matches fewer rows than requested.
func (r *PostRepository) Exists(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storeErr("check posts", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, storeErr("check posts", err)
	}
	out := make(map[uuid.UUID]bool, len(found))
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
