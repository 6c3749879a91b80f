package service

import (
	"context"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/repository/postgresql"
	"curation-service/internal/scoring"
)

// PostRanker is the ranked listing procedure (implementation: postgresql.PostRepository).
type PostRanker interface {
	Rank(ctx context.Context, q postgresql.RankQuery) (entity.PostPage, error)
}

// ActiveRequirer resolves the active configuration for scoring reads.
type ActiveRequirer interface {
	RequireActive(ctx context.Context) (uuid.UUID, error)
	ResolveActive(ctx context.Context) (uuid.UUID, bool, error)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PostService struct {
	ranker  PostRanker
	configs ActiveRequirer
}

func NewPostService(ranker PostRanker, configs ActiveRequirer) *PostService {
	return &PostService{ranker: ranker, configs: configs}
}

type ListPostsRequest struct {
	Filter entity.PostFilter
	Limit  int
	Offset int
}

// List serves one interactive page.
func (s *PostService) List(ctx context.Context, req ListPostsRequest) (entity.PostPage, error) {
	if req.Limit < 0 || req.Limit > MaxPageSize {
		return entity.PostPage{}, apperr.ValidationFields([]apperr.FieldError{{Field: "limit", Message: "must be between 1 and 100"}})
	}
	if req.Offset < 0 {
		return entity.PostPage{}, apperr.ValidationFields([]apperr.FieldError{{Field: "offset", Message: "must not be negative"}})
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	return s.Query(ctx, req.Filter, limit, req.Offset)
}

// Query is the filtered listing shared by paging and bulk resolution. It uses
// the active configuration's scores. Score-based sorts and thresholds need one
// and fail with NoActiveConfiguration without it; other listings fall back to
// unscored posts.
func (s *PostService) Query(ctx context.Context, f entity.PostFilter, limit, offset int) (entity.PostPage, error) {
	if err := f.Validate(); err != nil {
		return entity.PostPage{}, err
	}
	f.Normalize()

	q := postgresql.RankQuery{Filter: f, Limit: limit, Offset: offset}
	if needsScores(f) {
		id, err := s.configs.RequireActive(ctx)
		if err != nil {
			return entity.PostPage{}, err
		}
		q.ConfigID = &id
	} else {
		id, ok, err := s.configs.ResolveActive(ctx)
		if err != nil {
			return entity.PostPage{}, err
		}
		if ok {
			q.ConfigID = &id
		}
	}
	return s.ranker.Rank(ctx, q)
}

type PreviewRequest struct {
	Weights entity.Weights
	Filter  entity.PostFilter
	Limit   int
	Offset  int
}

// Preview ranks posts with inline weights. Nothing persisted changes.
func (s *PostService) Preview(ctx context.Context, req PreviewRequest) (entity.PostPage, error) {
	if err := scoring.ValidateWeights(req.Weights); err != nil {
		return entity.PostPage{}, prefixFields(err, "weights")
	}
	if err := req.Filter.Validate(); err != nil {
		return entity.PostPage{}, err
	}
	if req.Limit < 0 || req.Limit > MaxPageSize || req.Offset < 0 {
		return entity.PostPage{}, apperr.ValidationFields([]apperr.FieldError{{Field: "limit", Message: "must be between 1 and 100"}})
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	f := req.Filter
	f.Normalize()
	return s.ranker.Rank(ctx, postgresql.RankQuery{Weights: req.Weights, Filter: f, Limit: limit, Offset: req.Offset})
}

func needsScores(f entity.PostFilter) bool {
	return f.Sort.NeedsActiveConfig() || f.MinScore != nil || f.MinPodcastScore != nil
}
