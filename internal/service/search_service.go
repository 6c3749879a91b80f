package service

import (
	"context"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

// PostSearcher runs the vector similarity procedure (implementation: postgresql.PostRepository).
type PostSearcher interface {
	Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]entity.Post, error)
}

// SettingsReader returns the current settings with defaults filled in.
type SettingsReader interface {
	Get(ctx context.Context) (entity.Settings, error)
}

const MaxSearchLimit = 100

type SearchService struct {
	searcher   PostSearcher
	embeddings *EmbeddingCache
	settings   SettingsReader
}

func NewSearchService(searcher PostSearcher, embeddings *EmbeddingCache, settings SettingsReader) *SearchService {
	return &SearchService{searcher: searcher, embeddings: embeddings, settings: settings}
}

type SearchRequest struct {
	Query               string
	SimilarityThreshold *float64
	Limit               *int
}

type SearchResult struct {
	Query               string        `json:"query"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
	Posts               []entity.Post `json:"posts"`
}

func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	query := NormalizeQuery(req.Query)
	if query == "" {
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "query", Message: "is required"}})
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	threshold := settings.SearchDefaults.SimilarityThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	limit := settings.SearchDefaults.Limit
	if req.Limit != nil {
		limit = *req.Limit
	}

	var fields []apperr.FieldError
	if threshold < 0 || threshold > 1 {
		fields = append(fields, apperr.FieldError{Field: "similarity_threshold", Message: "must be between 0 and 1"})
	}
	if limit < 1 || limit > MaxSearchLimit {
		fields = append(fields, apperr.FieldError{Field: "limit", Message: "must be between 1 and 100"})
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields(fields)
	}

	vec, err := s.embeddings.Get(ctx, query, threshold)
	if err != nil {
		return nil, err
	}
	posts, err := s.searcher.Search(ctx, vec, threshold, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Query: query, SimilarityThreshold: threshold, Posts: posts}, nil
}
