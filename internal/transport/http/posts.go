package httptransport

import (
	"net/http"

	"github.com/google/uuid"

	"curation-service/internal/entity"
	"curation-service/internal/service"
)

type previewDTO struct {
	Weights entity.Weights    `json:"weights"`
	Filter  entity.PostFilter `json:"filter"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

type bulkDTO struct {
	Action entity.BulkAction  `json:"action"`
	IDs    []uuid.UUID        `json:"ids,omitempty"`
	Filter *entity.PostFilter `json:"filter,omitempty"`
}

type searchDTO struct {
	Query               string   `json:"query"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	Limit               *int     `json:"limit,omitempty"`
}

func postFilterFromQuery(q *queryReader) entity.PostFilter {
	return entity.PostFilter{
		Category:        q.str("category"),
		NeighborhoodIDs: q.uuids("neighborhood_ids"),
		MinScore:        q.floatPtr("min_score"),
		MinPodcastScore: q.floatPtr("min_podcast_score"),
		MinReactions:    q.intPtr("min_reactions"),
		SavedOnly:       q.boolVal("saved_only"),
		IgnoredOnly:     q.boolVal("ignored_only"),
		UnusedOnly:      q.boolVal("unused_only"),
		Sort:            entity.SortKey(q.str("sort")),
		Order:           entity.SortOrder(q.str("order")),
	}
}

// ListPosts godoc
// @Summary List ranked posts
// @Description Ranks posts with the active weight configuration. Score sorts and score thresholds need one.
// @Tags posts
// @Produce json
// @Param category query string false "category"
// @Param neighborhood_ids query string false "comma-separated neighborhood ids"
// @Param min_score query number false "minimum final score"
// @Param min_podcast_score query number false "minimum podcast_worthy score"
// @Param min_reactions query int false "minimum reactions"
// @Param saved_only query bool false "saved posts only"
// @Param ignored_only query bool false "ignored posts only"
// @Param unused_only query bool false "posts not yet used on an episode"
// @Param sort query string false "score, podcast_score, created_at, reactions"
// @Param order query string false "asc or desc"
// @Param limit query int false "page size (default 20, max 100)"
// @Param offset query int false "offset"
// @Success 200 {object} entity.PostPage
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Router /posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	req := service.ListPostsRequest{
		Filter: postFilterFromQuery(q),
		Limit:  q.intVal("limit"),
		Offset: q.intVal("offset"),
	}
	if err := q.err(); err != nil {
		h.writeError(w, err)
		return
	}
	page, err := h.svc.Posts.List(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilPage(page))
}

// PreviewPosts godoc
// @Summary Rank posts with inline weights
// @Description Nothing persisted changes.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body previewDTO true "weights and filter"
// @Success 200 {object} entity.PostPage
// @Failure 400 {object} apiError
// @Router /posts/preview [post]
func (h *Handler) PreviewPosts(w http.ResponseWriter, r *http.Request) {
	var dto previewDTO
	if err := decodeJSON(r, &dto); err != nil {
		h.writeError(w, err)
		return
	}
	page, err := h.svc.Posts.Preview(r.Context(), service.PreviewRequest{
		Weights: dto.Weights,
		Filter:  dto.Filter,
		Limit:   dto.Limit,
		Offset:  dto.Offset,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilPage(page))
}

// BulkAction godoc
// @Summary Apply an action to many posts
// @Description Targets explicit ids or everything currently matching a filter. Not atomic: on partial failure the response carries the applied count and the failed ids.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body bulkDTO true "action with ids or filter"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Failure 502 {object} bulkErrorResp
// @Router /posts/bulk [post]
func (h *Handler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var dto bulkDTO
	if err := decodeJSON(r, &dto); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Bulk.Apply(r.Context(), service.BulkRequest{
		Action: dto.Action,
		IDs:    dto.IDs,
		Filter: dto.Filter,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search godoc
// @Summary Semantic post search
// @Tags posts
// @Accept json
// @Produce json
// @Param request body searchDTO true "query text"
// @Success 200 {object} service.SearchResult
// @Failure 400 {object} apiError
// @Failure 502 {object} apiError
// @Router /search [post]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var dto searchDTO
	if err := decodeJSON(r, &dto); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.svc.Search.Search(r.Context(), service.SearchRequest{
		Query:               dto.Query,
		SimilarityThreshold: dto.SimilarityThreshold,
		Limit:               dto.Limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Posts == nil {
		res.Posts = []entity.Post{}
	}
	writeJSON(w, http.StatusOK, res)
}

func nonNilPage(p entity.PostPage) entity.PostPage {
	if p.Posts == nil {
		p.Posts = []entity.Post{}
	}
	return p
}
