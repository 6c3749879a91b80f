package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
)

// PostActions writes post flags (implementation: postgresql.PostRepository).
type PostActions interface {
	ApplyAction(ctx context.Context, ids []uuid.UUID, action entity.BulkAction) (int, error)
	Exists(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

// PostQuerier is the filtered listing shared with interactive paging.
type PostQuerier interface {
	Query(ctx context.Context, f entity.PostFilter, limit, offset int) (entity.PostPage, error)
}

const (
	DefaultBulkMaxIDs = 10000
	bulkChunkSize     = 500
)

type BulkService struct {
	posts   PostQuerier
	actions PostActions
	maxIDs  int
	log     *logger.Logger
}

func NewBulkService(posts PostQuerier, actions PostActions, maxIDs int, log *logger.Logger) *BulkService {
	if maxIDs <= 0 {
		maxIDs = DefaultBulkMaxIDs
	}
	return &BulkService{posts: posts, actions: actions, maxIDs: maxIDs, log: log.With("component", "bulk")}
}

// ResolveIDs returns the ids currently matching f, in listing order, capped at
// the configured maximum. truncated is true when more posts match than the cap.
func (s *BulkService) ResolveIDs(ctx context.Context, f entity.PostFilter) (ids []uuid.UUID, truncated bool, err error) {
	page, err := s.posts.Query(ctx, f, s.maxIDs, 0)
	if err != nil {
		return nil, false, err
	}
	ids = make([]uuid.UUID, 0, len(page.Posts))
	for _, p := range page.Posts {
		ids = append(ids, p.ID)
	}
	return ids, page.Total > len(ids), nil
}

type BulkRequest struct {
	Action entity.BulkAction
	IDs    []uuid.UUID
	Filter *entity.PostFilter
}

type BulkResult struct {
	Action    entity.BulkAction `json:"action"`
	Requested int               `json:"requested"`
	Updated   int               `json:"updated"`
	NotFound  []uuid.UUID       `json:"not_found,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`
}

// BulkFailure is one chunk whose update failed.
type BulkFailure struct {
	IDs []uuid.UUID `json:"ids"`
	Err error       `json:"-"`
}

// BulkError reports a partially applied bulk action. Chunks that succeeded
// before or after the failures stay applied.
type BulkError struct {
	Result   BulkResult
	Failures []BulkFailure
}

func (e *BulkError) Error() string {
	failed := 0
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		failed += len(f.IDs)
		msgs = append(msgs, f.Err.Error())
	}
	return fmt.Sprintf("bulk %s: %d updated, %d failed: %s", e.Result.Action, e.Result.Updated, failed, strings.Join(msgs, "; "))
}

func (e *BulkError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// Apply runs an action over explicit ids or over everything matching a filter.
// The update is chunked and not atomic as a whole.
func (s *BulkService) Apply(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	if _, _, ok := req.Action.Column(); !ok {
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "action", Message: fmt.Sprintf("unknown action %q", req.Action)}})
	}
	if (req.Filter == nil) == (len(req.IDs) == 0) {
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "ids", Message: "provide either ids or filter"}})
	}

	res := BulkResult{Action: req.Action}
	ids := req.IDs
	explicit := req.Filter == nil
	if explicit {
		ids = dedupe(ids)
		if len(ids) > s.maxIDs {
			return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "ids", Message: fmt.Sprintf("at most %d ids per request", s.maxIDs)}})
		}
	} else {
		var err error
		ids, res.Truncated, err = s.ResolveIDs(ctx, *req.Filter)
		if err != nil {
			return nil, err
		}
	}
	res.Requested = len(ids)

	var failures []BulkFailure
	for start := 0; start < len(ids); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		n, err := s.actions.ApplyAction(ctx, chunk, req.Action)
		if err != nil {
			s.log.Warn("bulk chunk failed", "action", req.Action, "chunk_start", start, "size", len(chunk), "error", err)
			failures = append(failures, BulkFailure{IDs: chunk, Err: err})
			continue
		}
		res.Updated += n

		if explicit && n < len(chunk) {
			found, err := s.actions.Exists(ctx, chunk)
			if err != nil {
				s.log.Warn("bulk missing-id lookup failed", "error", err)
				continue
			}
			for _, id := range chunk {
				if !found[id] {
					res.NotFound = append(res.NotFound, id)
				}
			}
		}
	}

	s.log.Info("bulk action applied", "action", req.Action, "requested", res.Requested, "updated", res.Updated, "failed_chunks", len(failures))
	if len(failures) > 0 {
		return &res, &BulkError{Result: res, Failures: failures}
	}
	return &res, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
