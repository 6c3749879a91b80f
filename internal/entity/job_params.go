package entity

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
)

// JobParams is the typed work order of a job. Each JobType has exactly one
// params shape; storage keeps it as an untyped JSON document.
type JobParams interface {
	JobType() JobType
	Validate() error
}

// RecomputeParams: recompute every post's final score with one weight configuration.
type RecomputeParams struct {
	WeightConfigID uuid.UUID `json:"weight_config_id"`
}

func (RecomputeParams) JobType() JobType { return JobTypeRecomputeFinalScores }

func (p RecomputeParams) Validate() error {
	if p.WeightConfigID == uuid.Nil {
		return apperr.ValidationFields([]apperr.FieldError{{Field: "params.weight_config_id", Message: "is required"}})
	}
	return nil
}

const (
	FeedRecent   = "recent"
	FeedTrending = "trending"
)

// ScraperParams: run a scrape of one feed.
type ScraperParams struct {
	FeedType string `json:"feed_type"`
}

func (ScraperParams) JobType() JobType { return JobTypeRunScraper }

func (p ScraperParams) Validate() error {
	if p.FeedType != FeedRecent && p.FeedType != FeedTrending {
		return apperr.ValidationFields([]apperr.FieldError{{
			Field:   "params.feed_type",
			Message: fmt.Sprintf("must be %q or %q", FeedRecent, FeedTrending),
		}})
	}
	return nil
}

// PermalinkParams: fetch a single post by its permalink. PostID, when set, is the
// existing post to refresh.
type PermalinkParams struct {
	URL    string `json:"url"`
	PostID string `json:"post_id,omitempty"`
}

func (PermalinkParams) JobType() JobType { return JobTypeFetchPermalink }

func (p PermalinkParams) Validate() error {
	u, err := url.Parse(strings.TrimSpace(p.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.ValidationFields([]apperr.FieldError{{Field: "params.url", Message: "must be an absolute http(s) URL"}})
	}
	return nil
}

// BackfillParams: score one newly added dimension for posts missing it.
type BackfillParams struct {
	Dimension string `json:"dimension"`
}

func (BackfillParams) JobType() JobType { return JobTypeBackfillDimension }

func (p BackfillParams) Validate() error {
	if !IsKnownDimension(p.Dimension) {
		return apperr.ValidationFields([]apperr.FieldError{{
			Field:   "params.dimension",
			Message: fmt.Sprintf("must be one of %s", strings.Join(KnownDimensions(), ", ")),
		}})
	}
	return nil
}

// DecodeParams parses raw params for the given type and validates them.
func DecodeParams(t JobType, raw json.RawMessage) (JobParams, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var p JobParams
	switch t {
	case JobTypeRecomputeFinalScores:
		var v RecomputeParams
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidParams(err)
		}
		p = v
	case JobTypeRunScraper:
		v := ScraperParams{FeedType: FeedRecent}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidParams(err)
		}
		if v.FeedType == "" {
			v.FeedType = FeedRecent
		}
		p = v
	case JobTypeFetchPermalink:
		var v PermalinkParams
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidParams(err)
		}
		p = v
	case JobTypeBackfillDimension:
		var v BackfillParams
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidParams(err)
		}
		p = v
	default:
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "type", Message: fmt.Sprintf("unknown job type %q", t)}})
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func EncodeParams(p JobParams) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func invalidParams(err error) error {
	return &apperr.Error{
		Kind:   apperr.KindValidation,
		Detail: "params: malformed JSON object",
		Fields: []apperr.FieldError{{Field: "params", Message: "must be a JSON object"}},
		Err:    err,
	}
}
