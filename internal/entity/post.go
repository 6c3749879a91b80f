package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
)

type SortKey string

const (
	SortScore        SortKey = "score"
	SortPodcastScore SortKey = "podcast_score"
	SortCreatedAt    SortKey = "created_at"
	SortReactions    SortKey = "reactions"
)

// NeedsActiveConfig reports whether ordering by this key requires resolved final scores.
func (k SortKey) NeedsActiveConfig() bool {
	return k == SortScore || k == SortPodcastScore
}

func (k SortKey) Valid() bool {
	switch k {
	case SortScore, SortPodcastScore, SortCreatedAt, SortReactions:
		return true
	}
	return false
}

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// PostFilter is shared by interactive paging and bulk resolution, so both see the
// same matching set.
type PostFilter struct {
	Category        string      `json:"category,omitempty"`
	NeighborhoodIDs []uuid.UUID `json:"neighborhood_ids,omitempty"`
	MinScore        *float64    `json:"min_score,omitempty"`
	MinPodcastScore *float64    `json:"min_podcast_score,omitempty"`
	MinReactions    *int        `json:"min_reactions,omitempty"`
	SavedOnly       bool        `json:"saved_only,omitempty"`
	IgnoredOnly     bool        `json:"ignored_only,omitempty"`
	UnusedOnly      bool        `json:"unused_only,omitempty"`
	Sort            SortKey     `json:"sort,omitempty"`
	Order           SortOrder   `json:"order,omitempty"`
}

// Normalize fills the default sort (score, descending).
func (f *PostFilter) Normalize() {
	if f.Sort == "" {
		f.Sort = SortScore
	}
	if f.Order == "" {
		f.Order = OrderDesc
	}
}

func (f PostFilter) Validate() error {
	var fields []apperr.FieldError
	if f.Sort != "" && !f.Sort.Valid() {
		fields = append(fields, apperr.FieldError{Field: "sort", Message: "must be one of score, podcast_score, created_at, reactions"})
	}
	if f.Order != "" && f.Order != OrderAsc && f.Order != OrderDesc {
		fields = append(fields, apperr.FieldError{Field: "order", Message: "must be asc or desc"})
	}
	if f.MinScore != nil && (*f.MinScore < 0 || *f.MinScore > 10) {
		fields = append(fields, apperr.FieldError{Field: "min_score", Message: "must be between 0 and 10"})
	}
	if f.MinPodcastScore != nil && (*f.MinPodcastScore < 0 || *f.MinPodcastScore > 10) {
		fields = append(fields, apperr.FieldError{Field: "min_podcast_score", Message: "must be between 0 and 10"})
	}
	if f.MinReactions != nil && *f.MinReactions < 0 {
		fields = append(fields, apperr.FieldError{Field: "min_reactions", Message: "must not be negative"})
	}
	if f.SavedOnly && f.IgnoredOnly {
		fields = append(fields, apperr.FieldError{Field: "ignored_only", Message: "cannot be combined with saved_only"})
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

type Post struct {
	ID               uuid.UUID       `json:"id"`
	URL              *string         `json:"url,omitempty"`
	Text             string          `json:"text"`
	Neighborhood     *string         `json:"neighborhood,omitempty"`
	Categories       []string        `json:"categories,omitempty"`
	Scores           json.RawMessage `json:"scores,omitempty"`
	FinalScore       *float64        `json:"final_score,omitempty"`
	Reactions        int             `json:"reactions"`
	Saved            bool            `json:"saved"`
	Ignored          bool            `json:"ignored"`
	UsedOnEpisode    bool            `json:"used_on_episode"`
	CreatedAt        time.Time       `json:"created_at"`
	Similarity       *float64        `json:"similarity,omitempty"`
	WhyPodcastWorthy *string         `json:"why_podcast_worthy,omitempty"`
}

type PostPage struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

type BulkAction string

const (
	ActionSave       BulkAction = "save"
	ActionUnsave     BulkAction = "unsave"
	ActionIgnore     BulkAction = "ignore"
	ActionUnignore   BulkAction = "unignore"
	ActionMarkUsed   BulkAction = "mark_used"
	ActionMarkUnused BulkAction = "mark_unused"
)

// Column returns the post flag an action writes and the value it writes.
func (a BulkAction) Column() (string, bool, bool) {
	switch a {
	case ActionSave:
		return "saved", true, true
	case ActionUnsave:
		return "saved", false, true
	case ActionIgnore:
		return "ignored", true, true
	case ActionUnignore:
		return "ignored", false, true
	case ActionMarkUsed:
		return "used_on_episode", true, true
	case ActionMarkUnused:
		return "used_on_episode", false, true
	}
	return "", false, false
}
