package entity

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusError     JobStatus = "error"
	StatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the job still occupies the queue.
func (s JobStatus) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// ActiveStatuses are the statuses a cancel may start from.
var ActiveStatuses = []JobStatus{StatusPending, StatusRunning}

type JobType string

const (
	JobTypeRecomputeFinalScores JobType = "recompute_final_scores"
	JobTypeRunScraper           JobType = "run_scraper"
	JobTypeFetchPermalink       JobType = "fetch_permalink"
	JobTypeBackfillDimension    JobType = "backfill_dimension"
)

// AllJobTypes lists every type a worker may be configured to handle.
var AllJobTypes = []JobType{
	JobTypeRecomputeFinalScores,
	JobTypeRunScraper,
	JobTypeFetchPermalink,
	JobTypeBackfillDimension,
}

func (t JobType) Valid() bool {
	for _, known := range AllJobTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AllowsRerun reports whether a completed job of this type may be retried by hand.
// A backfill that completed has nothing left to fill.
func (t JobType) AllowsRerun() bool {
	return t != JobTypeBackfillDimension
}

// RetryableFrom returns the statuses a manual retry may start from.
func (t JobType) RetryableFrom() []JobStatus {
	if t.AllowsRerun() {
		return []JobStatus{StatusError, StatusCancelled, StatusCompleted}
	}
	return []JobStatus{StatusError, StatusCancelled}
}

const (
	DefaultMaxRetries = 3
	UnknownActor      = "unknown"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	Type         JobType         `json:"type"`
	Status       JobStatus       `json:"status"`
	Params       json.RawMessage `json:"params"`
	CreatedBy    string          `json:"created_by"`
	CancelledBy  *string         `json:"cancelled_by,omitempty"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	Progress     *int            `json:"progress,omitempty"`
	Total        *int            `json:"total,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	LastRetryAt  *time.Time      `json:"last_retry_at,omitempty"`
}

// JobFilter narrows a job listing. Empty slices mean "any".
type JobFilter struct {
	Types    []JobType
	Statuses []JobStatus
	Limit    int
}

// FinishedAt is the completion or cancellation time of a finished job.
func (j *Job) FinishedAt() time.Time {
	switch {
	case j.CompletedAt != nil:
		return *j.CompletedAt
	case j.CancelledAt != nil:
		return *j.CancelledAt
	default:
		return j.CreatedAt
	}
}

// SortForQueue orders jobs the way the queue presents them: the running job first,
// then pending jobs oldest-first, then finished jobs most recently finished first.
func SortForQueue(jobs []*Job) {
	rank := func(s JobStatus) int {
		switch s {
		case StatusRunning:
			return 0
		case StatusPending:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		ra, rb := rank(a.Status), rank(b.Status)
		if ra != rb {
			return ra < rb
		}
		if ra < 2 {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.FinishedAt().After(b.FinishedAt())
	})
}
