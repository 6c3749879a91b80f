package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
)

// JobRepository is the durable job ledger (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) (*entity.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, f entity.JobFilter) ([]*entity.Job, error)
	Cancel(ctx context.Context, id uuid.UUID, actor string) (*entity.Job, error)
	Retry(ctx context.Context, id uuid.UUID, from []entity.JobStatus) (*entity.Job, error)
	CountActiveBefore(ctx context.Context, t time.Time) (int, error)
}

// ConfigGetter checks that a referenced weight configuration exists.
type ConfigGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.WeightConfig, error)
}

const (
	DefaultJobListLimit = 50
	MaxJobListLimit     = 500
)

type JobService struct {
	repo    JobRepository
	configs ConfigGetter
	wake    Notifier
	log     *logger.Logger
}

func NewJobService(repo JobRepository, configs ConfigGetter, wake Notifier, log *logger.Logger) *JobService {
	if wake == nil {
		wake = NoopWakeup{}
	}
	return &JobService{repo: repo, configs: configs, wake: wake, log: log.With("component", "jobs")}
}

type CreateJobRequest struct {
	Type       entity.JobType
	Params     json.RawMessage
	CreatedBy  string
	MaxRetries *int
}

// Create validates the params for the job's type and inserts a pending job.
// Duplicate submissions are not collapsed.
func (s *JobService) Create(ctx context.Context, req CreateJobRequest) (*entity.Job, error) {
	params, err := entity.DecodeParams(req.Type, req.Params)
	if err != nil {
		return nil, err
	}

	maxRetries := entity.DefaultMaxRetries
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "max_retries", Message: "must not be negative"}})
		}
		maxRetries = *req.MaxRetries
	}

	if rp, ok := params.(entity.RecomputeParams); ok && s.configs != nil {
		if _, err := s.configs.GetByID(ctx, rp.WeightConfigID); err != nil {
			return nil, err
		}
	}

	raw, err := entity.EncodeParams(params)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	job, err := s.repo.Create(ctx, &entity.Job{
		Type:       req.Type,
		Params:     raw,
		CreatedBy:  actorOrUnknown(req.CreatedBy),
		MaxRetries: maxRetries,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("job created", "job_id", job.ID, "type", job.Type, "created_by", job.CreatedBy)
	s.notify(ctx, job.Type)
	return job, nil
}

type ListJobsRequest struct {
	Types    []entity.JobType
	Statuses []entity.JobStatus
	Limit    int
}

func (s *JobService) List(ctx context.Context, req ListJobsRequest) ([]*entity.Job, error) {
	var fields []apperr.FieldError
	for _, t := range req.Types {
		if !t.Valid() {
			fields = append(fields, apperr.FieldError{Field: "type", Message: "unknown job type " + string(t)})
		}
	}
	for _, st := range req.Statuses {
		if !st.Valid() {
			fields = append(fields, apperr.FieldError{Field: "status", Message: "unknown status " + string(st)})
		}
	}
	if req.Limit < 0 || req.Limit > MaxJobListLimit {
		fields = append(fields, apperr.FieldError{Field: "limit", Message: "must be between 1 and 500"})
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields(fields)
	}

	limit := req.Limit
	if limit == 0 {
		limit = DefaultJobListLimit
	}

	jobs, err := s.repo.List(ctx, entity.JobFilter{Types: req.Types, Statuses: req.Statuses, Limit: limit})
	if err != nil {
		return nil, err
	}
	entity.SortForQueue(jobs)
	return jobs, nil
}

// JobDetail is a job plus its derived queue position: 0 while running,
// 1-based among active jobs while pending, nil once finished.
type JobDetail struct {
	*entity.Job
	QueuePosition *int `json:"queue_position,omitempty"`
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*JobDetail, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pos, err := s.QueuePosition(ctx, job)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: job, QueuePosition: pos}, nil
}

func (s *JobService) QueuePosition(ctx context.Context, job *entity.Job) (*int, error) {
	switch job.Status {
	case entity.StatusRunning:
		zero := 0
		return &zero, nil
	case entity.StatusPending:
		ahead, err := s.repo.CountActiveBefore(ctx, job.CreatedAt)
		if err != nil {
			return nil, err
		}
		pos := ahead + 1
		return &pos, nil
	default:
		return nil, nil
	}
}

// Cancel records the intent to stop a pending or running job. A running job
// stops at the worker's next checkpoint.
func (s *JobService) Cancel(ctx context.Context, id uuid.UUID, actor string) (*entity.Job, error) {
	job, err := s.repo.Cancel(ctx, id, actorOrUnknown(actor))
	if err != nil {
		return nil, err
	}
	s.log.Info("job cancelled", "job_id", job.ID, "type", job.Type, "cancelled_by", *job.CancelledBy)
	return job, nil
}

// Retry puts a finished job back in the queue. It is always allowed from error
// and cancelled; from completed only for types that support re-runs. The
// automatic retry budget is not consulted.
func (s *JobService) Retry(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Type.RetryableFrom()
	if !containsStatus(from, current.Status) {
		return nil, apperr.InvalidJobStatus(string(current.Status), string(entity.StatusPending))
	}

	job, err := s.repo.Retry(ctx, id, from)
	if err != nil {
		return nil, err
	}
	s.log.Info("job retried", "job_id", job.ID, "type", job.Type, "retry_count", job.RetryCount)
	s.notify(ctx, job.Type)
	return job, nil
}

func (s *JobService) notify(ctx context.Context, t entity.JobType) {
	if err := s.wake.Notify(ctx, t); err != nil {
		s.log.Warn("worker wake-up failed", "type", t, "error", err)
	}
}

func actorOrUnknown(actor string) string {
	if actor == "" {
		return entity.UnknownActor
	}
	return actor
}

func containsStatus(list []entity.JobStatus, s entity.JobStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
