package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/metrics"
)

// JobStore is the worker's side of the job ledger. Every transition is guarded
// on the row being running and fails with InvalidJobStatus otherwise.
type JobStore interface {
	Complete(ctx context.Context, id uuid.UUID, progress *int) error
	Fail(ctx context.Context, id uuid.UUID, msg string) error
	RequeueForRetry(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress, total *int) error
	GetStatus(ctx context.Context, id uuid.UUID) (entity.JobStatus, error)
}

// Handler runs one job type. It returns ErrCancelled when a checkpoint saw the
// job cancelled.
type Handler func(ctx context.Context, job *entity.Job, params entity.JobParams, cp *Checkpoint) error

var ErrCancelled = errors.New("job cancelled")

// Checkpoint is how a handler cooperates with cancellation and reports progress.
type Checkpoint struct {
	store JobStore
	id    uuid.UUID
}

// Check returns ErrCancelled once the job has left the running state.
func (c *Checkpoint) Check(ctx context.Context) error {
	s, err := c.store.GetStatus(ctx, c.id)
	if err != nil {
		return err
	}
	if s != entity.StatusRunning {
		return ErrCancelled
	}
	return nil
}

func (c *Checkpoint) Progress(ctx context.Context, progress, total int) error {
	return c.store.UpdateProgress(ctx, c.id, &progress, &total)
}

type Processor struct {
	store    JobStore
	handlers map[entity.JobType]Handler
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewProcessor(store JobStore, m *metrics.Metrics, log *logger.Logger) *Processor {
	return &Processor{
		store:    store,
		handlers: map[entity.JobType]Handler{},
		metrics:  m,
		log:      log.With("component", "processor"),
	}
}

func (p *Processor) Handle(t entity.JobType, h Handler) {
	p.handlers[t] = h
}

// Process runs a claimed job and records its outcome. Failures are recorded on
// the job row, not returned.
func (p *Processor) Process(ctx context.Context, job *entity.Job) {
	start := time.Now()
	log := p.log.With("job_id", job.ID, "type", job.Type, "retry_count", job.RetryCount)
	log.Info("job started")

	runErr := p.run(ctx, job)

	// the outcome is written even when shutdown interrupted the handler
	ctx = context.WithoutCancel(ctx)
	outcome := p.finish(ctx, job, runErr, log)

	elapsed := time.Since(start)
	p.metrics.IncJob(string(job.Type), outcome)
	p.metrics.ObserveJobDuration(string(job.Type), elapsed.Seconds())
	log.Info("job finished", "outcome", outcome, "duration_ms", elapsed.Milliseconds())
}

func (p *Processor) run(ctx context.Context, job *entity.Job) error {
	params, err := entity.DecodeParams(job.Type, job.Params)
	if err != nil {
		return err
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		return apperr.Validation("no handler for job type " + string(job.Type))
	}
	return h(ctx, job, params, &Checkpoint{store: p.store, id: job.ID})
}

func (p *Processor) finish(ctx context.Context, job *entity.Job, runErr error, log *logger.Logger) string {
	switch {
	case runErr == nil:
		if err := p.store.Complete(ctx, job.ID, nil); err != nil {
			return p.lost(log, "complete", err, metrics.OutcomeCancelled)
		}
		return metrics.OutcomeCompleted

	case errors.Is(runErr, ErrCancelled):
		log.Info("job stopped at checkpoint")
		return metrics.OutcomeCancelled
	}

	p.metrics.IncJobError(string(job.Type), string(apperr.KindOf(runErr)))

	if retryable(runErr) && job.RetryCount < job.MaxRetries {
		log.Warn("job failed, requeueing", "error", runErr, "max_retries", job.MaxRetries)
		err := p.store.RequeueForRetry(ctx, job.ID)
		if err == nil {
			return metrics.OutcomeRetried
		}
		if errors.Is(err, apperr.ErrInvalidJobStatus) {
			return p.lost(log, "requeue", err, metrics.OutcomeCancelled)
		}
		log.Error("requeue failed", "error", err)
	}

	log.Warn("job failed", "error", runErr)
	if err := p.store.Fail(ctx, job.ID, runErr.Error()); err != nil {
		return p.lost(log, "fail", err, metrics.OutcomeCancelled)
	}
	return metrics.OutcomeError
}

// lost logs a transition that did not apply. The usual cause is a cancel that
// landed while the job ran; the cancel stands.
func (p *Processor) lost(log *logger.Logger, op string, err error, outcome string) string {
	if errors.Is(err, apperr.ErrInvalidJobStatus) {
		log.Warn("job transition lost", "op", op, "error", err)
		return outcome
	}
	log.Error("job transition failed", "op", op, "error", err)
	return metrics.OutcomeError
}

// retryable is false for failures a rerun cannot fix: bad params, missing rows,
// missing schema objects.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound:
		return false
	case apperr.KindUpstream:
		return apperr.IsTransient(err)
	}
	return true
}
