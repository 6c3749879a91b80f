package worker

import (
	"context"
	"errors"
	"time"

	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/service"
)

// Claimer hands out the oldest pending job of the given types, marking it running.
type Claimer interface {
	ClaimNext(ctx context.Context, types []entity.JobType) (*entity.Job, bool, error)
}

const DefaultPollInterval = 30 * time.Second

// Runner executes jobs one at a time. Running a single Runner per deployment
// keeps at most one job in the running state.
type Runner struct {
	jobs      Claimer
	processor *Processor
	wake      service.Waiter
	types     []entity.JobType
	poll      time.Duration
	log       *logger.Logger
}

func NewRunner(jobs Claimer, processor *Processor, wake service.Waiter, types []entity.JobType, poll time.Duration, log *logger.Logger) *Runner {
	if len(types) == 0 {
		types = entity.AllJobTypes
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if wake == nil {
		wake = service.NoopWakeup{}
	}
	return &Runner{
		jobs:      jobs,
		processor: processor,
		wake:      wake,
		types:     types,
		poll:      poll,
		log:       log.With("component", "runner"),
	}
}

// Run claims and processes jobs until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("runner started", "types", r.types, "poll_interval", r.poll.String())
	defer r.log.Info("runner stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		claimed, err := r.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			r.log.Warn("claim failed", "error", err)
		}
		if claimed {
			continue
		}

		if _, err := r.wake.Wait(ctx, r.types, r.poll); err != nil && ctx.Err() == nil {
			// a broken wake-up channel only costs latency; fall back to polling
			r.log.Warn("wake-up wait failed", "error", err)
			sleep(ctx, r.poll)
		}
	}
}

// RunOnce processes at most one job. claimed is false when nothing was pending.
func (r *Runner) RunOnce(ctx context.Context) (claimed bool, err error) {
	job, ok, err := r.jobs.ClaimNext(ctx, r.types)
	if err != nil || !ok {
		return false, err
	}
	r.processor.Process(ctx, job)
	return true, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
