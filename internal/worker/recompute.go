package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/repository/postgresql"
	"curation-service/internal/scoring"
	"curation-service/internal/service"
)

// ScoreStore is what the recompute job reads and writes.
type ScoreStore interface {
	CountScored(ctx context.Context) (int, error)
	ScoreBatch(ctx context.Context, after uuid.UUID, limit int) ([]postgresql.ScoreRow, error)
	TopicFrequencies(ctx context.Context) (map[string]int, error)
	WeightsFor(ctx context.Context, configID uuid.UUID) (entity.Weights, error)
	Stage(ctx context.Context, jobID, configID uuid.UUID, scores []postgresql.StagedScore) error
	ApplyStaged(ctx context.Context, jobID, configID uuid.UUID) error
	CleanupStaging(ctx context.Context, jobID uuid.UUID) error
}

const (
	recomputeBatchSize = 500
	// checkpoint and progress cadence, in batches
	recomputeCheckEvery = 5
)

// Recompute computes every post's final score for one weight configuration.
// Scores are staged under the job id and applied in a single step at the end,
// so a failed or cancelled run leaves the published scores untouched.
type Recompute struct {
	scores   ScoreStore
	settings service.SettingsReader
	log      *logger.Logger
}

func NewRecompute(scores ScoreStore, settings service.SettingsReader, log *logger.Logger) *Recompute {
	return &Recompute{scores: scores, settings: settings, log: log.With("component", "recompute")}
}

func (r *Recompute) Run(ctx context.Context, job *entity.Job, params entity.JobParams, cp *Checkpoint) (err error) {
	p, ok := params.(entity.RecomputeParams)
	if !ok {
		return apperr.Validation("recompute job got params of another type")
	}
	configID := p.WeightConfigID

	defer func() {
		if err == nil {
			return
		}
		if cerr := r.scores.CleanupStaging(context.WithoutCancel(ctx), job.ID); cerr != nil {
			r.log.Warn("staging cleanup failed", "job_id", job.ID, "error", cerr)
		}
	}()

	weights, err := r.scores.WeightsFor(ctx, configID)
	if err != nil {
		return err
	}
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return err
	}
	freqs, err := r.scores.TopicFrequencies(ctx)
	if err != nil {
		return err
	}
	total, err := r.scores.CountScored(ctx)
	if err != nil {
		return err
	}
	if err := cp.Progress(ctx, 0, total); err != nil {
		return err
	}

	var (
		after     = uuid.Nil
		processed int
		batches   int
	)
	for {
		rows, err := r.scores.ScoreBatch(ctx, after, recomputeBatchSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		staged := make([]postgresql.StagedScore, len(rows))
		for i, row := range rows {
			novelty := scoring.PostNovelty(row.Categories, freqs, settings.NoveltyConfig, total)
			staged[i] = postgresql.StagedScore{
				PostID:     row.PostID,
				FinalScore: scoring.FinalScore(row.Scores, weights, novelty),
			}
		}
		if err := r.scores.Stage(ctx, job.ID, configID, staged); err != nil {
			return err
		}

		processed += len(rows)
		after = rows[len(rows)-1].ID
		batches++

		if batches%recomputeCheckEvery == 0 {
			if err := r.checkpoint(ctx, cp, processed, total); err != nil {
				return err
			}
		}
		if len(rows) < recomputeBatchSize {
			break
		}
	}

	if err := r.checkpoint(ctx, cp, processed, total); err != nil {
		return err
	}
	if err := r.scores.ApplyStaged(ctx, job.ID, configID); err != nil {
		return err
	}
	r.log.Info("final scores applied", "job_id", job.ID, "weight_config_id", configID, "posts", processed)
	return nil
}

func (r *Recompute) checkpoint(ctx context.Context, cp *Checkpoint, processed, total int) error {
	if err := cp.Check(ctx); err != nil {
		if errors.Is(err, ErrCancelled) {
			// record how far the run got; the row stays cancelled
			_ = cp.Progress(ctx, processed, total)
		}
		return err
	}
	return cp.Progress(ctx, processed, total)
}
