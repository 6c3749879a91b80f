package entity_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

func TestSortForQueue_RunningFirstThenPendingOldestFirst(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	a := &entity.Job{ID: uuid.New(), Status: entity.StatusPending, CreatedAt: t0}
	b := &entity.Job{ID: uuid.New(), Status: entity.StatusRunning, CreatedAt: t0.Add(time.Minute)}
	c := &entity.Job{ID: uuid.New(), Status: entity.StatusPending, CreatedAt: t0.Add(2 * time.Minute)}

	jobs := []*entity.Job{c, a, b}
	entity.SortForQueue(jobs)

	assert.Equal(t, []uuid.UUID{b.ID, a.ID, c.ID}, []uuid.UUID{jobs[0].ID, jobs[1].ID, jobs[2].ID})
}

func TestSortForQueue_FinishedMostRecentFirstAfterActive(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	doneEarly := t0.Add(time.Hour)
	cancelledLate := t0.Add(2 * time.Hour)

	done := &entity.Job{ID: uuid.New(), Status: entity.StatusCompleted, CreatedAt: t0, CompletedAt: &doneEarly}
	cancelled := &entity.Job{ID: uuid.New(), Status: entity.StatusCancelled, CreatedAt: t0.Add(-time.Hour), CancelledAt: &cancelledLate}
	pending := &entity.Job{ID: uuid.New(), Status: entity.StatusPending, CreatedAt: t0.Add(3 * time.Hour)}

	jobs := []*entity.Job{done, pending, cancelled}
	entity.SortForQueue(jobs)

	assert.Equal(t, pending.ID, jobs[0].ID)
	assert.Equal(t, cancelled.ID, jobs[1].ID)
	assert.Equal(t, done.ID, jobs[2].ID)
}

func TestDecodeParams_PerType(t *testing.T) {
	cfgID := uuid.New()

	p, err := entity.DecodeParams(entity.JobTypeRecomputeFinalScores, json.RawMessage(`{"weight_config_id":"`+cfgID.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, entity.RecomputeParams{WeightConfigID: cfgID}, p)

	p, err = entity.DecodeParams(entity.JobTypeRunScraper, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.ScraperParams{FeedType: entity.FeedRecent}, p)

	_, err = entity.DecodeParams(entity.JobTypeRunScraper, json.RawMessage(`{"feed_type":"hot"}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = entity.DecodeParams(entity.JobTypeFetchPermalink, json.RawMessage(`{"url":"not a url"}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	p, err = entity.DecodeParams(entity.JobTypeFetchPermalink, json.RawMessage(`{"url":"https://nextdoor.com/p/abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://nextdoor.com/p/abc", p.(entity.PermalinkParams).URL)

	_, err = entity.DecodeParams(entity.JobTypeBackfillDimension, json.RawMessage(`{"dimension":"vibes"}`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = entity.DecodeParams(entity.JobTypeRecomputeFinalScores, json.RawMessage(`[1,2]`))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = entity.DecodeParams("nope", nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRetryableFrom_BackfillCannotRerunCompleted(t *testing.T) {
	assert.Contains(t, entity.JobTypeRunScraper.RetryableFrom(), entity.StatusCompleted)
	assert.NotContains(t, entity.JobTypeBackfillDimension.RetryableFrom(), entity.StatusCompleted)
	for _, typ := range entity.AllJobTypes {
		assert.NotContains(t, typ.RetryableFrom(), entity.StatusPending)
		assert.NotContains(t, typ.RetryableFrom(), entity.StatusRunning)
	}
}
