package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/service"
)

func newJobService(t *testing.T) (*service.JobService, *memJobs, *memConfigs, *recordingNotifier) {
	t.Helper()
	jobs := newMemJobs()
	configs := newMemConfigs()
	wake := &recordingNotifier{}
	return service.NewJobService(jobs, configs, wake, logger.Nop()), jobs, configs, wake
}

func recomputeParams(t *testing.T, id uuid.UUID) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(entity.RecomputeParams{WeightConfigID: id})
	require.NoError(t, err)
	return raw
}

func TestJobService_Create_PendingWithZeroRetries(t *testing.T) {
	ctx := context.Background()
	svc, _, configs, wake := newJobService(t)

	cfg, err := configs.Create(ctx, &entity.WeightConfig{Name: "w", Weights: validWeights()})
	require.NoError(t, err)

	job, err := svc.Create(ctx, service.CreateJobRequest{
		Type:      entity.JobTypeRecomputeFinalScores,
		Params:    recomputeParams(t, cfg.ID),
		CreatedBy: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPending, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Equal(t, entity.DefaultMaxRetries, job.MaxRetries)
	assert.Equal(t, "alice", job.CreatedBy)
	assert.Equal(t, []entity.JobType{entity.JobTypeRecomputeFinalScores}, wake.types)
}

func TestJobService_Create_DuplicatesAreNotCollapsed(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newJobService(t)
	params := json.RawMessage(`{"url":"https://nextdoor.com/p/abc"}`)

	a, err := svc.Create(ctx, service.CreateJobRequest{Type: entity.JobTypeFetchPermalink, Params: params})
	require.NoError(t, err)
	b, err := svc.Create(ctx, service.CreateJobRequest{Type: entity.JobTypeFetchPermalink, Params: params})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, entity.UnknownActor, a.CreatedBy)
}

func TestJobService_Create_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, wake := newJobService(t)
	negative := -1

	tests := []struct {
		name string
		req  service.CreateJobRequest
		kind apperr.Kind
	}{
		{"unknown type", service.CreateJobRequest{Type: "reticulate", Params: json.RawMessage(`{}`)}, apperr.KindValidation},
		{"bad feed", service.CreateJobRequest{Type: entity.JobTypeRunScraper, Params: json.RawMessage(`{"feed_type":"weekly"}`)}, apperr.KindValidation},
		{"negative retries", service.CreateJobRequest{Type: entity.JobTypeRunScraper, Params: json.RawMessage(`{"feed_type":"recent"}`), MaxRetries: &negative}, apperr.KindValidation},
		{"missing config", service.CreateJobRequest{Type: entity.JobTypeRecomputeFinalScores, Params: recomputeParams(t, uuid.New())}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
	assert.Empty(t, wake.types)
}

func TestJobService_Cancel_StateMachine(t *testing.T) {
	ctx := context.Background()

	for _, from := range []entity.JobStatus{entity.StatusPending, entity.StatusRunning} {
		t.Run(string(from)+" cancels", func(t *testing.T) {
			svc, jobs, _, _ := newJobService(t)
			j := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: from})

			got, err := svc.Cancel(ctx, j.ID, "bob")
			require.NoError(t, err)
			assert.Equal(t, entity.StatusCancelled, got.Status)
			require.NotNil(t, got.CancelledAt)
			require.NotNil(t, got.CancelledBy)
			assert.Equal(t, "bob", *got.CancelledBy)

			_, err = svc.Cancel(ctx, j.ID, "bob")
			assert.ErrorIs(t, err, apperr.ErrInvalidJobStatus)
		})
	}

	for _, from := range []entity.JobStatus{entity.StatusCompleted, entity.StatusError, entity.StatusCancelled} {
		t.Run(string(from)+" rejects", func(t *testing.T) {
			svc, jobs, _, _ := newJobService(t)
			j := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: from})

			_, err := svc.Cancel(ctx, j.ID, "bob")
			require.ErrorIs(t, err, apperr.ErrInvalidJobStatus)
			assert.Contains(t, err.Error(), string(from))

			stored, _ := jobs.GetByID(ctx, j.ID)
			assert.Equal(t, from, stored.Status)
		})
	}

	t.Run("unknown id", func(t *testing.T) {
		svc, _, _, _ := newJobService(t)
		_, err := svc.Cancel(ctx, uuid.New(), "bob")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestJobService_Retry(t *testing.T) {
	ctx := context.Background()

	for _, from := range []entity.JobStatus{entity.StatusError, entity.StatusCancelled} {
		t.Run(string(from), func(t *testing.T) {
			svc, jobs, _, wake := newJobService(t)
			msg := "boom"
			j := jobs.put(&entity.Job{
				Type:         entity.JobTypeRunScraper,
				Status:       from,
				RetryCount:   3,
				MaxRetries:   3,
				ErrorMessage: &msg,
			})

			got, err := svc.Retry(ctx, j.ID)
			require.NoError(t, err)
			assert.Equal(t, entity.StatusPending, got.Status)
			assert.Equal(t, 4, got.RetryCount)
			assert.Nil(t, got.ErrorMessage)
			assert.Nil(t, got.CancelledAt)
			assert.NotNil(t, got.LastRetryAt)
			assert.GreaterOrEqual(t, got.MaxRetries, got.RetryCount)
			assert.Equal(t, []entity.JobType{entity.JobTypeRunScraper}, wake.types)
		})
	}

	t.Run("active jobs are rejected", func(t *testing.T) {
		svc, jobs, _, _ := newJobService(t)
		for _, st := range entity.ActiveStatuses {
			j := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: st})
			_, err := svc.Retry(ctx, j.ID)
			assert.ErrorIs(t, err, apperr.ErrInvalidJobStatus)
		}
	})

	t.Run("completed rerun depends on type", func(t *testing.T) {
		svc, jobs, _, _ := newJobService(t)

		rerun := jobs.put(&entity.Job{Type: entity.JobTypeRecomputeFinalScores, Status: entity.StatusCompleted})
		got, err := svc.Retry(ctx, rerun.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPending, got.Status)

		backfill := jobs.put(&entity.Job{Type: entity.JobTypeBackfillDimension, Status: entity.StatusCompleted})
		_, err = svc.Retry(ctx, backfill.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidJobStatus)
	})
}

func TestJobService_List_QueueOrder(t *testing.T) {
	ctx := context.Background()
	svc, jobs, _, _ := newJobService(t)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: entity.StatusPending, CreatedAt: t0})
	b := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: entity.StatusRunning, CreatedAt: t0.Add(time.Minute)})
	c := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: entity.StatusPending, CreatedAt: t0.Add(2 * time.Minute)})

	got, err := svc.List(ctx, service.ListJobsRequest{Statuses: entity.ActiveStatuses})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uuid.UUID{b.ID, a.ID, c.ID}, []uuid.UUID{got[0].ID, got[1].ID, got[2].ID})
}

func TestJobService_List_Validation(t *testing.T) {
	svc, _, _, _ := newJobService(t)
	_, err := svc.List(context.Background(), service.ListJobsRequest{Statuses: []entity.JobStatus{"paused"}, Limit: 1000})
	require.ErrorIs(t, err, apperr.ErrValidation)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Len(t, ae.Fields, 2)
}

func TestJobService_Get_QueuePosition(t *testing.T) {
	ctx := context.Background()
	svc, jobs, _, _ := newJobService(t)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	running := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: entity.StatusRunning, CreatedAt: t0.Add(time.Minute)})
	first := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: entity.StatusPending, CreatedAt: t0})
	second := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: entity.StatusPending, CreatedAt: t0.Add(2 * time.Minute)})
	done := jobs.put(&entity.Job{Type: entity.JobTypeRunScraper, Status: entity.StatusCompleted, CreatedAt: t0.Add(-time.Hour)})

	cases := map[uuid.UUID]*int{running.ID: intPtr(0), first.ID: intPtr(1), second.ID: intPtr(3), done.ID: nil}
	for id, want := range cases {
		got, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.QueuePosition, "job %s", got.Status)
	}
}

func intPtr(v int) *int { return &v }
