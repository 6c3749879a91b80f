package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curation-service/internal/apperr"
	"curation-service/internal/cache"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/service"
)

func newConfigService(store *memConfigs) *service.ConfigService {
	r := service.NewActiveConfigResolver(store, cache.NewMemory(), cache.Noop{}, 0, logger.Nop(), nil)
	return service.NewConfigService(store, r, logger.Nop())
}

func TestConfigService_Create_FieldErrors(t *testing.T) {
	svc := newConfigService(newMemConfigs())
	ctx := context.Background()

	tests := []struct {
		name    string
		weights entity.Weights
		field   string
		message string
	}{
		{
			name: "out of range",
			weights: entity.Weights{
				"absurdity": 11, "drama": 1, "discussion_spark": 1, "emotional_intensity": 1, "news_value": 1,
			},
			field:   "weights.absurdity",
			message: "between 0 and 10",
		},
		{
			name: "missing",
			weights: entity.Weights{
				"absurdity": 1, "drama": 1, "discussion_spark": 1, "emotional_intensity": 1,
			},
			field:   "weights.news_value",
			message: "is required",
		},
		{
			name: "unknown",
			weights: entity.Weights{
				"absurdity": 1, "drama": 1, "discussion_spark": 1, "emotional_intensity": 1, "news_value": 1, "foo": 2,
			},
			field:   "weights.foo",
			message: "not a known scoring dimension",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, service.CreateConfigRequest{Weights: tt.weights})
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperr.KindValidation, ae.Kind)
			require.Len(t, ae.Fields, 1)
			assert.Equal(t, tt.field, ae.Fields[0].Field)
			assert.Contains(t, ae.Fields[0].Message, tt.message)
		})
	}
}

func TestConfigService_Create_DefaultName(t *testing.T) {
	svc := newConfigService(newMemConfigs())
	cfg, err := svc.Create(context.Background(), service.CreateConfigRequest{Weights: validWeights(), CreatedBy: "carol"})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Name)
	assert.Equal(t, "carol", cfg.CreatedBy)
}

func TestConfigService_Delete_Guards(t *testing.T) {
	ctx := context.Background()
	store := newMemConfigs()
	svc := newConfigService(store)

	active := seedConfig(t, store, false)
	require.NoError(t, svc.Activate(ctx, active))
	err := svc.Delete(ctx, active)
	assert.ErrorIs(t, err, apperr.ErrCannotDeleteActive)

	referenced := seedConfig(t, store, false)
	store.pendingRefs[referenced] = 1
	err = svc.Delete(ctx, referenced)
	assert.ErrorIs(t, err, apperr.ErrCannotDeleteWithActiveJob)

	free := seedConfig(t, store, false)
	require.NoError(t, svc.Delete(ctx, free))
	_, err = svc.Get(ctx, free)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConfigService_RequireActive_Messages(t *testing.T) {
	ctx := context.Background()
	store := newMemConfigs()
	svc := newConfigService(store)

	_, err := svc.RequireActive(ctx)
	require.ErrorIs(t, err, apperr.ErrNoActiveConfiguration)
	assert.Contains(t, err.Error(), "no weight configurations exist")

	seedConfig(t, store, false)
	svc = newConfigService(store)
	_, err = svc.RequireActive(ctx)
	require.ErrorIs(t, err, apperr.ErrNoActiveConfiguration)
	assert.Contains(t, err.Error(), "none is active")
}

func TestRescoreService_Create(t *testing.T) {
	ctx := context.Background()
	store := newMemConfigs()
	configs := newConfigService(store)
	jobs := service.NewJobService(newMemJobs(), store, nil, logger.Nop())
	svc := service.NewRescoreService(configs, jobs)

	t.Run("inline weights create a config", func(t *testing.T) {
		res, err := svc.Create(ctx, service.RescoreRequest{Weights: validWeights(), CreatedBy: "dan"})
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPending, res.Job.Status)
		assert.Equal(t, entity.JobTypeRecomputeFinalScores, res.Job.Type)
		assert.JSONEq(t, `{"weight_config_id":"`+res.WeightConfigID.String()+`"}`, string(res.Job.Params))

		_, err = configs.Get(ctx, res.WeightConfigID)
		assert.NoError(t, err)
	})

	t.Run("use active without one", func(t *testing.T) {
		fresh := newMemConfigs()
		svc := service.NewRescoreService(newConfigService(fresh), service.NewJobService(newMemJobs(), fresh, nil, logger.Nop()))
		_, err := svc.Create(ctx, service.RescoreRequest{UseActive: true})
		assert.ErrorIs(t, err, apperr.ErrNoActiveConfiguration)
	})

	t.Run("use active", func(t *testing.T) {
		id := seedConfig(t, store, false)
		require.NoError(t, configs.Activate(ctx, id))
		res, err := svc.Create(ctx, service.RescoreRequest{UseActive: true})
		require.NoError(t, err)
		assert.Equal(t, id, res.WeightConfigID)
	})

	t.Run("both or neither", func(t *testing.T) {
		_, err := svc.Create(ctx, service.RescoreRequest{UseActive: true, Weights: validWeights()})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = svc.Create(ctx, service.RescoreRequest{})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}
