package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/scoring"
	"curation-service/internal/service"
)

func TestSettingsService_Get_Defaults(t *testing.T) {
	store := newMemSettings()
	store.values[entity.SettingSearchDefaults] = json.RawMessage(`{"limit":40}`)
	store.values[entity.SettingNoveltyConfig] = json.RawMessage(`"not an object"`)
	svc := service.NewSettingsService(store, staticFrequencies{}, logger.Nop())

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultRankingWeights(), got.RankingWeights)
	assert.Equal(t, entity.DefaultNoveltyConfig(), got.NoveltyConfig)
	assert.Equal(t, 40, got.SearchDefaults.Limit)
	assert.Equal(t, 0.2, got.SearchDefaults.SimilarityThreshold)
	assert.Equal(t, entity.DefaultPicksDefaults(), got.PicksDefaults)
}

func TestSettingsService_Patch_Independent(t *testing.T) {
	ctx := context.Background()
	store := newMemSettings()
	svc := service.NewSettingsService(store, staticFrequencies{}, logger.Nop())

	picks := entity.PicksDefaults{MinScore: 8, Limit: 3}
	got, err := svc.Patch(ctx, entity.SettingsPatch{PicksDefaults: &picks})
	require.NoError(t, err)
	assert.Equal(t, picks, got.PicksDefaults)
	assert.Equal(t, entity.DefaultSearchDefaults(), got.SearchDefaults)
	assert.Len(t, store.values, 1)

	got, err = svc.Patch(ctx, entity.SettingsPatch{RankingWeights: validWeights()})
	require.NoError(t, err)
	assert.Equal(t, validWeights(), got.RankingWeights)
	assert.Equal(t, picks, got.PicksDefaults)
}

func TestSettingsService_Patch_Validation(t *testing.T) {
	ctx := context.Background()
	store := newMemSettings()
	svc := service.NewSettingsService(store, staticFrequencies{}, logger.Nop())

	_, err := svc.Patch(ctx, entity.SettingsPatch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	novelty := entity.DefaultNoveltyConfig()
	novelty.MaxMultiplier = 0.5
	search := entity.SearchDefaults{SimilarityThreshold: 2, Limit: 20}
	_, err = svc.Patch(ctx, entity.SettingsPatch{
		RankingWeights: entity.Weights{"drama": 12},
		NoveltyConfig:  &novelty,
		SearchDefaults: &search,
	})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)

	fields := map[string]bool{}
	for _, f := range ae.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["ranking_weights.drama"])
	assert.True(t, fields["ranking_weights.news_value"])
	assert.True(t, fields["novelty_config.max_multiplier"])
	assert.True(t, fields["search_defaults.similarity_threshold"])
	assert.Empty(t, store.values, "nothing is written when any setting is invalid")
}

func TestSettingsService_NoveltyPreview(t *testing.T) {
	ctx := context.Background()
	svc := service.NewSettingsService(newMemSettings(), staticFrequencies{"lost_pet": 120}, logger.Nop())

	count := 17.5
	got, err := svc.NoveltyPreview(ctx, service.NoveltyPreviewRequest{Count: &count})
	require.NoError(t, err)
	assert.InDelta(t, 1.25, got.Multiplier, 1e-9)
	assert.Equal(t, scoring.Neutral, got.Status)

	got, err = svc.NoveltyPreview(ctx, service.NoveltyPreviewRequest{Category: "lost_pet"})
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Count)
	assert.Equal(t, 0.2, got.Multiplier)
	assert.Equal(t, scoring.Penalized, got.Status)

	// same function the recompute job applies
	m, status := scoring.Multiplier(120, entity.DefaultNoveltyConfig())
	assert.Equal(t, m, got.Multiplier)
	assert.Equal(t, status, got.Status)

	_, err = svc.NoveltyPreview(ctx, service.NoveltyPreviewRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
