package service

import (
	"context"
	"encoding/json"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/scoring"
)

// SettingsRepository is the generic key/value store (implementation: postgresql.SettingsRepository).
type SettingsRepository interface {
	GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	UpsertMany(ctx context.Context, values map[string]json.RawMessage) error
}

// FrequencyLookup reads one category's rolling count.
type FrequencyLookup interface {
	LookupFrequency(ctx context.Context, category string) (int, error)
}

var settingKeys = []string{
	entity.SettingRankingWeights,
	entity.SettingNoveltyConfig,
	entity.SettingSearchDefaults,
	entity.SettingPicksDefaults,
}

type SettingsService struct {
	repo  SettingsRepository
	freqs FrequencyLookup
	log   *logger.Logger
}

func NewSettingsService(repo SettingsRepository, freqs FrequencyLookup, log *logger.Logger) *SettingsService {
	return &SettingsService{repo: repo, freqs: freqs, log: log.With("component", "settings")}
}

// Get returns every setting. Missing or unreadable values fall back to defaults.
func (s *SettingsService) Get(ctx context.Context) (entity.Settings, error) {
	raw, err := s.repo.GetMany(ctx, settingKeys)
	if err != nil {
		return entity.Settings{}, err
	}

	out := entity.Settings{
		RankingWeights: entity.DefaultRankingWeights(),
		NoveltyConfig:  entity.DefaultNoveltyConfig(),
		SearchDefaults: entity.DefaultSearchDefaults(),
		PicksDefaults:  entity.DefaultPicksDefaults(),
	}
	s.decode(raw, entity.SettingRankingWeights, &out.RankingWeights)
	s.decode(raw, entity.SettingNoveltyConfig, &out.NoveltyConfig)
	s.decode(raw, entity.SettingSearchDefaults, &out.SearchDefaults)
	s.decode(raw, entity.SettingPicksDefaults, &out.PicksDefaults)
	return out, nil
}

// decode overlays the stored JSON onto dst, keeping dst's defaults for absent fields.
func (s *SettingsService) decode(raw map[string]json.RawMessage, key string, dst interface{}) {
	v, ok := raw[key]
	if !ok || len(v) == 0 || string(v) == "null" {
		return
	}
	if err := json.Unmarshal(v, dst); err != nil {
		s.log.Warn("stored setting unreadable, using default", "key", key, "error", err)
	}
}

// Patch validates and upserts only the settings present in p.
func (s *SettingsService) Patch(ctx context.Context, p entity.SettingsPatch) (entity.Settings, error) {
	if p.Empty() {
		return entity.Settings{}, apperr.Validation("no settings to update")
	}

	var fields []apperr.FieldError
	collect := func(err error, prefix string) {
		if err == nil {
			return
		}
		if pe, ok := prefixFields(err, prefix).(*apperr.Error); ok {
			fields = append(fields, pe.Fields...)
		}
	}
	values := map[string]json.RawMessage{}

	if p.RankingWeights != nil {
		collect(scoring.ValidateWeights(p.RankingWeights), entity.SettingRankingWeights)
		values[entity.SettingRankingWeights] = mustJSON(p.RankingWeights)
	}
	if p.NoveltyConfig != nil {
		collect(scoring.ValidateNoveltyConfig(*p.NoveltyConfig), entity.SettingNoveltyConfig)
		values[entity.SettingNoveltyConfig] = mustJSON(p.NoveltyConfig)
	}
	if p.SearchDefaults != nil {
		d := p.SearchDefaults
		if d.SimilarityThreshold < 0 || d.SimilarityThreshold > 1 {
			fields = append(fields, apperr.FieldError{Field: "search_defaults.similarity_threshold", Message: "must be between 0 and 1"})
		}
		if d.Limit < 1 || d.Limit > MaxSearchLimit {
			fields = append(fields, apperr.FieldError{Field: "search_defaults.limit", Message: "must be between 1 and 100"})
		}
		values[entity.SettingSearchDefaults] = mustJSON(d)
	}
	if p.PicksDefaults != nil {
		d := p.PicksDefaults
		if d.MinScore < 0 || d.MinScore > 10 {
			fields = append(fields, apperr.FieldError{Field: "picks_defaults.min_score", Message: "must be between 0 and 10"})
		}
		if d.Limit < 1 || d.Limit > 50 {
			fields = append(fields, apperr.FieldError{Field: "picks_defaults.limit", Message: "must be between 1 and 50"})
		}
		values[entity.SettingPicksDefaults] = mustJSON(d)
	}
	if len(fields) > 0 {
		return entity.Settings{}, apperr.ValidationFields(fields)
	}

	if err := s.repo.UpsertMany(ctx, values); err != nil {
		return entity.Settings{}, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	s.log.Info("settings updated", "keys", keys)
	return s.Get(ctx)
}

type NoveltyPreviewRequest struct {
	Count    *float64
	Category string
}

type NoveltyPreview struct {
	Category   string                `json:"category,omitempty"`
	Count      float64               `json:"count"`
	Multiplier float64               `json:"multiplier"`
	Status     scoring.NoveltyStatus `json:"status"`
	Config     entity.NoveltyConfig  `json:"config"`
}

// NoveltyPreview evaluates the multiplier for a count, or for a category's
// current rolling count, using the stored novelty config. It is the same
// function the recompute job applies.
func (s *SettingsService) NoveltyPreview(ctx context.Context, req NoveltyPreviewRequest) (*NoveltyPreview, error) {
	if req.Count == nil && req.Category == "" {
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "count", Message: "count or category is required"}})
	}
	if req.Count != nil && *req.Count < 0 {
		return nil, apperr.ValidationFields([]apperr.FieldError{{Field: "count", Message: "must not be negative"}})
	}

	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	var count float64
	if req.Count != nil {
		count = *req.Count
	} else {
		n, err := s.freqs.LookupFrequency(ctx, req.Category)
		if err != nil {
			return nil, err
		}
		count = float64(n)
	}

	m, status := scoring.Multiplier(count, settings.NoveltyConfig)
	return &NoveltyPreview{
		Category:   req.Category,
		Count:      count,
		Multiplier: m,
		Status:     status,
		Config:     settings.NoveltyConfig,
	}, nil
}

func mustJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
