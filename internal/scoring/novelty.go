package scoring

import (
	"math"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

type NoveltyStatus string

const (
	Boosted   NoveltyStatus = "boosted"
	Neutral   NoveltyStatus = "neutral"
	Penalized NoveltyStatus = "penalized"
)

// ColdStartThreshold is the number of scored posts below which frequencies are
// too sparse to judge novelty.
const ColdStartThreshold = 30

// Multiplier maps a topic's rolling occurrence count to a score multiplier.
// It is used by the recompute worker and by the preview endpoint alike.
func Multiplier(count float64, cfg entity.NoveltyConfig) (float64, NoveltyStatus) {
	rare := cfg.FrequencyThresholds.Rare
	common := cfg.FrequencyThresholds.Common
	veryCommon := cfg.FrequencyThresholds.VeryCommon
	maxMult, minMult := cfg.MaxMultiplier, cfg.MinMultiplier

	switch {
	case count <= rare:
		return maxMult, Boosted
	case count <= common:
		if common <= rare {
			return 1.0, Neutral
		}
		ratio := (count - rare) / (common - rare)
		return maxMult - ratio*(maxMult-1.0), Neutral
	case count <= veryCommon:
		if veryCommon <= common {
			return minMult, Neutral
		}
		ratio := (count - common) / (veryCommon - common)
		return 1.0 - ratio*(1.0-minMult), Neutral
	default:
		return minMult, Penalized
	}
}

// PostNovelty averages the rolling counts of a post's categories and returns the
// resulting multiplier. Posts without categories, and any post while the corpus
// is in cold start, get 1.0.
func PostNovelty(categories []string, freqs map[string]int, cfg entity.NoveltyConfig, totalScored int) float64 {
	if len(categories) == 0 || len(freqs) == 0 || totalScored < ColdStartThreshold {
		return 1.0
	}
	var sum int
	for _, c := range categories {
		sum += freqs[c]
	}
	avg := float64(sum) / float64(len(categories))
	m, _ := Multiplier(avg, cfg)
	return m
}

// ValidateNoveltyConfig requires ascending thresholds and 0 < min ≤ 1 ≤ max.
func ValidateNoveltyConfig(cfg entity.NoveltyConfig) error {
	var fields []apperr.FieldError
	t := cfg.FrequencyThresholds

	if bad(t.Rare) || t.Rare < 0 {
		fields = append(fields, apperr.FieldError{Field: "frequency_thresholds.rare", Message: "must be a non-negative number"})
	}
	if bad(t.Common) || t.Common <= t.Rare {
		fields = append(fields, apperr.FieldError{Field: "frequency_thresholds.common", Message: "must be greater than rare"})
	}
	if bad(t.VeryCommon) || t.VeryCommon <= t.Common {
		fields = append(fields, apperr.FieldError{Field: "frequency_thresholds.very_common", Message: "must be greater than common"})
	}
	if bad(cfg.MinMultiplier) || cfg.MinMultiplier <= 0 || cfg.MinMultiplier > 1 {
		fields = append(fields, apperr.FieldError{Field: "min_multiplier", Message: "must be in (0, 1]"})
	}
	if bad(cfg.MaxMultiplier) || cfg.MaxMultiplier < 1 {
		fields = append(fields, apperr.FieldError{Field: "max_multiplier", Message: "must be at least 1"})
	}
	if cfg.WindowDays <= 0 {
		fields = append(fields, apperr.FieldError{Field: "window_days", Message: "must be positive"})
	}

	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

func bad(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
