package entity

import "time"

type FrequencyThresholds struct {
	Rare       float64 `json:"rare"`
	Common     float64 `json:"common"`
	VeryCommon float64 `json:"very_common"`
}

// NoveltyConfig tunes the novelty multiplier. It has a single current value.
type NoveltyConfig struct {
	FrequencyThresholds FrequencyThresholds `json:"frequency_thresholds"`
	MinMultiplier       float64             `json:"min_multiplier"`
	MaxMultiplier       float64             `json:"max_multiplier"`
	WindowDays          int                 `json:"window_days"`
}

func DefaultNoveltyConfig() NoveltyConfig {
	return NoveltyConfig{
		FrequencyThresholds: FrequencyThresholds{Rare: 5, Common: 30, VeryCommon: 100},
		MinMultiplier:       0.2,
		MaxMultiplier:       1.5,
		WindowDays:          30,
	}
}

// TopicFrequency is maintained by the scoring worker; the core only reads it.
type TopicFrequency struct {
	Category    string    `json:"category"`
	Count30d    int       `json:"count_30d"`
	LastUpdated time.Time `json:"last_updated"`
}
