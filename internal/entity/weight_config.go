package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Scoring dimensions produced by the external scorer.
const (
	DimAbsurdity          = "absurdity"
	DimDrama              = "drama"
	DimDiscussionSpark    = "discussion_spark"
	DimEmotionalIntensity = "emotional_intensity"
	DimNewsValue          = "news_value"
	DimPodcastWorthy      = "podcast_worthy"
	DimReadability        = "readability"
)

// RequiredDimensions must appear in every weight map.
var RequiredDimensions = []string{
	DimAbsurdity,
	DimDiscussionSpark,
	DimDrama,
	DimEmotionalIntensity,
	DimNewsValue,
}

// OptionalDimensions were added after the first configurations were saved;
// they may be weighted but are not required.
var OptionalDimensions = []string{
	DimPodcastWorthy,
	DimReadability,
}

const (
	MinWeight = 0.0
	MaxWeight = 10.0

	// MissingDimensionScore stands in for a dimension the scorer has not produced yet.
	MissingDimensionScore = 5.0
	MaxDimensionScore     = 10.0
)

func IsKnownDimension(name string) bool {
	for _, d := range RequiredDimensions {
		if d == name {
			return true
		}
	}
	for _, d := range OptionalDimensions {
		if d == name {
			return true
		}
	}
	return false
}

// KnownDimensions returns every dimension name, sorted.
func KnownDimensions() []string {
	out := append(append([]string{}, RequiredDimensions...), OptionalDimensions...)
	sort.Strings(out)
	return out
}

// Weights maps a scoring dimension to its weight.
type Weights map[string]float64

type WeightConfig struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Weights     Weights   `json:"weights"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultConfigName labels an unnamed configuration with its creation time.
func DefaultConfigName(now time.Time) string {
	return "Config " + now.UTC().Format(time.RFC3339)
}
