package entity

// Keys of the generic settings store.
const (
	SettingActiveWeightConfigID = "active_weight_config_id"
	SettingRankingWeights       = "ranking_weights"
	SettingNoveltyConfig        = "novelty_config"
	SettingSearchDefaults       = "search_defaults"
	SettingPicksDefaults        = "picks_defaults"
)

type SearchDefaults struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	Limit               int     `json:"limit"`
}

func DefaultSearchDefaults() SearchDefaults {
	return SearchDefaults{SimilarityThreshold: 0.2, Limit: 20}
}

type PicksDefaults struct {
	MinScore   float64 `json:"min_score"`
	Limit      int     `json:"limit"`
	UnusedOnly bool    `json:"unused_only"`
}

func DefaultPicksDefaults() PicksDefaults {
	return PicksDefaults{MinScore: 7, Limit: 5, UnusedOnly: true}
}

// DefaultRankingWeights weighs every required dimension equally.
func DefaultRankingWeights() Weights {
	w := Weights{}
	for _, d := range RequiredDimensions {
		w[d] = 1
	}
	return w
}

type Settings struct {
	RankingWeights Weights        `json:"ranking_weights"`
	NoveltyConfig  NoveltyConfig  `json:"novelty_config"`
	SearchDefaults SearchDefaults `json:"search_defaults"`
	PicksDefaults  PicksDefaults  `json:"picks_defaults"`
}

// SettingsPatch carries only the settings a caller wants to change.
type SettingsPatch struct {
	RankingWeights Weights         `json:"ranking_weights,omitempty"`
	NoveltyConfig  *NoveltyConfig  `json:"novelty_config,omitempty"`
	SearchDefaults *SearchDefaults `json:"search_defaults,omitempty"`
	PicksDefaults  *PicksDefaults  `json:"picks_defaults,omitempty"`
}

func (p SettingsPatch) Empty() bool {
	return p.RankingWeights == nil && p.NoveltyConfig == nil && p.SearchDefaults == nil && p.PicksDefaults == nil
}
