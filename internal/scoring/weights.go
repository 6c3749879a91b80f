// Package scoring holds the pure scoring math shared by the API and the worker:
// weight validation, the novelty multiplier and the final score.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
)

// ValidateWeights checks a weight map and reports every problem per field.
func ValidateWeights(w entity.Weights) error {
	var fields []apperr.FieldError

	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := w[k]
		if !entity.IsKnownDimension(k) {
			fields = append(fields, apperr.FieldError{Field: k, Message: "is not a known scoring dimension"})
			continue
		}
		if math.IsNaN(v) || v < entity.MinWeight || v > entity.MaxWeight {
			fields = append(fields, apperr.FieldError{
				Field:   k,
				Message: fmt.Sprintf("must be between %g and %g (got %g)", entity.MinWeight, entity.MaxWeight, v),
			})
		}
	}

	for _, d := range entity.RequiredDimensions {
		if _, ok := w[d]; !ok {
			fields = append(fields, apperr.FieldError{Field: d, Message: "is required"})
		}
	}

	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// FinalScore combines dimension scores with weights, applies the novelty
// multiplier and clamps the result to [0, 10]. A dimension with no score counts
// as the midpoint.
func FinalScore(scores map[string]float64, w entity.Weights, novelty float64) float64 {
	var weighted, maxPossible float64
	for dim, weight := range w {
		s, ok := scores[dim]
		if !ok {
			s = entity.MissingDimensionScore
		}
		weighted += s * weight
		maxPossible += entity.MaxDimensionScore * weight
	}
	if maxPossible <= 0 {
		return 0
	}
	normalized := weighted / maxPossible * 10
	return clamp(normalized*novelty, 0, 10)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
