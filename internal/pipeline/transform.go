package pipeline

import (
	"fmt"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// Transform derives the field-level production record for every match that
// produces an output row:
//
//	abandoned_area  = planted_area * (abandonment_percent / 100)
//	crop_production = (planted_area - abandoned_area) * yield
//
// Upstream validation guarantees abandonment_percent in [0,100] and all
// areas and yields non-negative, so both derived values are non-negative.
// If that guarantee is ever violated, abandoned_area is clamped to
// [0, planted_area] and a DerivedValueClamped issue is emitted instead of
// propagating a negative production figure.
func Transform(matches []Match) ([]schema.FieldProductionRecord, []Issue) {
	out := make([]schema.FieldProductionRecord, 0, len(matches))
	var issues []Issue

	for _, m := range matches {
		if m.Outcome == OutcomeDropped {
			continue
		}

		y := m.Yield
		planted := *y.PlantedArea

		var pct float64
		if m.Outcome == OutcomeMatched {
			pct = *m.Abandonment.AbandonmentPercent
		}

		abandoned := planted * (pct / 100)
		if abandoned < 0 || abandoned > planted {
			clamped := min(max(abandoned, 0), planted)
			issues = append(issues, Issue{
				Dataset: DatasetFieldProduction,
				Kind:    KindDerivedValueClamped,
				Key:     y.Key().String(),
				Detail:  fmt.Sprintf("abandoned_area=%v clamped to %v (planted_area=%v)", abandoned, clamped, planted),
			})
			abandoned = clamped
		}

		out = append(out, schema.FieldProductionRecord{
			HarvestYear:    y.HarvestYear,
			CropName:       y.CropName,
			LandID:         y.LandID,
			FIPS:           y.FIPS,
			Yield:          *y.Yield,
			YieldUnits:     y.YieldUnits,
			LandArea:       *y.LandArea,
			PlantedArea:    planted,
			AreaUnits:      y.AreaUnits,
			AbandonedArea:  abandoned,
			CropProduction: (planted - abandoned) * *y.Yield,
		})
	}

	return out, issues
}
