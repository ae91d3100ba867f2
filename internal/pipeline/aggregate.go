package pipeline

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// Aggregate groups field production records by (harvest_year, fips_cd,
// crop_name) and sums planted area, abandoned area, and production. Sums are
// plain additions, so grouping is order-independent and safe under any
// partitioning. The derived ratio
//
//	county_yield = total_production / (total_planted_area - total_abandoned_area)
//
// is left null, with an UndefinedYield issue, when the harvested-area
// denominator is not positive (e.g. full abandonment). Output is sorted by
// group key so repeated runs are byte-identical.
func Aggregate(fields []schema.FieldProductionRecord) ([]schema.CountyRollupRecord, []Issue) {
	groups := make(map[schema.CountyKey]*schema.CountyRollupRecord)
	for _, f := range fields {
		k := schema.CountyKey{HarvestYear: f.HarvestYear, FIPS: f.FIPS, CropName: f.CropName}
		g, ok := groups[k]
		if !ok {
			g = &schema.CountyRollupRecord{HarvestYear: k.HarvestYear, FIPS: k.FIPS, CropName: k.CropName}
			groups[k] = g
		}
		g.TotalPlantedArea += f.PlantedArea
		g.TotalAbandonedArea += f.AbandonedArea
		g.TotalProduction += f.CropProduction
	}

	keys := make([]schema.CountyKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.HarvestYear != b.HarvestYear {
			return a.HarvestYear < b.HarvestYear
		}
		if a.FIPS != b.FIPS {
			return a.FIPS < b.FIPS
		}
		return a.CropName < b.CropName
	})

	out := make([]schema.CountyRollupRecord, 0, len(groups))
	var issues []Issue
	for _, k := range keys {
		g := groups[k]
		denom := g.TotalPlantedArea - g.TotalAbandonedArea
		if denom > 0 {
			cy := g.TotalProduction / denom
			g.CountyYield = &cy
		} else {
			issues = append(issues, Issue{
				Dataset: DatasetCountyRollup,
				Kind:    KindUndefinedYield,
				Key:     k.String(),
				Detail:  fmt.Sprintf("harvested area %v is not positive, county_yield undefined", denom),
			})
		}
		out = append(out, *g)
	}

	return out, issues
}
