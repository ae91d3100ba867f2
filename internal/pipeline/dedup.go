package pipeline

import (
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// Deduplication keeps exactly one record per primary key. The winner is the
// record with the most populated fields; ties break on the ascending xxh3
// fingerprint of the record's canonical encoding. Both criteria are total
// orders over record values, so the outcome does not depend on arrival order
// or on how the input was partitioned across workers, and re-running the
// pipeline on a reshuffled input produces byte-identical output.

// DedupYields collapses duplicate (harvest_year, crop_name, land_id) keys,
// emitting one DuplicateDiscarded issue per losing record.
func DedupYields(in []schema.CropYieldRecord) ([]schema.CropYieldRecord, []Issue) {
	return dedupe(in, DatasetYield,
		schema.CropYieldRecord.Key,
		yieldCompleteness,
		func(r schema.CropYieldRecord) uint64 { return xxh3.HashString(r.Canonical()) },
		func(a, b schema.YieldKey) bool {
			if a.HarvestYear != b.HarvestYear {
				return a.HarvestYear < b.HarvestYear
			}
			if a.CropName != b.CropName {
				return a.CropName < b.CropName
			}
			return a.LandID < b.LandID
		})
}

// DedupAbandonments collapses duplicate (harvest_year, fips_cd, crop_name)
// keys, emitting one DuplicateDiscarded issue per losing record.
func DedupAbandonments(in []schema.AbandonmentRecord) ([]schema.AbandonmentRecord, []Issue) {
	return dedupe(in, DatasetAbandonment,
		schema.AbandonmentRecord.Key,
		abandonmentCompleteness,
		func(r schema.AbandonmentRecord) uint64 { return xxh3.HashString(r.Canonical()) },
		func(a, b schema.CountyKey) bool {
			if a.HarvestYear != b.HarvestYear {
				return a.HarvestYear < b.HarvestYear
			}
			if a.FIPS != b.FIPS {
				return a.FIPS < b.FIPS
			}
			return a.CropName < b.CropName
		})
}

type keyed interface {
	comparable
	fmt.Stringer
}

func dedupe[R any, K keyed](
	in []R,
	dataset Dataset,
	key func(R) K,
	completeness func(R) int,
	fingerprint func(R) uint64,
	keyLess func(a, b K) bool,
) ([]R, []Issue) {
	type slot struct {
		rec   R
		score int
		hash  uint64
		count int
	}

	winners := make(map[K]*slot, len(in))
	for _, r := range in {
		k := key(r)
		s := slot{rec: r, score: completeness(r), hash: fingerprint(r), count: 1}
		prev, ok := winners[k]
		if !ok {
			winners[k] = &s
			continue
		}
		prev.count++
		if s.score > prev.score || (s.score == prev.score && s.hash < prev.hash) {
			s.count = prev.count
			*prev = s
		}
	}

	keys := make([]K, 0, len(winners))
	for k := range winners {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	out := make([]R, 0, len(winners))
	var issues []Issue
	for _, k := range keys {
		s := winners[k]
		out = append(out, s.rec)
		for i := 1; i < s.count; i++ {
			issues = append(issues, Issue{
				Dataset: dataset,
				Kind:    KindDuplicateDiscarded,
				Key:     k.String(),
				Detail:  fmt.Sprintf("%d records share this key; kept the most complete (hash tie-break)", s.count),
			})
		}
	}
	return out, issues
}

// yieldCompleteness counts populated fields. Records reaching this stage have
// already been validated, so the numeric pointers are always set; optional
// unit strings are the usual differentiator between duplicate rows.
func yieldCompleteness(r schema.CropYieldRecord) int {
	n := 0
	for _, s := range []string{r.CropName, r.LandID, r.FIPS, r.YieldUnits, r.AreaUnits} {
		if s != "" {
			n++
		}
	}
	for _, f := range []*float64{r.Yield, r.LandArea, r.PlantedArea} {
		if f != nil {
			n++
		}
	}
	return n
}

func abandonmentCompleteness(r schema.AbandonmentRecord) int {
	n := 0
	for _, s := range []string{r.CropName, r.FIPS} {
		if s != "" {
			n++
		}
	}
	for _, f := range []*float64{r.AbandonedArea, r.AbandonmentPercent} {
		if f != nil {
			n++
		}
	}
	return n
}
