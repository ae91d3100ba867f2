package pipeline

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// UnmatchedPolicy decides what happens to a yield record whose county/crop/
// year has no abandonment counterpart. The source contract leaves this open,
// so it is an explicit configuration choice rather than an assumption.
type UnmatchedPolicy string

const (
	// UnmatchedZero passes the field through with zero abandonment.
	UnmatchedZero UnmatchedPolicy = "zero"
	// UnmatchedDrop excludes the field from the output.
	UnmatchedDrop UnmatchedPolicy = "drop"
)

// Valid reports whether p is a recognized policy value.
func (p UnmatchedPolicy) Valid() bool {
	return p == UnmatchedZero || p == UnmatchedDrop
}

// Outcome tags the result of resolving one yield record against the
// abandonment dataset. Tagging keeps the downstream transformer total: it
// never has to branch on nullable joined fields.
type Outcome int

const (
	// OutcomeMatched means an abandonment record was found for the key.
	OutcomeMatched Outcome = iota
	// OutcomeZeroFilled means no abandonment record existed and the zero
	// fallback applies.
	OutcomeZeroFilled
	// OutcomeDropped means no abandonment record existed and the drop
	// fallback applies; the record produces no output row.
	OutcomeDropped
)

// Match pairs a yield record with its resolution outcome. Abandonment is set
// only when Outcome is OutcomeMatched.
type Match struct {
	Yield       schema.CropYieldRecord
	Abandonment *schema.AbandonmentRecord
	Outcome     Outcome
}

// Resolve performs the left outer join of yield records onto abandonment
// records by (harvest_year, fips_cd, crop_name). Every yield record yields
// exactly one Match. Abandonment records that no yield record references are
// reported as UnmatchedAbandonment but never become output rows: abandonment
// data has no independent downstream representation.
//
// Both input slices must already be deduplicated.
func Resolve(yields []schema.CropYieldRecord, abandonments []schema.AbandonmentRecord, policy UnmatchedPolicy) ([]Match, []Issue) {
	byKey := make(map[schema.CountyKey]*schema.AbandonmentRecord, len(abandonments))
	referenced := make(map[schema.CountyKey]bool, len(abandonments))
	for i := range abandonments {
		byKey[abandonments[i].Key()] = &abandonments[i]
	}

	matches := make([]Match, 0, len(yields))
	var issues []Issue
	for _, y := range yields {
		k := y.CountyKey()
		if ab, ok := byKey[k]; ok {
			referenced[k] = true
			matches = append(matches, Match{Yield: y, Abandonment: ab, Outcome: OutcomeMatched})
			continue
		}

		issues = append(issues, Issue{
			Dataset: DatasetYield,
			Kind:    KindUnmatchedYield,
			Key:     y.Key().String(),
			Detail:  fmt.Sprintf("no abandonment record for %s, fallback=%s", k, policy),
		})
		switch policy {
		case UnmatchedDrop:
			matches = append(matches, Match{Yield: y, Outcome: OutcomeDropped})
		default:
			matches = append(matches, Match{Yield: y, Outcome: OutcomeZeroFilled})
		}
	}

	// Report abandonment records nothing joined against, in key order.
	var orphaned []schema.CountyKey
	for k := range byKey {
		if !referenced[k] {
			orphaned = append(orphaned, k)
		}
	}
	sort.Slice(orphaned, func(i, j int) bool {
		a, b := orphaned[i], orphaned[j]
		if a.HarvestYear != b.HarvestYear {
			return a.HarvestYear < b.HarvestYear
		}
		if a.FIPS != b.FIPS {
			return a.FIPS < b.FIPS
		}
		return a.CropName < b.CropName
	})
	for _, k := range orphaned {
		issues = append(issues, Issue{
			Dataset: DatasetAbandonment,
			Kind:    KindUnmatchedAbandonment,
			Key:     k.String(),
			Detail:  "no yield records reference this county/crop/year",
		})
	}

	return matches, issues
}
