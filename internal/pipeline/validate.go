package pipeline

import (
	"fmt"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// ValidateYields checks each raw crop yield record against the structural and
// domain-range rules, in order, short-circuiting at the first failure so that
// every rejected record carries exactly one Issue:
//
//  1. required fields present (MissingField) and well formed (TypeMismatch)
//  2. yield, land_area, planted_area >= 0 (NegativeValue)
//  3. planted_area <= land_area (InconsistentArea)
//
// An InconsistentArea record is rejected rather than clamped: it indicates
// corrupt upstream data, not a rounding artifact.
//
// The only fatal condition is an empty dataset; everything else is recovered
// row by row.
func ValidateYields(in []schema.CropYieldRecord) ([]schema.CropYieldRecord, []Issue, error) {
	if len(in) == 0 {
		return nil, nil, &StructuralError{Dataset: DatasetYield, Reason: "dataset is empty"}
	}

	out := make([]schema.CropYieldRecord, 0, len(in))
	var issues []Issue
	for _, r := range in {
		if issue, ok := checkYield(r); !ok {
			issues = append(issues, issue)
			continue
		}
		out = append(out, r)
	}
	return out, issues, nil
}

func checkYield(r schema.CropYieldRecord) (Issue, bool) {
	key := r.Key().String()
	reject := func(kind Kind, detail string) (Issue, bool) {
		return Issue{Dataset: DatasetYield, Kind: kind, Key: key, Detail: detail}, false
	}

	// 1. Required fields and primitive form.
	if r.HarvestYear <= 0 {
		return reject(KindOutOfRange, fmt.Sprintf("harvest_year=%d must be positive", r.HarvestYear))
	}
	if r.CropName == "" {
		return reject(KindMissingField, "crop_name is empty")
	}
	if r.LandID == "" {
		return reject(KindMissingField, "land_id is empty")
	}
	if r.FIPS == "" {
		return reject(KindMissingField, "fips_cd is empty")
	}
	if !schema.ValidFIPS(r.FIPS) {
		return reject(KindTypeMismatch, fmt.Sprintf("fips_cd=%q is not a 5-digit county code", r.FIPS))
	}
	if r.Yield == nil {
		return reject(KindMissingField, "yield is null")
	}
	if r.LandArea == nil {
		return reject(KindMissingField, "land_area is null")
	}
	if r.PlantedArea == nil {
		return reject(KindMissingField, "planted_area is null")
	}

	// 2. Non-negativity.
	if *r.Yield < 0 {
		return reject(KindNegativeValue, fmt.Sprintf("yield=%v", *r.Yield))
	}
	if *r.LandArea < 0 {
		return reject(KindNegativeValue, fmt.Sprintf("land_area=%v", *r.LandArea))
	}
	if *r.PlantedArea < 0 {
		return reject(KindNegativeValue, fmt.Sprintf("planted_area=%v", *r.PlantedArea))
	}

	// 3. Cross-field consistency.
	if *r.PlantedArea > *r.LandArea {
		return reject(KindInconsistentArea,
			fmt.Sprintf("planted_area=%v exceeds land_area=%v", *r.PlantedArea, *r.LandArea))
	}

	return Issue{}, true
}

// ValidateAbandonments checks each raw abandonment record, with the same
// ordered short-circuit discipline as ValidateYields:
//
//  1. required fields present and well formed
//  2. abandoned_area >= 0 (NegativeValue)
//  3. abandonment_percent in [0,100] (OutOfRange)
func ValidateAbandonments(in []schema.AbandonmentRecord) ([]schema.AbandonmentRecord, []Issue, error) {
	if len(in) == 0 {
		return nil, nil, &StructuralError{Dataset: DatasetAbandonment, Reason: "dataset is empty"}
	}

	out := make([]schema.AbandonmentRecord, 0, len(in))
	var issues []Issue
	for _, r := range in {
		if issue, ok := checkAbandonment(r); !ok {
			issues = append(issues, issue)
			continue
		}
		out = append(out, r)
	}
	return out, issues, nil
}

func checkAbandonment(r schema.AbandonmentRecord) (Issue, bool) {
	key := r.Key().String()
	reject := func(kind Kind, detail string) (Issue, bool) {
		return Issue{Dataset: DatasetAbandonment, Kind: kind, Key: key, Detail: detail}, false
	}

	if r.HarvestYear <= 0 {
		return reject(KindOutOfRange, fmt.Sprintf("harvest_year=%d must be positive", r.HarvestYear))
	}
	if r.CropName == "" {
		return reject(KindMissingField, "crop_name is empty")
	}
	if r.FIPS == "" {
		return reject(KindMissingField, "fips_cd is empty")
	}
	if !schema.ValidFIPS(r.FIPS) {
		return reject(KindTypeMismatch, fmt.Sprintf("fips_cd=%q is not a 5-digit county code", r.FIPS))
	}
	if r.AbandonedArea == nil {
		return reject(KindMissingField, "abandoned_area is null")
	}
	if r.AbandonmentPercent == nil {
		return reject(KindMissingField, "abandonment_percent is null")
	}

	if *r.AbandonedArea < 0 {
		return reject(KindNegativeValue, fmt.Sprintf("abandoned_area=%v", *r.AbandonedArea))
	}

	if *r.AbandonmentPercent < 0 || *r.AbandonmentPercent > 100 {
		return reject(KindOutOfRange, fmt.Sprintf("abandonment_percent=%v outside [0,100]", *r.AbandonmentPercent))
	}

	return Issue{}, true
}
