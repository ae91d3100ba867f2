// Package pipeline implements the cropstat core engine: validation,
// deduplication, referential resolution, field-level derivation, and the
// county rollup. Every stage is a pure function from an input slice to an
// output slice plus a list of Issues; stages never mutate their inputs.
package pipeline

import "fmt"

// Dataset identifies which record collection an issue refers to.
type Dataset string

const (
	DatasetYield           Dataset = "crop_yield"
	DatasetAbandonment     Dataset = "county_crop_abandonment"
	DatasetFieldProduction Dataset = "field_production"
	DatasetCountyRollup    Dataset = "county_rollup"
)

// Kind classifies a row-level data-quality disposition.
type Kind string

const (
	// Row validation rejections (record dropped).
	KindMissingField     Kind = "MissingField"
	KindTypeMismatch     Kind = "TypeMismatch"
	KindNegativeValue    Kind = "NegativeValue"
	KindOutOfRange       Kind = "OutOfRange"
	KindInconsistentArea Kind = "InconsistentArea"

	// Duplicate resolution (losing records dropped).
	KindDuplicateDiscarded Kind = "DuplicateDiscarded"

	// Referential mismatches (logged; yield side additionally applies the
	// configured fallback).
	KindUnmatchedYield       Kind = "UnmatchedYield"
	KindUnmatchedAbandonment Kind = "UnmatchedAbandonment"

	// Derived value anomalies (value adjusted or sentineled, never fatal).
	KindDerivedValueClamped Kind = "DerivedValueClamped"
	KindUndefinedYield      Kind = "UndefinedYield"
)

// Issue records the disposition of a single record that did not pass through
// a stage unchanged. Every dropped or adjusted record produces exactly one.
type Issue struct {
	Dataset Dataset
	Kind    Kind
	Key     string // formatted key tuple of the offending record
	Detail  string // offending value(s), human readable
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s %s: %s", i.Dataset, i.Kind, i.Key, i.Detail)
}

// StructuralError is the only fatal error class in the core: an input
// dataset that is unusable as a whole (empty, or missing a required column).
// Row-level problems never produce one.
type StructuralError struct {
	Dataset Dataset
	Reason  string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error in %s: %s", e.Dataset, e.Reason)
}
