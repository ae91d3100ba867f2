// Package schema defines the record types flowing through the cropstat
// pipeline: the two raw input datasets and the two derived output datasets.
//
// Raw records use pointer fields for numeric columns because the source
// Parquet data is nullable; the pipeline validator guarantees that every
// record it passes downstream has all of these fields set.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit values expected in the source data. They are carried through to the
// field-level output unchanged and are not converted.
const (
	YieldUnits = "bushels"
	AreaUnits  = "acres"
)

// CropYieldRecord is one field/parcel observation for a harvest year.
type CropYieldRecord struct {
	HarvestYear int
	CropName    string
	LandID      string
	FIPS        string
	Yield       *float64
	YieldUnits  string
	LandArea    *float64
	PlantedArea *float64
	AreaUnits   string
}

// AbandonmentRecord is one county/crop observation for a harvest year.
type AbandonmentRecord struct {
	HarvestYear        int
	CropName           string
	FIPS               string
	AbandonedArea      *float64
	AbandonmentPercent *float64
}

// FieldProductionRecord is a validated, joined yield record with the two
// derived columns. All numeric fields are concrete: derivation only happens
// after validation.
type FieldProductionRecord struct {
	HarvestYear    int
	CropName       string
	LandID         string
	FIPS           string
	Yield          float64
	YieldUnits     string
	LandArea       float64
	PlantedArea    float64
	AreaUnits      string
	AbandonedArea  float64
	CropProduction float64
}

// CountyRollupRecord aggregates field production per county/crop/year.
// CountyYield is nil when the harvested-area denominator is not positive;
// the null survives into the stored output so consumers can tell "undefined"
// apart from a computed zero.
type CountyRollupRecord struct {
	HarvestYear        int
	FIPS               string
	CropName           string
	TotalPlantedArea   float64
	TotalAbandonedArea float64
	TotalProduction    float64
	CountyYield        *float64
}

// YieldKey is the primary key of a crop yield record.
type YieldKey struct {
	HarvestYear int
	CropName    string
	LandID      string
}

func (k YieldKey) String() string {
	return fmt.Sprintf("(%d, %s, %s)", k.HarvestYear, k.CropName, k.LandID)
}

// CountyKey is the primary key of an abandonment record and the join key
// between the two datasets. It is coarser than YieldKey: many yield records
// in a county share one abandonment record.
type CountyKey struct {
	HarvestYear int
	FIPS        string
	CropName    string
}

func (k CountyKey) String() string {
	return fmt.Sprintf("(%d, %s, %s)", k.HarvestYear, k.FIPS, k.CropName)
}

// Key returns the record's primary key.
func (r CropYieldRecord) Key() YieldKey {
	return YieldKey{HarvestYear: r.HarvestYear, CropName: r.CropName, LandID: r.LandID}
}

// CountyKey returns the join key used to match a yield record against the
// abandonment dataset.
func (r CropYieldRecord) CountyKey() CountyKey {
	return CountyKey{HarvestYear: r.HarvestYear, FIPS: r.FIPS, CropName: r.CropName}
}

// Key returns the record's primary key.
func (r AbandonmentRecord) Key() CountyKey {
	return CountyKey{HarvestYear: r.HarvestYear, FIPS: r.FIPS, CropName: r.CropName}
}

// Key returns the rollup's group key.
func (r CountyRollupRecord) Key() CountyKey {
	return CountyKey{HarvestYear: r.HarvestYear, FIPS: r.FIPS, CropName: r.CropName}
}

// ValidFIPS reports whether s is a well-formed county FIPS code: exactly
// five ASCII digits, as produced by upstream ingestion.
func ValidFIPS(s string) bool {
	if len(s) != 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Canonical returns a stable, type-independent encoding of the full record.
// It is used as the input to the deduplication fingerprint, so it must not
// depend on map iteration order or formatting defaults that could change
// between runs.
func (r CropYieldRecord) Canonical() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(r.HarvestYear))
	writeField(&b, r.CropName)
	writeField(&b, r.LandID)
	writeField(&b, r.FIPS)
	writeFloat(&b, r.Yield)
	writeField(&b, r.YieldUnits)
	writeFloat(&b, r.LandArea)
	writeFloat(&b, r.PlantedArea)
	writeField(&b, r.AreaUnits)
	return b.String()
}

// Canonical returns a stable encoding of the full record for fingerprinting.
func (r AbandonmentRecord) Canonical() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(r.HarvestYear))
	writeField(&b, r.CropName)
	writeField(&b, r.FIPS)
	writeFloat(&b, r.AbandonedArea)
	writeFloat(&b, r.AbandonmentPercent)
	return b.String()
}

func writeField(b *strings.Builder, s string) {
	b.WriteByte(0x1f)
	b.WriteString(s)
}

func writeFloat(b *strings.Builder, f *float64) {
	b.WriteByte(0x1f)
	if f == nil {
		b.WriteByte(0x00)
		return
	}
	b.WriteString(strconv.FormatFloat(*f, 'g', -1, 64))
}
