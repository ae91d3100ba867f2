package pipeline

import (
	"math"
	"testing"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

func field(year int, fips, crop, land string, planted, abandoned, production float64) schema.FieldProductionRecord {
	return schema.FieldProductionRecord{
		HarvestYear:    year,
		CropName:       crop,
		LandID:         land,
		FIPS:           fips,
		Yield:          150,
		YieldUnits:     schema.YieldUnits,
		LandArea:       planted + 10,
		PlantedArea:    planted,
		AreaUnits:      schema.AreaUnits,
		AbandonedArea:  abandoned,
		CropProduction: production,
	}
}

func TestAggregate_SumsAndRatio(t *testing.T) {
	// Two fields in the same county: planted 90 and 110 with 10% abandonment.
	prod2 := (110.0 - 11.0) * 150
	fields := []schema.FieldProductionRecord{
		field(2022, "01001", "corn", "L1", 90, 9, 12150),
		field(2022, "01001", "corn", "L2", 110, 11, prod2),
	}

	out, issues := Aggregate(fields)
	if len(out) != 1 {
		t.Fatalf("expected 1 rollup, got %d", len(out))
	}
	g := out[0]
	if g.TotalPlantedArea != 200 {
		t.Errorf("total_planted_area = %v, want 200", g.TotalPlantedArea)
	}
	if g.TotalAbandonedArea != 20 {
		t.Errorf("total_abandoned_area = %v, want 20", g.TotalAbandonedArea)
	}
	wantProd := 12150 + prod2
	if g.TotalProduction != wantProd {
		t.Errorf("total_production = %v, want %v", g.TotalProduction, wantProd)
	}
	if g.CountyYield == nil {
		t.Fatal("county_yield must be defined")
	}
	if want := wantProd / 180; math.Abs(*g.CountyYield-want) > 1e-9 {
		t.Errorf("county_yield = %v, want %v", *g.CountyYield, want)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestAggregate_UndefinedYieldOnZeroDenominator(t *testing.T) {
	// Sole contributor fully abandoned: denominator is 0.
	fields := []schema.FieldProductionRecord{
		field(2022, "01001", "corn", "L1", 90, 90, 0),
	}

	out, issues := Aggregate(fields)
	if len(out) != 1 {
		t.Fatalf("expected 1 rollup, got %d", len(out))
	}
	if out[0].CountyYield != nil {
		t.Errorf("county_yield must be undefined, got %v", *out[0].CountyYield)
	}
	if len(issues) != 1 || issues[0].Kind != KindUndefinedYield {
		t.Fatalf("expected one UndefinedYield issue, got %v", issues)
	}
}

func TestAggregate_GroupsByFullKey(t *testing.T) {
	fields := []schema.FieldProductionRecord{
		field(2022, "01001", "corn", "L1", 90, 9, 12150),
		field(2022, "01001", "wheat", "L1", 90, 9, 5000),
		field(2022, "01002", "corn", "L2", 90, 9, 6000),
		field(2023, "01001", "corn", "L1", 90, 9, 7000),
	}

	out, _ := Aggregate(fields)
	if len(out) != 4 {
		t.Fatalf("expected 4 distinct groups, got %d", len(out))
	}
	// Output sorted by (year, fips, crop).
	want := []schema.CountyKey{
		{HarvestYear: 2022, FIPS: "01001", CropName: "corn"},
		{HarvestYear: 2022, FIPS: "01001", CropName: "wheat"},
		{HarvestYear: 2022, FIPS: "01002", CropName: "corn"},
		{HarvestYear: 2023, FIPS: "01001", CropName: "corn"},
	}
	for i, g := range out {
		if g.Key() != want[i] {
			t.Errorf("position %d: got %v, want %v", i, g.Key(), want[i])
		}
	}
}

func TestAggregate_SumLaw(t *testing.T) {
	// Every field's planted area is counted in exactly one group.
	fields := []schema.FieldProductionRecord{
		field(2022, "01001", "corn", "L1", 90, 9, 12150),
		field(2022, "01001", "corn", "L2", 110, 11, 14850),
		field(2022, "01002", "corn", "L3", 50, 0, 7500),
	}
	out, _ := Aggregate(fields)

	var inputTotal, groupTotal float64
	for _, f := range fields {
		inputTotal += f.PlantedArea
	}
	for _, g := range out {
		groupTotal += g.TotalPlantedArea
	}
	if inputTotal != groupTotal {
		t.Errorf("sum law violated: fields total %v, groups total %v", inputTotal, groupTotal)
	}
}
