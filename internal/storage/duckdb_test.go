package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/cropstat/internal/pipeline"
	"github.com/leapstack-labs/cropstat/internal/schema"
)

func f64(v float64) *float64 { return &v }

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory duckdb: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_YieldRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	dir := filepath.Join(t.TempDir(), "crop_yield")

	in := []schema.CropYieldRecord{
		{
			HarvestYear: 2023, CropName: "corn", LandID: "PARCEL-1", FIPS: "01001",
			Yield: f64(180.5), YieldUnits: "bushels",
			LandArea: f64(120), PlantedArea: f64(100), AreaUnits: "acres",
		},
		{
			HarvestYear: 2024, CropName: "wheat", LandID: "PARCEL-2", FIPS: "01002",
			Yield: nil, YieldUnits: "bushels", // null yield must survive
			LandArea: f64(80), PlantedArea: f64(60), AreaUnits: "acres",
		},
	}
	if err := s.WriteYields(ctx, dir, in); err != nil {
		t.Fatalf("failed to write yields: %v", err)
	}

	out, err := s.LoadYields(ctx, dir)
	if err != nil {
		t.Fatalf("failed to load yields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}

	byLand := map[string]schema.CropYieldRecord{}
	for _, r := range out {
		byLand[r.LandID] = r
	}

	r1 := byLand["PARCEL-1"]
	if r1.HarvestYear != 2023 {
		t.Errorf("harvest_year partition column not restored: %d", r1.HarvestYear)
	}
	if r1.Yield == nil || *r1.Yield != 180.5 {
		t.Errorf("yield = %v, want 180.5", r1.Yield)
	}
	if r1.PlantedArea == nil || *r1.PlantedArea != 100 {
		t.Errorf("planted_area = %v, want 100", r1.PlantedArea)
	}

	r2 := byLand["PARCEL-2"]
	if r2.Yield != nil {
		t.Errorf("null yield must load as nil, got %v", *r2.Yield)
	}
	if r2.HarvestYear != 2024 {
		t.Errorf("harvest_year = %d, want 2024", r2.HarvestYear)
	}
}

func TestStore_AbandonmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	dir := filepath.Join(t.TempDir(), "county_crop_abandonment")

	in := []schema.AbandonmentRecord{
		{HarvestYear: 2023, CropName: "corn", FIPS: "01001", AbandonedArea: f64(250.5), AbandonmentPercent: f64(4.2)},
		{HarvestYear: 2023, CropName: "soybeans", FIPS: "01002", AbandonedArea: f64(100), AbandonmentPercent: nil},
	}
	if err := s.WriteAbandonments(ctx, dir, in); err != nil {
		t.Fatalf("failed to write abandonments: %v", err)
	}

	out, err := s.LoadAbandonments(ctx, dir)
	if err != nil {
		t.Fatalf("failed to load abandonments: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	for _, r := range out {
		if r.CropName == "soybeans" && r.AbandonmentPercent != nil {
			t.Errorf("null abandonment_percent must load as nil")
		}
		if r.CropName == "corn" && (r.AbandonmentPercent == nil || *r.AbandonmentPercent != 4.2) {
			t.Errorf("abandonment_percent = %v, want 4.2", r.AbandonmentPercent)
		}
	}
}

func TestStore_MissingDirectoryIsStructural(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LoadYields(ctx, filepath.Join(t.TempDir(), "does-not-exist"))
	var se *pipeline.StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if se.Dataset != pipeline.DatasetYield {
		t.Errorf("dataset = %s, want %s", se.Dataset, pipeline.DatasetYield)
	}
}

func TestStore_FieldProductionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	dir := filepath.Join(t.TempDir(), "field_production")

	in := []schema.FieldProductionRecord{{
		HarvestYear: 2023, CropName: "corn", LandID: "PARCEL-1", FIPS: "01001",
		Yield: 150, YieldUnits: "bushels",
		LandArea: 100, PlantedArea: 90, AreaUnits: "acres",
		AbandonedArea: 9, CropProduction: 12150,
	}}
	if err := s.WriteFieldProduction(ctx, dir, in); err != nil {
		t.Fatalf("failed to write field production: %v", err)
	}

	// Output carries every input column plus the two derived ones; read it
	// back through the session to verify names and values.
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(harvest_year AS INTEGER), crop_name, land_id, abandoned_area, crop_production
		FROM read_parquet(`+parquetGlob(dir)+`, hive_partitioning = true)`)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("expected one row")
	}
	var (
		year                int
		crop, land          string
		abandoned, produced float64
	)
	if err := rows.Scan(&year, &crop, &land, &abandoned, &produced); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if year != 2023 || crop != "corn" || land != "PARCEL-1" || abandoned != 9 || produced != 12150 {
		t.Errorf("unexpected row: %d %s %s %v %v", year, crop, land, abandoned, produced)
	}
}

func TestStore_CountyRollupNullYield(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	dir := filepath.Join(t.TempDir(), "county_rollup")

	cy := 135.0
	in := []schema.CountyRollupRecord{
		{HarvestYear: 2023, FIPS: "01001", CropName: "corn", TotalPlantedArea: 200, TotalAbandonedArea: 20, TotalProduction: 24300, CountyYield: &cy},
		{HarvestYear: 2023, FIPS: "01002", CropName: "corn", TotalPlantedArea: 90, TotalAbandonedArea: 90, TotalProduction: 0, CountyYield: nil},
	}
	if err := s.WriteCountyRollups(ctx, dir, in); err != nil {
		t.Fatalf("failed to write rollups: %v", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT fips_cd, county_yield
		FROM read_parquet(`+parquetGlob(dir)+`, hive_partitioning = true)
		ORDER BY fips_cd`)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	defer rows.Close()

	type row struct {
		fips  string
		yield *float64
	}
	var got []row
	for rows.Next() {
		var fips string
		var y *float64
		if err := rows.Scan(&fips, &y); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, row{fips, y})
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].yield == nil || *got[0].yield != 135.0 {
		t.Errorf("county 01001 yield = %v, want 135", got[0].yield)
	}
	if got[1].yield != nil {
		t.Errorf("undefined county_yield must round-trip as NULL, got %v", *got[1].yield)
	}
}
