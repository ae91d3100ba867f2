// Package storage is the columnar storage collaborator for the cropstat
// pipeline. It loads the two year-partitioned Parquet input datasets into
// memory and persists the two output datasets, using DuckDB as the Parquet
// engine. The pipeline core never touches I/O; it only sees the record
// slices exchanged here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/cropstat/internal/pipeline"
	"github.com/leapstack-labs/cropstat/internal/schema"
)

// insertBatchSize bounds the number of rows per INSERT statement.
const insertBatchSize = 500

// Store reads and writes the pipeline's datasets through a DuckDB session.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open starts a DuckDB session. Use ":memory:" (or "") for an in-memory
// session; a file path persists the session catalog, which is only useful
// for debugging since all datasets live in Parquet.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the DuckDB session.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadYields reads the crop yield dataset from a directory of
// harvest_year=YYYY Parquet partitions. The partition key is surfaced as an
// ordinary column via hive partitioning.
func (s *Store) LoadYields(ctx context.Context, dir string) ([]schema.CropYieldRecord, error) {
	query := fmt.Sprintf(`
		SELECT
			CAST(harvest_year AS INTEGER),
			crop_name, land_id, fips_cd,
			"yield", yield_units, land_area, planted_area, area_units
		FROM read_parquet(%s, hive_partitioning = true)`, parquetGlob(dir))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, structural(pipeline.DatasetYield, dir, err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.CropYieldRecord
	for rows.Next() {
		var (
			r                        schema.CropYieldRecord
			crop, land, fips, yu, au sql.NullString
			yld, la, pa              sql.NullFloat64
		)
		if err := rows.Scan(&r.HarvestYear, &crop, &land, &fips, &yld, &yu, &la, &pa, &au); err != nil {
			return nil, fmt.Errorf("failed to scan crop yield row: %w", err)
		}
		r.CropName = crop.String
		r.LandID = land.String
		r.FIPS = fips.String
		r.YieldUnits = yu.String
		r.AreaUnits = au.String
		r.Yield = nullable(yld)
		r.LandArea = nullable(la)
		r.PlantedArea = nullable(pa)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crop yield rows: %w", err)
	}

	s.logger.Debug("loaded crop yield data", "dir", dir, "rows", len(out))
	return out, nil
}

// LoadAbandonments reads the county abandonment dataset from a directory of
// harvest_year=YYYY Parquet partitions.
func (s *Store) LoadAbandonments(ctx context.Context, dir string) ([]schema.AbandonmentRecord, error) {
	query := fmt.Sprintf(`
		SELECT
			CAST(harvest_year AS INTEGER),
			crop_name, fips_cd, abandoned_area, abandonment_percent
		FROM read_parquet(%s, hive_partitioning = true)`, parquetGlob(dir))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, structural(pipeline.DatasetAbandonment, dir, err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.AbandonmentRecord
	for rows.Next() {
		var (
			r          schema.AbandonmentRecord
			crop, fips sql.NullString
			aa, pct    sql.NullFloat64
		)
		if err := rows.Scan(&r.HarvestYear, &crop, &fips, &aa, &pct); err != nil {
			return nil, fmt.Errorf("failed to scan abandonment row: %w", err)
		}
		r.CropName = crop.String
		r.FIPS = fips.String
		r.AbandonedArea = nullable(aa)
		r.AbandonmentPercent = nullable(pct)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating abandonment rows: %w", err)
	}

	s.logger.Debug("loaded abandonment data", "dir", dir, "rows", len(out))
	return out, nil
}

// WriteFieldProduction persists the field-level output, partitioned by
// harvest_year, replacing any previous run's partitions.
func (s *Store) WriteFieldProduction(ctx context.Context, dir string, records []schema.FieldProductionRecord) error {
	const create = `
		CREATE OR REPLACE TABLE field_production (
			harvest_year INTEGER NOT NULL,
			crop_name VARCHAR NOT NULL,
			land_id VARCHAR NOT NULL,
			fips_cd VARCHAR NOT NULL,
			"yield" DOUBLE NOT NULL,
			yield_units VARCHAR,
			land_area DOUBLE NOT NULL,
			planted_area DOUBLE NOT NULL,
			area_units VARCHAR,
			abandoned_area DOUBLE NOT NULL,
			crop_production DOUBLE NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create field_production table: %w", err)
	}

	err := s.insertBatches(ctx, "field_production", 11, len(records), func(i int) []any {
		r := records[i]
		return []any{
			r.HarvestYear, r.CropName, r.LandID, r.FIPS,
			r.Yield, r.YieldUnits, r.LandArea, r.PlantedArea, r.AreaUnits,
			r.AbandonedArea, r.CropProduction,
		}
	})
	if err != nil {
		return err
	}

	return s.copyPartitioned(ctx, "field_production", dir, len(records))
}

// WriteCountyRollups persists the county rollup output, partitioned by
// harvest_year. county_yield is nullable: undefined ratios survive as NULL.
func (s *Store) WriteCountyRollups(ctx context.Context, dir string, records []schema.CountyRollupRecord) error {
	const create = `
		CREATE OR REPLACE TABLE county_rollup (
			harvest_year INTEGER NOT NULL,
			fips_cd VARCHAR NOT NULL,
			crop_name VARCHAR NOT NULL,
			total_planted_area DOUBLE NOT NULL,
			total_abandoned_area DOUBLE NOT NULL,
			total_production DOUBLE NOT NULL,
			county_yield DOUBLE
		)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create county_rollup table: %w", err)
	}

	err := s.insertBatches(ctx, "county_rollup", 7, len(records), func(i int) []any {
		r := records[i]
		var cy any
		if r.CountyYield != nil {
			cy = *r.CountyYield
		}
		return []any{
			r.HarvestYear, r.FIPS, r.CropName,
			r.TotalPlantedArea, r.TotalAbandonedArea, r.TotalProduction, cy,
		}
	})
	if err != nil {
		return err
	}

	return s.copyPartitioned(ctx, "county_rollup", dir, len(records))
}

// WriteYields persists raw crop yield input data (used by the sample data
// generator). Nullable fields are written as NULL, not zero.
func (s *Store) WriteYields(ctx context.Context, dir string, records []schema.CropYieldRecord) error {
	const create = `
		CREATE OR REPLACE TABLE raw_crop_yield (
			harvest_year INTEGER NOT NULL,
			crop_name VARCHAR,
			land_id VARCHAR,
			fips_cd VARCHAR,
			"yield" DOUBLE,
			yield_units VARCHAR,
			land_area DOUBLE,
			planted_area DOUBLE,
			area_units VARCHAR
		)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create raw_crop_yield table: %w", err)
	}

	err := s.insertBatches(ctx, "raw_crop_yield", 9, len(records), func(i int) []any {
		r := records[i]
		return []any{
			r.HarvestYear, r.CropName, r.LandID, r.FIPS,
			deref(r.Yield), r.YieldUnits, deref(r.LandArea), deref(r.PlantedArea), r.AreaUnits,
		}
	})
	if err != nil {
		return err
	}

	return s.copyPartitioned(ctx, "raw_crop_yield", dir, len(records))
}

// WriteAbandonments persists raw abandonment input data (used by the sample
// data generator).
func (s *Store) WriteAbandonments(ctx context.Context, dir string, records []schema.AbandonmentRecord) error {
	const create = `
		CREATE OR REPLACE TABLE raw_abandonment (
			harvest_year INTEGER NOT NULL,
			crop_name VARCHAR,
			fips_cd VARCHAR,
			abandoned_area DOUBLE,
			abandonment_percent DOUBLE
		)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create raw_abandonment table: %w", err)
	}

	err := s.insertBatches(ctx, "raw_abandonment", 5, len(records), func(i int) []any {
		r := records[i]
		return []any{r.HarvestYear, r.CropName, r.FIPS, deref(r.AbandonedArea), deref(r.AbandonmentPercent)}
	})
	if err != nil {
		return err
	}

	return s.copyPartitioned(ctx, "raw_abandonment", dir, len(records))
}

// insertBatches inserts n rows into table using bounded multi-row INSERTs.
func (s *Store) insertBatches(ctx context.Context, table string, cols, n int, row func(i int) []any) error {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", cols), ",") + ")"

	for start := 0; start < n; start += insertBatchSize {
		end := min(start+insertBatchSize, n)

		var sb strings.Builder
		sb.WriteString("INSERT INTO ")
		sb.WriteString(table)
		sb.WriteString(" VALUES ")
		args := make([]any, 0, (end-start)*cols)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteByte(',')
			}
			sb.WriteString(placeholder)
			args = append(args, row(i)...)
		}

		if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// copyPartitioned writes a session table out as harvest_year=YYYY Parquet
// partitions under dir.
func (s *Store) copyPartitioned(ctx context.Context, table, dir string, rows int) error {
	stmt := fmt.Sprintf(
		"COPY %s TO %s (FORMAT PARQUET, PARTITION_BY (harvest_year), OVERWRITE_OR_IGNORE)",
		table, quotePath(dir))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to write %s partitions to %s: %w", table, dir, err)
	}
	s.logger.Debug("wrote parquet partitions", "table", table, "dir", dir, "rows", rows)
	return nil
}

// parquetGlob returns the quoted glob covering all year partitions under dir.
func parquetGlob(dir string) string {
	return quotePath(filepath.ToSlash(filepath.Join(dir, "*", "*.parquet")))
}

// quotePath single-quotes a path for interpolation into a DuckDB statement.
func quotePath(p string) string {
	return "'" + strings.ReplaceAll(filepath.ToSlash(p), "'", "''") + "'"
}

// structural maps DuckDB errors for a whole-dataset read onto the pipeline's
// fatal error class: a missing/empty partition directory or an absent
// required column means the dataset is unusable, not merely dirty.
func structural(ds pipeline.Dataset, dir string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No files found"):
		return &pipeline.StructuralError{Dataset: ds, Reason: fmt.Sprintf("no parquet files under %s", dir)}
	case strings.Contains(msg, "Binder Error"):
		return &pipeline.StructuralError{Dataset: ds, Reason: fmt.Sprintf("required column missing: %v", err)}
	default:
		return fmt.Errorf("failed to read %s from %s: %w", ds, dir, err)
	}
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
