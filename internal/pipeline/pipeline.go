package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// Options configures a pipeline run.
type Options struct {
	// Unmatched selects the fallback for yield records with no abandonment
	// counterpart. Defaults to UnmatchedZero.
	Unmatched UnmatchedPolicy

	// SampleLimit bounds retained sample issues per kind (see NewReport).
	SampleLimit int

	// Workers bounds concurrent per-year partitions. Defaults to GOMAXPROCS.
	Workers int

	// Logger receives stage-level debug logging. Defaults to discard.
	Logger *slog.Logger
}

// Result is the materialized output of one pipeline run.
type Result struct {
	Fields  []schema.FieldProductionRecord
	Rollups []schema.CountyRollupRecord
	Report  *Report
}

// Run executes the full core pipeline: validate both datasets, deduplicate,
// resolve the yield-to-abandonment join, derive field production, and roll
// up by county. After validation the work is partitioned by harvest year and
// processed concurrently; this is safe because every downstream key includes
// the year and the dedup tie-break is a total order independent of partition
// assignment. Output slices are sorted by key, so identical inputs produce
// byte-identical outputs regardless of input order or worker scheduling.
//
// The returned error is non-nil only for structural problems (an empty input
// dataset); all row-level issues are recovered and surfaced via the Report.
func Run(ctx context.Context, yields []schema.CropYieldRecord, abandonments []schema.AbandonmentRecord, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := opts.Unmatched
	if !policy.Valid() {
		policy = UnmatchedZero
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	report := NewReport(opts.SampleLimit)
	report.InputYieldRows = len(yields)
	report.InputAbandonmentRows = len(abandonments)

	validYields, issues, err := ValidateYields(yields)
	if err != nil {
		return nil, err
	}
	report.Add(issues...)

	validAbandonments, issues, err := ValidateAbandonments(abandonments)
	if err != nil {
		return nil, err
	}
	report.Add(issues...)

	logger.Debug("validation complete",
		"yield_valid", len(validYields),
		"abandonment_valid", len(validAbandonments),
		"rejected", report.Total())

	// Partition by harvest year. Primary keys and the join key both include
	// the year, so per-year dedup and resolution equal their global forms.
	yieldsByYear := make(map[int][]schema.CropYieldRecord)
	for _, r := range validYields {
		yieldsByYear[r.HarvestYear] = append(yieldsByYear[r.HarvestYear], r)
	}
	abandonmentsByYear := make(map[int][]schema.AbandonmentRecord)
	for _, r := range validAbandonments {
		abandonmentsByYear[r.HarvestYear] = append(abandonmentsByYear[r.HarvestYear], r)
	}

	years := make(map[int]bool, len(yieldsByYear))
	for y := range yieldsByYear {
		years[y] = true
	}
	for y := range abandonmentsByYear {
		years[y] = true
	}
	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	type partition struct {
		fields []schema.FieldProductionRecord
		report *Report
	}
	partitions := make([]partition, len(sorted))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, year := range sorted {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part := NewReport(opts.SampleLimit)

			dy, di := DedupYields(yieldsByYear[year])
			part.Add(di...)
			da, di := DedupAbandonments(abandonmentsByYear[year])
			part.Add(di...)

			matches, ri := Resolve(dy, da, policy)
			part.Add(ri...)

			fields, ti := Transform(matches)
			part.Add(ti...)
			part.FieldRows = len(fields)

			logger.Debug("partition complete", "harvest_year", year, "fields", len(fields))
			partitions[i] = partition{fields: fields, report: part}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in ascending year order; each partition's fields are already
	// key-sorted, so the concatenation is globally sorted.
	var fields []schema.FieldProductionRecord
	for _, p := range partitions {
		fields = append(fields, p.fields...)
		report.Merge(p.report)
	}

	rollups, ai := Aggregate(fields)
	report.Add(ai...)
	report.RollupRows = len(rollups)

	logger.Debug("pipeline complete",
		"field_rows", len(fields),
		"rollup_rows", len(rollups),
		"issues", report.Total())

	return &Result{Fields: fields, Rollups: rollups, Report: report}, nil
}
