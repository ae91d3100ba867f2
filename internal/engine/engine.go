// Package engine orchestrates a cropstat run: load the Parquet inputs through
// the storage collaborator, execute the core pipeline, persist the outputs,
// optionally publish the rollups to the warehouse, and record the run in the
// state store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/cropstat/internal/config"
	"github.com/leapstack-labs/cropstat/internal/gen"
	"github.com/leapstack-labs/cropstat/internal/pipeline"
	"github.com/leapstack-labs/cropstat/internal/state"
	"github.com/leapstack-labs/cropstat/internal/storage"
)

// Engine ties the storage, pipeline, and state collaborators together.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an engine for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{cfg: cfg, logger: logger}
}

// RunResult summarizes a completed run for the caller.
type RunResult struct {
	RunID    string
	Result   *pipeline.Result
	Duration time.Duration
}

// Run executes the full pipeline end to end. Row-level data issues never fail
// the run; only structural input problems and I/O errors do. Both outcomes
// are recorded in the state store.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	runID := state.NewRunID()
	started := time.Now()
	e.logger.Info("starting run", "run_id", runID, "unmatched_policy", e.cfg.UnmatchedPolicy)

	result, yieldRows, abandonmentRows, runErr := e.execute(ctx)
	finished := time.Now()

	run := state.Run{
		ID:        runID,
		StartedAt: started, FinishedAt: finished,
		Status:    state.RunStatusSuccess,
		YieldRows: yieldRows, AbandonmentRows: abandonmentRows,
	}
	var report *pipeline.Report
	if result != nil {
		report = result.Report
		run.FieldRows = len(result.Fields)
		run.RollupRows = len(result.Rollups)
		run.IssueTotal = report.Total()
	}
	if runErr != nil {
		run.Status = state.RunStatusFailed
		run.Error = runErr.Error()
	}

	if err := e.recordRun(ctx, run, report); err != nil {
		// History is an audit aid; a recording failure must not mask the run
		// outcome.
		e.logger.Warn("failed to record run history", "run_id", runID, "error", err)
	}

	if runErr != nil {
		return nil, runErr
	}

	e.logger.Info("run complete",
		"run_id", runID,
		"field_rows", len(result.Fields),
		"rollup_rows", len(result.Rollups),
		"issues", result.Report.Total(),
		"duration", finished.Sub(started))

	return &RunResult{RunID: runID, Result: result, Duration: finished.Sub(started)}, nil
}

func (e *Engine) execute(ctx context.Context) (*pipeline.Result, int, int, error) {
	store, err := storage.Open(ctx, e.cfg.DatabasePath, e.logger)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() { _ = store.Close() }()

	yields, err := store.LoadYields(ctx, e.cfg.YieldDir)
	if err != nil {
		return nil, 0, 0, err
	}
	abandonments, err := store.LoadAbandonments(ctx, e.cfg.AbandonmentDir)
	if err != nil {
		return nil, len(yields), 0, err
	}

	result, err := pipeline.Run(ctx, yields, abandonments, pipeline.Options{
		Unmatched:   pipeline.UnmatchedPolicy(e.cfg.UnmatchedPolicy),
		SampleLimit: e.cfg.SampleLimit,
		Workers:     e.cfg.Workers,
		Logger:      e.logger,
	})
	if err != nil {
		return nil, len(yields), len(abandonments), err
	}

	if err := store.WriteFieldProduction(ctx, e.cfg.FieldDir, result.Fields); err != nil {
		return result, len(yields), len(abandonments), err
	}
	if err := store.WriteCountyRollups(ctx, e.cfg.RollupDir, result.Rollups); err != nil {
		return result, len(yields), len(abandonments), err
	}

	if e.cfg.Publish.Enabled() {
		if err := e.publish(ctx, result); err != nil {
			return result, len(yields), len(abandonments), err
		}
	}

	return result, len(yields), len(abandonments), nil
}

func (e *Engine) publish(ctx context.Context, result *pipeline.Result) error {
	pub, err := storage.NewPublisher(ctx, e.cfg.Publish, e.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer func() { _ = pub.Close() }()

	return pub.PublishRollups(ctx, result.Rollups)
}

func (e *Engine) recordRun(ctx context.Context, run state.Run, report *pipeline.Report) error {
	if dir := filepath.Dir(e.cfg.StatePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	st, err := state.Open(e.cfg.StatePath, e.logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	return st.RecordRun(ctx, run, report)
}

// Generate writes a deterministic sample dataset pair into the configured
// input directories.
func (e *Engine) Generate(ctx context.Context, opts gen.Options) (gen.Datasets, error) {
	store, err := storage.Open(ctx, e.cfg.DatabasePath, e.logger)
	if err != nil {
		return gen.Datasets{}, err
	}
	defer func() { _ = store.Close() }()

	ds := gen.Generate(opts)
	if err := os.MkdirAll(e.cfg.YieldDir, 0o755); err != nil {
		return ds, fmt.Errorf("failed to create yield directory: %w", err)
	}
	if err := os.MkdirAll(e.cfg.AbandonmentDir, 0o755); err != nil {
		return ds, fmt.Errorf("failed to create abandonment directory: %w", err)
	}

	if err := store.WriteYields(ctx, e.cfg.YieldDir, ds.Yields); err != nil {
		return ds, err
	}
	if err := store.WriteAbandonments(ctx, e.cfg.AbandonmentDir, ds.Abandonments); err != nil {
		return ds, err
	}

	e.logger.Info("generated sample data",
		"yield_rows", len(ds.Yields),
		"abandonment_rows", len(ds.Abandonments),
		"yield_dir", e.cfg.YieldDir,
		"abandonment_dir", e.cfg.AbandonmentDir)
	return ds, nil
}

// Check is one doctor diagnostic outcome.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Doctor inspects the environment without running the pipeline: the DuckDB
// session, both input datasets, the state store, and (when configured) the
// warehouse connection.
func (e *Engine) Doctor(ctx context.Context) []Check {
	var checks []Check

	store, err := storage.Open(ctx, e.cfg.DatabasePath, e.logger)
	if err != nil {
		return append(checks, Check{Name: "duckdb session", OK: false, Detail: err.Error()})
	}
	defer func() { _ = store.Close() }()
	checks = append(checks, Check{Name: "duckdb session", OK: true, Detail: e.cfg.DatabasePath})

	checks = append(checks, e.checkDataset(ctx, store, "crop yield input", e.cfg.YieldDir, true))
	checks = append(checks, e.checkDataset(ctx, store, "abandonment input", e.cfg.AbandonmentDir, false))

	if st, err := state.Open(e.cfg.StatePath, e.logger); err != nil {
		checks = append(checks, Check{Name: "state store", OK: false, Detail: err.Error()})
	} else {
		_ = st.Close()
		checks = append(checks, Check{Name: "state store", OK: true, Detail: e.cfg.StatePath})
	}

	if e.cfg.Publish.Enabled() {
		if pub, err := storage.NewPublisher(ctx, e.cfg.Publish, e.logger); err != nil {
			checks = append(checks, Check{Name: "warehouse connection", OK: false, Detail: err.Error()})
		} else {
			_ = pub.Close()
			checks = append(checks, Check{Name: "warehouse connection", OK: true, Detail: e.cfg.Publish.Host})
		}
	}

	return checks
}

func (e *Engine) checkDataset(ctx context.Context, store *storage.Store, name, dir string, yield bool) Check {
	var (
		n   int
		err error
	)
	if yield {
		records, loadErr := store.LoadYields(ctx, dir)
		n, err = len(records), loadErr
	} else {
		records, loadErr := store.LoadAbandonments(ctx, dir)
		n, err = len(records), loadErr
	}

	if err != nil {
		var se *pipeline.StructuralError
		if errors.As(err, &se) {
			return Check{Name: name, OK: false, Detail: se.Reason}
		}
		return Check{Name: name, OK: false, Detail: err.Error()}
	}
	return Check{Name: name, OK: true, Detail: fmt.Sprintf("%s (%d rows)", dir, n)}
}
