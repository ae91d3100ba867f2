// Package state persists run history: one row per pipeline run plus its
// quality issue counts, so past runs can be audited without re-reading the
// Parquet outputs.
package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/cropstat/internal/pipeline"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	Status          string
	Error           string
	YieldRows       int
	AbandonmentRows int
	FieldRows       int
	RollupRows      int
	IssueTotal      int
}

// IssueCount is the number of issues of one kind in one dataset for a run.
type IssueCount struct {
	Dataset pipeline.Dataset
	Kind    pipeline.Kind
	Count   int
}

// Store records pipeline runs in a local SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the state database and runs migrations.
// Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the state database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run state migrations: %w", err)
	}
	return nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// RecordRun inserts a completed run and its issue counts in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, report *pipeline.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin state transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, status, error,
			yield_rows, abandonment_rows, field_rows, rollup_rows, issue_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Status, run.Error,
		run.YieldRows, run.AbandonmentRows, run.FieldRows, run.RollupRows, run.IssueTotal)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if report != nil {
		for ds, byKind := range report.Counts {
			for kind, n := range byKind {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO run_issues (run_id, dataset, kind, count)
					VALUES (?, ?, ?, ?)`,
					run.ID, string(ds), string(kind), n); err != nil {
					return fmt.Errorf("failed to insert issue count: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run record: %w", err)
	}

	s.logger.Debug("recorded run", "run_id", run.ID, "status", run.Status, "issues", run.IssueTotal)
	return nil
}

// LatestRun returns the most recent run, or nil if none exist.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, error,
			yield_rows, abandonment_rows, field_rows, rollup_rows, issue_total
		FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`)

	var (
		r                     Run
		startedAt, finishedAt string
	)
	err := row.Scan(&r.ID, &startedAt, &finishedAt, &r.Status, &r.Error,
		&r.YieldRows, &r.AbandonmentRows, &r.FieldRows, &r.RollupRows, &r.IssueTotal)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at: %w", err)
	}
	return &r, nil
}

// IssueCounts returns the issue counts for a run, ordered by dataset/kind.
func (s *Store) IssueCounts(ctx context.Context, runID string) ([]IssueCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset, kind, count FROM run_issues
		WHERE run_id = ? ORDER BY dataset, kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []IssueCount
	for rows.Next() {
		var (
			ic            IssueCount
			dataset, kind string
		)
		if err := rows.Scan(&dataset, &kind, &ic.Count); err != nil {
			return nil, fmt.Errorf("failed to scan issue count: %w", err)
		}
		ic.Dataset = pipeline.Dataset(dataset)
		ic.Kind = pipeline.Kind(kind)
		out = append(out, ic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issue counts: %w", err)
	}
	return out, nil
}
