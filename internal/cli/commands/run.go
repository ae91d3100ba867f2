package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cropstat/internal/engine"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Quiet bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		Long: `Load both input datasets, validate and deduplicate the records, join
yields to county abandonment data, write the field production and county
rollup Parquet outputs, and print the data quality report.

Row-level data problems never fail the run; they are dropped or adjusted and
accounted for in the report. The run fails only when an input dataset is
structurally unusable.`,
		Example: `  # Run with the project's cropstat.yaml
  cropstat run

  # Drop yields with no abandonment counterpart instead of zero-filling
  cropstat run --unmatched-policy drop

  # Only print the run summary, not the report tables
  cropstat run --quiet`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Suppress the data quality report tables")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	logger := GetLogger(ctx)
	out := cmd.OutOrStdout()

	eng := engine.New(cfg, logger)
	res, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Fprintf(out, "Run %s: success\n", res.RunID)
	fmt.Fprintf(out, "  crop yield rows:       %d\n", res.Result.Report.InputYieldRows)
	fmt.Fprintf(out, "  abandonment rows:      %d\n", res.Result.Report.InputAbandonmentRows)
	fmt.Fprintf(out, "  field production rows: %d -> %s\n", len(res.Result.Fields), cfg.FieldDir)
	fmt.Fprintf(out, "  county rollup rows:    %d -> %s\n", len(res.Result.Rollups), cfg.RollupDir)
	if cfg.Publish.Enabled() {
		fmt.Fprintf(out, "  published to:          %s/%s\n", cfg.Publish.Host, cfg.Publish.Database)
	}
	fmt.Fprintf(out, "Completed in %s\n", res.Duration.Round(time.Millisecond))

	if !opts.Quiet && res.Result.Report.Total() > 0 {
		fmt.Fprintln(out)
		res.Result.Report.Render(out)
	}

	return nil
}
