package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cropstat/internal/state"
)

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the most recent run and its data quality counts",
		Long: `Display the latest recorded run from the run-history database: row counts
per dataset and the issue counts accumulated by the pipeline stages.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd)
		},
	}
}

func runReport(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	out := cmd.OutOrStdout()

	st, err := state.Open(cfg.StatePath, GetLogger(ctx))
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer st.Close()

	run, err := st.LatestRun(ctx)
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Fprintln(out, "No runs recorded yet. Run `cropstat run` first.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run %s", run.ID)
	t.AppendRows([]table.Row{
		{"status", run.Status},
		{"started", run.StartedAt.Local().Format(time.RFC3339)},
		{"duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)},
		{"crop yield rows", run.YieldRows},
		{"abandonment rows", run.AbandonmentRows},
		{"field production rows", run.FieldRows},
		{"county rollup rows", run.RollupRows},
		{"issues", run.IssueTotal},
	})
	if run.Error != "" {
		t.AppendRow(table.Row{"error", run.Error})
	}
	t.Render()

	counts, err := st.IssueCounts(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return nil
	}

	c := table.NewWriter()
	c.SetOutputMirror(out)
	c.SetStyle(table.StyleLight)
	c.SetTitle("Data Quality Summary")
	c.AppendHeader(table.Row{"Dataset", "Issue", "Count"})
	for _, ic := range counts {
		c.AppendRow(table.Row{string(ic.Dataset), string(ic.Kind), ic.Count})
	}
	c.AppendFooter(table.Row{"", "Total", run.IssueTotal})
	c.Render()

	return nil
}
