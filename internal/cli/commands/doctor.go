package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cropstat/internal/engine"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment without running the pipeline",
		Long: `Verify that a run could succeed: the DuckDB session opens, both input
datasets are readable with the expected columns, the run-history database is
writable, and the warehouse connection works when publishing is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	eng := engine.New(GetConfig(ctx), GetLogger(ctx))
	checks := eng.Doctor(ctx)

	failed := 0
	for _, c := range checks {
		status := "ok"
		if !c.OK {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(out, "  [%-4s] %-22s %s\n", status, c.Name, c.Detail)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	fmt.Fprintf(out, "All %d checks passed\n", len(checks))
	return nil
}
