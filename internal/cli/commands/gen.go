package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cropstat/internal/engine"
	"github.com/leapstack-labs/cropstat/internal/gen"
)

// GenOptions holds options for the gen command.
type GenOptions struct {
	Seed     int64
	Years    []int
	Counties int
	Clean    bool
}

// NewGenCommand creates the gen command.
func NewGenCommand() *cobra.Command {
	opts := &GenOptions{}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate deterministic sample input datasets",
		Long: `Write a reproducible pair of sample datasets into the configured input
directories: crop yields per land parcel and county crop abandonment, both
partitioned by harvest year.

The generated data includes intentional quality issues (null and negative
yields, duplicate primary keys in both datasets, abandonment percentages
over 100, and one missing county) so a following run exercises every
validation path. Use --clean to skip them.`,
		Example: `  # Reference dataset (seed 42, years 2023-2025, 10 counties)
  cropstat gen

  # Clean data, different shape
  cropstat gen --clean --seed 7 --years 2020,2021 --counties 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGen(cmd, opts)
		},
	}

	defaults := gen.DefaultOptions()
	cmd.Flags().Int64Var(&opts.Seed, "seed", defaults.Seed, "Random seed")
	cmd.Flags().IntSliceVar(&opts.Years, "years", defaults.Years, "Harvest years to generate")
	cmd.Flags().IntVar(&opts.Counties, "counties", defaults.Counties, "Number of counties")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "Skip the injected quality issues")

	return cmd
}

func runGen(cmd *cobra.Command, opts *GenOptions) error {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	out := cmd.OutOrStdout()

	genOpts := gen.DefaultOptions()
	genOpts.Seed = opts.Seed
	genOpts.Years = opts.Years
	genOpts.Counties = opts.Counties
	genOpts.Clean = opts.Clean
	if len(genOpts.Years) == 0 {
		return fmt.Errorf("at least one harvest year is required")
	}
	if genOpts.Counties < 1 {
		return fmt.Errorf("counties must be >= 1, got %d", genOpts.Counties)
	}

	eng := engine.New(cfg, GetLogger(ctx))
	ds, err := eng.Generate(ctx, genOpts)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Fprintf(out, "Generated %d crop yield rows -> %s\n", len(ds.Yields), cfg.YieldDir)
	fmt.Fprintf(out, "Generated %d abandonment rows -> %s\n", len(ds.Abandonments), cfg.AbandonmentDir)
	if !genOpts.Clean {
		fmt.Fprintln(out, "Intentional quality issues included; run `cropstat run` to see the report.")
	}
	return nil
}
