// Package cli provides the command-line interface for cropstat.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cropstat/internal/cli/commands"
	"github.com/leapstack-labs/cropstat/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cropstat",
		Short: "cropstat - Agricultural Production Statistics Pipeline",
		Long: `cropstat derives field-level production and county-level rollups from
year-partitioned Parquet datasets of crop yields and county crop abandonment.

Input records are validated and deduplicated, yields are joined to county
abandonment data, and every dropped or adjusted record is accounted for in a
data quality report.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			ctx := commands.WithConfig(cmd.Context(), cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./cropstat.yaml)")
	rootCmd.PersistentFlags().String("yield-dir", "", "Path to crop yield Parquet partitions")
	rootCmd.PersistentFlags().String("abandonment-dir", "", "Path to county abandonment Parquet partitions")
	rootCmd.PersistentFlags().String("field-dir", "", "Output path for field production partitions")
	rootCmd.PersistentFlags().String("rollup-dir", "", "Output path for county rollup partitions")
	rootCmd.PersistentFlags().String("database", "", "Path to DuckDB database (empty for in-memory)")
	rootCmd.PersistentFlags().String("state", "", "Path to run-history database")
	rootCmd.PersistentFlags().String("unmatched-policy", "", "Fallback for yields without abandonment data (zero|drop)")
	rootCmd.PersistentFlags().Int("sample-limit", 0, "Sample records retained per issue kind in the report")
	rootCmd.PersistentFlags().Int("workers", 0, "Concurrent harvest-year partitions (0 = all CPUs)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("unmatched-policy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"zero", "drop"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewGenCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newLogger builds the CLI logger. Verbose enables debug-level stage logging;
// otherwise only warnings and errors reach the terminal, since the commands
// print their own summaries.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
