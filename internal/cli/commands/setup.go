// Package commands implements the cropstat subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/cropstat/internal/config"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// WithConfig stores the loaded configuration in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	// Fall back to defaults if the root command did not run.
	return &config.Config{
		YieldDir:        config.DefaultYieldDir,
		AbandonmentDir:  config.DefaultAbandonmentDir,
		FieldDir:        config.DefaultFieldDir,
		RollupDir:       config.DefaultRollupDir,
		DatabasePath:    config.DefaultDatabasePath,
		StatePath:       config.DefaultStateFile,
		UnmatchedPolicy: config.DefaultUnmatchedPolicy,
		SampleLimit:     config.DefaultSampleLimit,
	}
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
