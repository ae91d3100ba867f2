// Package config defines the cropstat configuration and its loader. Values
// come from, in increasing precedence: built-in defaults, a cropstat.yaml
// file, CROPSTAT_ environment variables, and command-line flags.
package config

import (
	"fmt"

	"github.com/leapstack-labs/cropstat/internal/pipeline"
	"github.com/leapstack-labs/cropstat/internal/storage"
)

// Config is the full runtime configuration.
type Config struct {
	// Input Parquet dataset roots, hive-partitioned by harvest_year.
	YieldDir       string `koanf:"yield_dir"`
	AbandonmentDir string `koanf:"abandonment_dir"`

	// Output Parquet dataset roots.
	FieldDir  string `koanf:"field_dir"`
	RollupDir string `koanf:"rollup_dir"`

	// DatabasePath is the DuckDB session database. The default :memory:
	// keeps the session ephemeral; the Parquet directories are the real
	// storage.
	DatabasePath string `koanf:"database"`

	// StatePath is the SQLite run-history database.
	StatePath string `koanf:"state_path"`

	// UnmatchedPolicy selects what happens to yield records whose county has
	// no abandonment row: "zero" (treat as 0% abandoned) or "drop".
	UnmatchedPolicy string `koanf:"unmatched_policy"`

	// SampleLimit bounds the offending-record samples kept per issue kind.
	SampleLimit int `koanf:"sample_limit"`

	// Workers bounds concurrent per-year partitions; 0 means GOMAXPROCS.
	Workers int `koanf:"workers"`

	Verbose bool `koanf:"verbose"`

	// Publish optionally mirrors county rollups to a Postgres warehouse.
	Publish storage.PublishConfig `koanf:"publish"`
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if !pipeline.UnmatchedPolicy(c.UnmatchedPolicy).Valid() {
		return fmt.Errorf("invalid unmatched_policy %q: must be %q or %q",
			c.UnmatchedPolicy, pipeline.UnmatchedZero, pipeline.UnmatchedDrop)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.YieldDir == "" || c.AbandonmentDir == "" {
		return fmt.Errorf("yield_dir and abandonment_dir must be set")
	}
	if c.FieldDir == "" || c.RollupDir == "" {
		return fmt.Errorf("field_dir and rollup_dir must be set")
	}
	return nil
}
