package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// findConfigFile finds the config file to use.
// Priority: explicit path > cropstat.yaml > cropstat.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"cropstat.yaml", "cropstat.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load assembles the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"yield_dir":        DefaultYieldDir,
		"abandonment_dir":  DefaultAbandonmentDir,
		"field_dir":        DefaultFieldDir,
		"rollup_dir":       DefaultRollupDir,
		"database":         DefaultDatabasePath,
		"state_path":       DefaultStateFile,
		"unmatched_policy": DefaultUnmatchedPolicy,
		"sample_limit":     DefaultSampleLimit,
		"workers":          DefaultWorkers,
		"verbose":          false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file, if one exists.
	configFile := findConfigFile(cfgFile)
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Environment variables: CROPSTAT_STATE_PATH -> state_path,
	// CROPSTAT_PUBLISH__HOST -> publish.host.
	if err := k.Load(env.Provider("CROPSTAT_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "CROPSTAT_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// Kebab-case flags map to snake_case config keys.
			key := strings.ReplaceAll(f.Name, "-", "_")

			// --state is shorthand for the state_path config key.
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Resolve paths relative to the config file's directory so a run from a
	// subdirectory sees the same project layout.
	if configFile != "" {
		base := filepath.Dir(configFile)
		cfg.YieldDir = resolveRelativeTo(cfg.YieldDir, base)
		cfg.AbandonmentDir = resolveRelativeTo(cfg.AbandonmentDir, base)
		cfg.FieldDir = resolveRelativeTo(cfg.FieldDir, base)
		cfg.RollupDir = resolveRelativeTo(cfg.RollupDir, base)
		cfg.StatePath = resolveRelativeTo(cfg.StatePath, base)
		if cfg.DatabasePath != ":memory:" {
			cfg.DatabasePath = resolveRelativeTo(cfg.DatabasePath, base)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveRelativeTo resolves path against baseDir unless it is empty or
// already absolute.
func resolveRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
