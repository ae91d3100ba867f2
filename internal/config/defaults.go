package config

// Default locations, relative to the project root.
const (
	DefaultYieldDir       = "data/crop_yield"
	DefaultAbandonmentDir = "data/county_crop_abandonment"
	DefaultFieldDir       = "output/field_production"
	DefaultRollupDir      = "output/county_rollup"
	DefaultDatabasePath   = ":memory:"
	DefaultStateFile      = ".cropstat/state.db"
)

// Default pipeline knobs.
const (
	DefaultUnmatchedPolicy = "zero"
	DefaultSampleLimit     = 10
	DefaultWorkers         = 0 // GOMAXPROCS
)
