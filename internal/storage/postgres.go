package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// PublishConfig holds the connection settings for the optional county rollup
// warehouse target.
type PublishConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
	Table    string `koanf:"table"`
}

// Enabled reports whether publishing is configured.
func (c *PublishConfig) Enabled() bool {
	return c != nil && c.Database != ""
}

// Publisher upserts county rollups into a Postgres table after a successful
// run, so downstream reporting can query the warehouse instead of Parquet.
type Publisher struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPublisher connects to Postgres using the pgx stdlib driver.
func NewPublisher(ctx context.Context, cfg PublishConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "county_rollup"
	}
	return &Publisher{db: db, table: table, logger: logger}, nil
}

// newPublisherWithDB wires an existing connection; used by tests.
func newPublisherWithDB(db *sql.DB, table string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{db: db, table: table, logger: logger}
}

// Close releases the Postgres connection.
func (p *Publisher) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// PublishRollups upserts the rollups keyed on (harvest_year, fips_cd,
// crop_name). Re-publishing the same run is idempotent.
func (p *Publisher) PublishRollups(ctx context.Context, rollups []schema.CountyRollupRecord) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (harvest_year, fips_cd, crop_name,
			total_planted_area, total_abandoned_area, total_production, county_yield)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (harvest_year, fips_cd, crop_name) DO UPDATE SET
			total_planted_area = EXCLUDED.total_planted_area,
			total_abandoned_area = EXCLUDED.total_abandoned_area,
			total_production = EXCLUDED.total_production,
			county_yield = EXCLUDED.county_yield`, p.table)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rollups {
		var cy any
		if r.CountyYield != nil {
			cy = *r.CountyYield
		}
		if _, err := tx.ExecContext(ctx, stmt,
			r.HarvestYear, r.FIPS, r.CropName,
			r.TotalPlantedArea, r.TotalAbandonedArea, r.TotalProduction, cy); err != nil {
			return fmt.Errorf("failed to upsert rollup %s: %w", r.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish transaction: %w", err)
	}

	p.logger.Debug("published county rollups", "table", p.table, "rows", len(rollups))
	return nil
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg PublishConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}
