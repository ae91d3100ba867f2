package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   PublishConfig
		expected string
	}{
		{
			name: "basic connection",
			config: PublishConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "agstats",
				User:     "etl",
				Password: "secret",
			},
			expected: "host=localhost port=5432 dbname=agstats sslmode=disable user=etl password=secret",
		},
		{
			name: "custom sslmode",
			config: PublishConfig{
				Host:     "warehouse.example.com",
				Database: "agstats",
				User:     "etl",
				SSLMode:  "require",
			},
			expected: "host=warehouse.example.com port=5432 dbname=agstats sslmode=require user=etl",
		},
		{
			name:     "defaults",
			config:   PublishConfig{Database: "agstats"},
			expected: "host=localhost port=5432 dbname=agstats sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestPublishConfig_Enabled(t *testing.T) {
	assert.False(t, (*PublishConfig)(nil).Enabled())
	assert.False(t, (&PublishConfig{}).Enabled())
	assert.True(t, (&PublishConfig{Database: "agstats"}).Enabled())
}

func TestPublisher_PublishRollups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cy := 135.0
	rollups := []schema.CountyRollupRecord{
		{HarvestYear: 2023, FIPS: "01001", CropName: "corn", TotalPlantedArea: 200, TotalAbandonedArea: 20, TotalProduction: 24300, CountyYield: &cy},
		{HarvestYear: 2023, FIPS: "01002", CropName: "corn", TotalPlantedArea: 90, TotalAbandonedArea: 90, TotalProduction: 0, CountyYield: nil},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO county_rollup").
		WithArgs(2023, "01001", "corn", 200.0, 20.0, 24300.0, 135.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO county_rollup").
		WithArgs(2023, "01002", "corn", 90.0, 90.0, 0.0, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := newPublisherWithDB(db, "county_rollup", nil)
	require.NoError(t, p.PublishRollups(context.Background(), rollups))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_PublishRollups_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO county_rollup").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	p := newPublisherWithDB(db, "county_rollup", nil)
	err = p.PublishRollups(context.Background(), []schema.CountyRollupRecord{
		{HarvestYear: 2023, FIPS: "01001", CropName: "corn"},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
