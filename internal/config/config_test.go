package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker   = "localhost:9092"
	testMapboxToken = "pk.test-token"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/communes-20220101-shp/communes-20220101.shp", cfg.CommunesShapefile)
	assert.Equal(t, "data/cog_ensemble_2021_csv/commune2021.csv", cfg.CommunesCSV)
	assert.Equal(t, "data/ERA5_data.csv", cfg.ObservationsCSV)
	assert.Empty(t, cfg.YieldsCSV)
	assert.Equal(t, []string{"27", "28"}, cfg.Departments)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.ReferenceDate)
	assert.Equal(t, 4, cfg.AssignWorkers)
	assert.Equal(t, 4, cfg.RegionCacheSize)
	assert.Zero(t, cfg.PublishYear)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "department-weather-series", cfg.KafkaSinkTopic)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("COMMUNES_SHP", "/srv/communes.shp")
	t.Setenv("COMMUNES_CSV", "/srv/commune2021.csv")
	t.Setenv("OBSERVATIONS_CSV", "/srv/era5.csv")
	t.Setenv("YIELDS_CSV", "/srv/agreste.csv")
	t.Setenv("DEPARTMENTS", " 27 , 28,")
	t.Setenv("REFERENCE_DATE", "2021-06-15")
	t.Setenv("ASSIGN_WORKERS", "8")
	t.Setenv("REGION_CACHE_SIZE", "2")
	t.Setenv("PUBLISH_YEAR", "2019")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/agri?sslmode=disable")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("MAPBOX_CACHE_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/communes.shp", cfg.CommunesShapefile)
	assert.Equal(t, "/srv/commune2021.csv", cfg.CommunesCSV)
	assert.Equal(t, "/srv/era5.csv", cfg.ObservationsCSV)
	assert.Equal(t, "/srv/agreste.csv", cfg.YieldsCSV)
	assert.Equal(t, []string{"27", "28"}, cfg.Departments)
	assert.Equal(t, time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC), cfg.ReferenceDate)
	assert.Equal(t, 8, cfg.AssignWorkers)
	assert.Equal(t, 2, cfg.RegionCacheSize)
	assert.Equal(t, 2019, cfg.PublishYear)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "postgres://u:p@localhost/agri?sslmode=disable", cfg.DatabaseURL)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 500, cfg.MapboxCacheSize)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidReferenceDate(t *testing.T) {
	t.Setenv("REFERENCE_DATE", "01/01/2020")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFERENCE_DATE")
}

func TestLoad_InvalidWorkers(t *testing.T) {
	t.Setenv("ASSIGN_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASSIGN_WORKERS")
}

func TestLoad_InvalidRegionCacheSize(t *testing.T) {
	t.Setenv("REGION_CACHE_SIZE", "many")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGION_CACHE_SIZE")
}

func TestLoad_InvalidPublishYear(t *testing.T) {
	t.Setenv("PUBLISH_YEAR", "20x0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUBLISH_YEAR")
}

func TestLoad_EmptyDepartments(t *testing.T) {
	t.Setenv("DEPARTMENTS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEPARTMENTS")
}

func TestLoad_InvalidMapboxTimeout(t *testing.T) {
	t.Setenv("MAPBOX_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TIMEOUT")
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}
