package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Input files.
	CommunesShapefile string
	CommunesCSV       string
	ObservationsCSV   string
	YieldsCSV         string

	Departments     []string
	ReferenceDate   time.Time
	AssignWorkers   int
	RegionCacheSize int
	PublishYear     int // default year for queries and publishing; 0 uses the latest year in the observations

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka series sink.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSinkTopic     string
	BatchSize          int
	BatchFlushInterval time.Duration

	// Postgres series store; empty disables it.
	DatabaseURL string

	// Mapbox region labeling configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	refDate, err := time.Parse(time.DateOnly, sharedcfg.EnvOrDefault("REFERENCE_DATE", "2020-01-01"))
	if err != nil {
		return nil, errors.New("invalid REFERENCE_DATE: want YYYY-MM-DD")
	}

	workers, err := parsePositiveInt("ASSIGN_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	regionCacheSize, err := parsePositiveInt("REGION_CACHE_SIZE", 4)
	if err != nil {
		return nil, err
	}
	publishYear, err := parsePublishYear()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		CommunesShapefile: sharedcfg.EnvOrDefault("COMMUNES_SHP", "data/communes-20220101-shp/communes-20220101.shp"),
		CommunesCSV:       sharedcfg.EnvOrDefault("COMMUNES_CSV", "data/cog_ensemble_2021_csv/commune2021.csv"),
		ObservationsCSV:   sharedcfg.EnvOrDefault("OBSERVATIONS_CSV", "data/ERA5_data.csv"),
		YieldsCSV:         os.Getenv("YIELDS_CSV"),

		Departments:     parseDepartments(sharedcfg.EnvOrDefault("DEPARTMENTS", "27,28")),
		ReferenceDate:   refDate,
		AssignWorkers:   workers,
		RegionCacheSize: regionCacheSize,
		PublishYear:     publishYear,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "department-weather-series"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.CommunesShapefile == "" {
		return nil, errors.New("COMMUNES_SHP is required")
	}
	if cfg.ObservationsCSV == "" {
		return nil, errors.New("OBSERVATIONS_CSV is required")
	}
	if len(cfg.Departments) == 0 {
		return nil, errors.New("DEPARTMENTS is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseDepartments(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parsePublishYear() (int, error) {
	s := os.Getenv("PUBLISH_YEAR")
	if s == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > 2200 {
		return 0, errors.New("invalid PUBLISH_YEAR")
	}
	return year, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
