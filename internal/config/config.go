package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
)

// Config holds all collector settings, populated from environment variables.
type Config struct {
	// OpenWeather access.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	OpenWeatherTimeout time.Duration
	CountryCode        string
	GeocodeCacheSize   int

	// File-backed storage (the default sink and station table).
	ReferencePath string
	StationsPath  string
	ResultsPath   string
	WindowPath    string

	// Run bounds.
	MaxRequestsPerRun int

	// Postgres warehouse; when set it replaces the CSV sink.
	PostgresDSN string

	// Redis cache for pipeline extracts. Optional.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Kafka row publishing. Optional.
	KafkaBrokers []string
	KafkaTopic   string

	// Minio datalake for the generic pipelines. Optional.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Watch mode.
	HTTPAddr        string
	WatchSchedule   string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	timeout, err := envDuration("OPENWEATHER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := envDuration("CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	maxRequests, err := envInt("MAX_REQUESTS_PER_RUN", 60)
	if err != nil {
		return nil, err
	}
	geocodeCacheSize, err := envInt("GEOCODE_CACHE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: envOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		OpenWeatherTimeout: timeout,
		CountryCode:        envOrDefault("COUNTRY_CODE", "au"),
		GeocodeCacheSize:   geocodeCacheSize,

		ReferencePath: envOrDefault("REFERENCE_PATH", "data/weatherAUS.csv"),
		StationsPath:  envOrDefault("STATIONS_PATH", "data/stations.csv"),
		ResultsPath:   envOrDefault("RESULTS_PATH", "data/collected.csv"),
		WindowPath:    envOrDefault("WINDOW_PATH", "data/collection_window.json"),

		MaxRequestsPerRun: maxRequests,

		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		CacheTTL:      cacheTTL,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "collected-weather-rows"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    envOrDefault("MINIO_BUCKET", "weather-datalake"),
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		WatchSchedule:   envOrDefault("WATCH_SCHEDULE", "* * * * *"),
		ShutdownTimeout: shutdownTimeout,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.MaxRequestsPerRun <= 0 {
		return nil, errors.New("MAX_REQUESTS_PER_RUN must be positive")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return nil, errors.New("MINIO_ENDPOINT is set but MINIO_ACCESS_KEY or MINIO_SECRET_KEY is not")
	}

	return cfg, nil
}

// LoadWindow reads the collection window file: a small JSON object holding
// the three reference period dates.
func LoadWindow(path string) (domain.CollectionWindow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.CollectionWindow{}, fmt.Errorf("read collection window: %w", err)
	}

	var raw struct {
		PeriodStart      string `json:"period_start"`
		PeriodEnd        string `json:"period_end"`
		SearchHorizonEnd string `json:"search_horizon_end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.CollectionWindow{}, fmt.Errorf("parse collection window: %w", err)
	}

	start, err := domain.ParseDate(raw.PeriodStart)
	if err != nil {
		return domain.CollectionWindow{}, fmt.Errorf("collection window period_start: %w", err)
	}
	end, err := domain.ParseDate(raw.PeriodEnd)
	if err != nil {
		return domain.CollectionWindow{}, fmt.Errorf("collection window period_end: %w", err)
	}
	horizon, err := domain.ParseDate(raw.SearchHorizonEnd)
	if err != nil {
		return domain.CollectionWindow{}, fmt.Errorf("collection window search_horizon_end: %w", err)
	}

	if end.Before(start) {
		return domain.CollectionWindow{}, errors.New("collection window: period_end before period_start")
	}
	if horizon.Before(end) {
		return domain.CollectionWindow{}, errors.New("collection window: search_horizon_end before period_end")
	}

	return domain.CollectionWindow{PeriodStart: start, PeriodEnd: end, SearchHorizonEnd: horizon}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
