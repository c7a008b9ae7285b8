package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.openweathermap.org", cfg.OpenWeatherBaseURL)
	assert.Equal(t, 10*time.Second, cfg.OpenWeatherTimeout)
	assert.Equal(t, "au", cfg.CountryCode)
	assert.Equal(t, 100, cfg.GeocodeCacheSize)
	assert.Equal(t, "data/weatherAUS.csv", cfg.ReferencePath)
	assert.Equal(t, "data/stations.csv", cfg.StationsPath)
	assert.Equal(t, "data/collected.csv", cfg.ResultsPath)
	assert.Equal(t, "data/collection_window.json", cfg.WindowPath)
	assert.Equal(t, 60, cfg.MaxRequestsPerRun)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "collected-weather-rows", cfg.KafkaTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("OPENWEATHER_BASE_URL", "http://localhost:1234")
	t.Setenv("OPENWEATHER_TIMEOUT", "3s")
	t.Setenv("COUNTRY_CODE", "fr")
	t.Setenv("MAX_REQUESTS_PER_RUN", "25")
	t.Setenv("POSTGRES_DSN", "postgres://etl@localhost/warehouse")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "rows")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.OpenWeatherAPIKey)
	assert.Equal(t, "http://localhost:1234", cfg.OpenWeatherBaseURL)
	assert.Equal(t, 3*time.Second, cfg.OpenWeatherTimeout)
	assert.Equal(t, "fr", cfg.CountryCode)
	assert.Equal(t, 25, cfg.MaxRequestsPerRun)
	assert.Equal(t, "postgres://etl@localhost/warehouse", cfg.PostgresDSN)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "rows", cfg.KafkaTopic)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_InvalidBudget(t *testing.T) {
	t.Setenv("MAX_REQUESTS_PER_RUN", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_REQUESTS_PER_RUN")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("OPENWEATHER_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENWEATHER_TIMEOUT")
}

func TestLoad_MinioRequiresCredentials(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIO")
}

func writeWindowFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "window.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWindow(t *testing.T) {
	path := writeWindowFile(t, `{"period_start":"2024-01-01","period_end":"2024-01-03","search_horizon_end":"2024-01-05"}`)

	window, err := LoadWindow(path)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", domain.FormatDate(window.PeriodStart))
	assert.Equal(t, "2024-01-03", domain.FormatDate(window.PeriodEnd))
	assert.Equal(t, "2024-01-05", domain.FormatDate(window.SearchHorizonEnd))
}

func TestLoadWindow_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWindow(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeWindowFile(t, `{"period_start":`)
		_, err := LoadWindow(path)
		require.Error(t, err)
	})

	t.Run("horizon before period end", func(t *testing.T) {
		path := writeWindowFile(t, `{"period_start":"2024-01-01","period_end":"2024-01-10","search_horizon_end":"2024-01-05"}`)
		_, err := LoadWindow(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search_horizon_end")
	})

	t.Run("end before start", func(t *testing.T) {
		path := writeWindowFile(t, `{"period_start":"2024-02-01","period_end":"2024-01-10","search_horizon_end":"2024-03-05"}`)
		_, err := LoadWindow(path)
		require.Error(t, err)
	})
}
