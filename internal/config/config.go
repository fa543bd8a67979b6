package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	CitiesFromBigQuery = "bigquery"
	CitiesFromFile     = "file"
)

type AppConfig struct {
	OpenWeatherAPIKey  string `validate:"required"`
	OpenWeatherBaseURL string `validate:"required,url"`
	OpenWeatherUnits   string `validate:"omitempty,oneof=standard metric imperial"`

	HTTPTimeout time.Duration `validate:"gt=0"`
	// FetchMaxRetries is the number of retries after the first attempt.
	FetchMaxRetries     int `validate:"min=0,max=10"`
	FetchConcurrency    int `validate:"min=1,max=64"`
	IsolateCityFailures bool

	// Local report files.
	DataDir string `validate:"required"`

	// Object storage. LocalObjectDir is used when GCSBucket is empty.
	GCSBucket      string
	LocalObjectDir string

	// GCP project and warehouse. The load step is skipped without a project.
	GCPProject         string
	GCPCredentialsFile string
	BQDataset          string `validate:"required"`
	BQCurrentTable     string `validate:"required"`
	BQForecastTable    string `validate:"required"`
	BQMaxBadRecords    int64  `validate:"min=0"`

	// Target cities.
	CitiesSource   string `validate:"oneof=bigquery file"`
	CitiesFile     string
	CitiesLimit    int `validate:"min=0"`
	GeocoderAPIKey string

	// Cron expressions. A schedule set to "" leaves the feed manual-only.
	CurrentSchedule  string
	ForecastSchedule string
	RunTimeout       time.Duration `validate:"gt=0"`

	// In-memory run history retention.
	RunHistory int           `validate:"min=0"` // max runs per feed (0 = unlimited)
	RunMaxAge  time.Duration // max age of runs (0 = unlimited)

	Port string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")
	cfg.OpenWeatherUnits = getenvDefault("OPENWEATHER_UNITS", "metric")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.FetchMaxRetries = getenvInt("FETCH_MAX_RETRIES", 3)
	cfg.FetchConcurrency = getenvInt("FETCH_CONCURRENCY", 1)
	cfg.IsolateCityFailures = getenvBool("ISOLATE_CITY_FAILURES", false)

	cfg.DataDir = getenvDefault("DATA_DIR", "data")
	cfg.GCSBucket = os.Getenv("GCS_BUCKET")
	cfg.LocalObjectDir = getenvDefault("LOCAL_OBJECT_DIR", "objects")

	cfg.GCPProject = os.Getenv("GCP_PROJECT")
	cfg.GCPCredentialsFile = os.Getenv("GCP_CREDENTIALS_FILE")
	cfg.BQDataset = getenvDefault("BQ_DATASET", "sample_weather")
	cfg.BQCurrentTable = getenvDefault("BQ_CURRENT_TABLE", "current_test")
	cfg.BQForecastTable = getenvDefault("BQ_FORECAST_TABLE", "forecast_test")
	cfg.BQMaxBadRecords = int64(getenvInt("BQ_MAX_BAD_RECORDS", 200))

	cfg.CitiesSource = getenvDefault("CITIES_SOURCE", CitiesFromBigQuery)
	cfg.CitiesFile = getenvDefault("CITIES_FILE", "cities.yaml")
	cfg.CitiesLimit = getenvInt("CITIES_LIMIT", 10)
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.CurrentSchedule = lookupDefault("CURRENT_SCHEDULE", "*/10 * * * *")
	cfg.ForecastSchedule = lookupDefault("FORECAST_SCHEDULE", "0 */3 * * *")
	if cfg.RunTimeout, err = getenvDuration("RUN_TIMEOUT", "5m"); err != nil {
		return nil, err
	}

	cfg.RunHistory = getenvInt("RUN_HISTORY", 50)
	if cfg.RunMaxAge, err = getenvDuration("RUN_MAX_AGE", "0"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.CitiesSource == CitiesFromBigQuery && cfg.GCPProject == "" {
		return nil, fmt.Errorf("invalid configuration: GCP_PROJECT is required when CITIES_SOURCE=%s", CitiesFromBigQuery)
	}

	return cfg, nil
}

// Tables maps feed names to their configured warehouse table.
func (c *AppConfig) Tables() map[string]string {
	return map[string]string{
		"current":  c.BQCurrentTable,
		"forecast": c.BQForecastTable,
	}
}

// Schedules maps feed names to their cron expression.
func (c *AppConfig) Schedules() map[string]string {
	return map[string]string{
		"current":  c.CurrentSchedule,
		"forecast": c.ForecastSchedule,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupDefault is like getenvDefault but keeps a value set to "".
func lookupDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("WARN: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
		log.Printf("WARN: invalid %s=%q, using %t", key, v, def)
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
