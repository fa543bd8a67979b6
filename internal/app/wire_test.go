package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-etl/internal/config"
	"github.com/i474232898/weather-etl/internal/weather"
)

const weatherBody = `{
  "coord": {"lon": 125.6081, "lat": 7.0648},
  "weather": [{"id": 803, "main": "Clouds", "description": "broken clouds", "icon": "04d"}],
  "base": "stations",
  "main": {"temp": 30.1, "feels_like": 35.2, "temp_min": 30.1, "temp_max": 30.1, "pressure": 1009, "humidity": 70},
  "visibility": 10000,
  "wind": {"speed": 2.57, "deg": 90},
  "clouds": {"all": 75},
  "dt": 1700000000,
  "sys": {"country": "PH", "sunrise": 1699999000, "sunset": 1700042000},
  "timezone": 28800,
  "id": 1715348,
  "name": "Davao City",
  "cod": 200
}`

func TestBuildWithFileCitiesAndLocalObjects(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		_, _ = w.Write([]byte(weatherBody))
	}))
	defer api.Close()

	dir := t.TempDir()
	citiesFile := filepath.Join(dir, "cities.yaml")
	require.NoError(t, os.WriteFile(citiesFile, []byte("cities:\n  - name: Davao City\n    latitude: 7.0648\n    longitude: 125.6081\n"), 0o644))

	cfg := &config.AppConfig{
		OpenWeatherAPIKey:  "test-key",
		OpenWeatherBaseURL: api.URL,
		OpenWeatherUnits:   "metric",
		FetchConcurrency:   1,
		DataDir:            filepath.Join(dir, "data"),
		LocalObjectDir:     filepath.Join(dir, "objects"),
		BQDataset:          "sample_weather",
		BQCurrentTable:     "current_test",
		BQForecastTable:    "forecast_test",
		CitiesSource:       config.CitiesFromFile,
		CitiesFile:         citiesFile,
		RunHistory:         5,
	}

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	summary, err := a.Service.Run(context.Background(), weather.CurrentFeed)
	require.NoError(t, err)
	assert.Equal(t, weather.RunSucceeded, summary.Status)
	assert.Equal(t, 1, summary.Rows)
	assert.True(t, strings.HasPrefix(summary.ObjectURI, "file://"))
	assert.Zero(t, summary.LoadedRows)

	latest, err := a.Runs.LatestRun("current")
	require.NoError(t, err)
	assert.Equal(t, summary.ID, latest.ID)
	assert.NotNil(t, a.Metrics)
}

func TestCloseAggregatesErrors(t *testing.T) {
	a := &App{closers: []func() error{
		func() error { return errors.New("bigquery") },
		func() error { return nil },
		func() error { return errors.New("storage") },
	}}

	err := a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bigquery")
	assert.Contains(t, err.Error(), "storage")
	assert.NoError(t, a.Close())
}

func TestBuildBigQueryCitiesNeedProject(t *testing.T) {
	cfg := &config.AppConfig{
		CitiesSource:   config.CitiesFromBigQuery,
		LocalObjectDir: t.TempDir(),
	}

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
