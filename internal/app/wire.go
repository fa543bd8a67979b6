package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/hashicorp/go-multierror"

	"github.com/i474232898/weather-etl/internal/cities"
	"github.com/i474232898/weather-etl/internal/config"
	"github.com/i474232898/weather-etl/internal/metrics"
	"github.com/i474232898/weather-etl/internal/sink"
	"github.com/i474232898/weather-etl/internal/store"
	"github.com/i474232898/weather-etl/internal/warehouse"
	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/internal/weather/providers"
)

// App holds the wired service and the resources that must be released on
// shutdown.
type App struct {
	Service *weather.Service
	Runs    *store.MemoryStore
	Metrics *metrics.PrometheusRecorder

	closers []func() error
}

// Build wires every collaborator of the service from cfg.
func Build(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{}

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	backoff := providers.DefaultBackoff
	backoff.MaxRetries = cfg.FetchMaxRetries
	fetcher := providers.NewOpenWeatherClient(httpClient, backoff)

	var bq *bigquery.Client
	if cfg.GCPProject != "" {
		client, err := warehouse.NewClient(ctx, cfg.GCPProject, cfg.GCPCredentialsFile)
		if err != nil {
			return nil, err
		}
		bq = client
		a.closers = append(a.closers, client.Close)
	}

	var directory weather.CityDirectory
	switch cfg.CitiesSource {
	case config.CitiesFromFile:
		var geo cities.Geocoder
		if g := cities.NewGoogleGeocoder(cfg.GeocoderAPIKey); g != nil {
			geo = g
		}
		directory = cities.NewFileDirectory(cfg.CitiesFile, cfg.CitiesLimit, geo)
	default:
		if bq == nil {
			_ = a.Close()
			return nil, fmt.Errorf("cities source %q needs a GCP project", cfg.CitiesSource)
		}
		directory = warehouse.NewCityDirectory(bq, warehouse.CitiesQuery(cfg.BQDataset, cfg.CitiesLimit))
	}

	deps := weather.Dependencies{
		Fetcher: fetcher,
		Cities:  directory,
		Writer:  sink.NewNDJSONWriter(cfg.DataDir),
	}

	if cfg.GCSBucket != "" {
		gcs, err := sink.NewGCSWriter(ctx, cfg.GCSBucket, cfg.GCPCredentialsFile)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		deps.Objects = gcs

		// BigQuery loads read from Cloud Storage only.
		if bq != nil {
			deps.Loader = warehouse.NewLoader(bq, warehouse.LoadOptions{
				Dataset:       cfg.BQDataset,
				MaxBadRecords: cfg.BQMaxBadRecords,
			})
		} else {
			log.Printf("INFO: GCP_PROJECT not set; warehouse load disabled")
		}
	} else {
		local, err := sink.NewLocalObjectWriter(cfg.LocalObjectDir)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		deps.Objects = local
		log.Printf("INFO: GCS_BUCKET not set; reports copied to %s and not loaded", cfg.LocalObjectDir)
	}

	a.Runs = store.NewMemoryStore(cfg.RunHistory, cfg.RunMaxAge)
	deps.Runs = a.Runs
	a.Metrics = metrics.NewPrometheusRecorder()
	deps.Metrics = a.Metrics

	a.Service = weather.NewService(deps, weather.Options{
		BaseURL:             cfg.OpenWeatherBaseURL,
		APIKey:              cfg.OpenWeatherAPIKey,
		Units:               cfg.OpenWeatherUnits,
		Tables:              cfg.Tables(),
		Concurrency:         cfg.FetchConcurrency,
		IsolateCityFailures: cfg.IsolateCityFailures,
	})
	return a, nil
}

// Close releases cloud clients in reverse order of creation.
func (a *App) Close() error {
	var result error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result
}
