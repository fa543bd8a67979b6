package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/goccy/go-json"

	"github.com/i474232898/weather-etl/internal/app"
	"github.com/i474232898/weather-etl/internal/config"
	"github.com/i474232898/weather-etl/internal/weather"
)

const usage = `weather-etl-run executes a single feed run and prints its summary.

Usage:
  weather-etl-run <feed> [--cities=<file>] [--data-dir=<dir>]
  weather-etl-run -h | --help

Feeds:
  current    current conditions (one row per weather entry)
  forecast   3-hour forecast (one row per forecast period)

Options:
  -h --help          Show this screen.
  --cities=<file>    Read target cities from a YAML file instead of BigQuery.
  --data-dir=<dir>   Directory for local report files.`

func main() {
	opts, err := docopt.ParseDoc(usage)
	if err != nil {
		log.Fatalf("failed to parse arguments: %v", err)
	}

	name, _ := opts.String("<feed>")
	feed, err := weather.FeedByName(name)
	if err != nil {
		log.Fatalf("invalid feed: %v", err)
	}

	// Flags take precedence over the environment and .env.
	if cities, ok := opts["--cities"].(string); ok && cities != "" {
		os.Setenv("CITIES_SOURCE", config.CitiesFromFile)
		os.Setenv("CITIES_FILE", cities)
	}
	if dataDir, ok := opts["--data-dir"].(string); ok && dataDir != "" {
		os.Setenv("DATA_DIR", dataDir)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	wired, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build service: %v", err)
	}
	defer func() {
		if err := wired.Close(); err != nil {
			log.Printf("ERROR: closing clients: %v", err)
		}
	}()

	summary, runErr := wired.Service.Run(ctx, feed)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Printf("ERROR: encode summary: %v", err)
	}

	if runErr != nil {
		_ = wired.Close()
		os.Exit(1)
	}
}
