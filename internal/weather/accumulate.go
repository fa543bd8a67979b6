package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-etl/internal/tabular"
)

// Reasons reported to MetricsRecorder.RecordCitySkipped.
const (
	SkipNoData      = "no_data"
	SkipFetchFailed = "fetch_failed"
	SkipMalformed   = "malformed"
)

// ProcessCity fetches, flattens and enriches the feed for one city. A nil
// payload yields an empty table. Fetch errors are wrapped in ErrFetchFailed,
// unless ctx itself is done, in which case ctx.Err() is returned wrapped.
func (s *Service) ProcessCity(ctx context.Context, feed Feed, city City, extractedAt time.Time) (*tabular.Table, error) {
	u := feed.URL(s.opts.BaseURL, s.opts.APIKey, s.opts.Units, city)

	payload, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		// A per-request timeout only skips the city; the run context ending
		// stops the run.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", city.Key(), ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, city.Key(), err)
	}
	if payload == nil {
		log.Printf("INFO: %s feed: no data returned for %s", feed.Name, city.Key())
		s.citySkipped(feed.Name, SkipNoData)
		return tabular.NewTable(), nil
	}

	table, err := feed.Process(payload, extractedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", city.Key(), err)
	}
	return table, nil
}

// Accumulate runs the feed for every city and concatenates the resulting
// rows in city order. Cities whose fetch fails contribute nothing.
func (s *Service) Accumulate(ctx context.Context, feed Feed, cities []City, extractedAt time.Time) (*tabular.Table, error) {
	parts, err := s.collect(ctx, feed, cities, extractedAt)
	if err != nil {
		return nil, err
	}
	report, _ := concat(parts)
	return report, nil
}

// concat joins parts in order and counts the cities that produced rows.
func concat(parts []*tabular.Table) (*tabular.Table, int) {
	report := tabular.NewTable()
	withData := 0
	for _, p := range parts {
		if p.Len() > 0 {
			withData++
		}
		report.Concat(p)
	}
	return report, withData
}

// collect returns one table per city, indexed like cities. Entries are nil
// for skipped cities.
func (s *Service) collect(ctx context.Context, feed Feed, cities []City, extractedAt time.Time) ([]*tabular.Table, error) {
	parts := make([]*tabular.Table, len(cities))

	run := func(ctx context.Context, i int) error {
		city := cities[i]
		log.Printf("DEBUG: %s feed: processing %s", feed.Name, city.Key())

		table, err := s.ProcessCity(ctx, feed, city, extractedAt)
		switch {
		case err == nil:
			parts[i] = table
			return nil
		case errors.Is(err, ErrFetchFailed):
			log.Printf("ERROR: %s feed: %v; skipping city", feed.Name, err)
			s.citySkipped(feed.Name, SkipFetchFailed)
			return nil
		case errors.Is(err, ErrMalformedPayload) && s.opts.IsolateCityFailures:
			log.Printf("ERROR: %s feed: %v; skipping city", feed.Name, err)
			s.citySkipped(feed.Name, SkipMalformed)
			return nil
		default:
			return err
		}
	}

	if s.opts.Concurrency <= 1 {
		for i := range cities {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
		return parts, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range cities {
		i := i
		g.Go(func() error {
			return run(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}
