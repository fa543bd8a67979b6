package weather

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configures how the Service talks to the API and how strict it is
// about bad city payloads.
type Options struct {
	BaseURL string
	APIKey  string
	Units   string

	// Tables overrides Feed.Table by feed name.
	Tables map[string]string

	// Concurrency bounds how many cities are processed at once. Values <= 1
	// process cities one after the other.
	Concurrency int

	// IsolateCityFailures skips a city with a malformed payload instead of
	// aborting the run.
	IsolateCityFailures bool
}

// Dependencies bundles the collaborators of a Service. Objects and Loader may
// be nil, in which case the corresponding step is skipped. Metrics is optional.
type Dependencies struct {
	Fetcher Fetcher
	Cities  CityDirectory
	Writer  ReportWriter
	Objects ObjectWriter
	Loader  WarehouseLoader
	Runs    RunStore
	Metrics MetricsRecorder
}

// Service runs feeds end to end: cities, fetch, flatten, enrich, write, load.
type Service struct {
	fetcher Fetcher
	cities  CityDirectory
	writer  ReportWriter
	objects ObjectWriter
	loader  WarehouseLoader
	runs    RunStore
	metrics MetricsRecorder
	opts    Options

	now func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// NewService creates a new Service.
func NewService(deps Dependencies, opts Options) *Service {
	return &Service{
		fetcher: deps.Fetcher,
		cities:  deps.Cities,
		writer:  deps.Writer,
		objects: deps.Objects,
		loader:  deps.Loader,
		runs:    deps.Runs,
		metrics: deps.Metrics,
		opts:    opts,
		now:     time.Now,
		running: make(map[string]bool),
	}
}

// TableFor returns the warehouse table for feed.
func (s *Service) TableFor(feed Feed) string {
	if t, ok := s.opts.Tables[feed.Name]; ok && t != "" {
		return t
	}
	return feed.Table
}

// Run executes one run of feed and records its summary. The returned error is
// also reflected in the summary.
func (s *Service) Run(ctx context.Context, feed Feed) (RunSummary, error) {
	if !s.acquire(feed.Name) {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunInProgress, feed.Name)
	}
	defer s.release(feed.Name)

	extractedAt := s.now()
	summary := RunSummary{
		ID:        uuid.NewString(),
		Feed:      feed.Name,
		StartedAt: extractedAt,
		Table:     s.TableFor(feed),
	}

	err := s.run(ctx, feed, extractedAt, &summary)
	summary.FinishedAt = s.now()
	if err != nil {
		summary.Status = RunFailed
		summary.Error = err.Error()
		log.Printf("ERROR: service: %s run %s failed: %v", feed.Name, summary.ID, err)
	}
	if s.runs != nil {
		s.runs.SaveRun(summary)
	}
	if s.metrics != nil {
		s.metrics.RecordRun(summary)
	}
	return summary, err
}

func (s *Service) run(ctx context.Context, feed Feed, extractedAt time.Time, summary *RunSummary) error {
	cities, err := s.cities.Cities(ctx)
	if err != nil {
		return fmt.Errorf("load cities: %w", err)
	}
	summary.Cities = len(cities)
	log.Printf("INFO: service: %s run %s started for %d cities", feed.Name, summary.ID, len(cities))

	parts, err := s.collect(ctx, feed, cities, extractedAt)
	if err != nil {
		return err
	}

	report, withData := concat(parts)
	summary.CitiesWithData = withData
	summary.Rows = report.Len()

	if report.Len() == 0 {
		log.Printf("INFO: service: %s run %s produced no rows; skipping write and load", feed.Name, summary.ID)
		summary.Status = RunEmpty
		return nil
	}

	path, err := s.writer.Write(feed.Name, report, extractedAt)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	summary.LocalPath = path

	if s.objects == nil {
		summary.Status = RunSucceeded
		return nil
	}
	uri, err := s.objects.Upload(ctx, path)
	if err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	summary.ObjectURI = uri

	if s.loader != nil {
		loaded, err := s.loader.Load(ctx, uri, summary.Table)
		if err != nil {
			return fmt.Errorf("load report: %w", err)
		}
		summary.LoadedRows = loaded
	}

	summary.Status = RunSucceeded
	log.Printf("INFO: service: %s run %s wrote %d rows to %s", feed.Name, summary.ID, summary.Rows, uri)
	return nil
}

// LatestRun delegates to the run store.
func (s *Service) LatestRun(feed string) (RunSummary, error) {
	return s.runs.LatestRun(feed)
}

// ListRuns delegates to the run store.
func (s *Service) ListRuns(feed string, limit int) ([]RunSummary, error) {
	return s.runs.ListRuns(feed, limit)
}

func (s *Service) acquire(feed string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[feed] {
		return false
	}
	s.running[feed] = true
	return true
}

func (s *Service) release(feed string) {
	s.mu.Lock()
	delete(s.running, feed)
	s.mu.Unlock()
}

func (s *Service) citySkipped(feed, reason string) {
	if s.metrics != nil {
		s.metrics.RecordCitySkipped(feed, reason)
	}
}
