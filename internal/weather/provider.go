package weather

import (
	"context"
	"time"

	"github.com/i474232898/weather-etl/internal/tabular"
)

// Fetcher retrieves one raw payload. A nil payload with a nil error means the
// API answered without data (non-2xx that is not worth retrying).
type Fetcher interface {
	Fetch(ctx context.Context, url string) (tabular.Payload, error)
}

// CityDirectory supplies the ordered list of target cities.
type CityDirectory interface {
	Cities(ctx context.Context) ([]City, error)
}

// ReportWriter persists a report table locally and returns the file path.
type ReportWriter interface {
	Write(feed string, table *tabular.Table, extractedAt time.Time) (string, error)
}

// ObjectWriter uploads a local file verbatim and returns its remote URI.
type ObjectWriter interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// WarehouseLoader appends the file at uri into table and returns the number
// of rows loaded.
type WarehouseLoader interface {
	Load(ctx context.Context, uri, table string) (int64, error)
}

// RunStore keeps the history of run summaries.
type RunStore interface {
	SaveRun(summary RunSummary)
	LatestRun(feed string) (RunSummary, error)
	ListRuns(feed string, limit int) ([]RunSummary, error)
}

// MetricsRecorder observes run outcomes and skipped cities.
type MetricsRecorder interface {
	RecordRun(summary RunSummary)
	RecordCitySkipped(feed, reason string)
}
