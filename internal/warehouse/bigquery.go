package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/i474232898/weather-etl/internal/weather"
)

// LoadOptions mirrors the load job settings applied to every report file.
type LoadOptions struct {
	Dataset       string
	MaxBadRecords int64
}

// DefaultLoadOptions targets the sample_weather dataset and tolerates up to
// 200 bad records.
var DefaultLoadOptions = LoadOptions{
	Dataset:       "sample_weather",
	MaxBadRecords: 200,
}

// NewClient opens a BigQuery client. credsFile may be empty to use
// application default credentials.
func NewClient(ctx context.Context, projectID, credsFile string) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return client, nil
}

// Loader appends newline-delimited JSON files from Cloud Storage into tables
// of one dataset.
type Loader struct {
	client *bigquery.Client
	opts   LoadOptions
}

var _ weather.WarehouseLoader = (*Loader)(nil)

// NewLoader creates a Loader on client.
func NewLoader(client *bigquery.Client, opts LoadOptions) *Loader {
	return &Loader{client: client, opts: opts}
}

// GCSReference describes uri as a schema-autodetected NDJSON source.
func GCSReference(uri string, maxBadRecords int64) *bigquery.GCSReference {
	ref := bigquery.NewGCSReference(uri)
	ref.SourceFormat = bigquery.JSON
	ref.AutoDetect = true
	ref.MaxBadRecords = maxBadRecords
	return ref
}

// Configure applies the append-only, field-additive load settings.
func Configure(loader *bigquery.Loader) {
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteAppend
	loader.SchemaUpdateOptions = []string{"ALLOW_FIELD_ADDITION"}
}

// Load runs a load job for uri into table and waits for it to finish.
func (l *Loader) Load(ctx context.Context, uri, table string) (int64, error) {
	loader := l.client.Dataset(l.opts.Dataset).Table(table).LoaderFrom(GCSReference(uri, l.opts.MaxBadRecords))
	Configure(loader)

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("start load job into %s.%s: %w", l.opts.Dataset, table, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("load job %s: %w", job.ID(), err)
	}

	var rows int64
	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
			rows = stats.OutputRows
		}
	}
	return rows, nil
}
