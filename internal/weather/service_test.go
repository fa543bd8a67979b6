package weather

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-etl/internal/tabular"
)

// stubFetcher answers by the "lat" query parameter of the requested URL.
type stubFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string]error
	calls    []string
}

func (f *stubFetcher) Fetch(_ context.Context, raw string) (tabular.Payload, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	lat := u.Query().Get("lat")

	f.mu.Lock()
	f.calls = append(f.calls, lat)
	f.mu.Unlock()

	if err := f.failures[lat]; err != nil {
		return nil, err
	}
	body, ok := f.bodies[lat]
	if !ok {
		return nil, nil
	}
	return tabular.Decode(strings.NewReader(body))
}

type staticCities []City

func (c staticCities) Cities(context.Context) ([]City, error) { return c, nil }

type recordingWriter struct {
	feed  string
	table *tabular.Table
	at    time.Time
	err   error
}

func (w *recordingWriter) Write(feed string, table *tabular.Table, at time.Time) (string, error) {
	w.feed, w.table, w.at = feed, table, at
	if w.err != nil {
		return "", w.err
	}
	return "data/" + feed + "/report.json", nil
}

type recordingObjects struct{ paths []string }

func (o *recordingObjects) Upload(_ context.Context, path string) (string, error) {
	o.paths = append(o.paths, path)
	return "gs://bucket/" + path, nil
}

type recordingLoader struct {
	uri, table string
}

func (l *recordingLoader) Load(_ context.Context, uri, table string) (int64, error) {
	l.uri, l.table = uri, table
	return 3, nil
}

type memoryRuns struct{ runs []RunSummary }

func (m *memoryRuns) SaveRun(s RunSummary) { m.runs = append(m.runs, s) }
func (m *memoryRuns) LatestRun(string) (RunSummary, error) {
	if len(m.runs) == 0 {
		return RunSummary{}, errors.New("none")
	}
	return m.runs[len(m.runs)-1], nil
}
func (m *memoryRuns) ListRuns(string, int) ([]RunSummary, error) { return m.runs, nil }

func currentBody(name string, mains ...string) string {
	var items []string
	for _, m := range mains {
		items = append(items, fmt.Sprintf(`{"main":%q}`, m))
	}
	return fmt.Sprintf(`{"name":%q,"dt":1700003600,"weather":[%s]}`, name, strings.Join(items, ","))
}

func threeCities() staticCities {
	return staticCities{
		{Name: "One", Latitude: 1, Longitude: 10},
		{Name: "Two", Latitude: 2, Longitude: 20},
		{Name: "Three", Latitude: 3, Longitude: 30},
	}
}

func names(t *testing.T, table *tabular.Table) []string {
	t.Helper()
	var out []string
	for _, r := range table.Rows() {
		v, _ := r.Get("name")
		out = append(out, v.(string))
	}
	return out
}

func TestAccumulateSkipsFailedCityInOrder(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			fetcher := &stubFetcher{
				bodies: map[string]string{
					"1": currentBody("One", "Clear", "Mist"),
					"3": currentBody("Three", "Rain"),
				},
				failures: map[string]error{"2": errors.New("connection refused")},
			}
			svc := NewService(Dependencies{Fetcher: fetcher}, Options{Concurrency: concurrency})

			table, err := svc.Accumulate(context.Background(), CurrentFeed, threeCities(), extractedAt)
			require.NoError(t, err)
			assert.Equal(t, []string{"One", "One", "Three"}, names(t, table))
			assert.Len(t, fetcher.calls, 3)
		})
	}
}

func TestAccumulateNilPayloadContributesNothing(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string]string{"2": currentBody("Two", "Clear")}}
	svc := NewService(Dependencies{Fetcher: fetcher}, Options{})

	table, err := svc.Accumulate(context.Background(), CurrentFeed, threeCities(), extractedAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"Two"}, names(t, table))
}

func TestAccumulateMalformedPayload(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string]string{
		"1": `{"list":[{"dt":1,"weather":[{"main":"A"}]}],"city":{"name":"One"}}`,
		"2": `{"list":[{"dt":2,"weather":[{"main":"B"}]}]}`,
		"3": `{"list":[{"dt":3,"weather":[{"main":"C"}]}],"city":{"name":"Three"}}`,
	}}

	t.Run("aborts by default", func(t *testing.T) {
		svc := NewService(Dependencies{Fetcher: fetcher}, Options{})
		_, err := svc.Accumulate(context.Background(), ForecastFeed, threeCities(), extractedAt)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("isolated", func(t *testing.T) {
		svc := NewService(Dependencies{Fetcher: fetcher}, Options{IsolateCityFailures: true})
		table, err := svc.Accumulate(context.Background(), ForecastFeed, threeCities(), extractedAt)
		require.NoError(t, err)
		require.Equal(t, 2, table.Len())

		var cities []any
		for _, r := range table.Rows() {
			v, _ := r.Get("city")
			cities = append(cities, v)
		}
		assert.Equal(t, []any{"One", "Three"}, cities)
	})
}

func TestRunWritesUploadsAndLoads(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string]string{
		"1": currentBody("One", "Clear"),
		"3": currentBody("Three", "Rain", "Mist"),
	}}
	writer := &recordingWriter{}
	objects := &recordingObjects{}
	loader := &recordingLoader{}
	runs := &memoryRuns{}

	svc := NewService(Dependencies{
		Fetcher: fetcher,
		Cities:  threeCities(),
		Writer:  writer,
		Objects: objects,
		Loader:  loader,
		Runs:    runs,
	}, Options{Tables: map[string]string{"current": "current_prod"}})
	svc.now = func() time.Time { return extractedAt }

	summary, err := svc.Run(context.Background(), CurrentFeed)
	require.NoError(t, err)

	assert.Equal(t, RunSucceeded, summary.Status)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, 3, summary.Cities)
	assert.Equal(t, 2, summary.CitiesWithData)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, "data/current/report.json", summary.LocalPath)
	assert.Equal(t, "gs://bucket/data/current/report.json", summary.ObjectURI)
	assert.Equal(t, int64(3), summary.LoadedRows)
	assert.Equal(t, extractedAt, summary.StartedAt)

	assert.Equal(t, "current", writer.feed)
	assert.Equal(t, extractedAt, writer.at)
	assert.Equal(t, "current_prod", loader.table)
	assert.Equal(t, summary.ObjectURI, loader.uri)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, summary, runs.runs[0])

	for _, r := range writer.table.Rows() {
		v, _ := r.Get(ExtractedColumn)
		assert.Equal(t, "2024-03-09 14:05:07", v)
	}
}

func TestRunWithNoRowsSkipsOutputs(t *testing.T) {
	writer := &recordingWriter{}
	objects := &recordingObjects{}
	runs := &memoryRuns{}
	svc := NewService(Dependencies{
		Fetcher: &stubFetcher{failures: map[string]error{"1": errors.New("boom")}},
		Cities:  threeCities(),
		Writer:  writer,
		Objects: objects,
		Runs:    runs,
	}, Options{})

	summary, err := svc.Run(context.Background(), CurrentFeed)
	require.NoError(t, err)
	assert.Equal(t, RunEmpty, summary.Status)
	assert.Nil(t, writer.table)
	assert.Empty(t, objects.paths)
	assert.Len(t, runs.runs, 1)
}

func TestRunWriteFailureIsFatal(t *testing.T) {
	writer := &recordingWriter{err: errors.New("disk full")}
	objects := &recordingObjects{}
	runs := &memoryRuns{}
	svc := NewService(Dependencies{
		Fetcher: &stubFetcher{bodies: map[string]string{"1": currentBody("One", "Clear")}},
		Cities:  threeCities(),
		Writer:  writer,
		Objects: objects,
		Runs:    runs,
	}, Options{})

	summary, err := svc.Run(context.Background(), CurrentFeed)
	require.Error(t, err)
	assert.Equal(t, RunFailed, summary.Status)
	assert.Contains(t, summary.Error, "disk full")
	assert.Empty(t, objects.paths)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, RunFailed, runs.runs[0].Status)
}

func TestRunRejectsOverlap(t *testing.T) {
	svc := NewService(Dependencies{}, Options{})
	require.True(t, svc.acquire("current"))
	defer svc.release("current")

	_, err := svc.Run(context.Background(), CurrentFeed)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

type recordingMetrics struct {
	mu      sync.Mutex
	runs    []RunSummary
	skipped []string
}

func (m *recordingMetrics) RecordRun(s RunSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, s)
}

func (m *recordingMetrics) RecordCitySkipped(feed, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped = append(m.skipped, feed+":"+reason)
}

func TestRunReportsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	svc := NewService(Dependencies{
		Fetcher: &stubFetcher{
			bodies:   map[string]string{"3": currentBody("Three", "Rain")},
			failures: map[string]error{"1": errors.New("timeout")},
		},
		Cities:  threeCities(),
		Writer:  &recordingWriter{},
		Metrics: metrics,
	}, Options{})

	summary, err := svc.Run(context.Background(), CurrentFeed)
	require.NoError(t, err)

	require.Len(t, metrics.runs, 1)
	assert.Equal(t, summary, metrics.runs[0])
	assert.Equal(t, []string{"current:" + SkipFetchFailed, "current:" + SkipNoData}, metrics.skipped)
}

// blockingFetcher never answers before ctx is done.
type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context, _ string) (tabular.Payload, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunTimeoutFailsRun(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			writer := &recordingWriter{}
			runs := &memoryRuns{}
			metrics := &recordingMetrics{}
			svc := NewService(Dependencies{
				Fetcher: blockingFetcher{},
				Cities:  threeCities(),
				Writer:  writer,
				Runs:    runs,
				Metrics: metrics,
			}, Options{Concurrency: concurrency})

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			summary, err := svc.Run(ctx, CurrentFeed)
			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.NotErrorIs(t, err, ErrFetchFailed)
			assert.Equal(t, RunFailed, summary.Status)
			assert.Nil(t, writer.table)
			require.Len(t, runs.runs, 1)
			assert.Equal(t, RunFailed, runs.runs[0].Status)
			assert.Empty(t, metrics.skipped)
		})
	}
}

func TestRunCancelledFailsRun(t *testing.T) {
	svc := NewService(Dependencies{
		Fetcher: blockingFetcher{},
		Cities:  threeCities(),
		Writer:  &recordingWriter{},
		Runs:    &memoryRuns{},
	}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	summary, err := svc.Run(ctx, CurrentFeed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunFailed, summary.Status)
}
