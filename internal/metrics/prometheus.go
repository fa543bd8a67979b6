package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-etl/internal/weather"
)

// PrometheusRecorder exposes feed run metrics on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec
	rowsWritten        *prometheus.CounterVec
	rowsLoaded         *prometheus.CounterVec
	citySkipCounter    *prometheus.CounterVec
}

var _ weather.MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder with Go and process collectors
// registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weather_etl_run_duration_seconds",
			Help:    "Duration of feed runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"feed", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_etl_runs_total",
			Help: "Total number of feed runs by status.",
		}, []string{"feed", "status"}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_etl_rows_written_total",
			Help: "Total report rows written by feed.",
		}, []string{"feed"}),
		rowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_etl_rows_loaded_total",
			Help: "Total rows loaded into the warehouse by feed.",
		}, []string{"feed"}),
		citySkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_etl_city_skips_total",
			Help: "Total cities that contributed no rows, by reason.",
		}, []string{"feed", "reason"}),
	}

	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.rowsWritten)
	registry.MustRegister(r.rowsLoaded)
	registry.MustRegister(r.citySkipCounter)

	return r
}

// Registry returns the Prometheus registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordRun records the outcome of a finished run.
func (r *PrometheusRecorder) RecordRun(s weather.RunSummary) {
	status := string(s.Status)
	r.runStatusCounter.WithLabelValues(s.Feed, status).Inc()
	if !s.FinishedAt.IsZero() {
		r.runDurationSeconds.WithLabelValues(s.Feed, status).Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	}
	if s.Status == weather.RunSucceeded {
		r.rowsWritten.WithLabelValues(s.Feed).Add(float64(s.Rows))
		r.rowsLoaded.WithLabelValues(s.Feed).Add(float64(s.LoadedRows))
	}
	log.Printf("DEBUG: metrics: %s run %s recorded as %s", s.Feed, s.ID, status)
}

// RecordCitySkipped counts a city that contributed no rows.
func (r *PrometheusRecorder) RecordCitySkipped(feed, reason string) {
	r.citySkipCounter.WithLabelValues(feed, reason).Inc()
}
