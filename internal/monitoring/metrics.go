// internal/monitoring/metrics.go
package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors. It owns its registry
// so tests and multiple runs in one process do not collide. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Crawl metrics
	pagesFetched   *prometheus.CounterVec
	pagesFailed    *prometheus.CounterVec
	challenges     *prometheus.CounterVec
	itemsExtracted *prometheus.CounterVec
	sourceAttempts *prometheus.CounterVec
	sourcesDone    *prometheus.CounterVec

	// Enrichment metrics
	enrichLookups *prometheus.CounterVec

	// Output metrics
	viewsWritten *prometheus.CounterVec
	sinkWrites   *prometheus.CounterVec

	// Run metrics
	runDuration  prometheus.Histogram
	lastRunItems *prometheus.GaugeVec
	lastRunEnd   prometheus.Gauge
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	// EnableGoMetrics adds the Go runtime and process collectors
	EnableGoMetrics bool `json:"enable_go_metrics"`
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "catalogharvest"
	}
	if config.Subsystem == "" {
		config.Subsystem = "pipeline"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}
	ns, sub := config.Namespace, config.Subsystem

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      name,
			Help:      help,
		}, labels)
		m.registry.MustRegister(c)
		return c
	}

	m.pagesFetched = counter("pages_fetched_total", "Pages whose HTML reached extraction", "source")
	m.pagesFailed = counter("pages_failed_total", "Pages skipped after an error", "source", "reason")
	m.challenges = counter("challenges_total", "Anti-bot interstitials seen, by outcome", "source", "outcome")
	m.itemsExtracted = counter("items_extracted_total", "Raw records extracted", "source")
	m.sourceAttempts = counter("source_attempts_total", "Whole-source attempts, including retries", "source")
	m.sourcesDone = counter("sources_finished_total", "Sources finished, by status", "source", "status")
	m.enrichLookups = counter("enrich_lookups_total", "Metadata provider lookups, by outcome", "outcome")
	m.viewsWritten = counter("views_written_total", "View files written", "category")
	m.sinkWrites = counter("sink_writes_total", "Sink writes, by status", "sink", "status")

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full pipeline run",
		Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})
	m.lastRunItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "last_run_items",
		Help:      "Records per category in the last run",
	}, []string{"category"})
	m.lastRunEnd = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
	m.registry.MustRegister(m.runDuration, m.lastRunItems, m.lastRunEnd)

	if config.EnableGoMetrics {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry, for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Crawl metrics
func (m *Metrics) PageFetched(source string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(source).Inc()
}

func (m *Metrics) PageFailed(source, reason string) {
	if m == nil {
		return
	}
	m.pagesFailed.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) ChallengeSeen(source string, passed bool) {
	if m == nil {
		return
	}
	outcome := "blocked"
	if passed {
		outcome = "passed"
	}
	m.challenges.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ItemsExtracted(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemsExtracted.WithLabelValues(source).Add(float64(count))
}

func (m *Metrics) SourceAttempt(source string) {
	if m == nil {
		return
	}
	m.sourceAttempts.WithLabelValues(source).Inc()
}

func (m *Metrics) SourceFinished(source string, success bool) {
	if m == nil {
		return
	}
	m.sourcesDone.WithLabelValues(source, status(success)).Inc()
}

// Enrichment metrics. Outcome is hit, miss, cached or error.
func (m *Metrics) EnrichLookup(outcome string) {
	if m == nil {
		return
	}
	m.enrichLookups.WithLabelValues(outcome).Inc()
}

// Output metrics
func (m *Metrics) ViewWritten(category string) {
	if m == nil {
		return
	}
	m.viewsWritten.WithLabelValues(category).Inc()
}

func (m *Metrics) SinkWrite(sink string, success bool) {
	if m == nil {
		return
	}
	m.sinkWrites.WithLabelValues(sink, status(success)).Inc()
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(duration time.Duration, perCategory map[string]int, end time.Time) {
	if m == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
	for category, n := range perCategory {
		m.lastRunItems.WithLabelValues(category).Set(float64(n))
	}
	m.lastRunEnd.Set(float64(end.Unix()))
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves the metrics endpoint until ctx is done.
func (m *Metrics) StartMetricsServer(ctx context.Context, address, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
