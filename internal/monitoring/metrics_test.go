// internal/monitoring/metrics_test.go
package monitoring

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.PageFetched("yts")
	m.PageFetched("yts")
	m.PageFailed("yts", "transient")
	m.ChallengeSeen("yts", true)
	m.ChallengeSeen("yts", false)
	m.ItemsExtracted("yts", 12)
	m.ItemsExtracted("yts", 0)
	m.SourceAttempt("yts")
	m.SourceFinished("yts", true)
	m.EnrichLookup("hit")
	m.ViewWritten("film")
	m.SinkWrite("mongodb", false)

	if got := testutil.ToFloat64(m.pagesFetched.WithLabelValues("yts")); got != 2 {
		t.Errorf("pages fetched = %v", got)
	}
	if got := testutil.ToFloat64(m.challenges.WithLabelValues("yts", "blocked")); got != 1 {
		t.Errorf("blocked challenges = %v", got)
	}
	if got := testutil.ToFloat64(m.itemsExtracted.WithLabelValues("yts")); got != 12 {
		t.Errorf("items extracted = %v", got)
	}
	if got := testutil.ToFloat64(m.sinkWrites.WithLabelValues("mongodb", "failure")); got != 1 {
		t.Errorf("sink failures = %v", got)
	}

	expected := `
# HELP catalogharvest_pipeline_sources_finished_total Sources finished, by status
# TYPE catalogharvest_pipeline_sources_finished_total counter
catalogharvest_pipeline_sources_finished_total{source="yts",status="success"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "catalogharvest_pipeline_sources_finished_total"); err != nil {
		t.Error(err)
	}
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "test", Subsystem: "run"})
	end := time.Unix(1_700_000_000, 0)
	m.ObserveRun(90*time.Second, map[string]int{"drama": 40, "film": 12}, end)

	if got := testutil.ToFloat64(m.lastRunItems.WithLabelValues("drama")); got != 40 {
		t.Errorf("drama items = %v", got)
	}
	if got := testutil.ToFloat64(m.lastRunEnd); got != 1_700_000_000 {
		t.Errorf("last run end = %v", got)
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "test_run_run_duration_seconds"); err != nil || n != 1 {
		t.Errorf("duration histogram count = %d, err = %v", n, err)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.PageFetched("x")
	m.PageFailed("x", "y")
	m.ChallengeSeen("x", true)
	m.ItemsExtracted("x", 1)
	m.SourceAttempt("x")
	m.SourceFinished("x", false)
	m.EnrichLookup("miss")
	m.ViewWritten("drama")
	m.SinkWrite("sql", true)
	m.ObserveRun(time.Second, nil, time.Now())
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
	if m.Handler() == nil {
		t.Error("nil metrics should still return a handler")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(MetricsConfig{EnableGoMetrics: true})
	m.ViewWritten("anime")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `catalogharvest_pipeline_views_written_total{category="anime"} 1`) {
		t.Errorf("missing views counter:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("missing runtime metrics")
	}
}

func TestStartMetricsServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	m := NewMetrics(MetricsConfig{})
	m.SourceAttempt("dramacool")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.StartMetricsServer(ctx, addr, "") }()

	var body string
	for i := 0; i < 50; i++ {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err == nil {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(data)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(body, "catalogharvest_pipeline_source_attempts_total") {
		t.Errorf("metrics endpoint did not serve counters: %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("server returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
