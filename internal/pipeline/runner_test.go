// internal/pipeline/runner_test.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
	"github.com/valpere/CatalogHarvest/internal/output"
	"github.com/valpere/CatalogHarvest/internal/scraper"
)

// fakeFetcher returns canned results per source name.
type fakeFetcher struct {
	items  map[string][]catalog.RawRecord
	errs   map[string]error
	called []string
}

func (f *fakeFetcher) RunSource(_ context.Context, src config.SourceConfig) scraper.SourceResult {
	f.called = append(f.called, src.Name)
	items := f.items[src.Name]
	res := scraper.SourceResult{
		Source:   src.Name,
		Category: src.Category,
		Items:    items,
		Success:  len(items) > 0,
		Attempts: 1,
		Err:      f.errs[src.Name],
	}
	if !res.Success && res.Err == nil {
		res.Err = errors.ForSource(errors.KindExhausted, "scrape", src.Name, fmt.Errorf("no items after 1 attempt(s)"))
	}
	res.Stats = catalog.SourceStats{
		Name:       src.Name,
		Category:   src.Category,
		Success:    res.Success,
		Attempts:   1,
		Items:      len(items),
		PagesTried: 1,
	}
	if res.Err != nil {
		res.Stats.Error = res.Err.Error()
	}
	return res
}

type fakeEnricher struct {
	batches int
}

func (e *fakeEnricher) EnrichAll(_ context.Context, records []catalog.ContentRecord) ([]catalog.ContentRecord, catalog.PipelineRunStats) {
	e.batches++
	out := make([]catalog.ContentRecord, len(records))
	for i, r := range records {
		r.Overview = "overview of " + r.Title
		out[i] = r
	}
	return out, catalog.PipelineRunStats{Enriched: len(records)}
}

type fakeSink struct {
	name    string
	err     error
	written []catalog.ContentRecord
}

func (s *fakeSink) Name() string { return s.name }
func (s *fakeSink) Write(_ context.Context, records []catalog.ContentRecord) error {
	s.written = records
	return s.err
}
func (s *fakeSink) Close() error { return nil }

func drama(name string) config.SourceConfig {
	return config.SourceConfig{Name: name, Category: catalog.CategoryDrama, URLs: []string{"https://" + name + ".test/"}}
}

func readView(t *testing.T, dir string, category catalog.Category, view string) catalog.CategoryView {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, string(category), view+".json"))
	if err != nil {
		t.Fatalf("read %s/%s: %v", category, view, err)
	}
	var v catalog.CategoryView
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s/%s: %v", category, view, err)
	}
	return v
}

func titles(records []catalog.ContentRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestRunner_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{items: map[string][]catalog.RawRecord{
		"first": {
			{Title: "A", Year: "2024", Rating: "8"},
			{Title: "A", Year: "2024", Rating: "0"},
		},
		"second": {
			{Title: "B", Year: "2020", Rating: "9"},
		},
	}}
	enricher := &fakeEnricher{}
	good := &fakeSink{name: "good"}
	bad := &fakeSink{name: "bad", err: fmt.Errorf("connection refused")}

	noEnrich := false
	second := drama("second")
	second.Enrich = &noEnrich
	sources := []config.SourceConfig{drama("first"), second, drama("broken")}

	runner := NewRunner(sources, fetcher, output.NewFeedWriter(dir, zap.NewNop(), nil),
		WithEnricher(enricher),
		WithSinks(good, bad),
		WithReport(true),
		WithClock(fixedClock),
		WithLogger(zap.NewNop()))

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	index := readView(t, dir, catalog.CategoryDrama, output.ViewIndex)
	if index.Count != 2 || len(index.Results) != 2 {
		t.Fatalf("expected 2 drama records, got %d", index.Count)
	}
	a := index.Results[0]
	if a.Title != "A" || a.Rating != 4.0 || a.Year != 2024 {
		t.Errorf("first occurrence of A should win: %+v", a)
	}
	if a.Overview != "overview of A" {
		t.Errorf("A should be enriched, overview = %q", a.Overview)
	}
	if index.Results[1].Overview != "" {
		t.Error("source with enrich disabled should not be enriched")
	}
	if enricher.batches != 1 {
		t.Errorf("expected 1 enrichment batch, got %d", enricher.batches)
	}

	trending := readView(t, dir, catalog.CategoryDrama, output.ViewTrending)
	if got := titles(trending.Results); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("trending order = %v, want [A B]", got)
	}

	for _, c := range catalog.Categories {
		if _, err := os.Stat(filepath.Join(dir, string(c), "index.json")); err != nil {
			t.Errorf("missing %s/index.json: %v", c, err)
		}
	}
	for _, name := range []string{output.GlobalFile, output.SearchIndexFile, output.RunStatsFile, output.ReportFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	if stats.SourcesProcessed != 3 || stats.SourcesFailed != 1 {
		t.Errorf("processed/failed = %d/%d", stats.SourcesProcessed, stats.SourcesFailed)
	}
	if len(stats.FailedSources) != 1 || stats.FailedSources[0] != "broken" {
		t.Errorf("failed sources = %v", stats.FailedSources)
	}
	if stats.ItemsFetched != 3 || stats.Enriched != 1 {
		t.Errorf("items fetched = %d, enriched = %d", stats.ItemsFetched, stats.Enriched)
	}
	if stats.PerCategory[catalog.CategoryDrama] != 2 || stats.PerCategory[catalog.CategoryFilm] != 0 {
		t.Errorf("per category = %v", stats.PerCategory)
	}
	if len(stats.SinkFailures) != 1 || stats.SinkFailures[0] != "bad" {
		t.Errorf("sink failures = %v", stats.SinkFailures)
	}
	if len(good.written) != 2 {
		t.Errorf("good sink got %d records", len(good.written))
	}
	if stats.FinishedAt.IsZero() {
		t.Error("stats should be finished")
	}

	data, err := os.ReadFile(filepath.Join(dir, output.RunStatsFile))
	if err != nil {
		t.Fatal(err)
	}
	var saved catalog.PipelineRunStats
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.SourcesFailed != 1 || saved.PerCategory[catalog.CategoryDrama] != 2 {
		t.Errorf("run_stats.json does not match: %+v", saved)
	}
}

func TestRunner_FatalAborts(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		items: map[string][]catalog.RawRecord{"second": {{Title: "B"}}},
		errs:  map[string]error{"first": errors.Fatal("launch browser", fmt.Errorf("chrome not found"))},
	}
	runner := NewRunner([]config.SourceConfig{drama("first"), drama("second")}, fetcher,
		output.NewFeedWriter(dir, nil, nil), WithClock(fixedClock))

	stats, err := runner.Run(context.Background())
	if !errors.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if len(fetcher.called) != 1 {
		t.Errorf("run should stop after the fatal source, called %v", fetcher.called)
	}
	if stats == nil || stats.SourcesFailed != 1 {
		t.Errorf("failed source should still be recorded: %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(dir, output.GlobalFile)); !os.IsNotExist(err) {
		t.Error("nothing should be published after a fatal error")
	}
}

func TestRunner_AllSourcesFailStillPublishes(t *testing.T) {
	dir := t.TempDir()
	runner := NewRunner([]config.SourceConfig{drama("first")}, &fakeFetcher{},
		output.NewFeedWriter(dir, nil, nil), WithClock(fixedClock))

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("exhausted sources should not fail the run: %v", err)
	}
	if stats.SourcesFailed != 1 {
		t.Errorf("sources failed = %d", stats.SourcesFailed)
	}
	if v := readView(t, dir, catalog.CategoryDrama, output.ViewIndex); v.Count != 0 {
		t.Errorf("expected empty index, got %d", v.Count)
	}
}

func TestRunner_SkipsDisabledAndHonoursCancel(t *testing.T) {
	fetcher := &fakeFetcher{}
	off := drama("off")
	off.Disabled = true

	runner := NewRunner([]config.SourceConfig{off}, fetcher, output.NewFeedWriter(t.TempDir(), nil, nil), WithClock(fixedClock))
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fetcher.called) != 0 {
		t.Errorf("disabled source was fetched: %v", fetcher.called)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	runner = NewRunner([]config.SourceConfig{drama("first")}, fetcher, output.NewFeedWriter(dir, nil, nil), WithClock(fixedClock))
	if _, err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, output.GlobalFile)); !os.IsNotExist(err) {
		t.Error("a cancelled run should not publish")
	}
}
