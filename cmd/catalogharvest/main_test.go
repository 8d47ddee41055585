// cmd/catalogharvest/main_test.go
package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
)

func TestCLIVersion(t *testing.T) {
	version = "test-version"
	buildTime = "2025-06-23"
	gitCommit = "abc123"

	output := captureOutput(printVersion)

	for _, want := range []string{"test-version", "2025-06-23", "abc123"} {
		if !strings.Contains(output, want) {
			t.Errorf("version output should contain %q, got: %s", want, output)
		}
	}
}

func TestCLIHelp(t *testing.T) {
	output := captureOutput(printUsage)

	commands := []string{"run", "validate", "sources", "template", "version", "help", "-no-enrich", "-only"}
	for _, cmd := range commands {
		if !strings.Contains(output, cmd) {
			t.Errorf("help output should contain %q, got: %s", cmd, output)
		}
	}
}

func TestParseRunFlags(t *testing.T) {
	opts, err := parseRunFlags([]string{"-config", "c.yaml", "-out", "/tmp/feed", "-only", "yts, bollyflix,", "-no-enrich", "-v", "-metrics-addr", ":9090"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.ConfigFile != "c.yaml" || opts.OutDir != "/tmp/feed" || !opts.NoEnrich || !opts.Verbose || opts.MetricsAddr != ":9090" {
		t.Errorf("unexpected options: %+v", opts)
	}
	if len(opts.Only) != 2 || opts.Only[0] != "yts" || opts.Only[1] != "bollyflix" {
		t.Errorf("only = %v", opts.Only)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, sources, err := loadConfig(runOptions{OutDir: "feed", NoEnrich: true, Only: []string{"YTS"}, MetricsAddr: ":9090"})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Output.Dir != "feed" || cfg.Enrichment.Enabled {
		t.Errorf("overrides not applied: dir=%q enrich=%v", cfg.Output.Dir, cfg.Enrichment.Enabled)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != ":9090" {
		t.Errorf("metrics override not applied: %+v", cfg.Metrics)
	}
	if len(sources) != 1 || sources[0].Name != "yts" || sources[0].Category != catalog.CategoryFilm {
		t.Errorf("unexpected sources: %+v", sources)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := map[string]runOptions{
		"unknown source": {Only: []string{"nope"}},
		"missing file":   {ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := loadConfig(opts)
			if errors.KindOf(err) != errors.KindConfig {
				t.Errorf("expected config error, got %v", err)
			}
			if code := errorService.GetExitCode(err); code != 2 {
				t.Errorf("exit code = %d, want 2", code)
			}
		})
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	yamlConfig := `
name: test
output:
  dir: ./out
sources:
  - name: local
    category: drama
    urls: ["https://example.com/list"]
    selectors:
      item: ".item"
  - name: parked
    category: film
    disabled: true
    urls: ["https://example.com/films"]
    selectors:
      item: ".film"
`
	if err := os.WriteFile(path, []byte(yamlConfig), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, sources, err := loadConfig(runOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Name != "test" || cfg.Output.Dir != "./out" {
		t.Errorf("unexpected config: %q %q", cfg.Name, cfg.Output.Dir)
	}
	if len(sources) != 1 || sources[0].Name != "local" {
		t.Errorf("disabled sources should be skipped: %+v", sources)
	}

	registry, err := config.NewRegistry(cfg.Sources)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	printSources(&buf, registry.All())
	out := buf.String()
	for _, want := range []string{"NAME", "local", "drama", "parked", "disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("sources listing missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateTemplate(t *testing.T) {
	out, err := generateTemplate()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"sources:", "dramacool", "enrichment:", "sinks:"} {
		if !strings.Contains(out, want) {
			t.Errorf("template missing %q", want)
		}
	}
	if _, err := config.LoadFromBytes([]byte(out)); err != nil {
		t.Errorf("template should load back: %v", err)
	}
}

func TestTemplateCommand_SavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "pipeline.yaml")
	out := captureOutput(func() { templateCommand([]string{path}) })
	if !strings.Contains(out, path) {
		t.Errorf("expected confirmation, got %q", out)
	}
	if _, err := config.LoadFromFile(path); err != nil {
		t.Errorf("saved template should load: %v", err)
	}
}

func TestBuildEnricher(t *testing.T) {
	logger := zap.NewNop()

	if e, closeFn := buildEnricher(config.EnrichmentConfig{Enabled: false, APIKey: "k"}, logger, nil); e != nil {
		t.Error("disabled enrichment should give no enricher")
	} else {
		closeFn()
	}
	if e, closeFn := buildEnricher(config.EnrichmentConfig{Enabled: true}, logger, nil); e != nil {
		t.Error("missing API key should give no enricher")
	} else {
		closeFn()
	}

	cfg := config.EnrichmentConfig{
		Enabled:   true,
		APIKey:    "key",
		BaseURL:   "https://api.example.test/3",
		CachePath: filepath.Join(t.TempDir(), "cache", "enrich.db"),
		CacheTTL:  time.Hour,
	}
	e, closeFn := buildEnricher(cfg, logger, nil)
	defer closeFn()
	if e == nil {
		t.Fatal("expected an enricher")
	}
	if _, err := os.Stat(cfg.CachePath); err != nil {
		t.Errorf("cache database should be created: %v", err)
	}
}

func TestBuildEgress(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	if pool, err := buildEgress(ctx, config.ProxyConfig{}, logger); pool != nil || err != nil {
		t.Errorf("disabled rotation should give no pool: %v %v", pool, err)
	}

	cfg := config.ProxyConfig{
		Enabled:          true,
		Rotation:         "round_robin",
		FailureThreshold: 3,
		Providers: []config.ProxyProvider{
			{Name: "a", Type: "http", Host: "10.0.0.1", Port: 3128},
			{Name: "b", Type: "http", Host: "10.0.0.2", Port: 3128, Disabled: true},
		},
	}
	pool, err := buildEgress(ctx, cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	ep, err := pool.Acquire()
	if err != nil || ep.Name != "a" {
		t.Errorf("Acquire() = %+v, %v", ep, err)
	}

	cfg.Providers = cfg.Providers[1:]
	if _, err := buildEgress(ctx, cfg, logger); errors.KindOf(err) != errors.KindConfig {
		t.Errorf("pool without usable providers should be a config error, got %v", err)
	}
}

func TestOpenSinks_SkipsBroken(t *testing.T) {
	sinks := openSinks(context.Background(), []config.SinkConfig{
		{Type: "redis"},
		{Type: "sql", Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "catalog.db")},
	}, zap.NewNop())
	defer func() {
		for _, s := range sinks {
			s.Close()
		}
	}()
	if len(sinks) != 1 || sinks[0].Name() != "sql/sqlite3" {
		t.Errorf("expected only the sqlite sink, got %d", len(sinks))
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	stats := catalog.NewRunStats(start)
	stats.Merge(catalog.SourceStats{Name: "yts", Category: catalog.CategoryFilm, Items: 0}.RunStats())
	stats.PerCategory[catalog.CategoryFilm] = 0
	stats.SinkFailures = []string{"mongodb"}
	stats.Finish(start.Add(90 * time.Second))

	var buf bytes.Buffer
	printSummary(&buf, stats)
	out := buf.String()
	for _, want := range []string{"1m30s", "1 processed, 1 failed", "Failed:  yts", "film", "Sink failures: mongodb"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

// captureOutput captures stdout during function execution
func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		outC <- buf.String()
	}()

	f()
	w.Close()
	os.Stdout = old
	return <-outC
}
