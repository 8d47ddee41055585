// cmd/catalogharvest/main.go - catalog pipeline command line
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/valpere/CatalogHarvest/internal/antidetect"
	"github.com/valpere/CatalogHarvest/internal/browser"
	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/enrich"
	"github.com/valpere/CatalogHarvest/internal/errors"
	"github.com/valpere/CatalogHarvest/internal/extract"
	"github.com/valpere/CatalogHarvest/internal/monitoring"
	"github.com/valpere/CatalogHarvest/internal/output"
	"github.com/valpere/CatalogHarvest/internal/pipeline"
	"github.com/valpere/CatalogHarvest/internal/proxy"
	"github.com/valpere/CatalogHarvest/internal/scraper"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var errorService = errors.NewService()

// runOptions are the flags of the run command.
type runOptions struct {
	ConfigFile  string
	OutDir      string
	Only        []string
	NoEnrich    bool
	Verbose     bool
	MetricsAddr string
}

func parseRunFlags(args []string) (runOptions, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	opts := runOptions{}
	var only string
	fs.StringVar(&opts.ConfigFile, "config", "", "pipeline configuration file (default: built-in sources)")
	fs.StringVar(&opts.OutDir, "out", "", "output directory (overrides output.dir)")
	fs.StringVar(&only, "only", "", "comma-separated source names to run")
	fs.BoolVar(&opts.NoEnrich, "no-enrich", false, "skip metadata enrichment")
	fs.BoolVar(&opts.Verbose, "v", false, "verbose logging and error details")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	for _, name := range strings.Split(only, ",") {
		if name = strings.TrimSpace(name); name != "" {
			opts.Only = append(opts.Only, name)
		}
	}
	return opts, nil
}

// loadConfig reads the configuration, applies command-line overrides and
// returns the sources selected for this run.
func loadConfig(opts runOptions) (*config.PipelineConfig, []config.SourceConfig, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.LoadFromFile(opts.ConfigFile)
		if err != nil {
			return nil, nil, errors.New(errors.KindConfig, "load config", err)
		}
		cfg = loaded
	}
	if opts.OutDir != "" {
		cfg.Output.Dir = opts.OutDir
	}
	if opts.NoEnrich {
		cfg.Enrichment.Enabled = false
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = opts.MetricsAddr
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	registry, err := config.NewRegistry(cfg.Sources)
	if err != nil {
		return nil, nil, errors.New(errors.KindConfig, "build registry", err)
	}
	registry, err = registry.Only(opts.Only)
	if err != nil {
		return nil, nil, errors.New(errors.KindConfig, "select sources", err)
	}
	sources := registry.Sources()
	if len(sources) == 0 {
		return nil, nil, errors.New(errors.KindConfig, "select sources", fmt.Errorf("no enabled sources"))
	}
	return cfg, sources, nil
}

func runCommand(args []string) {
	opts, err := parseRunFlags(args)
	if err != nil {
		os.Exit(2)
	}
	errorService = errorService.WithVerbose(opts.Verbose)

	cfg, sources, err := loadConfig(opts)
	if err != nil {
		fail(err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel, opts.Verbose)
	if err != nil {
		fail(errors.New(errors.KindConfig, "create logger", err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := runPipeline(ctx, cfg, sources, logger)
	if stats != nil {
		printSummary(os.Stdout, stats)
	}
	if err != nil {
		fail(err)
	}
}

// buildEgress returns the proxy pool, or nil when rotation is off. A pool
// with health checks enabled is checked once up front and then every
// HealthCheckRate until ctx ends.
func buildEgress(ctx context.Context, cfg config.ProxyConfig, logger *zap.Logger) (*proxy.Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	pool, err := proxy.NewManager(cfg, rand.New(rand.NewSource(time.Now().UnixNano())), logger.Named("proxy"))
	if err != nil {
		return nil, err
	}
	if !pool.Enabled() {
		return nil, errors.New(errors.KindConfig, "proxy.pool", fmt.Errorf("proxy rotation enabled without usable providers"))
	}
	if cfg.HealthCheck {
		healthy := pool.HealthCheck(ctx)
		logger.Info("proxy pool ready", zap.Int("healthy", healthy), zap.Int("total", pool.Stats().TotalProxies))
		pool.Start(ctx, cfg.HealthCheckRate)
	}
	return pool, nil
}

// runPipeline wires every stage and performs one run. The browser process
// is released on every path.
func runPipeline(ctx context.Context, cfg *config.PipelineConfig, sources []config.SourceConfig, logger *zap.Logger) (*catalog.PipelineRunStats, error) {
	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics(monitoring.MetricsConfig{Namespace: cfg.Metrics.Namespace, EnableGoMetrics: true})
		if addr := cfg.Metrics.ListenAddress; addr != "" {
			go func() {
				if err := metrics.StartMetricsServer(ctx, addr, "/metrics"); err != nil {
					logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
				}
			}()
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	manager, err := browser.NewSessionManager(ctx, cfg.Browser, cfg.Crawl, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := manager.Close(); cerr != nil {
			logger.Warn("closing browser", zap.Error(cerr))
		}
	}()

	fingerprints := antidetect.NewFingerprinter(cfg.Browser.UserAgents, cfg.Browser.Locale, cfg.Browser.Timezone, rng)
	scraperOpts := []scraper.Option{
		scraper.WithProfiles(fingerprints.Next),
		scraper.WithChallengeHandler(antidetect.NewChallengeHandler(cfg.Challenge, utils.Sleep, logger)),
		scraper.WithRand(rng),
		scraper.WithLogger(logger),
		scraper.WithMetrics(metrics),
	}
	pool, err := buildEgress(ctx, cfg.Proxy, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		scraperOpts = append(scraperOpts, scraper.WithEgress(pool))
	}
	if cfg.Humanize.Enabled {
		scraperOpts = append(scraperOpts, scraper.WithHumanizer(antidetect.NewHumanizer(cfg.Humanize, rng, utils.Sleep, logger)))
	}
	orchestrator := scraper.NewOrchestrator(scraper.ManagerOpener{Manager: manager}, extract.NewRegistry(logger), cfg.Crawl, scraperOpts...)

	runnerOpts := []pipeline.RunnerOption{
		pipeline.WithReport(cfg.Output.Report),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	}

	enricher, closeEnricher := buildEnricher(cfg.Enrichment, logger, metrics)
	defer closeEnricher()
	if enricher != nil {
		runnerOpts = append(runnerOpts, pipeline.WithEnricher(enricher))
	}

	sinks := openSinks(ctx, cfg.Sinks, logger)
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("closing sink", zap.String("sink", s.Name()), zap.Error(err))
			}
		}
	}()
	runnerOpts = append(runnerOpts, pipeline.WithSinks(sinks...))

	feed := output.NewFeedWriter(cfg.Output.Dir, logger, metrics)
	runner := pipeline.NewRunner(sources, orchestrator, feed, runnerOpts...)
	return runner.Run(ctx)
}

// buildEnricher returns nil when enrichment is disabled or has no API key.
// The returned close function is always safe to call.
func buildEnricher(cfg config.EnrichmentConfig, logger *zap.Logger, metrics *monitoring.Metrics) (pipeline.Enricher, func()) {
	noop := func() {}
	if !cfg.Enabled {
		return nil, noop
	}
	if cfg.APIKey == "" {
		logger.Warn("enrichment enabled but no API key configured; set TMDB_API_KEY or enrichment.api_key")
		return nil, noop
	}

	opts := []enrich.ServiceOption{enrich.WithLogger(logger), enrich.WithMetrics(metrics)}
	closeFn := noop
	if cfg.CachePath != "" {
		cache, err := enrich.OpenCache(cfg.CachePath, cfg.CacheTTL)
		if err != nil {
			logger.Warn("enrichment cache unavailable, continuing without it", zap.String("path", cfg.CachePath), zap.Error(err))
		} else {
			opts = append(opts, enrich.WithCache(cache))
			closeFn = func() {
				if err := cache.Close(); err != nil {
					logger.Warn("closing enrichment cache", zap.Error(err))
				}
			}
		}
	}
	return enrich.NewService(enrich.NewTMDBClient(cfg, nil), cfg, opts...), closeFn
}

// openSinks connects every configured sink. A sink that cannot be opened is
// logged and left out of the run.
func openSinks(ctx context.Context, configs []config.SinkConfig, logger *zap.Logger) []output.Sink {
	var sinks []output.Sink
	for _, sc := range configs {
		sink, err := output.OpenSink(ctx, sc)
		if err != nil {
			logger.Error("sink unavailable", zap.String("type", sc.Type), zap.Error(err))
			continue
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

func printSummary(w io.Writer, stats *catalog.PipelineRunStats) {
	fmt.Fprintf(w, "Run finished in %s\n", stats.Duration().Round(time.Second))
	fmt.Fprintf(w, "  Sources: %d processed, %d failed\n", stats.SourcesProcessed, stats.SourcesFailed)
	if len(stats.FailedSources) > 0 {
		fmt.Fprintf(w, "  Failed:  %s\n", strings.Join(stats.FailedSources, ", "))
	}
	fmt.Fprintf(w, "  Items fetched: %d\n", stats.ItemsFetched)
	fmt.Fprintf(w, "  Enriched: %d (misses %d)\n", stats.Enriched, stats.EnrichMisses)
	for _, c := range stats.SortedCategories() {
		fmt.Fprintf(w, "  %-10s %d\n", c, stats.PerCategory[c])
	}
	if len(stats.SinkFailures) > 0 {
		fmt.Fprintf(w, "  Sink failures: %s\n", strings.Join(stats.SinkFailures, ", "))
	}
}

func validateCommand(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: validate requires a configuration file")
		os.Exit(2)
	}
	if _, err := config.LoadFromFile(args[0]); err != nil {
		fail(errors.New(errors.KindConfig, "validate", err))
	}
	fmt.Printf("✓ Configuration file '%s' is valid\n", args[0])
}

func sourcesCommand(args []string) {
	fs := flag.NewFlagSet("sources", flag.ContinueOnError)
	configFile := fs.String("config", "", "pipeline configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	cfg, _, err := loadConfig(runOptions{ConfigFile: *configFile})
	if err != nil {
		fail(err)
	}
	registry, err := config.NewRegistry(cfg.Sources)
	if err != nil {
		fail(errors.New(errors.KindConfig, "build registry", err))
	}
	printSources(os.Stdout, registry.All())
}

func printSources(w io.Writer, sources []config.SourceConfig) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tURLS\tMAX PAGES\tMIN ITEMS\tENRICH\tSTATUS")
	for _, s := range sources {
		maxPages := 0
		if s.Pagination != nil {
			maxPages = s.Pagination.MaxPages
		}
		status := "enabled"
		if s.Disabled {
			status = "disabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%t\t%s\n",
			s.Name, s.Category, len(s.URLs), maxPages, s.MinItems, s.ShouldEnrich(), status)
	}
	tw.Flush()
}

func generateTemplate() (string, error) {
	data, err := yaml.Marshal(config.GenerateTemplate())
	if err != nil {
		return "", fmt.Errorf("failed to marshal template to YAML: %w", err)
	}
	return string(data), nil
}

// templateCommand prints the template, or saves it when a path is given.
func templateCommand(args []string) {
	if len(args) > 0 {
		if err := config.SaveToFile(config.GenerateTemplate(), args[0]); err != nil {
			fail(errors.New(errors.KindOutput, "save template", err))
		}
		fmt.Printf("Template written to %s\n", args[0])
		return
	}
	out, err := generateTemplate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}

func fail(err error) {
	fmt.Fprint(os.Stderr, errorService.FormatErrorForCLI(err))
	os.Exit(errorService.GetExitCode(err))
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "run":
		runCommand(args)
	case "validate":
		validateCommand(args)
	case "sources":
		sourcesCommand(args)
	case "template":
		templateCommand(args)
	case "version", "--version", "-version":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`CatalogHarvest - catalog metadata pipeline

Usage:
  catalogharvest <command> [options]

Commands:
  run       Crawl sources, normalize, enrich and publish the feed
            -config <file>      pipeline configuration (default: built-in sources)
            -out <dir>          output directory
            -only <a,b>         run only the named sources
            -no-enrich          skip metadata enrichment
            -metrics-addr <a>   serve Prometheus metrics during the run
            -v                  verbose output
  validate  Validate a configuration file
  sources   List configured sources (-config <file>)
  template  Print a configuration template ([file] saves it instead)
  version   Show version information
  help      Show this help

Environment:
  TMDB_API_KEY  metadata provider key used when enrichment.api_key is empty`)
}

func printVersion() {
	fmt.Printf("catalogharvest %s\n", version)
	fmt.Printf("  build time: %s\n", buildTime)
	fmt.Printf("  git commit: %s\n", gitCommit)
}
