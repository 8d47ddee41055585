// internal/pipeline/runner.go
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
	"github.com/valpere/CatalogHarvest/internal/monitoring"
	"github.com/valpere/CatalogHarvest/internal/output"
	"github.com/valpere/CatalogHarvest/internal/scraper"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// Fetcher crawls one source. *scraper.Orchestrator implements it.
type Fetcher interface {
	RunSource(ctx context.Context, src config.SourceConfig) scraper.SourceResult
}

// Enricher merges provider metadata into a batch. *enrich.Service
// implements it.
type Enricher interface {
	EnrichAll(ctx context.Context, records []catalog.ContentRecord) ([]catalog.ContentRecord, catalog.PipelineRunStats)
}

// Runner drives one full run: fetch, normalize, enrich, distribute.
type Runner struct {
	sources    []config.SourceConfig
	fetcher    Fetcher
	normalizer *Normalizer
	feed       *output.FeedWriter

	enricher Enricher
	sinks    []output.Sink
	report   bool

	now     func() time.Time
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEnricher enables enrichment for sources whose enrich flag is set.
func WithEnricher(e Enricher) RunnerOption {
	return func(r *Runner) { r.enricher = e }
}

// WithSinks mirrors the final records to each sink after the views are
// published.
func WithSinks(sinks ...output.Sink) RunnerOption {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

// WithReport writes report.xlsx next to the views.
func WithReport(enabled bool) RunnerOption {
	return func(r *Runner) { r.report = enabled }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = utils.OrNop(l) }
}

func WithMetrics(m *monitoring.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner over sources in registry order.
func NewRunner(sources []config.SourceConfig, fetcher Fetcher, feed *output.FeedWriter, opts ...RunnerOption) *Runner {
	r := &Runner{
		sources: sources,
		fetcher: fetcher,
		feed:    feed,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("pipeline")
	r.normalizer = NewNormalizer(r.now, r.logger)
	return r
}

// Run processes every source sequentially and publishes the views.
// Exhausted sources are recorded in the returned stats and the run goes on
// with what was collected. A fatal error, an output failure or
// cancellation stops the run before anything is published.
func (r *Runner) Run(ctx context.Context) (*catalog.PipelineRunStats, error) {
	stats := catalog.NewRunStats(r.now().UTC())
	byCategory := make(map[catalog.Category][]catalog.ContentRecord)

	r.logger.Info("run started", zap.Int("sources", len(r.sources)))

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			stats.Finish(r.now().UTC())
			return stats, fmt.Errorf("run cancelled: %w", err)
		}
		if src.Disabled {
			r.logger.Info("skipping disabled source", zap.String("source", src.Name))
			continue
		}

		res := r.fetcher.RunSource(ctx, src)
		stats.Merge(res.Stats.RunStats())
		if res.Err != nil && errors.IsFatal(res.Err) {
			stats.Finish(r.now().UTC())
			r.logger.Error("run aborted", zap.String("source", src.Name), zap.Error(res.Err))
			return stats, res.Err
		}
		if len(res.Items) == 0 {
			continue
		}

		records := r.normalizer.Normalize(res.Items, src)
		if r.enricher != nil && src.ShouldEnrich() && len(records) > 0 {
			var es catalog.PipelineRunStats
			records, es = r.enricher.EnrichAll(ctx, records)
			stats.Merge(es)
		}
		for _, rec := range records {
			byCategory[rec.Category] = append(byCategory[rec.Category], rec)
		}
	}
	if err := ctx.Err(); err != nil {
		stats.Finish(r.now().UTC())
		return stats, fmt.Errorf("run cancelled: %w", err)
	}

	now := r.now().UTC()
	views := output.BuildViews(byCategory, now)
	final := indexRecords(views)
	for category, vs := range views {
		stats.PerCategory[category] = indexCount(vs)
	}

	if err := r.feed.Write(views, now); err != nil {
		stats.Finish(r.now().UTC())
		return stats, err
	}

	r.writeSinks(ctx, final, stats)

	stats.Finish(r.now().UTC())
	r.writeStats(stats)
	r.metrics.ObserveRun(stats.Duration(), perCategoryLabels(stats), stats.FinishedAt)

	r.logger.Info("run finished",
		zap.Int("items_fetched", stats.ItemsFetched),
		zap.Int("records", len(final)),
		zap.Int("sources_failed", stats.SourcesFailed),
		zap.Strings("failed_sources", stats.FailedSources),
		zap.Duration("duration", stats.Duration()))
	return stats, nil
}

// writeSinks mirrors records to every sink. Failures are logged and
// recorded, never returned.
func (r *Runner) writeSinks(ctx context.Context, records []catalog.ContentRecord, stats *catalog.PipelineRunStats) {
	for _, sink := range r.sinks {
		err := sink.Write(ctx, records)
		r.metrics.SinkWrite(sink.Name(), err == nil)
		if err != nil {
			stats.SinkFailures = append(stats.SinkFailures, sink.Name())
			r.logger.Error("sink write failed", zap.String("sink", sink.Name()), zap.Error(err))
			continue
		}
		r.logger.Info("sink updated", zap.String("sink", sink.Name()), zap.Int("records", len(records)))
	}
}

func (r *Runner) writeStats(stats *catalog.PipelineRunStats) {
	dir := r.feed.Dir()
	if err := output.WriteJSONFile(filepath.Join(dir, output.RunStatsFile), stats); err != nil {
		r.logger.Warn("failed to write run stats", zap.Error(err))
	}
	if !r.report {
		return
	}
	if err := output.WriteReport(filepath.Join(dir, output.ReportFile), stats); err != nil {
		r.logger.Warn("failed to write run report", zap.Error(err))
	}
}

// indexRecords flattens every category's index view in category order.
func indexRecords(views map[catalog.Category][]catalog.CategoryView) []catalog.ContentRecord {
	var out []catalog.ContentRecord
	for _, category := range output.SortedViewKeys(views) {
		for _, v := range views[category] {
			if v.Name == output.ViewIndex {
				out = append(out, v.Results...)
			}
		}
	}
	return out
}

func indexCount(views []catalog.CategoryView) int {
	for _, v := range views {
		if v.Name == output.ViewIndex {
			return v.Count
		}
	}
	return 0
}

func perCategoryLabels(stats *catalog.PipelineRunStats) map[string]int {
	out := make(map[string]int, len(stats.PerCategory))
	for c, n := range stats.PerCategory {
		out[string(c)] = n
	}
	return out
}
