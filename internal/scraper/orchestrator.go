// internal/scraper/orchestrator.go

// Package scraper drives one source at a time through the browser: page
// expansion, per-page sessions, challenge handling, humanized browsing and
// extraction, with a whole-source retry budget.
package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/antidetect"
	"github.com/valpere/CatalogHarvest/internal/browser"
	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
	"github.com/valpere/CatalogHarvest/internal/extract"
	"github.com/valpere/CatalogHarvest/internal/monitoring"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// SessionOpener hands out one isolated page session per page attempt.
type SessionOpener interface {
	OpenSession(ctx context.Context, profile browser.FingerprintProfile) (browser.PageSession, error)
}

// ManagerOpener adapts a *browser.SessionManager to SessionOpener.
type ManagerOpener struct {
	Manager *browser.SessionManager
}

// OpenSession implements SessionOpener.
func (o ManagerOpener) OpenSession(ctx context.Context, profile browser.FingerprintProfile) (browser.PageSession, error) {
	s, err := o.Manager.OpenSession(ctx, profile)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// EgressPool hands out one proxy per session and learns from how the
// session went.
type EgressPool interface {
	Acquire() (*browser.ProxyEndpoint, error)
	Report(ep *browser.ProxyEndpoint, err error)
}

// Extractor turns page HTML into raw records.
type Extractor interface {
	Extract(name, html string, opts extract.Options) []catalog.RawRecord
}

// ChallengeGate waits for a page to become passable.
type ChallengeGate interface {
	AwaitPassable(ctx context.Context, page browser.Page, src config.SourceConfig) antidetect.PassResult
}

// Browsing simulates a human reading the page.
type Browsing interface {
	SimulateBrowsing(ctx context.Context, page browser.Page)
}

// SourceResult is the outcome of RunSource.
type SourceResult struct {
	Source   string
	Category catalog.Category
	Items    []catalog.RawRecord
	Success  bool
	Attempts int
	Stats    catalog.SourceStats
	Err      error
}

// Orchestrator runs sources sequentially against one SessionOpener.
type Orchestrator struct {
	opener    SessionOpener
	extractor Extractor
	crawl     config.CrawlConfig
	retry     errors.RetryConfig

	challenge ChallengeGate
	humanizer Browsing
	profiles  func() browser.FingerprintProfile
	egress    EgressPool

	sleep   utils.Sleeper
	rng     *rand.Rand
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithChallengeHandler(g ChallengeGate) Option {
	return func(o *Orchestrator) { o.challenge = g }
}

func WithHumanizer(b Browsing) Option {
	return func(o *Orchestrator) { o.humanizer = b }
}

// WithProfiles sets the generator called once per session.
func WithProfiles(next func() browser.FingerprintProfile) Option {
	return func(o *Orchestrator) { o.profiles = next }
}

// WithEgress routes every session through a proxy taken from pool.
func WithEgress(pool EgressPool) Option {
	return func(o *Orchestrator) { o.egress = pool }
}

func WithSleeper(s utils.Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = utils.OrNop(l) }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an orchestrator. Challenge handling and
// humanization are skipped unless their options are given.
func NewOrchestrator(opener SessionOpener, extractor Extractor, crawl config.CrawlConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		opener:    opener,
		extractor: extractor,
		crawl:     crawl,
		retry: errors.RetryConfig{
			BaseDelay:     crawl.RetryBaseDelay,
			MaxDelay:      crawl.RetryMaxDelay,
			BackoffFactor: 2,
			Jitter:        0.2,
		},
		profiles: browser.DefaultProfile,
		sleep:    utils.Sleep,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	o.logger = o.logger.Named("scraper")
	return o
}

// RunSource crawls every page of src, retrying the whole source with
// backoff while it yields nothing. src.RetryCount is the total number of
// attempts.
func (o *Orchestrator) RunSource(ctx context.Context, src config.SourceConfig) SourceResult {
	logger := o.logger.With(zap.String("source", src.Name))
	res := SourceResult{
		Source:   src.Name,
		Category: src.Category,
		Items:    []catalog.RawRecord{},
		Stats:    catalog.SourceStats{Name: src.Name, Category: src.Category},
	}

	pages := o.expandSource(src, logger)
	if len(pages) == 0 {
		res.Err = errors.ForSource(errors.KindExhausted, "expand", src.Name, fmt.Errorf("no valid entry URLs"))
		return o.finish(res, logger)
	}

	budget := src.RetryCount
	if budget < 1 {
		budget = 1
	}

	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			delay := o.retry.Delay(attempt, o.rng)
			logger.Info("retrying source",
				zap.Int("attempt", attempt),
				zap.Int("budget", budget),
				zap.Duration("backoff", delay))
			if err := o.sleep(ctx, delay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		res.Attempts = attempt
		o.metrics.SourceAttempt(src.Name)

		items, err := o.runAttempt(ctx, src, pages, &res.Stats, logger)
		if err != nil {
			res.Err = err
			return o.finish(res, logger)
		}
		if len(items) > 0 {
			res.Items = items
			break
		}
		logger.Warn("attempt yielded no items", zap.Int("attempt", attempt))
	}

	if len(res.Items) == 0 {
		cause := fmt.Errorf("no items after %d attempt(s)", res.Attempts)
		if err := ctx.Err(); err != nil {
			cause = fmt.Errorf("%w (%v)", err, cause)
		}
		res.Err = errors.ForSource(errors.KindExhausted, "scrape", src.Name, cause)
	} else {
		res.Success = true
	}
	return o.finish(res, logger)
}

func (o *Orchestrator) finish(res SourceResult, logger *zap.Logger) SourceResult {
	res.Stats.Success = res.Success
	res.Stats.Attempts = res.Attempts
	res.Stats.Items = len(res.Items)
	if res.Err != nil {
		res.Stats.Error = res.Err.Error()
	}
	o.metrics.SourceFinished(res.Source, res.Success)

	switch {
	case !res.Success:
		logger.Error("source failed", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	default:
		logger.Info("source finished", zap.Int("items", len(res.Items)), zap.Int("attempts", res.Attempts))
	}
	return res
}

// expandSource expands every entry URL. A URL that fails to expand is
// logged and skipped.
func (o *Orchestrator) expandSource(src config.SourceConfig, logger *zap.Logger) []string {
	var pages []string
	for _, entry := range src.URLs {
		expanded, err := ExpandPages(entry, src.Pagination)
		if err != nil {
			logger.Warn("skipping entry URL", zap.String("url", entry), zap.Error(err))
			continue
		}
		pages = append(pages, expanded...)
	}
	return pages
}

// runAttempt visits pages in order and stops once the running deduplicated
// count reaches MinItems. Only a fatal error is returned; page failures are
// counted in stats.
func (o *Orchestrator) runAttempt(ctx context.Context, src config.SourceConfig, pages []string, stats *catalog.SourceStats, logger *zap.Logger) ([]catalog.RawRecord, error) {
	seen := catalog.NewDeduper()
	items := []catalog.RawRecord{}

	for i, pageURL := range pages {
		if i > 0 {
			if err := o.sleep(ctx, utils.Jitter(o.rng, o.crawl.PacingMin, o.crawl.PacingMax)); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		stats.PagesTried++
		records, err := o.fetchPage(ctx, src, pageURL, stats, logger)
		if err != nil {
			if errors.KindOf(err) == errors.KindFatal {
				return nil, err
			}
			stats.PagesFailed++
			o.metrics.PageFailed(src.Name, errors.KindOf(err).String())
			logger.Warn("page failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		items = append(items, records...)
		for _, r := range records {
			seen.Add("", r.Title, r.URL)
		}
		logger.Debug("page done",
			zap.String("url", pageURL),
			zap.Int("records", len(records)),
			zap.Int("unique", seen.Len()))

		if src.MinItems > 0 && seen.Len() >= src.MinItems {
			logger.Info("minimum items reached, stopping early",
				zap.Int("unique", seen.Len()),
				zap.Int("min_items", src.MinItems))
			break
		}
	}
	return items, nil
}

// fetchPage runs the per-page sequence on a fresh session.
func (o *Orchestrator) fetchPage(ctx context.Context, src config.SourceConfig, pageURL string, stats *catalog.SourceStats, logger *zap.Logger) (_ []catalog.RawRecord, err error) {
	profile := o.profiles()
	if o.egress != nil {
		ep, aerr := o.egress.Acquire()
		if aerr != nil {
			return nil, errors.ForSource(errors.KindTransient, "acquire proxy", src.Name, aerr)
		}
		profile.Proxy = ep
		defer func() {
			if ctx.Err() == nil {
				o.egress.Report(ep, err)
			}
		}()
		logger = logger.With(zap.String("proxy", ep.Name))
	}

	session, err := o.opener.OpenSession(ctx, profile)
	if err != nil {
		if errors.KindOf(err) == errors.KindUnknown {
			err = errors.ForSource(errors.KindTransient, "open session", src.Name, err)
		}
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Debug("closing session", zap.Error(cerr))
		}
	}()

	navCtx, cancel := o.withTimeout(ctx, o.crawl.NavigationTimeout)
	err = session.Navigate(navCtx, pageURL)
	cancel()
	if err != nil {
		return nil, errors.ForSource(errors.KindTransient, "navigate", src.Name, err)
	}

	if o.challenge != nil {
		pass := o.challenge.AwaitPassable(ctx, session, src)
		if pass.Detected {
			stats.Challenges++
			o.metrics.ChallengeSeen(src.Name, pass.Passed)
		}
		if !pass.Passed {
			stats.Blocked++
			return nil, errors.ForSource(errors.KindTransient, "challenge", src.Name,
				fmt.Errorf("still blocked at %s after %dms (%s)", pageURL, pass.WaitedMs, pass.Vendor))
		}
	}

	if o.humanizer != nil {
		o.humanizer.SimulateBrowsing(ctx, session)
	}

	if ready := src.Selectors.Ready; ready != "" {
		if err := session.WaitReady(ctx, ready, o.crawl.ReadyTimeout); err != nil {
			logger.Warn("ready selector not found, extracting anyway",
				zap.String("url", pageURL),
				zap.String("selector", ready),
				zap.Error(err))
		}
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, errors.ForSource(errors.KindTransient, "read html", src.Name, err)
	}

	records := o.extractor.Extract(src.ExtractorName(), html, extract.Options{
		PageURL:   pageURL,
		Source:    src.Name,
		Category:  src.Category,
		Selectors: src.Selectors,
	})
	o.metrics.PageFetched(src.Name)
	o.metrics.ItemsExtracted(src.Name, len(records))
	return records, nil
}

func (o *Orchestrator) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
