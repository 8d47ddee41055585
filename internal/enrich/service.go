// internal/enrich/service.go
package enrich

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/errors"
	"github.com/valpere/CatalogHarvest/internal/monitoring"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// Lookup outcomes, also used as metric labels.
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeCached = "cached"
	OutcomeError  = "error"
)

// LookupCache remembers provider answers across runs. A nil Metadata with
// ok=true is a remembered miss.
type LookupCache interface {
	Get(ctx context.Context, q Query) (md *Metadata, ok bool, err error)
	Put(ctx context.Context, q Query, md *Metadata) error
}

// Service enriches records one at a time, pacing provider calls.
type Service struct {
	provider Provider
	cache    LookupCache
	pacer    *utils.Pacer
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	cache   LookupCache
	sleep   utils.Sleeper
	rng     *rand.Rand
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

func WithCache(c LookupCache) ServiceOption {
	return func(o *serviceOptions) { o.cache = c }
}

func WithSleeper(s utils.Sleeper) ServiceOption {
	return func(o *serviceOptions) { o.sleep = s }
}

func WithRand(rng *rand.Rand) ServiceOption {
	return func(o *serviceOptions) { o.rng = rng }
}

func WithLogger(l *zap.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = l }
}

func WithMetrics(m *monitoring.Metrics) ServiceOption {
	return func(o *serviceOptions) { o.metrics = m }
}

// NewService creates a service. Provider calls are spaced by a random delay
// in [MinDelay, MaxDelay] and never exceed RequestsPerSecond.
func NewService(provider Provider, cfg config.EnrichmentConfig, opts ...ServiceOption) *Service {
	o := serviceOptions{sleep: utils.Sleep}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		provider: provider,
		cache:    o.cache,
		pacer:    utils.NewPacer(cfg.MinDelay, cfg.MaxDelay, cfg.RequestsPerSecond, o.rng, o.sleep),
		logger:   utils.OrNop(o.logger).Named("enrich"),
		metrics:  o.metrics,
	}
}

// Enrich returns rec merged with provider metadata. Any lookup error or
// miss returns rec unchanged.
func (s *Service) Enrich(ctx context.Context, rec catalog.ContentRecord, category catalog.Category) catalog.ContentRecord {
	out, _ := s.enrich(ctx, rec, category)
	return out
}

func (s *Service) enrich(ctx context.Context, rec catalog.ContentRecord, category catalog.Category) (catalog.ContentRecord, string) {
	if !category.Valid() {
		category = rec.Category
	}
	q := Query{Title: rec.Title, Year: rec.Year, MediaType: category.MediaType()}
	if rec.YearDefaulted {
		q.Year = 0
	}
	logger := s.logger.With(zap.String("id", rec.ID), zap.String("title", rec.Title))

	if s.cache != nil {
		md, ok, err := s.cache.Get(ctx, q)
		switch {
		case err != nil:
			logger.Warn("cache read failed", zap.Error(err))
		case ok:
			s.metrics.EnrichLookup(OutcomeCached)
			if md == nil {
				return rec, OutcomeMiss
			}
			return Merge(rec, md), OutcomeHit
		}
	}

	if _, err := s.pacer.Wait(ctx); err != nil {
		return rec, OutcomeError
	}

	md, err := s.provider.Lookup(ctx, q)
	switch {
	case errors.Is(err, ErrNotFound):
		s.metrics.EnrichLookup(OutcomeMiss)
		logger.Debug("no provider match")
		s.remember(ctx, q, nil, logger)
		return rec, OutcomeMiss
	case err != nil:
		s.metrics.EnrichLookup(OutcomeError)
		logger.Warn("provider lookup failed", zap.Error(err))
		return rec, OutcomeError
	}

	s.metrics.EnrichLookup(OutcomeHit)
	s.remember(ctx, q, md, logger)
	return Merge(rec, md), OutcomeHit
}

func (s *Service) remember(ctx context.Context, q Query, md *Metadata, logger *zap.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, q, md); err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}
}

// EnrichAll enriches a batch sequentially. On cancellation the remaining
// records are returned unchanged.
func (s *Service) EnrichAll(ctx context.Context, records []catalog.ContentRecord) ([]catalog.ContentRecord, catalog.PipelineRunStats) {
	stats := catalog.PipelineRunStats{}
	out := make([]catalog.ContentRecord, len(records))
	for i, rec := range records {
		if ctx.Err() != nil {
			out[i] = rec
			stats.EnrichMisses++
			continue
		}
		enriched, outcome := s.enrich(ctx, rec, rec.Category)
		out[i] = enriched
		if outcome == OutcomeHit {
			stats.Enriched++
		} else {
			stats.EnrichMisses++
		}
	}
	s.logger.Info("enrichment finished",
		zap.Int("records", len(records)),
		zap.Int("enriched", stats.Enriched),
		zap.Int("misses", stats.EnrichMisses))
	return out, stats
}

// Merge applies provider metadata to rec. Overview, genres, runtime and
// trailer come from the provider when it has them. Title, rating and poster
// stay local when set. Backdrop, original title, cast and language only
// fill gaps.
func Merge(rec catalog.ContentRecord, md *Metadata) catalog.ContentRecord {
	out := rec.Clone()
	if md == nil {
		return out
	}

	if md.Overview != "" {
		out.Overview = md.Overview
	}
	if genres := lowerSorted(md.Genres); len(genres) > 0 {
		out.Genres = genres
	}
	if md.Runtime > 0 {
		out.Runtime = md.Runtime
	}
	if md.Trailer != "" {
		out.Trailer = md.Trailer
	}

	if out.Title == "" {
		out.Title = md.Title
	}
	if out.Rating == 0 && md.Rating > 0 {
		out.Rating = md.Rating
	}
	if out.Poster == "" {
		out.Poster = md.Poster
	}

	if out.Backdrop == "" {
		out.Backdrop = md.Backdrop
	}
	if out.OriginalTitle == "" || out.OriginalTitle == out.Title {
		if md.OriginalTitle != "" {
			out.OriginalTitle = md.OriginalTitle
		}
	}
	if len(out.Cast) == 0 && len(md.Cast) > 0 {
		out.Cast = append([]string(nil), md.Cast...)
	}
	if out.Language == "" {
		out.Language = md.Language
	}
	return out
}

func lowerSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
