// internal/extract/extract.go

// Package extract turns listing-page HTML into raw catalog candidates. Each
// source has a pure extraction function registered by name; a malformed
// node is skipped without affecting its siblings.
package extract

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// Options carries the page context an extractor needs.
type Options struct {
	// PageURL is used to resolve relative links and images
	PageURL   string
	Source    string
	Category  catalog.Category
	Selectors config.SelectorSet
}

// ExtractFunc parses one listing page. It must be a pure function of its
// inputs.
type ExtractFunc func(doc *goquery.Document, opts Options) []catalog.RawRecord

// Registry maps extractor names to functions. Lookups are case-insensitive.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]ExtractFunc
	logger *zap.Logger
}

// NewRegistry returns a registry holding the built-in extractors.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		byName: make(map[string]ExtractFunc),
		logger: utils.OrNop(logger).Named("extract"),
	}
	r.Register("generic", Generic)
	r.Register("dramacool", DramaCool)
	r.Register("gogoanime", GogoAnime)
	r.Register("yts", YTS)
	r.Register("bollyflix", Bollyflix)
	return r
}

// Register adds or replaces an extractor.
func (r *Registry) Register(name string, fn ExtractFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[normName(name)] = fn
}

// Lookup returns the extractor registered under name.
func (r *Registry) Lookup(name string) (ExtractFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.byName[normName(name)]
	return fn, ok
}

// Names lists registered extractors alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extract parses html and dispatches to the named extractor. An unknown
// name or unparseable document yields an empty slice and a warning.
func (r *Registry) Extract(name, html string, opts Options) []catalog.RawRecord {
	logger := r.logger.With(zap.String("extractor", name), zap.String("source", opts.Source))

	fn, ok := r.Lookup(name)
	if !ok {
		logger.Warn("unknown extractor, returning no records")
		return []catalog.RawRecord{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("failed to parse HTML", zap.Error(err))
		return []catalog.RawRecord{}
	}

	records := safeCall(fn, doc, opts, logger)
	for i := range records {
		if records[i].Source == "" {
			records[i].Source = opts.Source
		}
		if records[i].Category == "" {
			records[i].Category = opts.Category
		}
	}
	logger.Debug("extracted records", zap.Int("count", len(records)), zap.String("page", opts.PageURL))
	return records
}

// safeCall guards against an extractor that panics outside its per-node
// loop, for example on a selector that goquery rejects.
func safeCall(fn ExtractFunc, doc *goquery.Document, opts Options, logger *zap.Logger) (out []catalog.RawRecord) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("extractor panicked", zap.String("panic", fmt.Sprint(rec)))
			out = []catalog.RawRecord{}
		}
	}()
	out = fn(doc, opts)
	if out == nil {
		out = []catalog.RawRecord{}
	}
	return out
}

// eachItem runs parse on every node matched by selector. A node whose parse
// panics or reports false is skipped.
func eachItem(doc *goquery.Document, selector string, parse func(*goquery.Selection) (catalog.RawRecord, bool)) []catalog.RawRecord {
	records := []catalog.RawRecord{}
	if strings.TrimSpace(selector) == "" {
		return records
	}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if rec, ok := parseNode(s, parse); ok {
			records = append(records, rec)
		}
	})
	return records
}

func parseNode(s *goquery.Selection, parse func(*goquery.Selection) (catalog.RawRecord, bool)) (rec catalog.RawRecord, ok bool) {
	defer func() {
		if recover() != nil {
			rec, ok = catalog.RawRecord{}, false
		}
	}()
	rec, ok = parse(s)
	if ok && strings.TrimSpace(rec.Title) == "" {
		return catalog.RawRecord{}, false
	}
	return rec, ok
}

func normName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
