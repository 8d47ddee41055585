// internal/pipeline/normalize.go

// Package pipeline turns raw extraction output into canonical catalog
// records and drives a full run: fetch, normalize, enrich, distribute.
package pipeline

import (
	"fmt"
	"hash/fnv"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/extract"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// DefaultRating is assigned when a record carries no usable rating.
const DefaultRating = 3.5

// Normalizer converts raw records into deduplicated content records.
type Normalizer struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewNormalizer creates a normalizer. now defaults to time.Now and is read
// once per Normalize call.
func NewNormalizer(now func() time.Time, logger *zap.Logger) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now, logger: utils.OrNop(logger).Named("normalize")}
}

// Normalize cleans, defaults and deduplicates one source batch. Records
// without a title are dropped; the first occurrence of a duplicate wins and
// discovery order is kept.
func (n *Normalizer) Normalize(raw []catalog.RawRecord, src config.SourceConfig) []catalog.ContentRecord {
	now := n.now().UTC()
	transforms := TransformList(src.TitleTransforms)
	dedup := catalog.NewDeduper()
	out := make([]catalog.ContentRecord, 0, len(raw))

	var empty, dupes int
	for _, r := range raw {
		title := n.cleanTitle(r.Title, transforms, src.Name)
		if title == "" {
			empty++
			continue
		}

		rec := catalog.ContentRecord{
			Title:         title,
			OriginalTitle: title,
			URL:           strings.TrimSpace(r.URL),
			Source:        firstNonEmpty(r.Source, src.Name),
			Category:      resolveCategory(r, src.Category),
			Rating:        normalizeRating(r.Rating),
			Genres:        normalizeGenres(r.Genres),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		rec.Year, rec.YearDefaulted = parseYear(r.Year, now.Year())
		rec.Language = strings.ToLower(strings.TrimSpace(r.Language))
		if rec.Language == "" {
			rec.Language = rec.Category.DefaultLanguage()
		}
		if len(r.Images) > 0 {
			rec.Poster = r.Images[0]
		}
		if len(r.Images) > 1 {
			rec.Backdrop = r.Images[1]
		}
		rec.ID = RecordID(rec.Source, rec.URL, rec.Title, rec.Year)

		if !dedup.AddRecord(rec) {
			dupes++
			continue
		}
		out = append(out, rec)
	}

	n.logger.Debug("normalized batch",
		zap.String("source", src.Name),
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(out)),
		zap.Int("empty_titles", empty),
		zap.Int("duplicates", dupes))
	return out
}

func (n *Normalizer) cleanTitle(title string, transforms TransformList, source string) string {
	if len(transforms) > 0 {
		t, err := transforms.Apply(title)
		if err != nil {
			n.logger.Warn("title transform failed", zap.String("source", source), zap.Error(err))
		} else {
			title = t
		}
	}
	t, err := defaultTitleTransforms.Apply(title)
	if err != nil {
		return utils.CollapseSpaces(title)
	}
	return t
}

// RecordID derives a stable identifier. The URL slug is preferred so that
// a title change on the site keeps the id; otherwise title and year are
// used. Titles with no Latin letters fall back to a short hash.
func RecordID(source, rawURL, title string, year int) string {
	if key := urlKey(rawURL); key != "" {
		return utils.Slugify(source + "-" + key)
	}
	if slug := utils.Slugify(title); slug != "" {
		return fmt.Sprintf("%s-%d", slug, year)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	return fmt.Sprintf("%s-%08x-%d", utils.Slugify(source), h.Sum32(), year)
}

// urlKey is the item-specific part of a link: the last path segment plus
// the query values in key order, so script-style links (watch.php?id=7)
// stay distinct. Empty when the link carries neither.
func urlKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	parts := []string{utils.LastPathSegment(rawURL)}
	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, query[k]...)
	}
	return utils.Slugify(strings.Join(parts, "-"))
}

// resolveCategory prefers an explicit type hint, then the extractor's
// guess, then the source category.
func resolveCategory(r catalog.RawRecord, fallback catalog.Category) catalog.Category {
	if c, ok := catalog.ParseCategory(r.Type); ok {
		return c
	}
	if r.Category.Valid() {
		return r.Category
	}
	return fallback
}

// parseYear returns the year found in s, or current and true when s has
// none.
func parseYear(s string, current int) (int, bool) {
	if y := extract.FindYear(s); y != "" {
		if v, err := strconv.Atoi(y); err == nil {
			return v, false
		}
	}
	return current, true
}

func normalizeRating(s string) float64 {
	v, ok := extract.ParseRating(s)
	if !ok {
		return DefaultRating
	}
	v = math.Max(0, math.Min(5, v))
	return math.Round(v*100) / 100
}

func normalizeGenres(genres []string) []string {
	set := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.ToLower(utils.CollapseSpaces(g))
		if g == "" {
			continue
		}
		if _, ok := set[g]; ok {
			continue
		}
		set[g] = struct{}{}
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
