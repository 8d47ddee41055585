// internal/output/views.go
package output

import (
	"sort"
	"strings"
	"time"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// BuildViews derives every view for every category. It is pure: the same
// records and clock give the same views. Categories with no records still
// get empty fixed views so readers always find the files.
func BuildViews(byCategory map[catalog.Category][]catalog.ContentRecord, now time.Time) map[catalog.Category][]catalog.CategoryView {
	stamp := now.UTC().Format(catalog.TimestampLayout)
	nearYear := now.Year() - 1

	out := make(map[catalog.Category][]catalog.CategoryView, len(catalog.Categories))
	for _, category := range viewCategories(byCategory) {
		index := sortIndex(dedupeByTitle(byCategory[category]))

		views := []catalog.CategoryView{
			newView(ViewIndex, index, stamp),
			newView(ViewTrending, limit(trending(index, nearYear), ListLimit), stamp),
			newView(ViewPopular, limit(byRating(index), ListLimit), stamp),
			newView(ViewRecent, limit(recent(index), ListLimit), stamp),
			newView(ViewHeroBanner, limit(heroBanner(index, nearYear), HeroBannerLimit), stamp),
		}
		views = append(views, genreViews(index, stamp)...)
		out[category] = views
	}
	return out
}

// viewCategories returns the enum categories followed by any other keys.
func viewCategories(byCategory map[catalog.Category][]catalog.ContentRecord) []catalog.Category {
	out := append([]catalog.Category(nil), catalog.Categories...)
	var extra []catalog.Category
	for c := range byCategory {
		if !c.Valid() {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func newView(name string, records []catalog.ContentRecord, stamp string) catalog.CategoryView {
	results := make([]catalog.ContentRecord, len(records))
	for i, r := range records {
		results[i] = r.Clone()
		if results[i].Genres == nil {
			results[i].Genres = []string{}
		}
	}
	return catalog.CategoryView{Name: name, Count: len(results), Results: results, UpdatedAt: stamp}
}

// dedupeByTitle keeps the first record per lower-cased trimmed title.
// Input order is source order.
func dedupeByTitle(records []catalog.ContentRecord) []catalog.ContentRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]catalog.ContentRecord, 0, len(records))
	for _, r := range records {
		key := utils.TitleKey(r.Title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// sortIndex orders by year desc, rating desc, title asc, id asc.
func sortIndex(records []catalog.ContentRecord) []catalog.ContentRecord {
	out := append([]catalog.ContentRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
	return out
}

// trending puts records from the last two years first by rating; the rest
// keep index order.
func trending(index []catalog.ContentRecord, nearYear int) []catalog.ContentRecord {
	var near, rest []catalog.ContentRecord
	for _, r := range index {
		if r.Year >= nearYear {
			near = append(near, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(byRating(near), rest...)
}

func byRating(records []catalog.ContentRecord) []catalog.ContentRecord {
	out := append([]catalog.ContentRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out
}

func recent(index []catalog.ContentRecord) []catalog.ContentRecord {
	out := append([]catalog.ContentRecord(nil), index...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Year > b.Year
	})
	return out
}

func heroBanner(index []catalog.ContentRecord, nearYear int) []catalog.ContentRecord {
	var near, rest []catalog.ContentRecord
	for _, r := range index {
		if !r.HasArtwork() {
			continue
		}
		if r.Year >= nearYear {
			near = append(near, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(byRating(near), byRating(rest)...)
}

type genreCount struct {
	name  string
	count int
}

// genreViews emits one slice for each of the top genres holding at least
// MinGenreItems records.
func genreViews(index []catalog.ContentRecord, stamp string) []catalog.CategoryView {
	counts := make(map[string]int)
	for _, r := range index {
		for _, g := range uniqueGenres(r.Genres) {
			counts[g]++
		}
	}
	ranked := make([]genreCount, 0, len(counts))
	for name, n := range counts {
		ranked = append(ranked, genreCount{name, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > TopGenres {
		ranked = ranked[:TopGenres]
	}

	var views []catalog.CategoryView
	names := make(map[string]struct{})
	for _, g := range ranked {
		if g.count < MinGenreItems {
			continue
		}
		slug := GenreSlug(g.name)
		if slug == "" {
			continue
		}
		if _, dup := names[slug]; dup {
			continue
		}
		names[slug] = struct{}{}

		var members []catalog.ContentRecord
		for _, r := range index {
			for _, rg := range r.Genres {
				if strings.ToLower(strings.TrimSpace(rg)) == g.name {
					members = append(members, r)
					break
				}
			}
		}
		views = append(views, newView(GenreViewPrefix+slug, limit(byRating(members), GenreViewLimit), stamp))
	}
	return views
}

// GenreSlug turns a genre into a file-safe view suffix.
func GenreSlug(genre string) string {
	return strings.ReplaceAll(utils.Slugify(genre), "-", "_")
}

func uniqueGenres(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

func limit(records []catalog.ContentRecord, n int) []catalog.ContentRecord {
	if len(records) > n {
		return records[:n]
	}
	return records
}

// SearchEntries flattens the index views into search index entries, in
// category order.
func SearchEntries(views map[catalog.Category][]catalog.CategoryView) []catalog.SearchEntry {
	entries := []catalog.SearchEntry{}
	for _, category := range SortedViewKeys(views) {
		for _, v := range views[category] {
			if v.Name != ViewIndex {
				continue
			}
			for _, r := range v.Results {
				genres := r.Genres
				if genres == nil {
					genres = []string{}
				}
				entries = append(entries, catalog.SearchEntry{
					ID:            r.ID,
					Title:         r.Title,
					OriginalTitle: r.OriginalTitle,
					Poster:        r.Poster,
					Year:          r.Year,
					Rating:        r.Rating,
					ContentType:   category,
					Genres:        genres,
				})
			}
		}
	}
	return entries
}

// Summary builds global.json from the index views.
func Summary(views map[catalog.Category][]catalog.CategoryView, now time.Time) catalog.GlobalSummary {
	s := catalog.GlobalSummary{
		Categories: make(map[catalog.Category]int, len(views)),
		UpdatedAt:  now.UTC().Format(catalog.TimestampLayout),
	}
	for category, vs := range views {
		for _, v := range vs {
			if v.Name == ViewIndex {
				s.Categories[category] = v.Count
				s.TotalItems += v.Count
			}
		}
	}
	return s
}

// SortedViewKeys returns the categories present in views, enum order first.
func SortedViewKeys(views map[catalog.Category][]catalog.CategoryView) []catalog.Category {
	present := make(map[catalog.Category][]catalog.ContentRecord, len(views))
	for c := range views {
		present[c] = nil
	}
	var out []catalog.Category
	for _, c := range viewCategories(present) {
		if _, ok := views[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
