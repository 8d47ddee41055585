// internal/extract/sites.go
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// bollyflixNoise matches the release tags appended to post titles, e.g.
// "Jawan (2023) Hindi WEB-DL 1080p".
var bollyflixNoise = regexp.MustCompile(`(?i)\s*[\[(]?\b(19|20)\d{2}\b[\])]?.*$`)

// Generic extracts records purely from the configured selector set.
func Generic(doc *goquery.Document, opts Options) []catalog.RawRecord {
	sel := opts.Selectors
	return eachItem(doc, sel.Item, func(s *goquery.Selection) (catalog.RawRecord, bool) {
		title := text(s, sel.Title)
		if title == "" {
			title = attr(s, sel.Link, "title")
		}
		if title == "" {
			title = attr(s, "img", "alt")
		}
		if title == "" {
			return catalog.RawRecord{}, false
		}

		rec := catalog.RawRecord{
			Title:  title,
			URL:    link(s, sel.Link, opts.PageURL),
			Year:   FindYear(text(s, sel.Year), title),
			Genres: texts(s, sel.Genre),
			Source: opts.Source,
		}
		if sel.Rating != "" {
			rec.Rating = CleanRating(text(s, sel.Rating))
		}
		if img := imageOf(s, sel.Image, opts.PageURL); img != "" {
			rec.Images = []string{img}
		}
		typeLabel := ""
		if sel.Type != "" {
			typeLabel = text(s, sel.Type)
		}
		rec.Type = TypeHint(typeLabel)
		rec.Language = InferLanguage(title, typeLabel, strings.Join(rec.Genres, " "))
		return rec, true
	})
}

// DramaCool handles the episode-list layout: each card links to the latest
// episode, so the episode marker is stripped from the title and link.
func DramaCool(doc *goquery.Document, opts Options) []catalog.RawRecord {
	sel := withDefaults(opts.Selectors, "ul.list-episode-item li", "h3.title, .title", "a")
	return eachItem(doc, sel.Item, func(s *goquery.Selection) (catalog.RawRecord, bool) {
		title := StripEpisode(text(s, sel.Title))
		if title == "" {
			title = StripEpisode(attr(s, "a", "title"))
		}
		if title == "" {
			return catalog.RawRecord{}, false
		}

		href := link(s, sel.Link, opts.PageURL)
		typeLabel := text(s, ".type")
		rec := catalog.RawRecord{
			Title:  title,
			URL:    seriesURL(href),
			Year:   FindYear(text(s, orDefault(sel.Year, ".time, .year")), title),
			Source: opts.Source,
			Type:   TypeHint(typeLabel),
		}
		if sel.Rating != "" {
			rec.Rating = CleanRating(text(s, sel.Rating))
		}
		if img := imageOf(s, sel.Image, opts.PageURL); img != "" {
			rec.Images = []string{img}
		}
		rec.Language = InferLanguage(title, typeLabel)
		if rec.Language == "" {
			rec.Language = "ko"
		}
		return rec, true
	})
}

// GogoAnime reads the anime grid: title in the name link's title attribute,
// release year in "Released: 2023".
func GogoAnime(doc *goquery.Document, opts Options) []catalog.RawRecord {
	sel := withDefaults(opts.Selectors, "ul.items li", "p.name a", "p.name a")
	return eachItem(doc, sel.Item, func(s *goquery.Selection) (catalog.RawRecord, bool) {
		title := attr(s, sel.Title, "title")
		if title == "" {
			title = text(s, sel.Title)
		}
		if title == "" {
			return catalog.RawRecord{}, false
		}

		rec := catalog.RawRecord{
			Title:    title,
			URL:      link(s, sel.Link, opts.PageURL),
			Year:     FindYear(text(s, orDefault(sel.Year, "p.released"))),
			Source:   opts.Source,
			Type:     "anime",
			Language: InferLanguage(title),
		}
		if rec.Language == "" {
			rec.Language = "ja"
		}
		if img := imageOf(s, orDefault(sel.Image, ".img img"), opts.PageURL); img != "" {
			rec.Images = []string{img}
		}
		return rec, true
	})
}

// YTS reads the film browser. The figcaption carries "7.1 / 10" in
// h4.rating followed by one h4 per genre.
func YTS(doc *goquery.Document, opts Options) []catalog.RawRecord {
	sel := withDefaults(opts.Selectors, ".browse-movie-wrap", ".browse-movie-title", "a.browse-movie-link")
	return eachItem(doc, sel.Item, func(s *goquery.Selection) (catalog.RawRecord, bool) {
		title := text(s, sel.Title)
		if title == "" {
			return catalog.RawRecord{}, false
		}

		href := attr(s, sel.Link, "href")
		if href == "" {
			href = attr(s, sel.Title, "href")
		}

		var genres []string
		s.Find("figcaption h4").Each(func(_ int, h *goquery.Selection) {
			if h.HasClass("rating") {
				return
			}
			if g := utils.CollapseSpaces(h.Text()); g != "" {
				genres = append(genres, g)
			}
		})

		rec := catalog.RawRecord{
			Title:    title,
			URL:      utils.ResolveURL(opts.PageURL, href),
			Year:     FindYear(text(s, orDefault(sel.Year, ".browse-movie-year")), title),
			Rating:   CleanRating(text(s, orDefault(sel.Rating, "h4.rating"))),
			Genres:   genres,
			Source:   opts.Source,
			Type:     "movie",
			Language: InferLanguage(title),
		}
		if img := imageOf(s, orDefault(sel.Image, "img.img-responsive"), opts.PageURL); img != "" {
			rec.Images = []string{img}
		}
		return rec, true
	})
}

// Bollyflix reads blog-style post cards whose titles embed the year, the
// audio language and release tags.
func Bollyflix(doc *goquery.Document, opts Options) []catalog.RawRecord {
	sel := withDefaults(opts.Selectors, "article", ".post-title a, h2 a, h3 a", ".post-title a, h2 a, h3 a")
	return eachItem(doc, sel.Item, func(s *goquery.Selection) (catalog.RawRecord, bool) {
		full := text(s, sel.Title)
		if full == "" {
			full = attr(s, "img", "alt")
		}
		title := strings.TrimSpace(bollyflixNoise.ReplaceAllString(full, ""))
		if title == "" {
			title = full
		}
		if title == "" {
			return catalog.RawRecord{}, false
		}

		genres := texts(s, orDefault(sel.Genre, ".post-category a, .cat-links a"))
		rec := catalog.RawRecord{
			Title:    title,
			URL:      link(s, sel.Link, opts.PageURL),
			Year:     FindYear(full),
			Genres:   genres,
			Source:   opts.Source,
			Type:     TypeHint(genres...),
			Language: InferLanguage(full, strings.Join(genres, " ")),
		}
		if rec.Language == "" {
			rec.Language = "hi"
		}
		if img := imageOf(s, orDefault(sel.Image, "img"), opts.PageURL); img != "" {
			rec.Images = []string{img}
		}
		return rec, true
	})
}

func imageOf(s *goquery.Selection, selector, pageURL string) string {
	if selector == "" {
		selector = "img"
	}
	return ImageURL(s.Find(selector), pageURL)
}

// seriesURL maps ".../show-name-episode-12.html" to ".../show-name.html"
// so every episode card of a show shares one URL.
func seriesURL(href string) string {
	i := strings.LastIndex(href, "-episode-")
	if i < 0 {
		return href
	}
	rest := href[i+len("-episode-"):]
	suffix := ""
	if j := strings.IndexAny(rest, "./?"); j >= 0 {
		suffix = rest[j:]
	}
	return href[:i] + suffix
}

func withDefaults(sel config.SelectorSet, item, title, href string) config.SelectorSet {
	sel.Item = orDefault(sel.Item, item)
	sel.Title = orDefault(sel.Title, title)
	sel.Link = orDefault(sel.Link, href)
	return sel
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
