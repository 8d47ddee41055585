// internal/extract/heuristics.go
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// lazyImageAttrs are checked in order; lazy loaders keep the real URL out
// of src until the image scrolls into view.
var lazyImageAttrs = []string{"data-src", "data-original", "data-lazy-src", "srcset", "src"}

var (
	yearPattern   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	ratingPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(/\s*(?:100|10|5)\b|%)?`)
	episodeSuffix = regexp.MustCompile(`(?i)\s*[-:]?\s*\b(episode|ep)\.?\s*\d+.*$`)
)

type languageHint struct {
	pattern *regexp.Regexp
	code    string
}

var languageHints = []languageHint{
	{regexp.MustCompile(`(?i)\bkorean\b`), "ko"},
	{regexp.MustCompile(`(?i)\bjapanese\b`), "ja"},
	{regexp.MustCompile(`(?i)\b(sub|dub|subbed|dubbed)\b`), "ja"},
	{regexp.MustCompile(`(?i)\bhindi\b`), "hi"},
	{regexp.MustCompile(`(?i)\btamil\b`), "ta"},
	{regexp.MustCompile(`(?i)\btelugu\b`), "te"},
	{regexp.MustCompile(`(?i)\bchinese\b`), "zh"},
	{regexp.MustCompile(`(?i)\bthai\b`), "th"},
}

// ImageURL returns the first usable image reference on sel or its first img
// descendant, resolved against pageURL.
func ImageURL(sel *goquery.Selection, pageURL string) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	img := sel.First()
	if goquery.NodeName(img) != "img" {
		if inner := img.Find("img").First(); inner.Length() > 0 {
			img = inner
		}
	}
	for _, name := range lazyImageAttrs {
		v, ok := img.Attr(name)
		if !ok {
			continue
		}
		if name == "srcset" {
			v = firstSrcsetCandidate(v)
		}
		v = strings.TrimSpace(v)
		if v == "" || strings.HasPrefix(v, "data:") {
			continue
		}
		return utils.ResolveURL(pageURL, v)
	}
	return ""
}

func firstSrcsetCandidate(srcset string) string {
	first := strings.TrimSpace(strings.Split(srcset, ",")[0])
	if fields := strings.Fields(first); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// FindYear returns the first four-digit year between 1900 and 2099 in the
// given texts, in order.
func FindYear(values ...string) string {
	for _, t := range values {
		if m := yearPattern.FindString(t); m != "" {
			return m
		}
	}
	return ""
}

// CleanRating pulls the rating token out of a label such as "IMDb 8.1 / 10"
// and returns it in compact form ("8.1/10"). Empty when there is none.
func CleanRating(label string) string {
	for _, m := range ratingPattern.FindAllStringSubmatch(strings.TrimSpace(label), -1) {
		num := strings.Replace(m[1], ",", ".", 1)
		suffix := strings.ReplaceAll(m[2], " ", "")
		// years and counters are not ratings
		if whole := strings.SplitN(num, ".", 2)[0]; len(whole) > 3 {
			continue
		}
		return num + suffix
	}
	return ""
}

// ParseRating converts a rating token to the 0-5 scale. Ten-point values are
// halved and percentages divided by 20. Bare numbers above 5 are taken as
// ten-point, above 10 as percent. Zero and unparseable values report false.
func ParseRating(s string) (float64, bool) {
	s = CleanRating(s)
	if s == "" {
		return 0, false
	}

	scale := 0.0
	switch {
	case strings.HasSuffix(s, "%"):
		scale = 100
		s = strings.TrimSuffix(s, "%")
	case strings.Contains(s, "/"):
		parts := strings.SplitN(s, "/", 2)
		d, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || d <= 0 {
			return 0, false
		}
		scale = d
		s = parts[0]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if scale == 0 {
		switch {
		case v <= 5:
			scale = 5
		case v <= 10:
			scale = 10
		default:
			scale = 100
		}
	}
	v = v * 5 / scale
	if v > 5 {
		v = 5
	}
	return v, true
}

// InferLanguage maps keyword substrings in the given texts to a language
// code. Empty when nothing matches.
func InferLanguage(values ...string) string {
	joined := strings.Join(values, " ")
	for _, h := range languageHints {
		if h.pattern.MatchString(joined) {
			return h.code
		}
	}
	return ""
}

// TypeHint returns label lowercased when it names a known category synonym.
func TypeHint(labels ...string) string {
	for _, l := range labels {
		l = utils.CollapseSpaces(strings.ToLower(l))
		if _, ok := catalog.ParseCategory(l); ok {
			return l
		}
	}
	return ""
}

// StripEpisode removes a trailing "Episode 12" marker from a title.
func StripEpisode(title string) string {
	return strings.TrimSpace(episodeSuffix.ReplaceAllString(title, ""))
}

// text returns the collapsed text of the first match of selector, or ""
// when selector is empty.
func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return utils.CollapseSpaces(s.Find(selector).First().Text())
}

func attr(s *goquery.Selection, selector, name string) string {
	target := s
	if selector != "" {
		target = s.Find(selector).First()
	}
	v, _ := target.Attr(name)
	return strings.TrimSpace(v)
}

// link returns the href of selector within s, falling back to s itself when
// the item node is the anchor.
func link(s *goquery.Selection, selector, pageURL string) string {
	href := ""
	if selector != "" {
		href = attr(s, selector, "href")
	}
	if href == "" && goquery.NodeName(s) == "a" {
		href, _ = s.Attr("href")
	}
	if href == "" {
		href = attr(s, "a[href]", "href")
	}
	return utils.ResolveURL(pageURL, href)
}

func texts(s *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	s.Find(selector).Each(func(_ int, n *goquery.Selection) {
		if t := utils.CollapseSpaces(n.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
