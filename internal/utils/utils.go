// internal/utils/utils.go
package utils

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// Slugify lowercases s, strips diacritics and joins alphanumeric runs with
// single dashes. Non-Latin scripts that have no ASCII decomposition are
// dropped, so callers must handle an empty result.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = nonSlugChars.ReplaceAllString(folded, "-")
	return strings.Trim(folded, "-")
}

// CollapseSpaces trims s and replaces whitespace runs with one space.
func CollapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// TitleKey is the comparison key for title-based deduplication.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// IsValidURL checks if a string is a valid absolute URL
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ResolveURL resolves ref against base. Protocol-relative and absolute refs
// are handled; an unparseable ref is returned unchanged.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	return b.ResolveReference(r).String()
}

// LastPathSegment returns the final non-empty path segment of a URL,
// without any file extension.
func LastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return ""
	}
	seg := path.Base(p)
	if ext := path.Ext(seg); ext != "" && len(ext) <= 5 {
		seg = strings.TrimSuffix(seg, ext)
	}
	return seg
}
