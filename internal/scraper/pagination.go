// internal/scraper/pagination.go
package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/valpere/CatalogHarvest/internal/config"
)

const (
	pagePlaceholder   = "{page}"
	offsetPlaceholder = "{offset}"

	defaultStartPage = 2
	defaultPageSize  = 20
)

// PaginationStrategy builds the URL of one page of a listing.
type PaginationStrategy interface {
	// PageURL returns the URL for the given 1-based page number
	PageURL(page int) (string, error)

	// GetName returns the strategy name
	GetName() string
}

// TemplatedBaseStrategy substitutes page numbers directly into a base URL
// that already carries a placeholder.
type TemplatedBaseStrategy struct {
	Template string
	PageSize int
}

func (s *TemplatedBaseStrategy) PageURL(page int) (string, error) {
	return substitute(s.Template, page, s.PageSize), nil
}

func (s *TemplatedBaseStrategy) GetName() string { return "templated_base" }

// QueryStrategy merges a query fragment such as "?page={page}" into the
// base URL's existing query string. Parameters of the same name are
// replaced; the others keep their order.
type QueryStrategy struct {
	Base     *url.URL
	Template string
	PageSize int
}

func (s *QueryStrategy) PageURL(page int) (string, error) {
	fragment := strings.TrimLeft(substitute(s.Template, page, s.PageSize), "?&")
	return mergeQuery(s.Base, fragment), nil
}

func (s *QueryStrategy) GetName() string { return "query" }

// PathStrategy appends a path fragment such as "page/{page}/" to the base
// path with exactly one separating slash. An existing query string on the
// base is kept after the new path.
type PathStrategy struct {
	Base     *url.URL
	Template string
	PageSize int
}

func (s *PathStrategy) PageURL(page int) (string, error) {
	fragment := substitute(s.Template, page, s.PageSize)

	var query string
	if i := strings.IndexByte(fragment, '?'); i >= 0 {
		fragment, query = fragment[:i], fragment[i+1:]
	}

	u := *s.Base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(fragment, "/")
	u.RawPath = ""
	if query != "" {
		return mergeQuery(&u, query), nil
	}
	return u.String(), nil
}

func (s *PathStrategy) GetName() string { return "path" }

// ExpandPages turns one entry URL into its ordered page sequence. The first
// element is always the entry page itself; pagination adds MaxPages more
// pages numbered from StartPage.
func ExpandPages(baseURL string, p *config.PaginationConfig) ([]string, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("empty base URL")
	}

	start, size, maxPages := defaultStartPage, defaultPageSize, 0
	template := ""
	if p != nil {
		if p.StartPage > 0 {
			start = p.StartPage
		}
		if p.PageSize > 0 {
			size = p.PageSize
		}
		if p.MaxPages > 0 {
			maxPages = p.MaxPages
		}
		template = strings.TrimSpace(p.Template)
	}

	strategy, first, err := newStrategy(baseURL, template, size)
	if err != nil {
		return nil, err
	}

	pages := []string{first}
	if strategy == nil {
		return pages, nil
	}
	for page := start; page < start+maxPages; page++ {
		next, err := strategy.PageURL(page)
		if err != nil {
			return nil, fmt.Errorf("page %d of %s: %w", page, baseURL, err)
		}
		if !isAbsolute(next) {
			return nil, fmt.Errorf("page %d of %s expanded to invalid URL %q", page, baseURL, next)
		}
		pages = append(pages, next)
	}
	return pages, nil
}

// newStrategy picks the strategy for a base URL and template and returns
// the URL of the first page. A nil strategy means the base is the only page.
func newStrategy(baseURL, template string, size int) (PaginationStrategy, string, error) {
	if hasPlaceholder(baseURL) {
		s := &TemplatedBaseStrategy{Template: baseURL, PageSize: size}
		first, _ := s.PageURL(1)
		if !isAbsolute(first) {
			return nil, "", fmt.Errorf("invalid base URL %q", baseURL)
		}
		return s, first, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, "", fmt.Errorf("invalid base URL %q", baseURL)
	}
	if template == "" {
		return nil, baseURL, nil
	}
	if !hasPlaceholder(template) {
		return nil, "", fmt.Errorf("pagination template %q has no %s or %s placeholder", template, pagePlaceholder, offsetPlaceholder)
	}

	if isQueryTemplate(template) {
		return &QueryStrategy{Base: base, Template: template, PageSize: size}, baseURL, nil
	}
	return &PathStrategy{Base: base, Template: template, PageSize: size}, baseURL, nil
}

// isQueryTemplate reports whether template names a query parameter rather
// than a path fragment: "?page={page}", "&p={page}" or "page={page}".
func isQueryTemplate(template string) bool {
	if strings.HasPrefix(template, "?") || strings.HasPrefix(template, "&") {
		return true
	}
	eq := strings.IndexByte(template, '=')
	if eq < 0 {
		return false
	}
	ph := placeholderIndex(template)
	return ph > eq && !strings.Contains(template[:eq], "/")
}

func mergeQuery(base *url.URL, fragment string) string {
	u := *base
	add, err := url.ParseQuery(fragment)
	if err != nil {
		add = url.Values{}
	}

	var kept []string
	for _, part := range strings.Split(u.RawQuery, "&") {
		if part == "" {
			continue
		}
		key := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = part[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if _, replaced := add[key]; replaced {
			continue
		}
		kept = append(kept, part)
	}
	if fragment != "" {
		kept = append(kept, fragment)
	}
	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false
	return u.String()
}

func substitute(template string, page, size int) string {
	return strings.NewReplacer(
		pagePlaceholder, strconv.Itoa(page),
		offsetPlaceholder, strconv.Itoa((page-1)*size),
	).Replace(template)
}

func hasPlaceholder(s string) bool {
	return placeholderIndex(s) >= 0
}

func placeholderIndex(s string) int {
	i := strings.Index(s, pagePlaceholder)
	if j := strings.Index(s, offsetPlaceholder); j >= 0 && (i < 0 || j < i) {
		i = j
	}
	return i
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
