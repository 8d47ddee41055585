// internal/config/sources.go
package config

import (
	"fmt"
	"strings"

	"github.com/valpere/CatalogHarvest/internal/catalog"
)

// DefaultSources returns the built-in source registry. Hosts change often,
// so every entry can be replaced from the YAML configuration.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:     "dramacool",
			Category: catalog.CategoryDrama,
			URLs: []string{
				"https://dramacool.com.tr/most-popular-drama",
				"https://dramacool.com.tr/recently-added",
			},
			Pagination: &PaginationConfig{Template: "?page={page}", MaxPages: 4},
			Selectors: SelectorSet{
				Item:   "ul.list-episode-item li, .block .list-episode-item li",
				Title:  "h3.title, .title",
				Link:   "a",
				Image:  "img",
				Year:   ".time, .year",
				Rating: ".rating, .score",
				Type:   ".type, .ep",
				Ready:  ".list-episode-item",
			},
			MinItems:   60,
			RetryCount: 3,
		},
		{
			Name:     "kissasian",
			Category: catalog.CategoryDrama,
			URLs:     []string{"https://kissasian.com.lv/drama-list/"},
			Pagination: &PaginationConfig{Template: "page/{page}/", MaxPages: 3},
			Selectors: SelectorSet{
				Item:   "article.item, .items .item",
				Title:  ".data h3, h3",
				Link:   "a",
				Image:  ".poster img, img",
				Year:   ".data span, .year",
				Rating: ".rating",
				Genre:  ".genres a",
				Ready:  ".items",
			},
			MinItems:   40,
			RetryCount: 3,
			Extractor:  "generic",
			TitleTransforms: []TransformRule{
				{Type: "regex", Pattern: `\s*\((19|20)\d{2}\)\s*$`},
			},
		},
		{
			Name:     "gogoanime",
			Category: catalog.CategoryAnime,
			URLs: []string{
				"https://gogoanime3.co/popular.html",
				"https://gogoanime3.co/new-season.html",
			},
			Pagination: &PaginationConfig{Template: "?page={page}", MaxPages: 4},
			Selectors: SelectorSet{
				Item:  "ul.items li",
				Title: "p.name a",
				Link:  "p.name a",
				Image: ".img img",
				Year:  "p.released",
				Ready: "ul.items",
			},
			MinItems:   80,
			RetryCount: 3,
		},
		{
			Name:     "yts",
			Category: catalog.CategoryFilm,
			URLs:     []string{"https://yts.mx/browse-movies/0/all/all/0/featured/0/all"},
			Pagination: &PaginationConfig{Template: "?page={page}", MaxPages: 4},
			Selectors: SelectorSet{
				Item:   ".browse-movie-wrap",
				Title:  ".browse-movie-title",
				Link:   "a.browse-movie-link",
				Image:  "img.img-responsive",
				Year:   ".browse-movie-year",
				Rating: "h4.rating",
				Genre:  "figcaption h4:not(.rating)",
				Ready:  ".browse-movie-wrap",
			},
			MinItems:   60,
			RetryCount: 3,
		},
		{
			Name:     "bollyflix",
			Category: catalog.CategoryBollywood,
			URLs:     []string{"https://bollyflix.how/movies/bollywood/"},
			Pagination: &PaginationConfig{Template: "page/{page}/", MaxPages: 4},
			Selectors: SelectorSet{
				Item:  "article.post-item, article",
				Title: ".post-title a, h2 a, h3 a",
				Link:  ".post-title a, h2 a, h3 a",
				Image: "img",
				Genre: ".post-category a, .cat-links a",
				Ready: "article",
			},
			MinItems:   50,
			RetryCount: 3,
		},
	}
}

// Registry indexes source configurations by name.
type Registry struct {
	order  []string
	byName map[string]SourceConfig
}

// NewRegistry builds a registry, rejecting duplicate or empty names.
func NewRegistry(sources []SourceConfig) (*Registry, error) {
	r := &Registry{byName: make(map[string]SourceConfig, len(sources))}
	for _, s := range sources {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			return nil, fmt.Errorf("source name cannot be empty")
		}
		if _, ok := r.byName[name]; ok {
			return nil, fmt.Errorf("duplicate source %q", name)
		}
		s.Name = name
		r.byName[name] = s
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get returns a source by name.
func (r *Registry) Get(name string) (SourceConfig, bool) {
	s, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Sources returns enabled sources in configured order.
func (r *Registry) Sources() []SourceConfig {
	out := make([]SourceConfig, 0, len(r.order))
	for _, name := range r.order {
		if s := r.byName[name]; !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

// All returns every source, disabled ones included.
func (r *Registry) All() []SourceConfig {
	out := make([]SourceConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Only restricts the registry to the named sources, keeping configured
// order. Unknown names are an error.
func (r *Registry) Only(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	var picked []SourceConfig
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		want[n] = true
	}
	for _, name := range r.order {
		if want[name] {
			s := r.byName[name]
			s.Disabled = false
			picked = append(picked, s)
		}
	}
	return NewRegistry(picked)
}
