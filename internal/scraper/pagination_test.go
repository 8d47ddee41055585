// internal/scraper/pagination_test.go
package scraper

import (
	"reflect"
	"testing"

	"github.com/valpere/CatalogHarvest/internal/config"
)

func TestExpandPages(t *testing.T) {
	tests := []struct {
		name string
		base string
		p    *config.PaginationConfig
		want []string
	}{
		{
			name: "path template",
			base: "https://x.com/list",
			p:    &config.PaginationConfig{Template: "page/{page}/", MaxPages: 3},
			want: []string{
				"https://x.com/list",
				"https://x.com/list/page/2/",
				"https://x.com/list/page/3/",
				"https://x.com/list/page/4/",
			},
		},
		{
			name: "path template with trailing slash base",
			base: "https://x.com/list/",
			p:    &config.PaginationConfig{Template: "/page/{page}/", MaxPages: 2},
			want: []string{
				"https://x.com/list/",
				"https://x.com/list/page/2/",
				"https://x.com/list/page/3/",
			},
		},
		{
			name: "path template keeps existing query",
			base: "https://x.com/list?sort=new",
			p:    &config.PaginationConfig{Template: "page/{page}", MaxPages: 1},
			want: []string{
				"https://x.com/list?sort=new",
				"https://x.com/list/page/2?sort=new",
			},
		},
		{
			name: "query template without existing query",
			base: "https://x.com/popular.html",
			p:    &config.PaginationConfig{Template: "?page={page}", MaxPages: 2},
			want: []string{
				"https://x.com/popular.html",
				"https://x.com/popular.html?page=2",
				"https://x.com/popular.html?page=3",
			},
		},
		{
			name: "query template merges into existing query",
			base: "https://x.com/browse?genre=action&page=1",
			p:    &config.PaginationConfig{Template: "&page={page}", MaxPages: 1},
			want: []string{
				"https://x.com/browse?genre=action&page=1",
				"https://x.com/browse?genre=action&page=2",
			},
		},
		{
			name: "bare key=value is a query template",
			base: "https://x.com/browse",
			p:    &config.PaginationConfig{Template: "p={page}", MaxPages: 1},
			want: []string{
				"https://x.com/browse",
				"https://x.com/browse?p=2",
			},
		},
		{
			name: "offset template",
			base: "https://x.com/api/items?limit=20",
			p:    &config.PaginationConfig{Template: "?offset={offset}", MaxPages: 2, PageSize: 20},
			want: []string{
				"https://x.com/api/items?limit=20",
				"https://x.com/api/items?limit=20&offset=20",
				"https://x.com/api/items?limit=20&offset=40",
			},
		},
		{
			name: "templated base",
			base: "https://x.com/list?page={page}",
			p:    &config.PaginationConfig{MaxPages: 2},
			want: []string{
				"https://x.com/list?page=1",
				"https://x.com/list?page=2",
				"https://x.com/list?page=3",
			},
		},
		{
			name: "templated base ignores template",
			base: "https://x.com/list/page/{page}/",
			p:    &config.PaginationConfig{Template: "?page={page}", MaxPages: 1, StartPage: 5},
			want: []string{
				"https://x.com/list/page/1/",
				"https://x.com/list/page/5/",
			},
		},
		{
			name: "no pagination",
			base: "https://x.com/list",
			p:    nil,
			want: []string{"https://x.com/list"},
		},
		{
			name: "zero max pages",
			base: "https://x.com/list",
			p:    &config.PaginationConfig{Template: "page/{page}/"},
			want: []string{"https://x.com/list"},
		},
		{
			name: "custom start page",
			base: "https://x.com/list",
			p:    &config.PaginationConfig{Template: "?page={page}", MaxPages: 2, StartPage: 3},
			want: []string{
				"https://x.com/list",
				"https://x.com/list?page=3",
				"https://x.com/list?page=4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPages(tt.base, tt.p)
			if err != nil {
				t.Fatalf("ExpandPages failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandPages(%q)\n got  %v\n want %v", tt.base, got, tt.want)
			}
		})
	}
}

func TestExpandPages_Errors(t *testing.T) {
	tests := []struct {
		name string
		base string
		p    *config.PaginationConfig
	}{
		{"empty base", "", nil},
		{"relative base", "/list", nil},
		{"template without placeholder", "https://x.com/list", &config.PaginationConfig{Template: "page/2/", MaxPages: 1}},
		{"relative templated base", "/list?page={page}", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExpandPages(tt.base, tt.p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsQueryTemplate(t *testing.T) {
	tests := map[string]bool{
		"?page={page}":        true,
		"&page={page}":        true,
		"page={page}":         true,
		"page/{page}/":        false,
		"/page/{page}":        false,
		"list/p={page}":       false,
		"page/{page}?sort=az": false,
	}
	for tmpl, want := range tests {
		if got := isQueryTemplate(tmpl); got != want {
			t.Errorf("isQueryTemplate(%q) = %v, want %v", tmpl, got, want)
		}
	}
}
