// internal/catalog/catalog_test.go
package catalog

import (
	"reflect"
	"testing"
	"time"
)

func TestDeduper(t *testing.T) {
	d := NewDeduper()

	tests := []struct {
		name           string
		id, title, url string
		want           bool
	}{
		{"first", "moving", "Moving", "https://a.example/moving", true},
		{"same id", "moving", "Other", "https://a.example/other", false},
		{"same title different case", "moving-2", "  MOVING ", "https://b.example/x", false},
		{"same url", "x", "X", "https://a.example/moving", false},
		{"empty keys never match", "", "Doctor Slump", "", true},
		{"empty url twice", "", "Dune", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Add(tt.id, tt.title, tt.url); got != tt.want {
				t.Errorf("Add(%q, %q, %q) = %v, want %v", tt.id, tt.title, tt.url, got, tt.want)
			}
		})
	}
	if d.Len() != 3 {
		t.Errorf("Len() = %d, want 3", d.Len())
	}
	if d.AddRecord(ContentRecord{ID: "dune-2", Title: "dune"}) {
		t.Error("record with a seen title should be rejected")
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"K-Drama", CategoryDrama, true},
		{"  TV   Series ", CategoryDrama, true},
		{"ONA", CategoryAnime, true},
		{"Movies", CategoryFilm, true},
		{"hindi dubbed", CategoryBollywood, true},
		{"", "", false},
		{"documentary", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCategory(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCategoryHelpers(t *testing.T) {
	if Category("cartoons").Valid() {
		t.Error("unknown category should be invalid")
	}
	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if CategoryAnime.DefaultLanguage() != "ja" || CategoryFilm.DefaultLanguage() != "en" {
		t.Error("unexpected default languages")
	}
	if CategoryDrama.MediaType() != "tv" || CategoryBollywood.MediaType() != "movie" {
		t.Error("unexpected media types")
	}
}

func TestContentRecordClone(t *testing.T) {
	r := ContentRecord{Title: "Moving", Genres: []string{"action"}, Cast: []string{"Ryu Seung-ryong"}}
	c := r.Clone()
	c.Genres[0] = "drama"
	c.Cast[0] = "someone"
	if r.Genres[0] != "action" || r.Cast[0] != "Ryu Seung-ryong" {
		t.Error("clone should not share slices")
	}
	if r.HasArtwork() {
		t.Error("record without images has no artwork")
	}
}

func TestRunStatsMerge(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	stats := NewRunStats(start)

	stats.Merge(SourceStats{Name: "dramacool", Category: CategoryDrama, Success: true, Items: 12, PagesTried: 2, Challenges: 1}.RunStats())
	stats.Merge(SourceStats{Name: "yts", Category: CategoryFilm, Items: 0, PagesTried: 3, PagesFailed: 3, Blocked: 1}.RunStats())
	stats.Merge(PipelineRunStats{Enriched: 7, EnrichMisses: 2, PerCategory: map[Category]int{CategoryDrama: 12}})

	if stats.ItemsFetched != 12 || stats.SourcesProcessed != 2 || stats.SourcesFailed != 1 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if !reflect.DeepEqual(stats.FailedSources, []string{"yts"}) || !reflect.DeepEqual(stats.SucceededSources, []string{"dramacool"}) {
		t.Errorf("sources = %v / %v", stats.SucceededSources, stats.FailedSources)
	}
	if stats.PagesVisited != 5 || stats.PagesFailed != 3 || stats.ChallengesSeen != 1 || stats.ChallengesFailed != 1 {
		t.Errorf("unexpected page counters: %+v", stats)
	}
	if stats.Enriched != 7 || stats.EnrichMisses != 2 || stats.PerCategory[CategoryDrama] != 12 {
		t.Errorf("unexpected enrichment counters: %+v", stats)
	}
	if len(stats.Sources) != 2 {
		t.Errorf("expected 2 source entries, got %d", len(stats.Sources))
	}

	if stats.Duration() != 0 {
		t.Error("open run should report zero duration")
	}
	stats.Finish(start.Add(2 * time.Minute))
	if stats.Duration() != 2*time.Minute {
		t.Errorf("Duration() = %v", stats.Duration())
	}
}

func TestSortedCategories(t *testing.T) {
	stats := &PipelineRunStats{PerCategory: map[Category]int{
		CategoryFilm:  1,
		"zzz":         1,
		CategoryDrama: 2,
		"aaa":         1,
	}}
	want := []Category{CategoryDrama, CategoryFilm, "aaa", "zzz"}
	if got := stats.SortedCategories(); !reflect.DeepEqual(got, want) {
		t.Errorf("SortedCategories() = %v, want %v", got, want)
	}
}
