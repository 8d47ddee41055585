// internal/extract/extract_test.go
package extract

import (
	"math"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
)

const genericHTML = `<html><body>
<div class="items">
  <article class="item">
    <a href="/drama/moving"><img data-src="/img/moving.jpg" src="data:image/gif;base64,R0lG" alt="Moving"></a>
    <div class="data"><h3>  Moving   (Korean Drama) </h3><span>Sep. 2023</span></div>
    <span class="rating">IMDb 8.5/10</span>
    <div class="genres"><a>Action</a><a>Fantasy</a></div>
  </article>
  <article class="item">
    <a href="https://cdn.example.org/drama/other"><img srcset="/img/other-300.jpg 300w, /img/other-600.jpg 600w"></a>
    <div class="data"><h3></h3></div>
  </article>
  <article class="item">
    <a href="/drama/alchemy"><img src="/img/alchemy.jpg"></a>
    <div class="data"><h3>Alchemy of Souls</h3><span>2022</span></div>
    <span class="rating">92%</span>
  </article>
</div>
</body></html>`

func genericOptions() Options {
	return Options{
		PageURL:  "https://example.com/drama-list/page/2/",
		Source:   "example",
		Category: catalog.CategoryDrama,
		Selectors: config.SelectorSet{
			Item:   "article.item",
			Title:  ".data h3",
			Link:   "a",
			Image:  "img",
			Year:   ".data span",
			Rating: ".rating",
			Genre:  ".genres a",
		},
	}
}

func TestGeneric(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	records := reg.Extract("generic", genericHTML, genericOptions())

	if len(records) != 2 {
		t.Fatalf("expected 2 records (empty title skipped), got %d: %+v", len(records), records)
	}

	first := records[0]
	if first.Title != "Moving (Korean Drama)" {
		t.Errorf("title not collapsed: %q", first.Title)
	}
	if first.URL != "https://example.com/drama/moving" {
		t.Errorf("relative link not resolved: %q", first.URL)
	}
	if len(first.Images) != 1 || first.Images[0] != "https://example.com/img/moving.jpg" {
		t.Errorf("lazy image not preferred: %v", first.Images)
	}
	if first.Year != "2023" {
		t.Errorf("expected year 2023, got %q", first.Year)
	}
	if first.Rating != "8.5/10" {
		t.Errorf("expected rating token 8.5/10, got %q", first.Rating)
	}
	if strings.Join(first.Genres, ",") != "Action,Fantasy" {
		t.Errorf("unexpected genres: %v", first.Genres)
	}
	if first.Language != "ko" {
		t.Errorf("expected language ko from keyword, got %q", first.Language)
	}
	if first.Source != "example" || first.Category != catalog.CategoryDrama {
		t.Errorf("source and category should be stamped: %+v", first)
	}

	if records[1].Rating != "92%" {
		t.Errorf("expected percent rating, got %q", records[1].Rating)
	}
}

func TestRegistry_UnknownExtractor(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	records := reg.Extract("no-such-site", genericHTML, genericOptions())
	if records == nil || len(records) != 0 {
		t.Errorf("unknown extractor should return an empty, non-nil slice, got %v", records)
	}
}

func TestRegistry_PanickingNodeSkipped(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	calls := 0
	reg.Register("flaky", func(doc *goquery.Document, opts Options) []catalog.RawRecord {
		return eachItem(doc, "article.item", func(s *goquery.Selection) (catalog.RawRecord, bool) {
			calls++
			if calls == 1 {
				panic("malformed node")
			}
			return catalog.RawRecord{Title: text(s, "h3")}, true
		})
	})

	records := reg.Extract("FLAKY", genericHTML, genericOptions())
	if calls != 3 {
		t.Errorf("every node should be visited, got %d calls", calls)
	}
	if len(records) != 1 || records[0].Title != "Alchemy of Souls" {
		t.Errorf("expected only the third node to survive, got %+v", records)
	}
}

func TestRegistry_PanickingExtractor(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register("broken", func(*goquery.Document, Options) []catalog.RawRecord {
		panic("boom")
	})
	if got := reg.Extract("broken", genericHTML, genericOptions()); len(got) != 0 {
		t.Errorf("expected no records, got %v", got)
	}
}

func TestRegistry_Names(t *testing.T) {
	names := NewRegistry(nil).Names()
	want := []string{"bollyflix", "dramacool", "generic", "gogoanime", "yts"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestDramaCool(t *testing.T) {
	html := `<ul class="list-episode-item">
	<li><a href="/my-demon-episode-12.html" class="img"><img data-original="https://img.example/demon.png"></a>
	    <h3 class="title">My Demon Episode 12</h3><span class="time">2023</span><span class="type">Drama</span></li>
	<li><a href="/my-demon-episode-11.html"><h3 class="title">My Demon Episode 11</h3></a></li>
	</ul>`
	records := NewRegistry(nil).Extract("dramacool", html, Options{PageURL: "https://dramacool.example/recently-added", Source: "dramacool"})
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title != "My Demon" || records[0].URL != "https://dramacool.example/my-demon.html" {
		t.Errorf("episode marker not stripped: %+v", records[0])
	}
	if records[0].URL != records[1].URL {
		t.Errorf("episode cards of one show should share a URL: %q vs %q", records[0].URL, records[1].URL)
	}
	if records[0].Type != "drama" || records[0].Language != "ko" {
		t.Errorf("unexpected hints: type=%q lang=%q", records[0].Type, records[0].Language)
	}
}

func TestGogoAnime(t *testing.T) {
	html := `<ul class="items">
	<li><div class="img"><a href="/category/frieren"><img src="/cover/frieren.png"></a></div>
	    <p class="name"><a href="/category/frieren" title="Sousou no Frieren (Dub)">Sousou no Frieren (Dub)</a></p>
	    <p class="released">Released: 2023</p></li>
	</ul>`
	records := NewRegistry(nil).Extract("gogoanime", html, Options{PageURL: "https://gogo.example/popular.html", Source: "gogoanime"})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Year != "2023" || r.Type != "anime" || r.Language != "ja" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.URL != "https://gogo.example/category/frieren" || r.Images[0] != "https://gogo.example/cover/frieren.png" {
		t.Errorf("links not resolved: %+v", r)
	}
}

func TestYTS(t *testing.T) {
	html := `<div class="browse-movie-wrap">
	  <a href="https://yts.example/movies/dune-part-two-2024" class="browse-movie-link">
	    <figure><img class="img-responsive" src="https://img.yts.example/dune.jpg">
	      <figcaption><h4 class="rating">8.8 / 10</h4><h4>Action</h4><h4>Adventure</h4></figcaption></figure></a>
	  <div class="browse-movie-bottom"><a class="browse-movie-title">Dune: Part Two</a><div class="browse-movie-year">2024</div></div>
	</div>`
	records := NewRegistry(nil).Extract("yts", html, Options{PageURL: "https://yts.example/browse-movies", Source: "yts"})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Rating != "8.8/10" || r.Year != "2024" {
		t.Errorf("unexpected rating/year: %+v", r)
	}
	if strings.Join(r.Genres, ",") != "Action,Adventure" {
		t.Errorf("rating h4 should not be a genre: %v", r.Genres)
	}
}

func TestBollyflix(t *testing.T) {
	html := `<article class="post-item">
	  <img data-lazy-src="/wp/jawan.jpg">
	  <h2 class="post-title"><a href="/jawan-2023/">Jawan (2023) Hindi WEB-DL 1080p</a></h2>
	  <div class="cat-links"><a>Action</a><a>Bollywood</a></div>
	</article>`
	records := NewRegistry(nil).Extract("bollyflix", html, Options{PageURL: "https://bolly.example/movies/", Source: "bollyflix"})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Title != "Jawan" || r.Year != "2023" || r.Language != "hi" || r.Type != "bollywood" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.Images[0] != "https://bolly.example/wp/jawan.jpg" {
		t.Errorf("unexpected image: %v", r.Images)
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"8.1/10", 4.05, true},
		{"IMDb 8.1 / 10", 4.05, true},
		{"4.5", 4.5, true},
		{"81%", 4.05, true},
		{"9", 4.5, true},
		{"3/5", 3, true},
		{"72", 3.6, true},
		{"0", 0, false},
		{"", 0, false},
		{"N/A", 0, false},
		{"12/10", 5, true},
	}
	for _, tt := range tests {
		got, ok := ParseRating(tt.in)
		if ok != tt.ok || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseRating(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFindYear(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"Released: 2023"}, "2023"},
		{[]string{"", "Movie (1999)"}, "1999"},
		{[]string{"Episode 1800"}, ""},
		{[]string{"21000"}, ""},
		{[]string{"Season 2 - 2101"}, ""},
	}
	for _, tt := range tests {
		if got := FindYear(tt.in...); got != tt.want {
			t.Errorf("FindYear(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInferLanguage(t *testing.T) {
	tests := map[string]string{
		"Korean Drama":         "ko",
		"Naruto (Dub)":         "ja",
		"Jawan Hindi":          "hi",
		"Vikram Tamil HDRip":   "ta",
		"RRR Telugu":           "te",
		"Chinese Paladin":      "zh",
		"Thai BL series":       "th",
		"Submarine adventures": "",
	}
	for in, want := range tests {
		if got := InferLanguage(in); got != want {
			t.Errorf("InferLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTypeHintAndStripEpisode(t *testing.T) {
	if got := TypeHint("", "K-Drama"); got != "k-drama" {
		t.Errorf("TypeHint = %q", got)
	}
	if got := TypeHint("Action"); got != "" {
		t.Errorf("TypeHint(Action) = %q, want empty", got)
	}
	if got := StripEpisode("Queen of Tears Episode 16 English Sub"); got != "Queen of Tears" {
		t.Errorf("StripEpisode = %q", got)
	}
}
