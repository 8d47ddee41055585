// internal/utils/utils_test.go
package utils

import "testing"

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Alchemy of Souls":         "alchemy-of-souls",
		"  Crash Landing on You! ": "crash-landing-on-you",
		"Pokémon: Horizons":        "pokemon-horizons",
		"Spy×Family (2022)":        "spy-family-2022",
		"무빙":                       "",
		"---":                      "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollapseSpacesAndTitleKey(t *testing.T) {
	if got := CollapseSpaces("  Queen \n of\t\tTears "); got != "Queen of Tears" {
		t.Errorf("CollapseSpaces = %q", got)
	}
	if got := TitleKey("  Queen of Tears "); got != "queen of tears" {
		t.Errorf("TitleKey = %q", got)
	}
}

func TestResolveURL(t *testing.T) {
	base := "https://site.test/list/page/2/"
	tests := []struct {
		ref  string
		want string
	}{
		{"", ""},
		{"/drama/moving", "https://site.test/drama/moving"},
		{"moving.html", "https://site.test/list/page/2/moving.html"},
		{"//cdn.test/p.jpg", "https://cdn.test/p.jpg"},
		{"https://other.test/x", "https://other.test/x"},
	}
	for _, tt := range tests {
		if got := ResolveURL(base, tt.ref); got != tt.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
	if got := ResolveURL("", "/x"); got != "/x" {
		t.Errorf("empty base should return ref, got %q", got)
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := map[string]string{
		"https://x.test/drama/alchemy-of-souls/":   "alchemy-of-souls",
		"https://x.test/movies/dune-2021.html":     "dune-2021",
		"https://x.test/":                          "",
		"https://x.test/watch?id=5":                "watch",
		"https://x.test/anime/one-piece.episode-1": "one-piece.episode-1",
	}
	for in, want := range tests {
		if got := LastPathSegment(in); got != want {
			t.Errorf("LastPathSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsValidURL(t *testing.T) {
	if !IsValidURL("https://x.test/a") {
		t.Error("absolute URL should be valid")
	}
	for _, s := range []string{"", "/relative", "x.test"} {
		if IsValidURL(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
