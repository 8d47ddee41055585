// internal/catalog/synonyms.go
package catalog

import "strings"

// categorySynonyms maps the loose type strings found on source pages to the
// category enum.
var categorySynonyms = map[string]Category{
	"drama":           CategoryDrama,
	"dramas":          CategoryDrama,
	"kdrama":          CategoryDrama,
	"k-drama":         CategoryDrama,
	"korean drama":    CategoryDrama,
	"asian drama":     CategoryDrama,
	"cdrama":          CategoryDrama,
	"c-drama":         CategoryDrama,
	"jdrama":          CategoryDrama,
	"series":          CategoryDrama,
	"tv":              CategoryDrama,
	"tv series":       CategoryDrama,
	"show":            CategoryDrama,
	"anime":           CategoryAnime,
	"animes":          CategoryAnime,
	"ova":             CategoryAnime,
	"ona":             CategoryAnime,
	"anime movie":     CategoryAnime,
	"donghua":         CategoryAnime,
	"film":            CategoryFilm,
	"films":           CategoryFilm,
	"movie":           CategoryFilm,
	"movies":          CategoryFilm,
	"hollywood":       CategoryFilm,
	"feature":         CategoryFilm,
	"bollywood":       CategoryBollywood,
	"hindi":           CategoryBollywood,
	"hindi movie":     CategoryBollywood,
	"indian":          CategoryBollywood,
	"tollywood":       CategoryBollywood,
	"kollywood":       CategoryBollywood,
	"south indian":    CategoryBollywood,
	"hindi dubbed":    CategoryBollywood,
	"bollywood movie": CategoryBollywood,
}

// ParseCategory resolves a loose type string to a category. The second
// return is false when the string is not a known synonym.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.Join(strings.Fields(key), " ")
	if key == "" {
		return "", false
	}
	c, ok := categorySynonyms[key]
	return c, ok
}
