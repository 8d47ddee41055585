// internal/catalog/types.go

// Package catalog defines the records that flow through the harvest
// pipeline: raw extraction candidates, canonical content records and the
// derived views written for the front end.
package catalog

import (
	"time"
)

// Category is the fixed content category enum.
type Category string

const (
	CategoryDrama     Category = "drama"
	CategoryAnime     Category = "anime"
	CategoryFilm      Category = "film"
	CategoryBollywood Category = "bollywood"
)

// Categories lists every category in output order.
var Categories = []Category{CategoryDrama, CategoryAnime, CategoryFilm, CategoryBollywood}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryDrama, CategoryAnime, CategoryFilm, CategoryBollywood:
		return true
	}
	return false
}

// DefaultLanguage returns the language assumed for a category when a
// record carries none.
func (c Category) DefaultLanguage() string {
	switch c {
	case CategoryDrama:
		return "ko"
	case CategoryAnime:
		return "ja"
	case CategoryBollywood:
		return "hi"
	default:
		return "en"
	}
}

// MediaType returns the metadata provider media type for the category.
func (c Category) MediaType() string {
	switch c {
	case CategoryDrama, CategoryAnime:
		return "tv"
	default:
		return "movie"
	}
}

// RawRecord is a loosely typed candidate produced by an extractor.
// It lives only until normalization.
type RawRecord struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Images   []string `json:"images,omitempty"`
	Year     string   `json:"year,omitempty"`
	Rating   string   `json:"rating,omitempty"`
	Genres   []string `json:"genres,omitempty"`
	Language string   `json:"language,omitempty"`
	Type     string   `json:"type,omitempty"`
	Source   string   `json:"source"`
	Category Category `json:"category,omitempty"`
}

// ContentRecord is the canonical catalog unit.
type ContentRecord struct {
	ID            string    `json:"id" bson:"_id"`
	Title         string    `json:"title" bson:"title"`
	OriginalTitle string    `json:"original_title" bson:"original_title"`
	Poster        string    `json:"poster" bson:"poster"`
	Backdrop      string    `json:"backdrop" bson:"backdrop"`
	Year          int       `json:"year" bson:"year"`
	Rating        float64   `json:"rating" bson:"rating"`
	Genres        []string  `json:"genres" bson:"genres"`
	Category      Category  `json:"category" bson:"category"`
	Language      string    `json:"language" bson:"language"`
	Source        string    `json:"source" bson:"source"`
	URL           string    `json:"url" bson:"url"`
	Overview      string    `json:"overview,omitempty" bson:"overview,omitempty"`
	Runtime       int       `json:"runtime,omitempty" bson:"runtime,omitempty"`
	Trailer       string    `json:"trailer,omitempty" bson:"trailer,omitempty"`
	Cast          []string  `json:"cast,omitempty" bson:"cast,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`

	// YearDefaulted marks a year filled from the run clock rather than
	// read from the source. Not persisted.
	YearDefaulted bool `json:"-" bson:"-"`
}

// HasArtwork reports whether both poster and backdrop are set.
func (r ContentRecord) HasArtwork() bool {
	return r.Poster != "" && r.Backdrop != ""
}

// Clone returns a deep copy so callers can mutate slices safely.
func (r ContentRecord) Clone() ContentRecord {
	out := r
	if r.Genres != nil {
		out.Genres = append([]string(nil), r.Genres...)
	}
	if r.Cast != nil {
		out.Cast = append([]string(nil), r.Cast...)
	}
	return out
}

// CategoryView is a derived, read-only projection persisted as one file.
type CategoryView struct {
	Name      string          `json:"-"`
	Count     int             `json:"count"`
	Results   []ContentRecord `json:"results"`
	UpdatedAt string          `json:"updated_at"`
}

// SearchEntry is the field-reduced record stored in search_index.json.
type SearchEntry struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title"`
	Poster        string   `json:"poster"`
	Year          int      `json:"year"`
	Rating        float64  `json:"rating"`
	ContentType   Category `json:"content_type"`
	Genres        []string `json:"genres"`
}

// GlobalSummary is the root global.json document.
type GlobalSummary struct {
	TotalItems int              `json:"total_items"`
	Categories map[Category]int `json:"categories"`
	UpdatedAt  string           `json:"updated_at"`
}

// TimestampLayout is the ISO-8601 layout used for updated_at fields.
const TimestampLayout = time.RFC3339
