// internal/enrich/provider.go

// Package enrich fills catalog records from a metadata provider. A lookup
// failure never fails the record: the caller always gets a usable record
// back.
package enrich

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by a Provider when the title has no match.
var ErrNotFound = stderrors.New("no provider match")

// Query identifies one lookup.
type Query struct {
	Title string
	// Year narrows the search; zero searches all years
	Year int
	// MediaType is "tv" or "movie"
	MediaType string
}

// Key is the cache key for q.
func (q Query) Key() string {
	return fmt.Sprintf("%s|%s|%d", q.MediaType, strings.ToLower(strings.TrimSpace(q.Title)), q.Year)
}

// Metadata is what a provider knows about a title. Image fields are full
// URLs.
type Metadata struct {
	ProviderID    int      `json:"provider_id"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title,omitempty"`
	Overview      string   `json:"overview,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Runtime       int      `json:"runtime,omitempty"`
	Trailer       string   `json:"trailer,omitempty"`
	Cast          []string `json:"cast,omitempty"`
	Language      string   `json:"language,omitempty"`
	Poster        string   `json:"poster,omitempty"`
	Backdrop      string   `json:"backdrop,omitempty"`
	// Rating is on the 0-5 scale; zero when the provider has no votes
	Rating float64 `json:"rating,omitempty"`
}

// Provider looks up a title. It returns ErrNotFound on a miss.
type Provider interface {
	Lookup(ctx context.Context, q Query) (*Metadata, error)
}
