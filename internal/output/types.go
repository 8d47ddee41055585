// internal/output/types.go

// Package output materializes the derived view files read by the front end
// and mirrors canonical records to optional database sinks.
package output

import (
	"context"

	"github.com/valpere/CatalogHarvest/internal/catalog"
)

// View names written for every category.
const (
	ViewIndex      = "index"
	ViewTrending   = "trending"
	ViewPopular    = "popular"
	ViewRecent     = "recent"
	ViewHeroBanner = "hero_banner"

	// GenreViewPrefix prefixes per-genre slice names
	GenreViewPrefix = "genre_"
)

// View limits.
const (
	ListLimit       = 20
	HeroBannerLimit = 5
	TopGenres       = 10
	MinGenreItems   = 5
	GenreViewLimit  = 20
)

// Root-level file names.
const (
	GlobalFile      = "global.json"
	SearchIndexFile = "search_index.json"
	RunStatsFile    = "run_stats.json"
	ReportFile      = "report.xlsx"
)

// Sink mirrors canonical records to an external store. A sink failure
// never blocks the view files.
type Sink interface {
	Name() string
	Write(ctx context.Context, records []catalog.ContentRecord) error
	Close() error
}
