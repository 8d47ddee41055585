// internal/catalog/dedup.go
package catalog

import "strings"

// Deduper implements first-wins multi-key deduplication: an item is a
// duplicate when its id, its lower-cased trimmed title, or its non-empty URL
// was already accepted. Empty keys never match.
type Deduper struct {
	ids    map[string]struct{}
	titles map[string]struct{}
	urls   map[string]struct{}
	n      int
}

// NewDeduper returns an empty deduper.
func NewDeduper() *Deduper {
	return &Deduper{
		ids:    make(map[string]struct{}),
		titles: make(map[string]struct{}),
		urls:   make(map[string]struct{}),
	}
}

// Add records the keys and reports whether the item is new.
func (d *Deduper) Add(id, title, url string) bool {
	title = strings.ToLower(strings.TrimSpace(title))
	url = strings.TrimSpace(url)
	if seen(d.ids, id) || seen(d.titles, title) || seen(d.urls, url) {
		return false
	}
	mark(d.ids, id)
	mark(d.titles, title)
	mark(d.urls, url)
	d.n++
	return true
}

// AddRecord is Add for a canonical record.
func (d *Deduper) AddRecord(r ContentRecord) bool {
	return d.Add(r.ID, r.Title, r.URL)
}

// Len returns the number of accepted items.
func (d *Deduper) Len() int {
	return d.n
}

func seen(set map[string]struct{}, key string) bool {
	if key == "" {
		return false
	}
	_, ok := set[key]
	return ok
}

func mark(set map[string]struct{}, key string) {
	if key != "" {
		set[key] = struct{}{}
	}
}
