// internal/catalog/stats.go
package catalog

import (
	"sort"
	"time"
)

// SourceStats describes one source's outcome within a run.
type SourceStats struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Success     bool     `json:"success"`
	Attempts    int      `json:"attempts"`
	Items       int      `json:"items"`
	PagesTried  int      `json:"pages_tried"`
	PagesFailed int      `json:"pages_failed"`
	Challenges  int      `json:"challenges"`
	Blocked     int      `json:"blocked"`
	Error       string   `json:"error,omitempty"`
}

// RunStats converts one source outcome into a mergeable run stats value.
func (s SourceStats) RunStats() PipelineRunStats {
	out := PipelineRunStats{
		ItemsFetched:     s.Items,
		SourcesProcessed: 1,
		PagesVisited:     s.PagesTried,
		PagesFailed:      s.PagesFailed,
		ChallengesSeen:   s.Challenges,
		ChallengesFailed: s.Blocked,
		PerCategory:      map[Category]int{},
		Sources:          []SourceStats{s},
	}
	if s.Success {
		out.SucceededSources = []string{s.Name}
	} else {
		out.SourcesFailed = 1
		out.FailedSources = []string{s.Name}
	}
	return out
}

// PipelineRunStats is returned by each stage and merged by the caller.
// Nothing in the pipeline holds a shared instance.
type PipelineRunStats struct {
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	ItemsFetched     int              `json:"items_fetched"`
	SourcesProcessed int              `json:"sources_processed"`
	SourcesFailed    int              `json:"sources_failed"`
	FailedSources    []string         `json:"failed_sources"`
	SucceededSources []string         `json:"succeeded_sources"`
	PerCategory      map[Category]int `json:"per_category"`
	PagesVisited     int              `json:"pages_visited"`
	PagesFailed      int              `json:"pages_failed"`
	ChallengesSeen   int              `json:"challenges_seen"`
	ChallengesFailed int              `json:"challenges_failed"`
	Enriched         int              `json:"enriched"`
	EnrichMisses     int              `json:"enrich_misses"`
	SinkFailures     []string         `json:"sink_failures,omitempty"`
	Sources          []SourceStats    `json:"sources"`
}

// NewRunStats starts a stats value at the given time.
func NewRunStats(start time.Time) *PipelineRunStats {
	return &PipelineRunStats{
		StartedAt:        start,
		FailedSources:    []string{},
		SucceededSources: []string{},
		PerCategory:      make(map[Category]int),
		Sources:          []SourceStats{},
	}
}

// Merge folds other into s. Timestamps are left to the owner.
func (s *PipelineRunStats) Merge(other PipelineRunStats) {
	s.ItemsFetched += other.ItemsFetched
	s.SourcesProcessed += other.SourcesProcessed
	s.SourcesFailed += other.SourcesFailed
	s.FailedSources = append(s.FailedSources, other.FailedSources...)
	s.SucceededSources = append(s.SucceededSources, other.SucceededSources...)
	s.PagesVisited += other.PagesVisited
	s.PagesFailed += other.PagesFailed
	s.ChallengesSeen += other.ChallengesSeen
	s.ChallengesFailed += other.ChallengesFailed
	s.Enriched += other.Enriched
	s.EnrichMisses += other.EnrichMisses
	s.SinkFailures = append(s.SinkFailures, other.SinkFailures...)
	s.Sources = append(s.Sources, other.Sources...)
	if s.PerCategory == nil {
		s.PerCategory = make(map[Category]int)
	}
	for c, n := range other.PerCategory {
		s.PerCategory[c] += n
	}
}

// Finish stamps the end time.
func (s *PipelineRunStats) Finish(end time.Time) {
	s.FinishedAt = end
}

// Duration returns the run wall time, or zero while the run is open.
func (s *PipelineRunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// SortedCategories returns per-category keys in enum order followed by any
// unknown keys alphabetically.
func (s *PipelineRunStats) SortedCategories() []Category {
	out := make([]Category, 0, len(s.PerCategory))
	seen := make(map[Category]bool)
	for _, c := range Categories {
		if _, ok := s.PerCategory[c]; ok {
			out = append(out, c)
			seen[c] = true
		}
	}
	var rest []Category
	for c := range s.PerCategory {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}
