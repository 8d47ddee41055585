// internal/output/feed.go
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/errors"
	"github.com/valpere/CatalogHarvest/internal/monitoring"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// FeedWriter writes the view tree under one output directory.
type FeedWriter struct {
	dir     string
	logger  *zap.Logger
	metrics *monitoring.Metrics
	rename  func(oldpath, newpath string) error
}

// NewFeedWriter creates a writer rooted at dir.
func NewFeedWriter(dir string, logger *zap.Logger, metrics *monitoring.Metrics) *FeedWriter {
	return &FeedWriter{
		dir:     dir,
		logger:  utils.OrNop(logger).Named("feed"),
		metrics: metrics,
		rename:  os.Rename,
	}
}

// Dir returns the output directory.
func (w *FeedWriter) Dir() string { return w.dir }

// Write renders <dir>/<category>/<view>.json, global.json and
// search_index.json into a staging directory, then swaps each entry into
// place with a rename. A failed swap restores the previous entries, so a
// run never leaves a partial set behind.
func (w *FeedWriter) Write(views map[catalog.Category][]catalog.CategoryView, now time.Time) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return errors.New(errors.KindOutput, "create output dir", err)
	}

	suffix := strconv.FormatInt(time.Now().UnixNano(), 36)
	staging := filepath.Join(w.dir, ".staging-"+suffix)
	backup := filepath.Join(w.dir, ".previous-"+suffix)
	defer os.RemoveAll(staging)

	entries, err := w.render(staging, views, now)
	if err != nil {
		return errors.New(errors.KindOutput, "render views", err)
	}

	if err := w.swap(staging, backup, entries); err != nil {
		// os.Remove keeps the backup if a restore left entries in it
		if rmErr := os.Remove(backup); rmErr != nil && !os.IsNotExist(rmErr) {
			w.logger.Error("previous views left in backup", zap.String("path", backup), zap.Error(rmErr))
		}
		return errors.New(errors.KindOutput, "publish views", err)
	}
	if err := os.RemoveAll(backup); err != nil {
		w.logger.Warn("failed to remove previous views", zap.String("path", backup), zap.Error(err))
	}

	w.logger.Info("views published",
		zap.String("dir", w.dir),
		zap.Int("entries", len(entries)))
	return nil
}

// render writes the full set into staging and returns the top-level entry
// names.
func (w *FeedWriter) render(staging string, views map[catalog.Category][]catalog.CategoryView, now time.Time) ([]string, error) {
	var entries []string
	for _, category := range SortedViewKeys(views) {
		catDir := filepath.Join(staging, string(category))
		if err := os.MkdirAll(catDir, 0755); err != nil {
			return nil, err
		}
		for _, v := range views[category] {
			if err := WriteJSONFile(filepath.Join(catDir, v.Name+".json"), v); err != nil {
				return nil, err
			}
			w.metrics.ViewWritten(string(category))
		}
		entries = append(entries, string(category))
	}

	if err := WriteJSONFile(filepath.Join(staging, GlobalFile), Summary(views, now)); err != nil {
		return nil, err
	}
	if err := WriteJSONFile(filepath.Join(staging, SearchIndexFile), SearchEntries(views)); err != nil {
		return nil, err
	}
	return append(entries, GlobalFile, SearchIndexFile), nil
}

func (w *FeedWriter) swap(staging, backup string, entries []string) error {
	if err := os.MkdirAll(backup, 0755); err != nil {
		return err
	}

	var moved, published []string
	rollback := func() {
		for i := len(published) - 1; i >= 0; i-- {
			os.RemoveAll(filepath.Join(w.dir, published[i]))
		}
		for _, name := range moved {
			if err := w.rename(filepath.Join(backup, name), filepath.Join(w.dir, name)); err != nil {
				w.logger.Error("failed to restore previous entry", zap.String("entry", name), zap.Error(err))
			}
		}
	}

	for _, name := range entries {
		live := filepath.Join(w.dir, name)
		if _, err := os.Lstat(live); err == nil {
			if err := w.rename(live, filepath.Join(backup, name)); err != nil {
				rollback()
				return fmt.Errorf("failed to move aside %s: %w", name, err)
			}
			moved = append(moved, name)
		}
		if err := w.rename(filepath.Join(staging, name), live); err != nil {
			rollback()
			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
		published = append(published, name)
	}
	return nil
}
