// internal/output/excel.go
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/CatalogHarvest/internal/catalog"
)

const (
	summarySheet    = "Summary"
	sourcesSheet    = "Sources"
	categoriesSheet = "Categories"
)

// WriteReport writes the run report workbook: a Summary sheet of totals,
// one row per source on Sources, and one row per category on Categories.
func WriteReport(path string, stats *catalog.PipelineRunStats) error {
	if stats == nil {
		return fmt.Errorf("run stats are required")
	}
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	for _, name := range []string{sourcesSheet, categoriesSheet} {
		if _, err := file.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	finished := ""
	if !stats.FinishedAt.IsZero() {
		finished = stats.FinishedAt.UTC().Format(catalog.TimestampLayout)
	}
	summary := [][]interface{}{
		{"Metric", "Value"},
		{"Started at", stats.StartedAt.UTC().Format(catalog.TimestampLayout)},
		{"Finished at", finished},
		{"Duration (s)", stats.Duration().Seconds()},
		{"Items fetched", stats.ItemsFetched},
		{"Sources processed", stats.SourcesProcessed},
		{"Sources failed", stats.SourcesFailed},
		{"Pages visited", stats.PagesVisited},
		{"Pages failed", stats.PagesFailed},
		{"Challenges seen", stats.ChallengesSeen},
		{"Challenges failed", stats.ChallengesFailed},
		{"Enriched", stats.Enriched},
		{"Enrichment misses", stats.EnrichMisses},
	}
	if err := writeSheet(file, summarySheet, summary, headerStyle, []float64{24, 28}); err != nil {
		return err
	}

	sources := [][]interface{}{
		{"Source", "Category", "Success", "Attempts", "Items", "Pages tried", "Pages failed", "Challenges", "Blocked", "Error"},
	}
	for _, s := range stats.Sources {
		sources = append(sources, []interface{}{
			s.Name, string(s.Category), s.Success, s.Attempts, s.Items,
			s.PagesTried, s.PagesFailed, s.Challenges, s.Blocked, s.Error,
		})
	}
	if err := writeSheet(file, sourcesSheet, sources, headerStyle, []float64{18, 12, 10, 10, 10, 12, 12, 12, 10, 60}); err != nil {
		return err
	}

	categories := [][]interface{}{{"Category", "Records"}}
	for _, c := range stats.SortedCategories() {
		categories = append(categories, []interface{}{string(c), stats.PerCategory[c]})
	}
	if err := writeSheet(file, categoriesSheet, categories, headerStyle, []float64{16, 12}); err != nil {
		return err
	}

	file.SetActiveSheet(0)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeSheet(file *excelize.File, sheet string, rows [][]interface{}, headerStyle int, widths []float64) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	if len(rows) > 0 {
		last := columnName(len(rows[0]))
		if err := file.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
			return err
		}
	}
	for i, w := range widths {
		col := columnName(i + 1)
		if err := file.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// columnName converts a column number to Excel column name (A, B, ..., AA, AB, etc.)
func columnName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}
