// Package report writes a sweep's RunReport as an xlsx workbook for the
// operators who follow up on failed items.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gobeaver/routekit"
)

const (
	summarySheet = "Summary"
	itemsSheet   = "Items"
)

var itemHeaders = []string{
	"Use case", "Kind", "Source", "Destinations", "Outcome", "Detail",
	"Expected files", "Expected folders", "Actual files", "Actual folders",
	"Archived to", "Duration (s)",
}

// Write saves report to path, replacing any existing file.
func Write(path string, report *routekit.RunReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := writeSummary(f, report); err != nil {
		return fmt.Errorf("report summary: %w", err)
	}
	if err := writeItems(f, report); err != nil {
		return fmt.Errorf("report items: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, report *routekit.RunReport) error {
	rows := [][]any{
		{"Run ID", report.RunID},
		{"Source directory", report.SourceDir},
		{"Started", report.Started.Format(time.RFC3339)},
		{"Finished", report.Finished.Format(time.RFC3339)},
		{"Items", len(report.Items)},
		{"Failures", report.Failures()},
		{},
		{"Outcome", "Count"},
	}
	for _, o := range routekit.Outcomes {
		rows = append(rows, []any{string(o), report.Counts[o]})
	}

	rows = append(rows, []any{}, []any{"Use case", "Outcome", "Count"})
	byUseCase := report.ByUseCase()
	names := make([]string, 0, len(byUseCase))
	for name := range byUseCase {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, o := range routekit.Outcomes {
			if n := byUseCase[name][o]; n > 0 {
				rows = append(rows, []any{name, string(o), n})
			}
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 22)
}

func writeItems(f *excelize.File, report *routekit.RunReport) error {
	header := make([]any, len(itemHeaders))
	for i, h := range itemHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(itemsSheet, "A1", &header); err != nil {
		return err
	}

	for i, it := range report.Items {
		row := []any{
			it.UseCase, string(it.Kind), it.Source, strings.Join(it.Destinations, "\n"),
			string(it.Outcome), it.Detail,
			nil, nil, nil, nil,
			it.Archived, it.Duration.Seconds(),
		}
		if it.Manifest != nil {
			row[6], row[7] = it.Manifest.ExpectedFiles, it.Manifest.ExpectedFolders
		}
		if it.Tally != nil {
			row[8], row[9] = it.Tally.ActualFiles, it.Tally.ActualFolders
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(itemsSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.AutoFilter(itemsSheet, fmt.Sprintf("A1:L%d", len(report.Items)+1), nil); err != nil {
		return err
	}
	return f.SetPanes(itemsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
