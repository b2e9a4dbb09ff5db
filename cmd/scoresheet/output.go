package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pavelanni/scoresheet/internal/analysis"
	appI18n "github.com/pavelanni/scoresheet/internal/i18n"
	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/scoring"
	"github.com/pavelanni/scoresheet/internal/store"
)

// writeText prints the report as aligned tables. With sheet set only that
// sheet's records are shown, followed by its student rows when raw is given.
func writeText(ctx context.Context, w io.Writer, r *model.Report, sheet string, raw *model.RawSheet, threshold float64) error {
	t := func(id string) string { return appI18n.T(ctx, id) }
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, appI18n.Td(ctx, "ReportHeading", map[string]any{"FileName": r.FileName}))
	fmt.Fprintln(tw)

	descriptions := make(map[string]string, len(r.ByDescriptor))
	for _, d := range r.ByDescriptor {
		descriptions[d.Descriptor] = d.Description
	}

	if sheet != "" {
		records := r.RecordsForSheet(sheet)
		students := 0
		if len(records) > 0 {
			students = records[0].Students
		}
		fmt.Fprintln(tw, appI18n.Td(ctx, "SheetHeading", map[string]any{"Sheet": sheet}))
		fmt.Fprintln(tw, appI18n.Tp(ctx, "StudentCount", students))
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t("ColDescriptor"), t("ColCorrect"), t("ColPossible"), t("ColPercent"), t("ColDescription"))
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f%%\t%s\n", rec.Descriptor, rec.Correct, rec.TotalPossible, rec.Percentage, descriptions[rec.Descriptor])
		}
		if raw != nil {
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, t("RawHeading"))
			fmt.Fprintln(tw, strings.Join(raw.Header, "\t"))
			for i := range raw.Rows {
				cells := make([]string, len(raw.Header))
				for j := range cells {
					cells[j] = raw.Cell(i, j)
				}
				fmt.Fprintln(tw, strings.Join(cells, "\t"))
			}
		}
		writeWarnings(ctx, tw, r.Warnings, sheet)
		return tw.Flush()
	}

	fmt.Fprintln(tw, t("OverallHeading"))
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t("ColDescriptor"), t("ColCorrect"), t("ColPossible"), t("ColPercent"), t("ColDescription"))
	for _, d := range r.ByDescriptor {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f%%\t%s\n", d.Descriptor, d.Correct, d.TotalPossible, d.Percentage, d.Description)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, t("BySchoolHeading"))
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t("ColSchool"), t("ColStudents"), t("ColCorrect"), t("ColPossible"), t("ColPercent"))
	for _, s := range r.BySheet {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f%%\n", s.Sheet, s.Students, s.Correct, s.TotalPossible, s.Percentage)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, appI18n.Td(ctx, "WeakestHeading", map[string]any{"Threshold": fmt.Sprintf("%g", threshold)}))
	weak := scoring.Weakest(r.ByDescriptor, threshold)
	if len(weak) == 0 {
		fmt.Fprintln(tw, t("NoWeakDescriptors"))
	}
	for _, d := range weak {
		fmt.Fprintf(tw, "- %s\t%.2f%%\t%s\n", d.Descriptor, d.Percentage, d.Description)
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "%s: %s\n", t("SkippedSheets"), strings.Join(r.Skipped, ", "))
	}
	writeWarnings(ctx, tw, r.Warnings, "")
	return tw.Flush()
}

// writeWarnings lists warnings, limited to one sheet when sheet is set.
func writeWarnings(ctx context.Context, w io.Writer, warnings []model.Warning, sheet string) {
	header := false
	for _, wn := range warnings {
		if sheet != "" && wn.Sheet != sheet {
			continue
		}
		if !header {
			fmt.Fprintln(w)
			fmt.Fprintln(w, appI18n.T(ctx, "WarningsHeading"))
			header = true
		}
		fmt.Fprintf(w, "- [%s] %s\n", wn.Kind, wn.Message)
	}
}

// writeJSON emits the same document the server returns from records.json.
func writeJSON(w io.Writer, res *analysis.Result, sheet string, raw bool) error {
	db, err := store.New()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SaveReport(res.Report, res.Sheets); err != nil {
		return err
	}
	export, err := db.ExportReport(res.Report.ID, sheet, raw)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}
