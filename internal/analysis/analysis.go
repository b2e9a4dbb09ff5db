// Package analysis runs the full pipeline for one uploaded workbook:
// read sheets, score them, and build the aggregate views.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/scoring"
	"github.com/pavelanni/scoresheet/internal/workbook"
)

// ErrNoRecords means no sheet produced any performance record.
var ErrNoRecords = errors.New("no valid records computed from workbook")

// Result bundles the report with the raw sheets it was computed from.
type Result struct {
	Report *model.Report
	Sheets []model.RawSheet
}

// Sheet returns the raw sheet with the given name.
func (r *Result) Sheet(name string) (model.RawSheet, bool) {
	for _, s := range r.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return model.RawSheet{}, false
}

// Analyze reads a workbook from r and scores it against key.
//
// A workbook that cannot be parsed returns an error wrapping
// workbook.ErrInvalidFormat. If nothing could be scored the error is
// ErrNoRecords and the partial report (skipped sheets, warnings) is still
// returned for display.
func Analyze(ctx context.Context, r io.Reader, fileName string, key model.ExamKey) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sheets, sheetErrs, err := workbook.Read(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", fileName, err)
	}
	return FromSheets(fileName, sheets, sheetErrs, key)
}

// FromSheets scores already-read sheets. Unreadable sheets are reported as
// skipped with a warning.
func FromSheets(fileName string, sheets []model.RawSheet, sheetErrs []*workbook.SheetError, key model.ExamKey) (*Result, error) {
	computed := scoring.Compute(sheets, key)

	report := &model.Report{
		ID:           uuid.New().String(),
		FileName:     fileName,
		CreatedAt:    time.Now(),
		Skipped:      computed.Skipped,
		Records:      computed.Records,
		Warnings:     computed.Warnings,
		ByDescriptor: scoring.ByDescriptor(computed.Records, key.Catalog),
		BySheet:      scoring.BySheet(computed.Records),
	}
	for _, s := range sheets {
		report.Sheets = append(report.Sheets, s.Name)
	}
	for _, se := range sheetErrs {
		report.Skipped = append(report.Skipped, se.SheetName)
		report.Warnings = append(report.Warnings, model.Warning{
			Kind:    model.WarnUnreadableSheet,
			Sheet:   se.SheetName,
			Message: se.Error(),
		})
	}

	slog.Info("analyzed workbook",
		"file", fileName,
		"report_id", report.ID,
		"sheets", len(sheets),
		"skipped", len(report.Skipped),
		"records", len(report.Records),
		"warnings", len(report.Warnings),
	)

	res := &Result{Report: report, Sheets: sheets}
	if len(report.Records) == 0 {
		return res, ErrNoRecords
	}
	return res, nil
}
