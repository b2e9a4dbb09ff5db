package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/scoresheet/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(id string, created time.Time) (*model.Report, []model.RawSheet) {
	r := &model.Report{
		ID:        id,
		FileName:  "notas-" + id + ".xlsx",
		CreatedAt: created,
		Sheets:    []string{"Alfredo", "Vazia"},
		Skipped:   []string{"Vazia"},
		Records: []model.PerformanceRecord{
			{Sheet: "Alfredo", Descriptor: "D1", Correct: 3, TotalPossible: 4, Percentage: 75, Students: 2},
			{Sheet: "Alfredo", Descriptor: "D3", Correct: 1, TotalPossible: 4, Percentage: 25, Students: 2},
		},
		ByDescriptor: []model.DescriptorTotal{
			{Descriptor: "D1", Description: "Mapas", Correct: 3, TotalPossible: 4, Percentage: 75},
			{Descriptor: "D3", Correct: 1, TotalPossible: 4, Percentage: 25},
		},
		BySheet: []model.SheetTotal{
			{Sheet: "Alfredo", Correct: 4, TotalPossible: 8, Percentage: 50, Students: 2},
		},
		Warnings: []model.Warning{
			{Kind: model.WarnEmptySheet, Sheet: "Vazia", Message: "empty"},
			{Kind: model.WarnMissingAnswer, Sheet: "Alfredo", Column: "Q11 (D9)", Question: "Q11", Message: "no key"},
		},
	}
	sheets := []model.RawSheet{
		{Name: "Alfredo", Header: []string{"ALUNO", "Q1"}, Rows: [][]string{{"João", "D"}, {"Maria", "d"}}},
		{Name: "Vazia", Header: []string{"ALUNO"}},
	}
	return r, sheets
}

func TestReportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	r, sheets := testReport("r1", created)

	if err := s.SaveReport(r, sheets); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := s.GetReport("r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.FileName != r.FileName {
		t.Errorf("expected file name %q, got %q", r.FileName, got.FileName)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
	if len(got.Records) != 2 || got.Records[1].Descriptor != "D3" {
		t.Fatalf("unexpected records: %+v", got.Records)
	}
	if got.Records[0].Percentage != 75 {
		t.Errorf("expected 75%%, got %f", got.Records[0].Percentage)
	}
	if len(got.ByDescriptor) != 2 || got.ByDescriptor[0].Description != "Mapas" {
		t.Errorf("unexpected descriptor totals: %+v", got.ByDescriptor)
	}
	if len(got.BySheet) != 1 || got.BySheet[0].Students != 2 {
		t.Errorf("unexpected sheet totals: %+v", got.BySheet)
	}
	if len(got.Skipped) != 1 || got.Skipped[0] != "Vazia" {
		t.Errorf("unexpected skipped: %v", got.Skipped)
	}
	if len(got.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got.Warnings))
	}
	if got.Warnings[1].Kind != model.WarnMissingAnswer || got.Warnings[1].Column != "Q11 (D9)" {
		t.Errorf("unexpected warning: %+v", got.Warnings[1])
	}
}

func TestGetReportNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetReport("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSheets(t *testing.T) {
	s := newTestStore(t)
	r, sheets := testReport("r1", time.Now())
	if err := s.SaveReport(r, sheets); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	sheet, err := s.GetSheet("r1", "Alfredo")
	if err != nil {
		t.Fatalf("GetSheet: %v", err)
	}
	if len(sheet.Rows) != 2 || sheet.Rows[1][1] != "d" {
		t.Errorf("unexpected rows: %v", sheet.Rows)
	}

	empty, err := s.GetSheet("r1", "Vazia")
	if err != nil {
		t.Fatalf("GetSheet empty: %v", err)
	}
	if len(empty.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(empty.Rows))
	}

	if _, err := s.GetSheet("r1", "Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	records, err := s.GetSheetRecords("r1", "Alfredo")
	if err != nil {
		t.Fatalf("GetSheetRecords: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestListAndPrune(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		r, sheets := testReport(id, base.Add(time.Duration(i)*time.Hour))
		if err := s.SaveReport(r, sheets); err != nil {
			t.Fatalf("SaveReport %s: %v", id, err)
		}
	}

	list, err := s.ListReports()
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(list))
	}
	if list[0].ID != "c" {
		t.Errorf("expected newest first, got %q", list[0].ID)
	}
	if list[0].SheetCount != 2 {
		t.Errorf("expected 2 sheets, got %d", list[0].SheetCount)
	}

	removed, err := s.Prune(2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, err := s.GetReport("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest report should be pruned, got %v", err)
	}
	if _, err := s.GetSheet("a", "Alfredo"); !errors.Is(err, ErrNotFound) {
		t.Errorf("pruned report sheets should be gone, got %v", err)
	}
	count, err := s.ReportCount()
	if err != nil {
		t.Fatalf("ReportCount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 reports, got %d", count)
	}

	removed, err = s.Prune(5)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected nothing removed, got %d", removed)
	}
}

func TestExportReport(t *testing.T) {
	s := newTestStore(t)
	r, sheets := testReport("r1", time.Now())
	if err := s.SaveReport(r, sheets); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	tests := []struct {
		name       string
		sheet      string
		includeRaw bool
		wantSheet  bool
		wantRows   int
		wantErr    error
	}{
		{"whole report", "", false, false, 0, nil},
		{"sheet without raw", "Alfredo", false, true, 0, nil},
		{"sheet with raw", "Alfredo", true, true, 2, nil},
		{"skipped sheet", "Vazia", false, false, 0, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export, err := s.ExportReport("r1", tt.sheet, tt.includeRaw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExportReport: %v", err)
			}
			if export.ReportID != "r1" || len(export.Records) != 2 {
				t.Errorf("unexpected export: %+v", export)
			}
			if (export.Sheet != nil) != tt.wantSheet {
				t.Fatalf("sheet present = %v, want %v", export.Sheet != nil, tt.wantSheet)
			}
			if export.Sheet != nil && len(export.Sheet.Rows) != tt.wantRows {
				t.Errorf("expected %d raw rows, got %d", tt.wantRows, len(export.Sheet.Rows))
			}
		})
	}
}
