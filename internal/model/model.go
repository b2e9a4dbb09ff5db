package model

import (
	"strings"
	"time"
)

// AnswerKey maps a question identifier (e.g. "Q1") to its correct choice letter.
type AnswerKey map[string]string

// DescriptorMap maps a question identifier to the descriptor it assesses.
type DescriptorMap map[string]string

// DescriptorCatalog maps a descriptor identifier to a human-readable description.
type DescriptorCatalog map[string]string

// ExamKey bundles the immutable scoring configuration for one exam.
type ExamKey struct {
	Answers     AnswerKey         `json:"answers" toml:"answers" mapstructure:"answers"`
	Descriptors DescriptorMap     `json:"descriptors" toml:"descriptors" mapstructure:"descriptors"`
	Catalog     DescriptorCatalog `json:"catalog" toml:"catalog" mapstructure:"catalog"`
}

// RawSheet is one school/class table read from the uploaded workbook.
// Rows hold data rows only; the header row lives in Header.
type RawSheet struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Cell returns the trimmed value at row i, column j, or "" when the row is short.
func (s RawSheet) Cell(i, j int) string {
	if i < 0 || i >= len(s.Rows) || j < 0 || j >= len(s.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(s.Rows[i][j])
}

// StudentCount returns the number of data rows.
func (s RawSheet) StudentCount() int {
	return len(s.Rows)
}

// PerformanceRecord is the correctness tally of one descriptor within one sheet.
type PerformanceRecord struct {
	Sheet         string  `json:"sheet"`
	Descriptor    string  `json:"descriptor"`
	Correct       int     `json:"correct"`
	TotalPossible int     `json:"total_possible"`
	Percentage    float64 `json:"percentage"`
	Students      int     `json:"students"`
}

// DescriptorTotal aggregates one descriptor across all sheets.
type DescriptorTotal struct {
	Descriptor    string  `json:"descriptor"`
	Description   string  `json:"description,omitempty"`
	Correct       int     `json:"correct"`
	TotalPossible int     `json:"total_possible"`
	Percentage    float64 `json:"percentage"`
}

// SheetTotal aggregates one sheet across all descriptors.
type SheetTotal struct {
	Sheet         string  `json:"sheet"`
	Correct       int     `json:"correct"`
	TotalPossible int     `json:"total_possible"`
	Percentage    float64 `json:"percentage"`
	Students      int     `json:"students"`
}

// WarningKind classifies a recoverable problem found while scoring.
type WarningKind string

const (
	WarnEmptySheet        WarningKind = "empty_sheet"
	WarnMissingAnswer     WarningKind = "missing_answer"
	WarnMissingDescriptor WarningKind = "missing_descriptor"
	WarnDuplicateColumn   WarningKind = "duplicate_column"
	WarnNoAnswerColumns   WarningKind = "no_answer_columns"
	WarnUnreadableSheet   WarningKind = "unreadable_sheet"
)

// Warning is a non-fatal notice surfaced alongside partial results.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Sheet    string      `json:"sheet"`
	Column   string      `json:"column,omitempty"`
	Question string      `json:"question,omitempty"`
	Message  string      `json:"message"`
}

// Report is the full outcome of analyzing one uploaded workbook.
type Report struct {
	ID           string              `json:"id"`
	FileName     string              `json:"file_name"`
	CreatedAt    time.Time           `json:"created_at"`
	Sheets       []string            `json:"sheets"`
	Skipped      []string            `json:"skipped,omitempty"`
	Records      []PerformanceRecord `json:"records"`
	ByDescriptor []DescriptorTotal   `json:"by_descriptor"`
	BySheet      []SheetTotal        `json:"by_sheet"`
	Warnings     []Warning           `json:"warnings,omitempty"`
}

// RecordsForSheet returns the records belonging to the named sheet, in report order.
func (r *Report) RecordsForSheet(sheet string) []PerformanceRecord {
	var out []PerformanceRecord
	for _, rec := range r.Records {
		if rec.Sheet == sheet {
			out = append(out, rec)
		}
	}
	return out
}

// HasSheet reports whether the sheet produced records.
func (r *Report) HasSheet(sheet string) bool {
	for _, st := range r.BySheet {
		if st.Sheet == sheet {
			return true
		}
	}
	return false
}

// ReportSummary is a lightweight listing entry for cached reports.
type ReportSummary struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	CreatedAt  time.Time `json:"created_at"`
	SheetCount int       `json:"sheet_count"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Lang       string  // UI language (pt, en)
	MaxReports int     // cached reports kept in memory
	Threshold  float64 // percentage below which a descriptor needs attention
	MaxUpload  int64   // upload size limit in bytes
}
