package model

import "time"

// ReportExport is the top-level JSON structure for report export.
type ReportExport struct {
	ReportID     string              `json:"report_id"`
	FileName     string              `json:"file_name"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Skipped      []string            `json:"skipped,omitempty"`
	Warnings     []Warning           `json:"warnings,omitempty"`
	Records      []PerformanceRecord `json:"records"`
	ByDescriptor []DescriptorTotal   `json:"by_descriptor"`
	BySheet      []SheetTotal        `json:"by_sheet"`
	Sheet        *SheetExport        `json:"sheet,omitempty"`
}

// SheetExport holds one sheet's drill-down data for export.
type SheetExport struct {
	Name    string              `json:"name"`
	Records []PerformanceRecord `json:"records"`
	Header  []string            `json:"header,omitempty"`
	Rows    [][]string          `json:"rows,omitempty"`
}

// NewReportExport builds an export document from a report.
func NewReportExport(r *Report) ReportExport {
	return ReportExport{
		ReportID:     r.ID,
		FileName:     r.FileName,
		GeneratedAt:  r.CreatedAt,
		Skipped:      r.Skipped,
		Warnings:     r.Warnings,
		Records:      r.Records,
		ByDescriptor: r.ByDescriptor,
		BySheet:      r.BySheet,
	}
}
