package store

import (
	"fmt"

	"github.com/pavelanni/scoresheet/internal/model"
)

// ExportReport builds an export document for a cached report. When sheet is
// non-empty the document also carries that sheet's records, plus its raw
// student rows if includeRaw is set.
func (s *Store) ExportReport(id, sheet string, includeRaw bool) (model.ReportExport, error) {
	r, err := s.GetReport(id)
	if err != nil {
		return model.ReportExport{}, err
	}
	export := model.NewReportExport(r)
	if sheet == "" {
		return export, nil
	}

	records, err := s.GetSheetRecords(id, sheet)
	if err != nil {
		return model.ReportExport{}, fmt.Errorf("sheet records: %w", err)
	}
	if len(records) == 0 {
		return model.ReportExport{}, fmt.Errorf("sheet %q of report %s: %w", sheet, id, ErrNotFound)
	}
	se := &model.SheetExport{Name: sheet, Records: records}
	if includeRaw {
		raw, err := s.GetSheet(id, sheet)
		if err != nil {
			return model.ReportExport{}, err
		}
		se.Header = raw.Header
		se.Rows = raw.Rows
	}
	export.Sheet = se
	return export, nil
}
