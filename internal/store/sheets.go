package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/scoresheet/internal/model"
)

// GetSheet returns the raw rows of one sheet of a cached report.
func (s *Store) GetSheet(reportID, name string) (model.RawSheet, error) {
	sheet := model.RawSheet{Name: name}
	var header, rows string
	err := s.db.QueryRow(
		`SELECT header, cells FROM raw_sheets WHERE report_id = ? AND name = ?`, reportID, name,
	).Scan(&header, &rows)
	if err == sql.ErrNoRows {
		return sheet, fmt.Errorf("sheet %q of report %s: %w", name, reportID, ErrNotFound)
	}
	if err != nil {
		return sheet, err
	}
	if err := json.Unmarshal([]byte(header), &sheet.Header); err != nil {
		return sheet, fmt.Errorf("decode sheet header: %w", err)
	}
	if err := json.Unmarshal([]byte(rows), &sheet.Rows); err != nil {
		return sheet, fmt.Errorf("decode sheet rows: %w", err)
	}
	return sheet, nil
}

// ReportCount returns the number of cached reports.
func (s *Store) ReportCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&count)
	return count, err
}
