package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/scoresheet/internal/model"
)

// SaveReport stores a report together with the raw sheets it was computed from.
func (s *Store) SaveReport(r *model.Report, sheets []model.RawSheet) error {
	sheetNames, err := marshalJSON(r.Sheets)
	if err != nil {
		return err
	}
	skipped, err := marshalJSON(r.Skipped)
	if err != nil {
		return err
	}
	byDescriptor, err := marshalJSON(r.ByDescriptor)
	if err != nil {
		return err
	}
	bySheet, err := marshalJSON(r.BySheet)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO reports (id, file_name, created_at, sheets, skipped, by_descriptor, by_sheet)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FileName, r.CreatedAt, sheetNames, skipped, byDescriptor, bySheet,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for i, rec := range r.Records {
		_, err := tx.Exec(
			`INSERT INTO records (report_id, position, sheet, descriptor, correct, total_possible, percentage, students)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, rec.Sheet, rec.Descriptor, rec.Correct, rec.TotalPossible, rec.Percentage, rec.Students,
		)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	for i, w := range r.Warnings {
		_, err := tx.Exec(
			`INSERT INTO warnings (report_id, position, kind, sheet, column_name, question, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, w.Kind, w.Sheet, w.Column, w.Question, w.Message,
		)
		if err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}

	for i, sh := range sheets {
		header, err := marshalJSON(sh.Header)
		if err != nil {
			return err
		}
		rows, err := marshalJSON(sh.Rows)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO raw_sheets (report_id, position, name, header, cells) VALUES (?, ?, ?, ?, ?)`,
			r.ID, i, sh.Name, header, rows,
		)
		if err != nil {
			return fmt.Errorf("insert sheet: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("cached report", "id", r.ID, "records", len(r.Records), "sheets", len(sheets))
	return nil
}

// GetReport returns a cached report by ID.
func (s *Store) GetReport(id string) (*model.Report, error) {
	r := &model.Report{}
	var sheetNames, skipped, byDescriptor, bySheet string
	err := s.db.QueryRow(
		`SELECT id, file_name, created_at, sheets, skipped, by_descriptor, by_sheet FROM reports WHERE id = ?`, id,
	).Scan(&r.ID, &r.FileName, &r.CreatedAt, &sheetNames, &skipped, &byDescriptor, &bySheet)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw string
		dst any
	}{
		{sheetNames, &r.Sheets},
		{skipped, &r.Skipped},
		{byDescriptor, &r.ByDescriptor},
		{bySheet, &r.BySheet},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", id, err)
		}
	}

	if r.Records, err = s.queryRecords(`WHERE report_id = ?`, id); err != nil {
		return nil, err
	}
	if r.Warnings, err = s.getWarnings(id); err != nil {
		return nil, err
	}
	return r, nil
}

// GetSheetRecords returns the records of one sheet of a cached report.
func (s *Store) GetSheetRecords(id, sheet string) ([]model.PerformanceRecord, error) {
	return s.queryRecords(`WHERE report_id = ? AND sheet = ?`, id, sheet)
}

func (s *Store) queryRecords(where string, args ...any) ([]model.PerformanceRecord, error) {
	rows, err := s.db.Query(
		`SELECT sheet, descriptor, correct, total_possible, percentage, students FROM records `+where+` ORDER BY position`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.PerformanceRecord
	for rows.Next() {
		var rec model.PerformanceRecord
		if err := rows.Scan(&rec.Sheet, &rec.Descriptor, &rec.Correct, &rec.TotalPossible, &rec.Percentage, &rec.Students); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) getWarnings(id string) ([]model.Warning, error) {
	rows, err := s.db.Query(
		`SELECT kind, sheet, column_name, question, message FROM warnings WHERE report_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var warnings []model.Warning
	for rows.Next() {
		var w model.Warning
		if err := rows.Scan(&w.Kind, &w.Sheet, &w.Column, &w.Question, &w.Message); err != nil {
			return nil, err
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// ListReports returns cached reports, newest first.
func (s *Store) ListReports() ([]model.ReportSummary, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.file_name, r.created_at, COUNT(rs.position)
		 FROM reports r LEFT JOIN raw_sheets rs ON rs.report_id = r.id
		 GROUP BY r.id ORDER BY r.created_at DESC, r.rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReportSummary
	for rows.Next() {
		var rs model.ReportSummary
		if err := rows.Scan(&rs.ID, &rs.FileName, &rs.CreatedAt, &rs.SheetCount); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep reports and drops the rest. It returns the
// number of reports removed.
func (s *Store) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id FROM reports ORDER BY created_at DESC, rowid DESC LIMIT -1 OFFSET ?`, keep,
	)
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		for _, table := range []string{"records", "warnings", "raw_sheets", "reports"} {
			col := "report_id"
			if table == "reports" {
				col = "id"
			}
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE `+col+` = ?`, id); err != nil {
				return 0, fmt.Errorf("prune %s from %s: %w", id, table, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		slog.Info("pruned cached reports", "removed", len(stale), "kept", keep)
	}
	return len(stale), nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(data), nil
}
