// Package workbook reads student answer workbooks and writes report workbooks.
package workbook

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/scoresheet/internal/model"
)

// Read parses every sheet of an xlsx workbook. The first non-blank row of a
// sheet is its header; fully blank rows after it are dropped.
//
// A workbook that cannot be opened yields ErrInvalidFormat. A single sheet
// that cannot be read is reported as a *SheetError and left out of the result.
func Read(r io.Reader) ([]model.RawSheet, []*SheetError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer f.Close()

	var sheets []model.RawSheet
	var sheetErrs []*SheetError
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			slog.Warn("failed to read sheet", "sheet", name, "error", err)
			sheetErrs = append(sheetErrs, &SheetError{SheetName: name, Err: err})
			continue
		}
		sheets = append(sheets, toRawSheet(name, rows))
	}
	return sheets, sheetErrs, nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]model.RawSheet, []*SheetError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return Read(file)
}

func toRawSheet(name string, rows [][]string) model.RawSheet {
	sheet := model.RawSheet{Name: name}

	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return sheet
	}

	sheet.Header = make([]string, len(rows[start]))
	for i, h := range rows[start] {
		sheet.Header[i] = strings.TrimSpace(h)
	}
	for _, row := range rows[start+1:] {
		if isBlank(row) {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
