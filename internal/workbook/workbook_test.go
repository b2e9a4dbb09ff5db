package workbook

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/scoresheet/internal/model"
)

// buildWorkbook creates an xlsx in memory with the given sheets, in order.
// Each sheet is a list of rows; the first row is the header.
func buildWorkbook(t *testing.T, names []string, data map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range names {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range data[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestReadSheetsInOrder(t *testing.T) {
	buf := buildWorkbook(t, []string{"Alfredo Santos", "José Bonifácio"}, map[string][][]any{
		"Alfredo Santos": {
			{"ALUNO", "Q1", "Q2 (D1)"},
			{"João Silva", "A", "B"},
			{"Maria Santos", "D", "b"},
		},
		"José Bonifácio": {
			{"ALUNO", "Q1"},
			{"Pedro Costa", "D"},
		},
	})

	sheets, sheetErrs, err := Read(buf)
	require.NoError(t, err)
	assert.Empty(t, sheetErrs)
	require.Len(t, sheets, 2)

	assert.Equal(t, "Alfredo Santos", sheets[0].Name)
	assert.Equal(t, []string{"ALUNO", "Q1", "Q2 (D1)"}, sheets[0].Header)
	assert.Equal(t, 2, sheets[0].StudentCount())
	assert.Equal(t, "b", sheets[0].Cell(1, 2))

	assert.Equal(t, "José Bonifácio", sheets[1].Name)
	assert.Equal(t, 1, sheets[1].StudentCount())
}

func TestReadSkipsBlankRows(t *testing.T) {
	buf := buildWorkbook(t, []string{"S"}, map[string][][]any{
		"S": {
			{nil, nil},
			{"ALUNO", "Q1"},
			{"A", "D"},
			{nil, nil},
			{"B", nil},
		},
	})
	sheets, _, err := Read(buf)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, []string{"ALUNO", "Q1"}, sheets[0].Header)
	assert.Equal(t, 2, sheets[0].StudentCount())
	assert.Equal(t, "", sheets[0].Cell(1, 1), "short rows read as empty cells")
}

func TestReadHeaderOnlyAndEmptySheets(t *testing.T) {
	buf := buildWorkbook(t, []string{"Header", "Empty"}, map[string][][]any{
		"Header": {{"ALUNO", "Q1"}},
	})
	sheets, _, err := Read(buf)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, 0, sheets[0].StudentCount())
	assert.Equal(t, 0, sheets[1].StudentCount())
	assert.Empty(t, sheets[1].Header)
}

func TestReadInvalidFormat(t *testing.T) {
	_, _, err := Read(strings.NewReader("ALUNO;Q1\nJoão;A\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFormat))
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := ReadFile("testdata/does-not-exist.xlsx")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidFormat))
}

func TestSheetErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	var err error = &SheetError{SheetName: "S", Err: inner}
	assert.True(t, errors.Is(err, inner))

	var se *SheetError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "S", se.SheetName)
	assert.Contains(t, err.Error(), `"S"`)
}

func TestWriteReport(t *testing.T) {
	report := &model.Report{
		ID:        "r1",
		FileName:  "notas.xlsx",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Sheets:    []string{"A", "B"},
		Records: []model.PerformanceRecord{
			{Sheet: "A", Descriptor: "D1", Correct: 3, TotalPossible: 4, Percentage: 75, Students: 2},
			{Sheet: "B", Descriptor: "D1", Correct: 1, TotalPossible: 4, Percentage: 25, Students: 2},
		},
		ByDescriptor: []model.DescriptorTotal{
			{Descriptor: "D1", Description: "Mapas", Correct: 4, TotalPossible: 8, Percentage: 50},
		},
		BySheet: []model.SheetTotal{
			{Sheet: "A", Correct: 3, TotalPossible: 4, Percentage: 75, Students: 2},
			{Sheet: "B", Correct: 1, TotalPossible: 4, Percentage: 25, Students: 2},
		},
		Warnings: []model.Warning{
			{Kind: model.WarnMissingAnswer, Sheet: "B", Column: "Q11", Question: "Q11", Message: "no key"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t,
		[]string{SheetDescriptors, SheetSchools, SheetComparison, SheetDetail, SheetWarnings},
		f.GetSheetList())

	v, err := f.GetCellValue(SheetDescriptors, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Mapas", v)

	rows, err := f.GetRows(SheetComparison)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Descritor", "A", "B"}, rows[0])
	assert.Equal(t, "D1", rows[1][0])
	assert.Equal(t, "75.00", rows[1][1])

	rows, err = f.GetRows(SheetDetail)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	v, err = f.GetCellValue(SheetWarnings, "E2")
	require.NoError(t, err)
	assert.Equal(t, "no key", v)
}

func TestWriteReportWithoutWarnings(t *testing.T) {
	report := &model.Report{
		Records: []model.PerformanceRecord{{Sheet: "A", Descriptor: "D1"}},
		BySheet: []model.SheetTotal{{Sheet: "A"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.NotContains(t, f.GetSheetList(), SheetWarnings)
}
