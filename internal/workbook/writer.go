package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/scoring"
)

// Report workbook sheet names.
const (
	SheetDescriptors = "Descritores"
	SheetSchools     = "Escolas"
	SheetComparison  = "Comparativo"
	SheetDetail      = "Detalhado"
	SheetWarnings    = "Avisos"
)

type table struct {
	name    string
	header  []any
	rows    [][]any
	pctCols []int // 1-based
}

// WriteReport renders a report as an xlsx workbook with one sheet per view.
func WriteReport(w io.Writer, r *model.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	tables := []table{descriptorTable(r), schoolTable(r), comparisonTable(r), detailTable(r)}
	if len(r.Warnings) > 0 {
		tables = append(tables, warningTable(r))
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	pctStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create percent style: %w", err)
	}

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", t.name, err)
		}
		if err := writeTable(f, t, headerStyle, pctStyle); err != nil {
			return fmt.Errorf("write sheet %s: %w", t.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, t table, headerStyle, pctStyle int) error {
	if err := f.SetSheetRow(t.name, "A1", &t.header); err != nil {
		return err
	}
	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.name, cell, &row); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(t.header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(t.name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if len(t.rows) > 0 {
		for _, col := range t.pctCols {
			name, err := excelize.ColumnNumberToName(col)
			if err != nil {
				return err
			}
			top := fmt.Sprintf("%s2", name)
			bottom := fmt.Sprintf("%s%d", name, len(t.rows)+1)
			if err := f.SetCellStyle(t.name, top, bottom, pctStyle); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(t.name, "A", lastCol, 18)
}

func descriptorTable(r *model.Report) table {
	t := table{
		name:    SheetDescriptors,
		header:  []any{"Descritor", "Descrição", "Acertos", "Total Possível", "Percentual de Acertos"},
		pctCols: []int{5},
	}
	for _, d := range r.ByDescriptor {
		t.rows = append(t.rows, []any{d.Descriptor, d.Description, d.Correct, d.TotalPossible, d.Percentage})
	}
	return t
}

func schoolTable(r *model.Report) table {
	t := table{
		name:    SheetSchools,
		header:  []any{"Planilha/Escola", "Número de Alunos", "Acertos", "Total Possível", "Percentual de Acertos"},
		pctCols: []int{5},
	}
	for _, s := range r.BySheet {
		t.rows = append(t.rows, []any{s.Sheet, s.Students, s.Correct, s.TotalPossible, s.Percentage})
	}
	return t
}

func comparisonTable(r *model.Report) table {
	m := scoring.Pivot(r.Records)
	t := table{name: SheetComparison, header: []any{"Descritor"}}
	for j, s := range m.Sheets {
		t.header = append(t.header, s)
		t.pctCols = append(t.pctCols, j+2)
	}
	for i, d := range m.Descriptors {
		row := []any{d}
		for _, v := range m.Values[i] {
			row = append(row, v)
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func detailTable(r *model.Report) table {
	t := table{
		name:    SheetDetail,
		header:  []any{"Planilha/Escola", "Descritor", "Acertos", "Total Possível", "Percentual de Acertos", "Número de Alunos"},
		pctCols: []int{5},
	}
	for _, rec := range r.Records {
		t.rows = append(t.rows, []any{rec.Sheet, rec.Descriptor, rec.Correct, rec.TotalPossible, rec.Percentage, rec.Students})
	}
	return t
}

func warningTable(r *model.Report) table {
	t := table{
		name:   SheetWarnings,
		header: []any{"Planilha", "Coluna", "Questão", "Tipo", "Mensagem"},
	}
	for _, w := range r.Warnings {
		t.rows = append(t.rows, []any{w.Sheet, w.Column, w.Question, string(w.Kind), w.Message})
	}
	return t
}
