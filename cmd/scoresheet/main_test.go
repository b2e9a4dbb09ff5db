package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/scoresheet/internal/analysis"
	"github.com/pavelanni/scoresheet/internal/answerkey"
	appI18n "github.com/pavelanni/scoresheet/internal/i18n"
	"github.com/pavelanni/scoresheet/internal/model"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init(appI18n.DefaultLang); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func sampleResult(t *testing.T) *analysis.Result {
	t.Helper()
	sheets := []model.RawSheet{
		{
			Name:   "Alfredo",
			Header: []string{"ALUNO", "Q1", "Q2", "Q3", "Q4"},
			Rows: [][]string{
				{"João", "D", "B", "A", "C"},
				{"Maria", "d", "x", "b"},
			},
		},
		{Name: "Vazia", Header: []string{"ALUNO", "Q1"}},
	}
	res, err := analysis.FromSheets("notas.xlsx", sheets, nil, answerkey.Default())
	require.NoError(t, err)
	return res
}

func langCtx(lang string) context.Context {
	return appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))
}

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "report", "key"})
	assert.NotNil(t, root.Flags().Lookup("addr"), "serve flags should be available on root")
	assert.NotNil(t, root.RunE)
}

func TestWriteTextSummary(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, writeText(langCtx("pt"), &buf, res.Report, "", nil, 60))

	out := buf.String()
	assert.Contains(t, out, "Relatório de notas.xlsx")
	assert.Contains(t, out, "Desempenho geral por descritor")
	assert.Contains(t, out, "75.00%")
	assert.Contains(t, out, "Descritores abaixo de 60%")
	assert.Contains(t, out, "Abas ignoradas: Vazia")
	assert.Contains(t, out, "[empty_sheet]")
}

func TestWriteTextSheet(t *testing.T) {
	res := sampleResult(t)
	raw, ok := res.Sheet("Alfredo")
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, writeText(langCtx("en"), &buf, res.Report, "Alfredo", &raw, 60))

	out := buf.String()
	assert.Contains(t, out, "School: Alfredo")
	assert.Contains(t, out, "2 students")
	assert.Contains(t, out, "Student answers")
	assert.Contains(t, out, "Maria")
	assert.NotContains(t, out, "[empty_sheet]")
}

func TestWriteJSON(t *testing.T) {
	res := sampleResult(t)

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, res, "Alfredo", true))

	var export model.ReportExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, res.Report.ID, export.ReportID)
	assert.Len(t, export.Records, len(res.Report.Records))
	require.NotNil(t, export.Sheet)
	assert.Equal(t, "Alfredo", export.Sheet.Name)
	assert.Len(t, export.Sheet.Rows, 2)
}

func TestLoadKeyAllowsCoverageGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[answers]
Q1 = "D"
Q2 = "B"

[descriptors]
Q1 = "D1"
Q2 = "D1"
Q3 = "D3"
`), 0o644))

	v := viper.New()
	v.Set("key", path)
	key, err := loadKey(v)
	require.NoError(t, err)
	assert.Equal(t, "D3", key.Descriptors["Q3"])
	assert.Equal(t, 2, answerkey.DescriptorCount(key))

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[answers]\nQ1 = \"DD\"\n\n[descriptors]\nQ1 = \"D1\"\n"), 0o644))
	v.Set("key", bad)
	_, err = loadKey(v)
	assert.ErrorContains(t, err, "not a single letter")
}
