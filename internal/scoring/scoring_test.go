package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/scoresheet/internal/model"
)

func scenarioKey() model.ExamKey {
	return model.ExamKey{
		Answers:     model.AnswerKey{"Q1": "D", "Q2": "B"},
		Descriptors: model.DescriptorMap{"Q1": "D1", "Q2": "D1"},
	}
}

func scenarioSheet(name string) model.RawSheet {
	return model.RawSheet{
		Name:   name,
		Header: []string{"ALUNO", "Q1", "Q2"},
		Rows: [][]string{
			{"João Silva", "D", "B"},
			{"Maria Santos", "d", "X"},
		},
	}
}

func TestResolveQuestion(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Q1", "Q1", true},
		{"Q1 (D1)", "Q1", true},
		{"Q1_something", "Q1", true},
		{"Q10", "Q10", true},
		{"Q10 (D14)", "Q10", true},
		{"  Q3  ", "Q3", true},
		{"q4", "Q4", true},
		{"Q1Q2", "Q1", true},
		{"Q01", "Q1", true},
		{"Q001 (D1)", "Q1", true},
		{"Q010", "Q10", true},
		{"Q0", "Q0", true},
		{"Q00", "Q0", true},
		{"Q", "", false},
		{"ALUNO", "", false},
		{"Turma Q1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := ResolveQuestion(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuestionsPerDescriptor(t *testing.T) {
	got := QuestionsPerDescriptor(model.DescriptorMap{
		"Q1": "D1", "Q2": "D1", "Q3": "D3", "Q4": "",
	})
	assert.Equal(t, map[string]int{"D1": 2, "D3": 1}, got)
}

func TestComputeScenarioA(t *testing.T) {
	res := Compute([]model.RawSheet{scenarioSheet("Escola A")}, scenarioKey())

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "Escola A", rec.Sheet)
	assert.Equal(t, "D1", rec.Descriptor)
	assert.Equal(t, 3, rec.Correct)
	assert.Equal(t, 4, rec.TotalPossible)
	assert.Equal(t, 2, rec.Students)
	assert.InDelta(t, 75.0, rec.Percentage, 1e-9)
	assert.Empty(t, res.Skipped)
	assert.Empty(t, res.Warnings)
}

func TestComputeScenarioBEmptySheet(t *testing.T) {
	empty := model.RawSheet{Name: "Vazia", Header: []string{"ALUNO", "Q1", "Q2"}}
	res := Compute([]model.RawSheet{empty, scenarioSheet("Escola A")}, scenarioKey())

	for _, r := range res.Records {
		assert.NotEqual(t, "Vazia", r.Sheet)
	}
	assert.Equal(t, []string{"Vazia"}, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.WarnEmptySheet, res.Warnings[0].Kind)
	assert.Equal(t, "Vazia", res.Warnings[0].Sheet)
}

func TestComputeScenarioCAggregatesSums(t *testing.T) {
	second := model.RawSheet{
		Name:   "Escola B",
		Header: []string{"ALUNO", "Q1", "Q2"},
		Rows: [][]string{
			{"Pedro", "A", "A"},
			{"Ana", "D", "C"},
			{"Luis", "C", "B"},
			{"Rita", "", ""},
		},
	}
	res := Compute([]model.RawSheet{scenarioSheet("Escola A"), second}, scenarioKey())
	require.Len(t, res.Records, 2)
	assert.InDelta(t, 75.0, res.Records[0].Percentage, 1e-9)
	assert.Equal(t, 2, res.Records[1].Correct)
	assert.Equal(t, 8, res.Records[1].TotalPossible)
	assert.InDelta(t, 25.0, res.Records[1].Percentage, 1e-9)

	totals := ByDescriptor(res.Records, nil)
	require.Len(t, totals, 1)
	assert.Equal(t, 5, totals[0].Correct)
	assert.Equal(t, 12, totals[0].TotalPossible)
	assert.InDelta(t, 5.0/12.0*100, totals[0].Percentage, 1e-9)
	// Not the mean of 75 and 25.
	assert.NotEqual(t, 50.0, totals[0].Percentage)
}

func TestComputeCaseInsensitiveAndMissingCells(t *testing.T) {
	key := model.ExamKey{
		Answers:     model.AnswerKey{"Q1": "d"},
		Descriptors: model.DescriptorMap{"Q1": "D1"},
	}
	sheet := model.RawSheet{
		Name:   "S",
		Header: []string{"Q1"},
		Rows:   [][]string{{"D"}, {" d "}, {""}, {}},
	}
	res := Compute([]model.RawSheet{sheet}, key)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 2, res.Records[0].Correct)
	assert.Equal(t, 4, res.Records[0].TotalPossible)
}

func TestComputeZeroPaddedHeaders(t *testing.T) {
	sheet := model.RawSheet{
		Name:   "Escola A",
		Header: []string{"ALUNO", "Q01", "Q02 (D1)"},
		Rows: [][]string{
			{"João Silva", "D", "B"},
			{"Maria Santos", "d", "X"},
		},
	}
	res := Compute([]model.RawSheet{sheet}, scenarioKey())

	require.Len(t, res.Records, 1)
	assert.Equal(t, 3, res.Records[0].Correct)
	assert.Equal(t, 4, res.Records[0].TotalPossible)
	assert.Empty(t, res.Warnings)
}

func TestComputeEmptyCellNeverMatchesEmptyAnswer(t *testing.T) {
	key := model.ExamKey{
		Answers:     model.AnswerKey{"Q1": ""},
		Descriptors: model.DescriptorMap{"Q1": "D1"},
	}
	sheet := model.RawSheet{Name: "S", Header: []string{"Q1"}, Rows: [][]string{{""}, {""}}}
	res := Compute([]model.RawSheet{sheet}, key)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 0, res.Records[0].Correct)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, model.WarnMissingAnswer, res.Warnings[0].Kind)
}

func TestComputeColumnPrecision(t *testing.T) {
	key := model.ExamKey{
		Answers:     model.AnswerKey{"Q1": "A", "Q10": "C"},
		Descriptors: model.DescriptorMap{"Q1": "D1", "Q10": "D14"},
	}
	sheet := model.RawSheet{
		Name:   "S",
		Header: []string{"Q1 (D1)", "Q10"},
		Rows:   [][]string{{"A", "C"}, {"C", "A"}},
	}
	res := Compute([]model.RawSheet{sheet}, key)
	require.Len(t, res.Records, 2)

	byDesc := map[string]model.PerformanceRecord{}
	for _, r := range res.Records {
		byDesc[r.Descriptor] = r
	}
	assert.Equal(t, 1, byDesc["D1"].Correct)
	assert.Equal(t, 1, byDesc["D14"].Correct)
	assert.Equal(t, 2, byDesc["D14"].TotalPossible)
}

func TestComputeWarnings(t *testing.T) {
	key := model.ExamKey{
		Answers:     model.AnswerKey{"Q1": "A", "Q2": "B"},
		Descriptors: model.DescriptorMap{"Q1": "D1", "Q3": "D3"},
	}
	sheet := model.RawSheet{
		Name:   "S",
		Header: []string{"Nome", "Q1", "Q2", "Q3", "Q1 (bis)", "Q99"},
		Rows:   [][]string{{"x", "A", "B", "C", "A", "Z"}},
	}
	res := Compute([]model.RawSheet{sheet}, key)

	kinds := map[model.WarningKind]string{}
	for _, w := range res.Warnings {
		kinds[w.Kind] = w.Question
	}
	assert.Equal(t, "Q2", kinds[model.WarnMissingDescriptor])
	assert.Equal(t, "Q3", kinds[model.WarnMissingAnswer])
	assert.Equal(t, "Q1", kinds[model.WarnDuplicateColumn])
	assert.Len(t, res.Warnings, 3, "unknown Q99 and metadata columns are ignored silently")

	byDesc := map[string]model.PerformanceRecord{}
	for _, r := range res.Records {
		byDesc[r.Descriptor] = r
	}
	assert.Equal(t, 1, byDesc["D1"].Correct, "duplicate column must not be counted twice")
	assert.Equal(t, 0, byDesc["D3"].Correct)
}

func TestComputeNoAnswerColumnsStillReports(t *testing.T) {
	sheet := model.RawSheet{Name: "S", Header: []string{"Nome"}, Rows: [][]string{{"x"}}}
	res := Compute([]model.RawSheet{sheet}, scenarioKey())
	require.Len(t, res.Records, 1)
	assert.Equal(t, 0, res.Records[0].Correct)
	assert.Equal(t, 2, res.Records[0].TotalPossible)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.WarnNoAnswerColumns, res.Warnings[0].Kind)
}

func TestComputeCatalogOnlyDescriptor(t *testing.T) {
	key := scenarioKey()
	key.Catalog = model.DescriptorCatalog{"D1": "Mapas", "D9": "Sem questões"}
	res := Compute([]model.RawSheet{scenarioSheet("S")}, key)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "D9", res.Records[1].Descriptor)
	assert.Equal(t, 0, res.Records[1].TotalPossible)
	assert.Equal(t, 0.0, res.Records[1].Percentage)
}

func TestComputeInvariants(t *testing.T) {
	key := model.ExamKey{
		Answers:     model.AnswerKey{"Q1": "D", "Q2": "B", "Q3": "A", "Q4": "C"},
		Descriptors: model.DescriptorMap{"Q1": "D1", "Q2": "D1", "Q3": "D3", "Q4": "D3"},
	}
	sheets := []model.RawSheet{
		{
			Name:   "A",
			Header: []string{"Q1", "Q2", "Q3", "Q4", "Q1 copy"},
			Rows:   [][]string{{"D", "B", "A", "C", "D"}, {"d", "b", "a", "c", "d"}},
		},
		{
			Name:   "B",
			Header: []string{"Q4", "Q3", "Q2", "Q1"},
			Rows:   [][]string{{"C", "A", "B", "D"}, {"", "", "", ""}, {"x", "y", "z", "w"}},
		},
	}

	first := Compute(sheets, key)
	second := Compute(sheets, key)
	assert.Equal(t, first, second, "compute must be idempotent")

	perSheet := map[string]int{}
	students := map[string]int{}
	for _, r := range first.Records {
		assert.LessOrEqual(t, r.Correct, r.TotalPossible)
		perSheet[r.Sheet] += r.Correct
		students[r.Sheet] = r.Students
	}
	for sheet, sum := range perSheet {
		assert.LessOrEqual(t, sum, students[sheet]*len(key.Answers), sheet)
	}
	for _, total := range ByDescriptor(first.Records, nil) {
		assert.LessOrEqual(t, total.Correct, total.TotalPossible)
	}
}

func TestComputeRowOrderIndependent(t *testing.T) {
	sheet := scenarioSheet("S")
	reversed := model.RawSheet{
		Name:   "S",
		Header: sheet.Header,
		Rows:   [][]string{sheet.Rows[1], sheet.Rows[0]},
	}
	a := Compute([]model.RawSheet{sheet}, scenarioKey())
	b := Compute([]model.RawSheet{reversed}, scenarioKey())
	assert.Equal(t, a.Records, b.Records)
}
