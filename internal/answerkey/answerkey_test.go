package answerkey

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/scoring"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsConsistent(t *testing.T) {
	key := Default()
	require.NoError(t, Validate(key))
	assert.Empty(t, Coverage(key))
	assert.Equal(t, 5, DescriptorCount(key))
	assert.Len(t, key.Answers, 10)
	assert.Equal(t, map[string]int{"D1": 2, "D3": 2, "D4": 2, "D6": 2, "D14": 2},
		scoring.QuestionsPerDescriptor(key.Descriptors))
	for _, d := range key.Descriptors {
		assert.NotEmpty(t, key.Catalog[d], "descriptor %s needs a description", d)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	key, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), key)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "key.toml", `
[answers]
Q1 = "d"
Q2 = "B"

[descriptors]
Q1 = "D1"
Q2 = "d1"

[catalog]
D1 = "Mapas"
`},
		{"json", "key.json", `{
  "answers": {"Q1": "d", "Q2": "B"},
  "descriptors": {"Q1": "D1", "Q2": "d1"},
  "catalog": {"D1": "Mapas"}
}`},
		{"yaml", "key.yaml", `
answers:
  Q1: d
  Q2: B
descriptors:
  Q1: D1
  Q2: d1
catalog:
  D1: Mapas
`},
	}
	want := model.ExamKey{
		Answers:     model.AnswerKey{"Q1": "D", "Q2": "B"},
		Descriptors: model.DescriptorMap{"Q1": "D1", "Q2": "D1"},
		Catalog:     model.DescriptorCatalog{"D1": "Mapas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, want, key)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "empty.toml", "[catalog]\nD1 = \"x\"\n"))
	assert.ErrorContains(t, err, "no answers")

	_, err = Load(writeFile(t, "nodesc.toml", "[answers]\nQ1 = \"A\"\n"))
	assert.ErrorContains(t, err, "no descriptors")
}

func TestValidate(t *testing.T) {
	key := model.ExamKey{
		Answers:     model.AnswerKey{"Q1": "A", "Q2": "AB", "Q3": "", "X1": "C"},
		Descriptors: model.DescriptorMap{"Q1": "D1", "Q2": "D1", "Q4": "D2", "Y7": "D2"},
	}
	err := Validate(key)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `answer "AB" is not a single letter`)
	assert.Contains(t, msg, `question Q3: answer "" is not a single letter`)
	assert.Contains(t, msg, `"X1" is not a question identifier`)
	assert.Contains(t, msg, `descriptor map: "Y7" is not a question identifier`)
	assert.NotContains(t, msg, "question Q1")
	assert.NotContains(t, msg, "no descriptor")
	assert.NotContains(t, msg, "no answer")

	assert.ErrorContains(t, Validate(model.ExamKey{}), "answer key is empty")
}

func TestCoverageGapsAreNotErrors(t *testing.T) {
	key := Default()
	key.Descriptors["Q11"] = "D14"
	key.Answers["Q12"] = "A"

	require.NoError(t, Validate(key))
	assert.Equal(t, []string{
		"question Q12 has an answer but no descriptor",
		"question Q11 has a descriptor but no answer",
	}, Coverage(key))
	assert.Equal(t, 5, DescriptorCount(key))
}

func TestNormalizeZeroPaddedQuestions(t *testing.T) {
	key := Normalize(model.ExamKey{
		Answers:     model.AnswerKey{"q01": "a", "Q10": "b", "Q1X": "c"},
		Descriptors: model.DescriptorMap{"Q001": "d1", "q010": "D2"},
	})
	assert.Equal(t, model.AnswerKey{"Q1": "A", "Q10": "B", "Q1X": "C"}, key.Answers)
	assert.Equal(t, model.DescriptorMap{"Q1": "D1", "Q10": "D2"}, key.Descriptors)
	assert.ErrorContains(t, Validate(key), `"Q1X" is not a question identifier`)
}

func TestEncodeTOMLRoundTrip(t *testing.T) {
	data, err := EncodeTOML(Default())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[answers]")
	assert.Contains(t, string(data), "[descriptors]")

	key, err := Load(writeFile(t, "roundtrip.toml", string(data)))
	require.NoError(t, err)
	assert.Equal(t, Default(), key)
}
