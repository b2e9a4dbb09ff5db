// Package answerkey provides the exam answer key, the question-to-descriptor
// map and the descriptor catalog used for scoring.
package answerkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/scoring"
)

// Default returns the built-in key for the ten-question mathematics exam.
func Default() model.ExamKey {
	return model.ExamKey{
		Answers: model.AnswerKey{
			"Q1": "D", "Q2": "B", "Q3": "A", "Q4": "C", "Q5": "C",
			"Q6": "A", "Q7": "B", "Q8": "B", "Q9": "A", "Q10": "C",
		},
		Descriptors: model.DescriptorMap{
			"Q1": "D1", "Q2": "D1", "Q3": "D3", "Q4": "D3", "Q5": "D4",
			"Q6": "D4", "Q7": "D6", "Q8": "D6", "Q9": "D14", "Q10": "D14",
		},
		Catalog: model.DescriptorCatalog{
			"D1":  "Identificar a localização/movimentação de objeto, em mapas, croquis e outras representações gráficas.",
			"D3":  "Identificar propriedades comuns e diferenças entre figuras bidimensionais e tridimensionais, relacionando-as com suas planificações.",
			"D4":  "Reconhecer e utilizar características do sistema de numeração decimal, como agrupamentos e valor posicional.",
			"D6":  "Associar operações de adição, subtração, multiplicação, divisão e potenciação a problemas.",
			"D14": "Identificar a localização de números naturais na reta numérica.",
		},
	}
}

// Load reads a key file (JSON, YAML or TOML, chosen by extension) with the
// tables "answers", "descriptors" and "catalog". An empty path returns Default.
func Load(path string) (model.ExamKey, error) {
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return model.ExamKey{}, fmt.Errorf("read answer key %s: %w", path, err)
	}

	var key model.ExamKey
	if err := v.Unmarshal(&key); err != nil {
		return model.ExamKey{}, fmt.Errorf("decode answer key %s: %w", path, err)
	}
	key = Normalize(key)

	if len(key.Answers) == 0 {
		return model.ExamKey{}, fmt.Errorf("answer key %s: no answers defined", path)
	}
	if len(key.Descriptors) == 0 {
		return model.ExamKey{}, fmt.Errorf("answer key %s: no descriptors defined", path)
	}
	return key, nil
}

// Normalize upper-cases identifiers and answer letters and trims whitespace.
// Config loaders fold map keys to lower case, so this keeps "Q1" and "D1"
// consistent between tables.
func Normalize(key model.ExamKey) model.ExamKey {
	out := model.ExamKey{
		Answers:     make(model.AnswerKey, len(key.Answers)),
		Descriptors: make(model.DescriptorMap, len(key.Descriptors)),
		Catalog:     make(model.DescriptorCatalog, len(key.Catalog)),
	}
	for q, a := range key.Answers {
		out.Answers[normQuestion(q)] = strings.ToUpper(strings.TrimSpace(a))
	}
	for q, d := range key.Descriptors {
		out.Descriptors[normQuestion(q)] = normID(d)
	}
	for d, text := range key.Catalog {
		out.Catalog[normID(d)] = strings.TrimSpace(text)
	}
	return out
}

func normID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normQuestion maps "q01" to "Q1" so key entries match resolved headers.
// Anything that is not exactly Q<number> is kept for Validate to reject.
func normQuestion(s string) string {
	s = normID(s)
	id, ok := scoring.ResolveQuestion(s)
	if !ok || strings.TrimLeft(s[1:], "0123456789") != "" {
		return s
	}
	return id
}

// Validate reports structural problems that make a key unusable: an empty
// key, identifiers that are not Q<number> and answers that are not a single
// letter. Coverage gaps between the tables are reported by Coverage instead.
func Validate(key model.ExamKey) error {
	var errs []error
	if len(key.Answers) == 0 {
		errs = append(errs, errors.New("answer key is empty"))
	}

	for _, q := range sortedKeys(key.Answers) {
		if id, ok := scoring.ResolveQuestion(q); !ok || id != q {
			errs = append(errs, fmt.Errorf("question %q is not a question identifier (expected Q<number>)", q))
		}
		a := key.Answers[q]
		r, size := utf8.DecodeRuneInString(a)
		if size == 0 || size != len(a) || !unicode.IsLetter(r) {
			errs = append(errs, fmt.Errorf("question %s: answer %q is not a single letter", q, a))
		}
	}
	for _, q := range sortedKeys(key.Descriptors) {
		if id, ok := scoring.ResolveQuestion(q); !ok || id != q {
			errs = append(errs, fmt.Errorf("descriptor map: %q is not a question identifier (expected Q<number>)", q))
		}
	}
	return errors.Join(errs...)
}

// Coverage lists questions present in only one of the answer and descriptor
// tables. Scoring skips such columns with a warning, so these are not errors.
func Coverage(key model.ExamKey) []string {
	var gaps []string
	for _, q := range sortedKeys(key.Answers) {
		if _, ok := key.Descriptors[q]; !ok {
			gaps = append(gaps, fmt.Sprintf("question %s has an answer but no descriptor", q))
		}
	}
	for _, q := range sortedKeys(key.Descriptors) {
		if _, ok := key.Answers[q]; !ok {
			gaps = append(gaps, fmt.Sprintf("question %s has a descriptor but no answer", q))
		}
	}
	return gaps
}

// DescriptorCount returns the number of distinct descriptors questions map to.
func DescriptorCount(key model.ExamKey) int {
	return len(scoring.QuestionsPerDescriptor(key.Descriptors))
}

// EncodeTOML renders the key in the TOML layout accepted by Load.
func EncodeTOML(key model.ExamKey) ([]byte, error) {
	data, err := toml.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode answer key: %w", err)
	}
	return data, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return scoring.NaturalLess(keys[i], keys[j]) })
	return keys
}
