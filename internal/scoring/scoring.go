// Package scoring turns raw answer sheets into per-descriptor performance records.
//
// Everything here is pure: the same sheets and key always produce the same
// records, warnings and skipped sheets, in the same order.
package scoring

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/pavelanni/scoresheet/internal/model"
)

// questionColumnRegex matches a header that starts with a question identifier.
// Digits are matched greedily so "Q10" never resolves to "Q1".
var questionColumnRegex = regexp.MustCompile(`^[Qq](\d+)`)

// Result holds the output of Compute.
type Result struct {
	Records  []model.PerformanceRecord
	Skipped  []string
	Warnings []model.Warning
}

// ResolveQuestion extracts the question identifier from a column header.
// "Q1", "Q01", "Q1 (D1)" and "Q1_extra" all resolve to "Q1"; "Q1Q2" resolves
// to "Q1". Leading zeros are dropped so padded headers match the key.
func ResolveQuestion(header string) (string, bool) {
	m := questionColumnRegex.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return "", false
	}
	digits := strings.TrimLeft(m[1], "0")
	if digits == "" {
		digits = "0"
	}
	return "Q" + digits, true
}

// QuestionsPerDescriptor counts how many questions are assigned to each descriptor.
func QuestionsPerDescriptor(dm model.DescriptorMap) map[string]int {
	counts := make(map[string]int)
	for _, d := range dm {
		if d == "" {
			continue
		}
		counts[d]++
	}
	return counts
}

// Descriptors returns every descriptor named by the key, in natural order.
// Catalog entries without questions are included so every sheet reports on them.
func Descriptors(key model.ExamKey) []string {
	set := make(map[string]struct{})
	for _, d := range key.Descriptors {
		if d != "" {
			set[d] = struct{}{}
		}
	}
	for d := range key.Catalog {
		if d != "" {
			set[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return NaturalLess(out[i], out[j]) })
	return out
}

// Percentage returns correct/possible*100, or 0 when possible is zero.
func Percentage(correct, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return float64(correct) / float64(possible) * 100
}

// Compute scores every sheet against the key. Sheets are processed in the
// given order and each yields one record per descriptor.
func Compute(sheets []model.RawSheet, key model.ExamKey) Result {
	perDescriptor := QuestionsPerDescriptor(key.Descriptors)
	descriptors := Descriptors(key)

	var res Result
	for _, sheet := range sheets {
		students := sheet.StudentCount()
		if students == 0 {
			res.Skipped = append(res.Skipped, sheet.Name)
			res.Warnings = append(res.Warnings, model.Warning{
				Kind:    model.WarnEmptySheet,
				Sheet:   sheet.Name,
				Message: fmt.Sprintf("sheet %q has no student rows, skipped", sheet.Name),
			})
			continue
		}

		correct, warnings := scoreSheet(sheet, key)
		res.Warnings = append(res.Warnings, warnings...)

		for _, d := range descriptors {
			possible := students * perDescriptor[d]
			res.Records = append(res.Records, model.PerformanceRecord{
				Sheet:         sheet.Name,
				Descriptor:    d,
				Correct:       correct[d],
				TotalPossible: possible,
				Percentage:    Percentage(correct[d], possible),
				Students:      students,
			})
		}
	}
	return res
}

// scoreSheet tallies correct answers per descriptor for one non-empty sheet.
func scoreSheet(sheet model.RawSheet, key model.ExamKey) (map[string]int, []model.Warning) {
	correct := make(map[string]int)
	var warnings []model.Warning
	seen := make(map[string]string)

	for col, header := range sheet.Header {
		q, ok := ResolveQuestion(header)
		if !ok {
			continue
		}

		descriptor, hasDescriptor := key.Descriptors[q]
		answer, hasAnswer := key.Answers[q]
		answer = strings.TrimSpace(answer)
		hasDescriptor = hasDescriptor && descriptor != ""
		hasAnswer = hasAnswer && answer != ""

		switch {
		case !hasDescriptor && !hasAnswer:
			slog.Debug("ignoring column with unknown question", "sheet", sheet.Name, "column", header, "question", q)
			continue
		case !hasAnswer:
			warnings = append(warnings, model.Warning{
				Kind:     model.WarnMissingAnswer,
				Sheet:    sheet.Name,
				Column:   header,
				Question: q,
				Message:  fmt.Sprintf("column %q: question %s has no entry in the answer key", header, q),
			})
			continue
		case !hasDescriptor:
			warnings = append(warnings, model.Warning{
				Kind:     model.WarnMissingDescriptor,
				Sheet:    sheet.Name,
				Column:   header,
				Question: q,
				Message:  fmt.Sprintf("column %q: question %s is not mapped to a descriptor", header, q),
			})
			continue
		}

		if prev, dup := seen[q]; dup {
			warnings = append(warnings, model.Warning{
				Kind:     model.WarnDuplicateColumn,
				Sheet:    sheet.Name,
				Column:   header,
				Question: q,
				Message:  fmt.Sprintf("column %q repeats question %s already scored from %q", header, q, prev),
			})
			continue
		}
		seen[q] = header

		correct[descriptor] += countCorrect(sheet, col, answer)
	}

	if len(seen) == 0 {
		warnings = append(warnings, model.Warning{
			Kind:    model.WarnNoAnswerColumns,
			Sheet:   sheet.Name,
			Message: fmt.Sprintf("sheet %q has no scorable question columns", sheet.Name),
		})
	}
	return correct, warnings
}

// countCorrect counts cells in column col equal to answer, ignoring case.
// Empty cells never match.
func countCorrect(sheet model.RawSheet, col int, answer string) int {
	n := 0
	for i := range sheet.Rows {
		v := sheet.Cell(i, col)
		if v != "" && strings.EqualFold(v, answer) {
			n++
		}
	}
	return n
}
