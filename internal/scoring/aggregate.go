package scoring

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pavelanni/scoresheet/internal/model"
)

// ByDescriptor sums records per descriptor across all sheets and recomputes
// the percentage from the sums, never by averaging sheet percentages.
func ByDescriptor(records []model.PerformanceRecord, catalog model.DescriptorCatalog) []model.DescriptorTotal {
	index := make(map[string]int)
	var totals []model.DescriptorTotal
	for _, r := range records {
		i, ok := index[r.Descriptor]
		if !ok {
			i = len(totals)
			index[r.Descriptor] = i
			totals = append(totals, model.DescriptorTotal{
				Descriptor:  r.Descriptor,
				Description: catalog[r.Descriptor],
			})
		}
		totals[i].Correct += r.Correct
		totals[i].TotalPossible += r.TotalPossible
	}
	for i := range totals {
		totals[i].Percentage = Percentage(totals[i].Correct, totals[i].TotalPossible)
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return NaturalLess(totals[i].Descriptor, totals[j].Descriptor)
	})
	return totals
}

// BySheet sums records per sheet across all descriptors, keeping the order
// in which sheets first appear.
func BySheet(records []model.PerformanceRecord) []model.SheetTotal {
	index := make(map[string]int)
	var totals []model.SheetTotal
	for _, r := range records {
		i, ok := index[r.Sheet]
		if !ok {
			i = len(totals)
			index[r.Sheet] = i
			totals = append(totals, model.SheetTotal{Sheet: r.Sheet, Students: r.Students})
		}
		totals[i].Correct += r.Correct
		totals[i].TotalPossible += r.TotalPossible
	}
	for i := range totals {
		totals[i].Percentage = Percentage(totals[i].Correct, totals[i].TotalPossible)
	}
	return totals
}

// Matrix is a descriptor-by-sheet grid of percentages.
type Matrix struct {
	Descriptors []string
	Sheets      []string
	// Values[i][j] is the percentage of Descriptors[i] in Sheets[j].
	Values [][]float64
}

// At returns the percentage for a descriptor/sheet pair.
func (m Matrix) At(descriptor, sheet string) (float64, bool) {
	for i, d := range m.Descriptors {
		if d != descriptor {
			continue
		}
		for j, s := range m.Sheets {
			if s == sheet {
				return m.Values[i][j], true
			}
		}
	}
	return 0, false
}

// Pivot arranges record percentages by descriptor (rows) and sheet (columns).
// Pairs with no record are filled with 0.
func Pivot(records []model.PerformanceRecord) Matrix {
	var m Matrix
	dIndex := make(map[string]int)
	sIndex := make(map[string]int)
	for _, r := range records {
		if _, ok := dIndex[r.Descriptor]; !ok {
			dIndex[r.Descriptor] = len(m.Descriptors)
			m.Descriptors = append(m.Descriptors, r.Descriptor)
		}
		if _, ok := sIndex[r.Sheet]; !ok {
			sIndex[r.Sheet] = len(m.Sheets)
			m.Sheets = append(m.Sheets, r.Sheet)
		}
	}
	sort.SliceStable(m.Descriptors, func(i, j int) bool {
		return NaturalLess(m.Descriptors[i], m.Descriptors[j])
	})
	for i, d := range m.Descriptors {
		dIndex[d] = i
	}

	m.Values = make([][]float64, len(m.Descriptors))
	for i := range m.Values {
		m.Values[i] = make([]float64, len(m.Sheets))
	}
	for _, r := range records {
		m.Values[dIndex[r.Descriptor]][sIndex[r.Sheet]] = r.Percentage
	}
	return m
}

// Weakest returns descriptors whose percentage is below threshold, worst first.
// Descriptors with nothing to score are left out.
func Weakest(totals []model.DescriptorTotal, threshold float64) []model.DescriptorTotal {
	var out []model.DescriptorTotal
	for _, t := range totals {
		if t.TotalPossible > 0 && t.Percentage < threshold {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage < out[j].Percentage
		}
		return NaturalLess(out[i].Descriptor, out[j].Descriptor)
	})
	return out
}

// NaturalLess orders identifiers by their letter prefix, then by trailing number,
// so that "D3" sorts before "D14".
func NaturalLess(a, b string) bool {
	pa, na, oka := splitIdentifier(a)
	pb, nb, okb := splitIdentifier(b)
	if pa != pb {
		return pa < pb
	}
	if oka && okb && na != nb {
		return na < nb
	}
	if oka != okb {
		return !oka
	}
	return a < b
}

func splitIdentifier(s string) (string, int, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return strings.ToUpper(s), 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return strings.ToUpper(s), 0, false
	}
	return strings.ToUpper(s[:i]), n, true
}
