package scoring

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/scoresheet/internal/model"
)

func sampleRecords() []model.PerformanceRecord {
	return []model.PerformanceRecord{
		{Sheet: "Alfredo", Descriptor: "D1", Correct: 3, TotalPossible: 4, Percentage: 75, Students: 2},
		{Sheet: "Alfredo", Descriptor: "D14", Correct: 1, TotalPossible: 4, Percentage: 25, Students: 2},
		{Sheet: "Alfredo", Descriptor: "D3", Correct: 0, TotalPossible: 0, Percentage: 0, Students: 2},
		{Sheet: "Bonifacio", Descriptor: "D1", Correct: 1, TotalPossible: 6, Percentage: 100.0 / 6, Students: 3},
		{Sheet: "Bonifacio", Descriptor: "D14", Correct: 6, TotalPossible: 6, Percentage: 100, Students: 3},
	}
}

func TestByDescriptor(t *testing.T) {
	totals := ByDescriptor(sampleRecords(), model.DescriptorCatalog{"D1": "Mapas"})
	require.Len(t, totals, 3)

	assert.Equal(t, []string{"D1", "D3", "D14"}, []string{totals[0].Descriptor, totals[1].Descriptor, totals[2].Descriptor})
	assert.Equal(t, "Mapas", totals[0].Description)
	assert.Equal(t, 4, totals[0].Correct)
	assert.Equal(t, 10, totals[0].TotalPossible)
	assert.InDelta(t, 40.0, totals[0].Percentage, 1e-9)
	assert.Equal(t, 0.0, totals[1].Percentage, "zero denominator yields zero")
	assert.InDelta(t, 70.0, totals[2].Percentage, 1e-9)
}

func TestBySheet(t *testing.T) {
	totals := BySheet(sampleRecords())
	require.Len(t, totals, 2)
	assert.Equal(t, "Alfredo", totals[0].Sheet)
	assert.Equal(t, 4, totals[0].Correct)
	assert.Equal(t, 8, totals[0].TotalPossible)
	assert.Equal(t, 2, totals[0].Students)
	assert.InDelta(t, 50.0, totals[0].Percentage, 1e-9)
	assert.Equal(t, "Bonifacio", totals[1].Sheet)
	assert.InDelta(t, 7.0/12.0*100, totals[1].Percentage, 1e-9)
}

func TestAggregatesEmpty(t *testing.T) {
	assert.Empty(t, ByDescriptor(nil, nil))
	assert.Empty(t, BySheet(nil))
	m := Pivot(nil)
	assert.Empty(t, m.Descriptors)
	assert.Empty(t, m.Sheets)
}

func TestPivot(t *testing.T) {
	m := Pivot(sampleRecords())
	assert.Equal(t, []string{"D1", "D3", "D14"}, m.Descriptors)
	assert.Equal(t, []string{"Alfredo", "Bonifacio"}, m.Sheets)

	v, ok := m.At("D14", "Bonifacio")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	v, ok = m.At("D3", "Bonifacio")
	require.True(t, ok, "missing pairs are filled")
	assert.Equal(t, 0.0, v)

	_, ok = m.At("D99", "Alfredo")
	assert.False(t, ok)
}

func TestWeakest(t *testing.T) {
	totals := ByDescriptor(sampleRecords(), nil)
	weak := Weakest(totals, 60)
	require.Len(t, weak, 1)
	assert.Equal(t, "D1", weak[0].Descriptor)

	assert.Len(t, Weakest(totals, 100), 2, "descriptors with nothing to score are left out")
	assert.Empty(t, Weakest(totals, 0))
}

func TestNaturalLess(t *testing.T) {
	ids := []string{"D14", "D3", "D1", "D6", "D4", "C2", "D", "D10"}
	sort.Slice(ids, func(i, j int) bool { return NaturalLess(ids[i], ids[j]) })
	assert.Equal(t, []string{"C2", "D", "D1", "D3", "D4", "D6", "D10", "D14"}, ids)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		correct  int
		possible int
		want     float64
	}{
		{"zero possible", 0, 0, 0},
		{"negative possible", 1, -1, 0},
		{"three quarters", 3, 4, 75},
		{"all", 5, 5, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentage(tt.correct, tt.possible), 1e-9)
		})
	}
}
