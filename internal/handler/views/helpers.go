package views

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"

	"github.com/pavelanni/scoresheet/internal/i18n"
	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/scoring"
)

// Bar is one labelled value in a bar chart. Value is a percentage.
type Bar struct {
	Label string
	Value float64
}

const (
	chartWidth  = 720
	labelWidth  = 160
	valueWidth  = 70
	barHeight   = 22
	barGap      = 6
	cellWidth   = 90
	cellHeight  = 28
	headerSpace = 40
)

// viridisStops samples the viridis colormap at nine evenly spaced points.
var viridisStops = [][3]float64{
	{0x44, 0x01, 0x54},
	{0x47, 0x2d, 0x7b},
	{0x3b, 0x52, 0x8b},
	{0x2c, 0x72, 0x8e},
	{0x21, 0x91, 0x8c},
	{0x28, 0xae, 0x80},
	{0x5e, 0xc9, 0x62},
	{0xad, 0xdc, 0x30},
	{0xfd, 0xe7, 0x25},
}

// Viridis maps t in [0, 1] to a hex colour. Values outside the range are clamped.
func Viridis(t float64) string {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	pos := t * float64(len(viridisStops)-1)
	i := int(pos)
	if i >= len(viridisStops)-1 {
		c := viridisStops[len(viridisStops)-1]
		return fmt.Sprintf("#%02x%02x%02x", int(c[0]), int(c[1]), int(c[2]))
	}
	frac := pos - float64(i)
	a, b := viridisStops[i], viridisStops[i+1]
	var rgb [3]int
	for k := range rgb {
		rgb[k] = int(math.Round(a[k] + (b[k]-a[k])*frac))
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}

// barShape holds the SVG geometry of one bar.
type barShape struct {
	Label  string
	Value  string
	Fill   string
	Y      int
	TextY  int
	Width  string
	ValueX string
}

func barShapes(bars []Bar) []barShape {
	plot := float64(chartWidth - labelWidth - valueWidth)
	shapes := make([]barShape, 0, len(bars))
	for i, b := range bars {
		y := barGap + i*(barHeight+barGap)
		v := math.Max(0, math.Min(100, b.Value))
		shapes = append(shapes, barShape{
			Label:  b.Label,
			Value:  formatPercent(b.Value),
			Fill:   Viridis(v / 100),
			Y:      y,
			TextY:  y + barHeight/2,
			Width:  strconv.FormatFloat(plot*v/100, 'f', 1, 64),
			ValueX: strconv.FormatFloat(float64(labelWidth)+plot*v/100+6, 'f', 1, 64),
		})
	}
	return shapes
}

func barChartHeight(bars []Bar) int {
	return len(bars)*(barHeight+barGap) + barGap
}

// heatCell holds the SVG geometry of one heatmap cell.
type heatCell struct {
	X     int
	Y     int
	TextX int
	TextY int
	Fill  string
	Ink   string
	Value string
}

func heatCells(m scoring.Matrix, row int) []heatCell {
	y := headerSpace + row*cellHeight
	cells := make([]heatCell, 0, len(m.Values[row]))
	for j, v := range m.Values[row] {
		x := labelWidth + j*cellWidth
		ink := "#fff"
		if v >= 60 {
			ink = "#000"
		}
		cells = append(cells, heatCell{
			X:     x,
			Y:     y,
			TextX: x + cellWidth/2,
			TextY: y + cellHeight/2,
			Fill:  Viridis(v / 100),
			Ink:   ink,
			Value: strconv.FormatFloat(v, 'f', 1, 64),
		})
	}
	return cells
}

func heatmapWidth(m scoring.Matrix) int {
	return labelWidth + len(m.Sheets)*cellWidth
}

func heatmapHeight(m scoring.Matrix) int {
	return headerSpace + len(m.Descriptors)*cellHeight
}

func viewBox(width, height int) string {
	return fmt.Sprintf("0 0 %d %d", width, height)
}

func reportURL(id string, parts ...string) string {
	u := "/report/" + url.PathEscape(id)
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

var warningLabels = map[model.WarningKind]string{
	model.WarnEmptySheet:        "WarningEmptySheet",
	model.WarnMissingAnswer:     "WarningMissingAnswer",
	model.WarnMissingDescriptor: "WarningMissingDescriptor",
	model.WarnDuplicateColumn:   "WarningDuplicateColumn",
	model.WarnNoAnswerColumns:   "WarningNoAnswerColumns",
	model.WarnUnreadableSheet:   "WarningUnreadableSheet",
}

func warningLabel(ctx context.Context, kind model.WarningKind) string {
	if id, ok := warningLabels[kind]; ok {
		return i18n.T(ctx, id)
	}
	return string(kind)
}

// Sort orders accepted by ReportPage. The empty value keeps the natural
// descriptor order and the workbook sheet order.
const (
	SortPercent     = "percent"
	SortPercentDesc = "-percent"
)

func sortDescriptorTotals(totals []model.DescriptorTotal, by string) []model.DescriptorTotal {
	out := append([]model.DescriptorTotal(nil), totals...)
	switch by {
	case SortPercent:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage < out[j].Percentage })
	case SortPercentDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	}
	return out
}

func sortSheetTotals(totals []model.SheetTotal, by string) []model.SheetTotal {
	out := append([]model.SheetTotal(nil), totals...)
	switch by {
	case SortPercent:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage < out[j].Percentage })
	case SortPercentDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	}
	return out
}

// nextSort returns the link and label suffix for the percentage column:
// ascending, then descending, then back to natural.
func nextSort(by string) (href, mark string) {
	switch by {
	case SortPercent:
		return "?sort=" + SortPercentDesc, " ▲"
	case SortPercentDesc:
		return "?", " ▼"
	}
	return "?sort=" + SortPercent, ""
}

func percentSortHref(by string) string {
	href, _ := nextSort(by)
	return href
}

func percentSortLabel(ctx context.Context, by string) string {
	_, mark := nextSort(by)
	return i18n.T(ctx, "ColPercent") + mark
}

func descriptorBars(totals []model.DescriptorTotal) []Bar {
	bars := make([]Bar, 0, len(totals))
	for _, d := range totals {
		bars = append(bars, Bar{Label: d.Descriptor, Value: d.Percentage})
	}
	return bars
}

func sheetBars(totals []model.SheetTotal) []Bar {
	bars := make([]Bar, 0, len(totals))
	for _, st := range totals {
		bars = append(bars, Bar{Label: st.Sheet, Value: st.Percentage})
	}
	return bars
}

func weakLabel(d model.DescriptorTotal) string {
	if d.Description != "" {
		return d.Descriptor + " (" + d.Description + "): " + formatPercent(d.Percentage)
	}
	return d.Descriptor + ": " + formatPercent(d.Percentage)
}

func thresholdData(threshold float64) map[string]any {
	return map[string]any{"Threshold": fmt.Sprintf("%g", threshold)}
}

func sortedQuestions(key model.ExamKey) []string {
	questions := make([]string, 0, len(key.Answers))
	for q := range key.Answers {
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return scoring.NaturalLess(questions[i], questions[j]) })
	return questions
}

// sheetTotals turns one sheet's records into descriptor rows, taking
// descriptions from the report-wide totals.
func sheetTotals(r *model.Report, records []model.PerformanceRecord) (totals []model.DescriptorTotal, students int) {
	descriptions := make(map[string]string, len(r.ByDescriptor))
	for _, d := range r.ByDescriptor {
		descriptions[d.Descriptor] = d.Description
	}
	totals = make([]model.DescriptorTotal, 0, len(records))
	for _, rec := range records {
		students = rec.Students
		totals = append(totals, model.DescriptorTotal{
			Descriptor:    rec.Descriptor,
			Description:   descriptions[rec.Descriptor],
			Correct:       rec.Correct,
			TotalPossible: rec.TotalPossible,
			Percentage:    rec.Percentage,
		})
	}
	return totals, students
}

func sheetWarnings(warnings []model.Warning, sheet string) []model.Warning {
	var out []model.Warning
	for _, w := range warnings {
		if w.Sheet == sheet {
			out = append(out, w)
		}
	}
	return out
}

func warningColumn(w model.Warning) string {
	if w.Column != "" {
		return w.Column
	}
	return w.Question
}
