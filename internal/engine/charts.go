package engine

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// chartTypes is the closed set of supported chart type tags.
var chartTypes = map[string]excelize.ChartType{
	"line":     excelize.Line,
	"bar":      excelize.Col,
	"barh":     excelize.Bar,
	"pie":      excelize.Pie,
	"scatter":  excelize.Scatter,
	"area":     excelize.Area,
	"doughnut": excelize.Doughnut,
	"radar":    excelize.Radar,
}

// SupportedChartTypes lists the accepted chart type tags for discovery.
func SupportedChartTypes() []string {
	out := make([]string, 0, len(chartTypes))
	for k := range chartTypes {
		out = append(out, k)
	}
	return out
}

// Series describes one chart series: a display name, a value range, and an
// optional category range. Value and category ranges must be vectors (one
// row or one column).
type Series struct {
	Name       string
	Values     string
	Categories string
}

// ChartSpec gathers the inputs for chart creation.
type ChartSpec struct {
	Type   string
	Series []Series
	Anchor string
	Title  string
	XAxis  string
	YAxis  string
}

// CreateChart validates the spec and anchors a chart object at the given
// cell. Every series value range must carry the same element count as the
// first, and a category range, when present, must match its series. Charts
// are static: they do not observe later edits to their source ranges.
func CreateChart(f *excelize.File, sheet string, spec ChartSpec) error {
	if err := requireSheet(f, sheet); err != nil {
		return err
	}
	typ, ok := chartTypes[strings.ToLower(strings.TrimSpace(spec.Type))]
	if !ok {
		return xlerr.New(xlerr.Validation, "unsupported chart type %q", spec.Type)
	}
	if len(spec.Series) == 0 {
		return xlerr.New(xlerr.Validation, "chart requires at least one series")
	}
	anchorSheet, anchor, err := addr.ParseCell(spec.Anchor)
	if err != nil {
		return err
	}
	if anchorSheet != "" && anchorSheet != sheet {
		return xlerr.New(xlerr.Validation, "chart anchor must be on the chart's sheet")
	}

	want := 0
	series := make([]excelize.ChartSeries, 0, len(spec.Series))
	for i, sp := range spec.Series {
		vr, err := bindRange(f, sheet, sp.Values)
		if err != nil {
			return err
		}
		n, isVector := vr.Vector()
		if !isVector {
			return xlerr.New(xlerr.Validation, "series %d value range %s must be a single row or column", i+1, vr.A1())
		}
		if i == 0 {
			want = n
		} else if n != want {
			return xlerr.New(xlerr.Validation,
				"series %d has %d elements; first series has %d", i+1, n, want)
		}
		cs := excelize.ChartSeries{Name: sp.Name, Values: absRef(vr)}
		if sp.Categories != "" {
			cr, err := bindRange(f, sheet, sp.Categories)
			if err != nil {
				return err
			}
			cn, isVector := cr.Vector()
			if !isVector || cn != want {
				return xlerr.New(xlerr.Validation,
					"series %d category range %s must be a vector of %d elements", i+1, cr.A1(), want)
			}
			cs.Categories = absRef(cr)
		}
		series = append(series, cs)
	}

	chart := &excelize.Chart{Type: typ, Series: series}
	if spec.Title != "" {
		chart.Title = []excelize.RichTextRun{{Text: spec.Title}}
	}
	if spec.XAxis != "" {
		chart.XAxis = excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: spec.XAxis}}}
	}
	if spec.YAxis != "" {
		chart.YAxis = excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: spec.YAxis}}}
	}
	if err := f.AddChart(sheet, anchor.Name(), chart); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "add %s chart at %s", spec.Type, anchor.Name())
	}
	return nil
}
