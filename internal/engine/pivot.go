package engine

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// Aggregation enumerates the supported pivot value aggregations.
type Aggregation string

const (
	AggSum     Aggregation = "sum"
	AggCount   Aggregation = "count"
	AggAverage Aggregation = "average"
	AggMin     Aggregation = "min"
	AggMax     Aggregation = "max"
)

// ValueField pairs a source field with its aggregation function.
type ValueField struct {
	Field string
	Agg   Aggregation
}

// PivotSpec describes one pivot build: a source range whose first row is the
// header row, field assignments, and the output anchor. Filter fields
// restrict which source rows contribute (row value must equal the filter
// value).
type PivotSpec struct {
	Source      string
	RowFields   []string
	ColFields   []string
	Values      []ValueField
	Filters     map[string]string
	TargetSheet string
	Anchor      string
}

// PivotResult describes the materialized grid.
type PivotResult struct {
	Source      string
	Output      string
	RowGroups   int
	ColGroups   int
	SourceRows  int
	TargetSheet string
}

const groupKeySep = "\x1f"

// accumulator carries one (row-group, column-group, value-field) cell's
// running state.
type accumulator struct {
	sum   float64
	count int
	min   float64
	max   float64
	seen  bool // a numeric contribution has landed
}

func (a *accumulator) add(v float64) {
	a.sum += v
	if !a.seen || v < a.min {
		a.min = v
	}
	if !a.seen || v > a.max {
		a.max = v
	}
	a.seen = true
}

// result renders the accumulator under an aggregation. Combinations with no
// contributing rows materialize a defined empty value: zero for sum/count,
// blank for average/min/max, so the output grid is always fully rectangular.
func (a *accumulator) result(agg Aggregation) any {
	switch agg {
	case AggSum:
		return a.sum
	case AggCount:
		return a.count
	case AggAverage:
		if !a.seen {
			return nil
		}
		return a.sum / float64(a.count)
	case AggMin:
		if !a.seen {
			return nil
		}
		return a.min
	case AggMax:
		if !a.seen {
			return nil
		}
		return a.max
	default:
		return nil
	}
}

func validAggregation(a Aggregation) bool {
	switch a {
	case AggSum, AggCount, AggAverage, AggMin, AggMax:
		return true
	}
	return false
}

// BuildPivot aggregates the source range into a rectangular grid anchored on
// the target sheet. The grid is a static snapshot: later edits to the source
// do not update it; call BuildPivot again to rebuild.
//
// Distinct row and column group keys are ordered by first appearance in the
// source data (stable and deterministic, not alphabetical).
func BuildPivot(f *excelize.File, sheet string, spec PivotSpec) (PivotResult, error) {
	if len(spec.Values) == 0 {
		return PivotResult{}, xlerr.New(xlerr.Validation, "pivot requires at least one value field")
	}
	for _, vf := range spec.Values {
		if !validAggregation(vf.Agg) {
			return PivotResult{}, xlerr.New(xlerr.Validation, "unknown aggregation %q", vf.Agg)
		}
	}

	src, err := bindRange(f, sheet, spec.Source)
	if err != nil {
		return PivotResult{}, err
	}
	grid, err := rangeValues(f, src)
	if err != nil {
		return PivotResult{}, err
	}
	headers := grid[0]
	if emptyHeaderRow(headers) {
		return PivotResult{}, xlerr.New(xlerr.Validation, "pivot source %s has an empty header row", src.String())
	}

	fieldIdx := func(name string) (int, error) {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
				return i, nil
			}
		}
		return 0, xlerr.New(xlerr.NotFound, "field %q not found in source header row", name)
	}

	rowIdx := make([]int, len(spec.RowFields))
	for i, name := range spec.RowFields {
		if rowIdx[i], err = fieldIdx(name); err != nil {
			return PivotResult{}, err
		}
	}
	colIdx := make([]int, len(spec.ColFields))
	for i, name := range spec.ColFields {
		if colIdx[i], err = fieldIdx(name); err != nil {
			return PivotResult{}, err
		}
	}
	valIdx := make([]int, len(spec.Values))
	for i, vf := range spec.Values {
		if valIdx[i], err = fieldIdx(vf.Field); err != nil {
			return PivotResult{}, err
		}
	}
	filterIdx := make(map[int]string, len(spec.Filters))
	for name, want := range spec.Filters {
		idx, err := fieldIdx(name)
		if err != nil {
			return PivotResult{}, err
		}
		filterIdx[idx] = want
	}

	// Single scan over the data rows, grouping independently by row-field
	// and column-field tuples in first-seen order.
	var rowKeys, colKeys []string
	rowSeen := map[string][]string{}
	colSeen := map[string]struct{}{}
	cells := map[string]*accumulator{}
	sourceRows := 0

	for _, line := range grid[1:] {
		if blankLine(line) {
			continue
		}
		skip := false
		for idx, want := range filterIdx {
			if strings.TrimSpace(at(line, idx)) != want {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		sourceRows++

		rparts := make([]string, len(rowIdx))
		for i, idx := range rowIdx {
			rparts[i] = strings.TrimSpace(at(line, idx))
		}
		rkey := strings.Join(rparts, groupKeySep)
		if _, ok := rowSeen[rkey]; !ok {
			rowSeen[rkey] = rparts
			rowKeys = append(rowKeys, rkey)
		}

		cparts := make([]string, len(colIdx))
		for i, idx := range colIdx {
			cparts[i] = strings.TrimSpace(at(line, idx))
		}
		ckey := strings.Join(cparts, groupKeySep)
		if _, ok := colSeen[ckey]; !ok {
			colSeen[ckey] = struct{}{}
			colKeys = append(colKeys, ckey)
		}

		for vi, vf := range spec.Values {
			raw := strings.TrimSpace(at(line, valIdx[vi]))
			acc := cellAcc(cells, rkey, ckey, vi)
			if raw == "" {
				continue
			}
			fv, ferr := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
			if ferr != nil {
				if vf.Agg == AggSum || vf.Agg == AggAverage {
					return PivotResult{}, xlerr.New(xlerr.Validation,
						"field %q has non-numeric value %q under %s", vf.Field, raw, vf.Agg)
				}
				acc.count++ // count tolerates non-numeric; min/max skip it
				continue
			}
			acc.count++
			acc.add(fv)
		}
	}

	// Empty source: an empty grid (header row only), not an error.
	if len(colKeys) == 0 {
		colKeys = []string{""}
	}

	out, err := writePivotGrid(f, sheet, spec, rowKeys, rowSeen, colKeys, cells)
	if err != nil {
		return PivotResult{}, err
	}
	return PivotResult{
		Source:      src.String(),
		Output:      out.String(),
		RowGroups:   len(rowKeys),
		ColGroups:   len(colKeys),
		SourceRows:  sourceRows,
		TargetSheet: out.Sheet,
	}, nil
}

// writePivotGrid materializes the fully rectangular output block at the
// anchor and returns the bound output range.
func writePivotGrid(f *excelize.File, sheet string, spec PivotSpec, rowKeys []string, rowSeen map[string][]string, colKeys []string, cells map[string]*accumulator) (addr.Range, error) {
	target := spec.TargetSheet
	if target == "" {
		target = sheet
	}
	if idx, err := f.GetSheetIndex(target); err != nil || idx < 0 {
		if _, err := f.NewSheet(target); err != nil {
			return addr.Range{}, xlerr.Wrap(xlerr.Format, err, "create sheet %q", target)
		}
	}
	anchorRef := spec.Anchor
	if anchorRef == "" {
		anchorRef = "A1"
	}
	anchorSheet, anchor, err := addr.ParseCell(anchorRef)
	if err != nil {
		return addr.Range{}, err
	}
	if anchorSheet != "" {
		target = anchorSheet
		if err := requireSheet(f, target); err != nil {
			return addr.Range{}, err
		}
	}

	set := func(row, col int, v any) error {
		name := addr.Cell{Row: row, Col: col}.Name()
		if err := f.SetCellValue(target, name, v); err != nil {
			return xlerr.Wrap(xlerr.Format, err, "write pivot cell %s", name)
		}
		return nil
	}

	// Header row: row-field names, then one column per (column-group, value
	// field) pair.
	col := anchor.Col
	for _, name := range spec.RowFields {
		if err := set(anchor.Row, col, name); err != nil {
			return addr.Range{}, err
		}
		col++
	}
	for _, ckey := range colKeys {
		for _, vf := range spec.Values {
			if err := set(anchor.Row, col, valueHeader(ckey, vf)); err != nil {
				return addr.Range{}, err
			}
			col++
		}
	}
	width := col - anchor.Col
	if width == 0 {
		width = 1
	}

	row := anchor.Row + 1
	for _, rkey := range rowKeys {
		col = anchor.Col
		for _, part := range rowSeen[rkey] {
			if err := set(row, col, part); err != nil {
				return addr.Range{}, err
			}
			col++
		}
		for _, ckey := range colKeys {
			for vi, vf := range spec.Values {
				acc := cells[cellKey(rkey, ckey, vi)]
				if acc == nil {
					acc = &accumulator{}
				}
				v := acc.result(vf.Agg)
				if v != nil {
					if err := set(row, col, v); err != nil {
						return addr.Range{}, err
					}
				}
				col++
			}
		}
		row++
	}

	return addr.Range{
		Sheet:  target,
		MinRow: anchor.Row,
		MinCol: anchor.Col,
		MaxRow: anchor.Row + len(rowKeys),
		MaxCol: anchor.Col + width - 1,
	}, nil
}

func valueHeader(ckey string, vf ValueField) string {
	label := string(vf.Agg) + " of " + vf.Field
	if ckey == "" {
		return label
	}
	return strings.ReplaceAll(ckey, groupKeySep, " / ") + " " + label
}

func cellKey(rkey, ckey string, vi int) string {
	return rkey + "\x1e" + ckey + "\x1e" + strconv.Itoa(vi)
}

func cellAcc(cells map[string]*accumulator, rkey, ckey string, vi int) *accumulator {
	k := cellKey(rkey, ckey, vi)
	acc, ok := cells[k]
	if !ok {
		acc = &accumulator{}
		cells[k] = acc
	}
	return acc
}

func at(line []string, idx int) string {
	if idx < len(line) {
		return line[idx]
	}
	return ""
}

func blankLine(line []string) bool {
	for _, v := range line {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func emptyHeaderRow(headers []string) bool {
	for _, h := range headers {
		if strings.TrimSpace(h) != "" {
			return false
		}
	}
	return true
}
