package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/config"
	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

var (
	currencyRe = regexp.MustCompile(`^[\$€£¥][\d,]+\.?\d*$`)
	numberRe   = regexp.MustCompile(`^-?[\d,]+\.?\d*$`)
)

// dateLayouts are the literal date shapes recognized during type inference,
// most specific first.
var dateLayouts = []struct {
	layout  string
	hasTime bool
}{
	{"2006-01-02 15:04:05", true},
	{"01/02/2006 15:04:05", true},
	{"2006-01-02 15:04", true},
	{"01/02/2006 15:04", true},
	{"2006-01-02", false},
	{"01/02/2006", false},
	{"2006/01/02", false},
}

// inferValue detects the natural type of a raw string: percentages,
// currency, plain and comma-grouped numbers, dates, and boolean-like text.
// It returns the converted value plus the number format to apply, or the
// original text with no format when nothing matches.
func inferValue(raw string) (any, string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ""
	}

	if strings.HasSuffix(s, "%") {
		num := strings.ReplaceAll(strings.TrimSuffix(s, "%"), ",", "")
		if v, err := strconv.ParseFloat(num, 64); err == nil {
			return v / 100, "0.00%"
		}
	}

	if currencyRe.MatchString(s) {
		num := strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "").Replace(s)
		if strings.Contains(num, ".") {
			if v, err := strconv.ParseFloat(num, 64); err == nil {
				return v, `"$"#,##0.00`
			}
		} else if v, err := strconv.ParseInt(num, 10, 64); err == nil {
			return v, `"$"#,##0`
		}
	}

	if numberRe.MatchString(s) {
		num := strings.ReplaceAll(s, ",", "")
		if strings.Contains(num, ".") {
			if v, err := strconv.ParseFloat(num, 64); err == nil {
				return v, "0.00"
			}
		} else if v, err := strconv.ParseInt(num, 10, 64); err == nil {
			return v, "0"
		}
	}

	// Scientific notation and other float shapes.
	if strings.ContainsAny(s, ".eE") {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, "0.00"
		}
	}

	for _, dl := range dateLayouts {
		if t, err := time.Parse(dl.layout, s); err == nil {
			if dl.hasTime {
				return t, "mm/dd/yyyy h:mm"
			}
			return t, "mm/dd/yyyy"
		}
	}

	switch strings.ToLower(s) {
	case "true", "yes":
		return true, ""
	case "false", "no":
		return false, ""
	}

	return s, ""
}

// WriteRange writes a row-major grid starting at startCell, growing the
// sheet as needed. The sheet is created when absent. With autoDetect set,
// string inputs go through type inference and matching number formats are
// resolved through the style registry. Writes into validated cells are
// checked against locally-enforceable rules first; a violation fails the
// whole operation.
func WriteRange(f *excelize.File, sheet, startCell string, data [][]any, autoDetect bool) (int, addr.Range, error) {
	if len(data) == 0 {
		return 0, addr.Range{}, xlerr.New(xlerr.Validation, "no data provided to write")
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if _, err := CreateSheet(f, sheet); err != nil {
			return 0, addr.Range{}, err
		}
	}
	refSheet, start, err := addr.ParseCell(startCell)
	if err != nil {
		return 0, addr.Range{}, err
	}
	if refSheet != "" && refSheet != sheet {
		return 0, addr.Range{}, xlerr.New(xlerr.Range, "start cell %q names a different sheet", startCell)
	}

	maxCols := 0
	written := 0
	for i, line := range data {
		for j, raw := range line {
			cell := addr.Cell{Row: start.Row + i, Col: start.Col + j}
			if cell.Row > config.MaxRows || cell.Col > config.MaxColumns {
				return 0, addr.Range{}, xlerr.New(xlerr.Range, "write exceeds sheet bounds at %s", cell.Name())
			}
			value := raw
			numFmt := ""
			if autoDetect {
				if s, isString := raw.(string); isString {
					value, numFmt = inferValue(s)
				}
			}
			if err := checkCellWrite(f, sheet, cell, value); err != nil {
				return 0, addr.Range{}, err
			}
			name := cell.Name()
			// A literal value and a formula are mutually exclusive; writing
			// a value clears any formula on the cell.
			if existing, _ := f.GetCellFormula(sheet, name); existing != "" {
				if err := f.SetCellFormula(sheet, name, ""); err != nil {
					return 0, addr.Range{}, xlerr.Wrap(xlerr.Format, err, "clear formula on %s", name)
				}
			}
			if err := f.SetCellValue(sheet, name, value); err != nil {
				return 0, addr.Range{}, xlerr.Wrap(xlerr.Format, err, "write cell %s", name)
			}
			if numFmt != "" {
				handle, err := ResolveStyle(f, StyleAttrs{NumberFormat: numFmt})
				if err != nil {
					return 0, addr.Range{}, err
				}
				if err := f.SetCellStyle(sheet, name, name, handle); err != nil {
					return 0, addr.Range{}, xlerr.Wrap(xlerr.Format, err, "format cell %s", name)
				}
			}
			written++
		}
		if len(line) > maxCols {
			maxCols = len(line)
		}
	}
	if maxCols == 0 {
		maxCols = 1
	}
	out := addr.Range{
		Sheet:  sheet,
		MinRow: start.Row,
		MinCol: start.Col,
		MaxRow: start.Row + len(data) - 1,
		MaxCol: start.Col + maxCols - 1,
	}
	return written, out, nil
}

// AutoFormatRange re-scans an existing range, running every populated cell
// through type inference and applying the inferred value and number format.
// Cells that infer to plain text are left untouched, as are formula cells:
// only literal values are rewritten.
func AutoFormatRange(f *excelize.File, sheet, rangeRef string) (int, addr.Range, error) {
	r, err := bindRange(f, sheet, rangeRef)
	if err != nil {
		return 0, addr.Range{}, err
	}
	formatted := 0
	for row := r.MinRow; row <= r.MaxRow; row++ {
		for col := r.MinCol; col <= r.MaxCol; col++ {
			name := addr.Cell{Row: row, Col: col}.Name()
			if fm, _ := f.GetCellFormula(r.Sheet, name); fm != "" {
				continue
			}
			raw, err := f.GetCellValue(r.Sheet, name, excelize.Options{RawCellValue: true})
			if err != nil {
				return 0, addr.Range{}, xlerr.Wrap(xlerr.Format, err, "read cell %s", name)
			}
			value, numFmt := inferValue(raw)
			if value == nil || numFmt == "" {
				continue
			}
			if err := f.SetCellValue(r.Sheet, name, value); err != nil {
				return 0, addr.Range{}, xlerr.Wrap(xlerr.Format, err, "write cell %s", name)
			}
			handle, err := ResolveStyle(f, StyleAttrs{NumberFormat: numFmt})
			if err != nil {
				return 0, addr.Range{}, err
			}
			if err := f.SetCellStyle(r.Sheet, name, name, handle); err != nil {
				return 0, addr.Range{}, xlerr.Wrap(xlerr.Format, err, "format cell %s", name)
			}
			formatted++
		}
	}
	return formatted, r, nil
}

// ReadPage is one bounded page of range data.
type ReadPage struct {
	Range     addr.Range
	Rows      [][]string
	TotalRows int
	Offset    int
	Returned  int
	Truncated bool
}

// ReadRange returns the display values of a range, paged by rows. The range
// is clamped to the sheet's current extent; reading entirely outside the
// used area yields an empty page rather than an error.
func ReadRange(f *excelize.File, sheet, rangeRef string, offsetRows, maxRows int) (ReadPage, error) {
	r, err := resolveRange(f, sheet, rangeRef)
	if err != nil {
		return ReadPage{}, err
	}
	rows, cols, err := sheetExtent(f, r.Sheet)
	if err != nil {
		return ReadPage{}, err
	}
	clamped := r
	if clamped.MaxRow > rows {
		clamped.MaxRow = rows
	}
	if clamped.MaxCol > cols {
		clamped.MaxCol = cols
	}
	if clamped.MaxRow < clamped.MinRow || clamped.MaxCol < clamped.MinCol {
		return ReadPage{Range: r, Offset: offsetRows}, nil
	}

	total := clamped.Rows()
	if offsetRows < 0 {
		offsetRows = 0
	}
	if offsetRows >= total {
		return ReadPage{Range: r, TotalRows: total, Offset: offsetRows}, nil
	}
	window := clamped
	window.MinRow = clamped.MinRow + offsetRows
	if maxRows > 0 && window.MinRow+maxRows-1 < window.MaxRow {
		window.MaxRow = window.MinRow + maxRows - 1
	}
	values, err := rangeValues(f, window)
	if err != nil {
		return ReadPage{}, err
	}
	return ReadPage{
		Range:     r,
		Rows:      values,
		TotalRows: total,
		Offset:    offsetRows,
		Returned:  len(values),
		Truncated: offsetRows+len(values) < total,
	}, nil
}
