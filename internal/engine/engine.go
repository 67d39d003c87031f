// Package engine implements the spreadsheet mutation components: style
// resolution, formula placement, data-validation rules, tables, charts,
// pivot tables, and range-level data operations. All components mutate an
// in-memory workbook owned by a store session; persistence and path policy
// live outside this package.
package engine

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// requireSheet resolves a sheet name case-sensitively and fails with
// NotFound when absent.
func requireSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return xlerr.New(xlerr.NotFound, "sheet %q not found", sheet)
	}
	return nil
}

// sheetExtent reports the current used extent (rows, cols) of a sheet.
// An empty sheet reports (0, 0).
func sheetExtent(f *excelize.File, sheet string) (int, int, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, 0, xlerr.Wrap(xlerr.Format, err, "read sheet %q", sheet)
	}
	maxCols := 0
	for _, r := range rows {
		if len(r) > maxCols {
			maxCols = len(r)
		}
	}
	return len(rows), maxCols, nil
}

// bindRange parses a range reference, defaults its sheet, verifies the sheet
// exists, and rejects ranges that lie outside the sheet's current extent.
// This is the binding-time containment check used for tables, charts, pivot
// sources, validation rules, and conditional formats.
func bindRange(f *excelize.File, defaultSheet, ref string) (addr.Range, error) {
	r, err := addr.ParseRange(ref)
	if err != nil {
		return addr.Range{}, err
	}
	if r.Sheet == "" {
		r.Sheet = defaultSheet
	}
	if err := requireSheet(f, r.Sheet); err != nil {
		return addr.Range{}, err
	}
	rows, cols, err := sheetExtent(f, r.Sheet)
	if err != nil {
		return addr.Range{}, err
	}
	if r.MaxRow > rows || r.MaxCol > cols {
		return addr.Range{}, xlerr.New(xlerr.Range,
			"range %s exceeds sheet extent (%d rows x %d cols)", r.String(), rows, cols)
	}
	return r, nil
}

// BindRange exposes binding-time range resolution for read-only address
// checks at the tool boundary.
func BindRange(f *excelize.File, defaultSheet, ref string) (addr.Range, error) {
	return bindRange(f, defaultSheet, ref)
}

// resolveRange is bindRange without the extent containment check, for
// operations that are allowed to grow the sheet (styles, writes).
func resolveRange(f *excelize.File, defaultSheet, ref string) (addr.Range, error) {
	r, err := addr.ParseRange(ref)
	if err != nil {
		return addr.Range{}, err
	}
	if r.Sheet == "" {
		r.Sheet = defaultSheet
	}
	if err := requireSheet(f, r.Sheet); err != nil {
		return addr.Range{}, err
	}
	return r, nil
}

// rangeValues reads the raw display values of a bound range, row-major.
// Cells outside the populated area come back as empty strings, keeping the
// grid rectangular.
func rangeValues(f *excelize.File, r addr.Range) ([][]string, error) {
	rows, err := f.GetRows(r.Sheet)
	if err != nil {
		return nil, xlerr.Wrap(xlerr.Format, err, "read sheet %q", r.Sheet)
	}
	out := make([][]string, 0, r.Rows())
	for row := r.MinRow; row <= r.MaxRow; row++ {
		line := make([]string, r.Cols())
		if row-1 < len(rows) {
			src := rows[row-1]
			for col := r.MinCol; col <= r.MaxCol; col++ {
				if col-1 < len(src) {
					line[col-1-(r.MinCol-1)] = src[col-1]
				}
			}
		}
		out = append(out, line)
	}
	return out, nil
}

// absRef renders a sheet-qualified absolute reference for chart series
// ("Sheet1!$A$2:$A$6").
func absRef(r addr.Range) string {
	var b strings.Builder
	if strings.ContainsAny(r.Sheet, " !'") {
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(r.Sheet, "'", "''"))
		b.WriteByte('\'')
	} else {
		b.WriteString(r.Sheet)
	}
	b.WriteByte('!')
	tl, _ := addr.ColumnName(r.MinCol)
	br, _ := addr.ColumnName(r.MaxCol)
	b.WriteByte('$')
	b.WriteString(tl)
	b.WriteByte('$')
	b.WriteString(itoa(r.MinRow))
	b.WriteByte(':')
	b.WriteByte('$')
	b.WriteString(br)
	b.WriteByte('$')
	b.WriteString(itoa(r.MaxRow))
	return b.String()
}

func itoa(n int) string {
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}
