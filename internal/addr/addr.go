// Package addr parses and normalizes cell, range, and cross-sheet references.
//
// References follow the A1 convention: letter-encoded columns and 1-based
// rows, optionally qualified with a sheet name ("Sheet1!A1:D5"). Two-corner
// inputs are normalized into canonical min/max order, so normalization is
// idempotent.
package addr

import (
	"strings"

	"github.com/sheetforge/sheetforge/config"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// Cell is a 1-based (row, column) coordinate.
type Cell struct {
	Row int
	Col int
}

// Range is a normalized rectangle on one sheet. Sheet is empty when the
// reference carried no qualifier. MinRow<=MaxRow and MinCol<=MaxCol always
// hold for ranges produced by ParseRange or Normalize.
type Range struct {
	Sheet  string
	MinRow int
	MinCol int
	MaxRow int
	MaxCol int
}

// ColumnName encodes a 1-based column number as letters (1->A, 27->AA).
func ColumnName(n int) (string, error) {
	if n < 1 || n > config.MaxColumns {
		return "", xlerr.New(xlerr.Range, "column number %d out of bounds [1, %d]", n, config.MaxColumns)
	}
	var b [3]byte
	i := len(b)
	for n > 0 {
		n--
		i--
		b[i] = byte('A' + n%26)
		n /= 26
	}
	return string(b[i:]), nil
}

// ColumnNumber decodes column letters to a 1-based number (A->1, AA->27).
// Decoding is the exact inverse of ColumnName.
func ColumnNumber(s string) (int, error) {
	if s == "" || len(s) > 3 {
		return 0, xlerr.New(xlerr.Range, "malformed address: bad column %q", s)
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return 0, xlerr.New(xlerr.Range, "malformed address: bad column %q", s)
		}
		n = n*26 + int(c-'A'+1)
	}
	if n > config.MaxColumns {
		return 0, xlerr.New(xlerr.Range, "column %q beyond sheet bounds", s)
	}
	return n, nil
}

// Name renders the cell as an A1 reference.
func (c Cell) Name() string {
	col, err := ColumnName(c.Col)
	if err != nil {
		return ""
	}
	return col + itoa(c.Row)
}

// splitSheet separates an optional sheet qualifier from the local reference.
// Quoted sheet names ('My Sheet'!A1) are unquoted.
func splitSheet(ref string) (sheet, local string, err error) {
	i := strings.LastIndexByte(ref, '!')
	if i < 0 {
		return "", ref, nil
	}
	sheet, local = ref[:i], ref[i+1:]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return "", "", xlerr.New(xlerr.Range, "malformed address: empty sheet qualifier in %q", ref)
	}
	return sheet, local, nil
}

// parseCellLocal parses a bare A1 cell (no sheet qualifier). Absolute
// markers ($A$1) are accepted and ignored.
func parseCellLocal(ref string) (Cell, error) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return Cell{}, xlerr.New(xlerr.Range, "malformed address: empty cell reference")
	}
	i := 0
	if s[i] == '$' {
		i++
	}
	colStart := i
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	colPart := s[colStart:i]
	if i < len(s) && s[i] == '$' {
		i++
	}
	rowPart := s[i:]
	if colPart == "" || rowPart == "" {
		return Cell{}, xlerr.New(xlerr.Range, "malformed address: %q", ref)
	}
	col, err := ColumnNumber(colPart)
	if err != nil {
		return Cell{}, err
	}
	row := 0
	for j := 0; j < len(rowPart); j++ {
		c := rowPart[j]
		if c < '0' || c > '9' {
			return Cell{}, xlerr.New(xlerr.Range, "malformed address: %q", ref)
		}
		row = row*10 + int(c-'0')
		if row > config.MaxRows {
			return Cell{}, xlerr.New(xlerr.Range, "row in %q beyond sheet bounds", ref)
		}
	}
	if row < 1 {
		return Cell{}, xlerr.New(xlerr.Range, "malformed address: %q", ref)
	}
	return Cell{Row: row, Col: col}, nil
}

// ParseCell parses a single-cell reference with an optional sheet qualifier.
func ParseCell(ref string) (string, Cell, error) {
	sheet, local, err := splitSheet(strings.TrimSpace(ref))
	if err != nil {
		return "", Cell{}, err
	}
	if strings.ContainsRune(local, ':') {
		return "", Cell{}, xlerr.New(xlerr.Range, "expected a single cell, got range %q", ref)
	}
	c, err := parseCellLocal(local)
	if err != nil {
		return "", Cell{}, err
	}
	return sheet, c, nil
}

// ParseRange parses "[Sheet!]A1[:D5]" into a normalized Range. Reversed
// corners are reordered into canonical min/max form; a single cell becomes a
// 1x1 range.
func ParseRange(ref string) (Range, error) {
	sheet, local, err := splitSheet(strings.TrimSpace(ref))
	if err != nil {
		return Range{}, err
	}
	first, second, hasSecond := local, "", false
	if i := strings.IndexByte(local, ':'); i >= 0 {
		first, second, hasSecond = local[:i], local[i+1:], true
		if strings.ContainsRune(second, ':') {
			return Range{}, xlerr.New(xlerr.Range, "malformed address: %q", ref)
		}
	}
	a, err := parseCellLocal(first)
	if err != nil {
		return Range{}, err
	}
	b := a
	if hasSecond {
		b, err = parseCellLocal(second)
		if err != nil {
			return Range{}, err
		}
	}
	return Range{
		Sheet:  sheet,
		MinRow: min(a.Row, b.Row),
		MinCol: min(a.Col, b.Col),
		MaxRow: max(a.Row, b.Row),
		MaxCol: max(a.Col, b.Col),
	}, nil
}

// A1 renders the range without a sheet qualifier. Single cells render as
// "A1", rectangles as "A1:D5".
func (r Range) A1() string {
	tl := Cell{Row: r.MinRow, Col: r.MinCol}.Name()
	if r.MinRow == r.MaxRow && r.MinCol == r.MaxCol {
		return tl
	}
	return tl + ":" + Cell{Row: r.MaxRow, Col: r.MaxCol}.Name()
}

// String renders the range with its sheet qualifier when present.
func (r Range) String() string {
	if r.Sheet == "" {
		return r.A1()
	}
	return quoteSheet(r.Sheet) + "!" + r.A1()
}

// Rows returns the row count of the range.
func (r Range) Rows() int { return r.MaxRow - r.MinRow + 1 }

// Cols returns the column count of the range.
func (r Range) Cols() int { return r.MaxCol - r.MinCol + 1 }

// Cells returns the total cell count of the range.
func (r Range) Cells() int { return r.Rows() * r.Cols() }

// Contains reports whether the coordinate lies inside the range.
func (r Range) Contains(row, col int) bool {
	return row >= r.MinRow && row <= r.MaxRow && col >= r.MinCol && col <= r.MaxCol
}

// Overlaps reports whether two ranges share at least one cell. Sheet
// identity is the caller's concern; only geometry is compared.
func (r Range) Overlaps(o Range) bool {
	return r.MinRow <= o.MaxRow && o.MinRow <= r.MaxRow &&
		r.MinCol <= o.MaxCol && o.MinCol <= r.MaxCol
}

// Vector reports whether the range is a single row or a single column, and
// its element count. Chart series ranges must be vectors.
func (r Range) Vector() (int, bool) {
	if r.Rows() == 1 {
		return r.Cols(), true
	}
	if r.Cols() == 1 {
		return r.Rows(), true
	}
	return 0, false
}

func quoteSheet(s string) string {
	if strings.ContainsAny(s, " !'") {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return s
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
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
