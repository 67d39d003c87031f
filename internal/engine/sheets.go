package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// validateSheetName rejects names the container format refuses: blank, over
// 31 characters, or containing any of []:*?/\.
func validateSheetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return xlerr.New(xlerr.Validation, "sheet name must not be blank")
	}
	if utf8.RuneCountInString(name) > 31 {
		return xlerr.New(xlerr.Validation, "sheet name %q exceeds 31 characters", name)
	}
	if strings.ContainsAny(name, `[]:*?/\`) {
		return xlerr.New(xlerr.Validation, `sheet name %q contains one of []:*?/\`, name)
	}
	return nil
}

// requireSheetNameFree enforces case-insensitive sheet name uniqueness.
func requireSheetNameFree(f *excelize.File, name string) error {
	for _, s := range f.GetSheetList() {
		if strings.EqualFold(s, name) {
			return xlerr.New(xlerr.Conflict, "sheet %q already exists", name)
		}
	}
	return nil
}

// CreateSheet appends a new worksheet and returns its index.
func CreateSheet(f *excelize.File, name string) (int, error) {
	if err := validateSheetName(name); err != nil {
		return 0, err
	}
	if err := requireSheetNameFree(f, name); err != nil {
		return 0, err
	}
	idx, err := f.NewSheet(name)
	if err != nil {
		return 0, xlerr.Wrap(xlerr.Format, err, "create sheet %q", name)
	}
	return idx, nil
}

// RenameSheet renames a worksheet, preserving its contents and objects.
func RenameSheet(f *excelize.File, oldName, newName string) error {
	if err := requireSheet(f, oldName); err != nil {
		return err
	}
	if err := validateSheetName(newName); err != nil {
		return err
	}
	if strings.EqualFold(oldName, newName) && oldName != newName {
		// Case-only rename is allowed; skip the uniqueness check against itself.
	} else if err := requireSheetNameFree(f, newName); err != nil {
		return err
	}
	if err := f.SetSheetName(oldName, newName); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "rename sheet %q", oldName)
	}
	return nil
}

// DeleteSheet removes a worksheet. The last remaining sheet cannot be
// deleted: a workbook always holds at least one.
func DeleteSheet(f *excelize.File, name string) error {
	if err := requireSheet(f, name); err != nil {
		return err
	}
	if len(f.GetSheetList()) == 1 {
		return xlerr.New(xlerr.Validation, "cannot delete the only sheet %q", name)
	}
	if err := f.DeleteSheet(name); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "delete sheet %q", name)
	}
	return nil
}

// CopySheet duplicates a worksheet under a new name.
func CopySheet(f *excelize.File, source, target string) error {
	if err := requireSheet(f, source); err != nil {
		return err
	}
	if err := validateSheetName(target); err != nil {
		return err
	}
	if err := requireSheetNameFree(f, target); err != nil {
		return err
	}
	from, err := f.GetSheetIndex(source)
	if err != nil {
		return xlerr.Wrap(xlerr.Format, err, "sheet index %q", source)
	}
	to, err := f.NewSheet(target)
	if err != nil {
		return xlerr.Wrap(xlerr.Format, err, "create sheet %q", target)
	}
	if err := f.CopySheet(from, to); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "copy sheet %q to %q", source, target)
	}
	return nil
}

// MergeRange merges a bound range into one cell.
func MergeRange(f *excelize.File, sheet, rangeRef string) (addr.Range, error) {
	r, err := resolveRange(f, sheet, rangeRef)
	if err != nil {
		return addr.Range{}, err
	}
	tl := addr.Cell{Row: r.MinRow, Col: r.MinCol}.Name()
	br := addr.Cell{Row: r.MaxRow, Col: r.MaxCol}.Name()
	if err := f.MergeCell(r.Sheet, tl, br); err != nil {
		return addr.Range{}, xlerr.Wrap(xlerr.Format, err, "merge %s", r.String())
	}
	return r, nil
}

// UnmergeRange splits previously merged cells back apart.
func UnmergeRange(f *excelize.File, sheet, rangeRef string) (addr.Range, error) {
	r, err := resolveRange(f, sheet, rangeRef)
	if err != nil {
		return addr.Range{}, err
	}
	tl := addr.Cell{Row: r.MinRow, Col: r.MinCol}.Name()
	br := addr.Cell{Row: r.MaxRow, Col: r.MaxCol}.Name()
	if err := f.UnmergeCell(r.Sheet, tl, br); err != nil {
		return addr.Range{}, xlerr.Wrap(xlerr.Format, err, "unmerge %s", r.String())
	}
	return r, nil
}

// copyCell moves one cell's value, formula, and style handle to another
// location, preserving the formula/value exclusivity of the source.
func copyCell(f *excelize.File, srcSheet string, src addr.Cell, dstSheet string, dst addr.Cell) error {
	from, to := src.Name(), dst.Name()
	formula, err := f.GetCellFormula(srcSheet, from)
	if err != nil {
		return xlerr.Wrap(xlerr.Format, err, "read formula %s", from)
	}
	if formula != "" {
		if err := f.SetCellFormula(dstSheet, to, formula); err != nil {
			return xlerr.Wrap(xlerr.Format, err, "copy formula to %s", to)
		}
	} else {
		v, err := f.GetCellValue(srcSheet, from)
		if err != nil {
			return xlerr.Wrap(xlerr.Format, err, "read cell %s", from)
		}
		if err := f.SetCellValue(dstSheet, to, v); err != nil {
			return xlerr.Wrap(xlerr.Format, err, "copy cell to %s", to)
		}
	}
	styleID, err := f.GetCellStyle(srcSheet, from)
	if err != nil {
		return xlerr.Wrap(xlerr.Format, err, "read style %s", from)
	}
	if err := f.SetCellStyle(dstSheet, to, to, styleID); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "copy style to %s", to)
	}
	return nil
}

// CopyRange copies a source rectangle (values, formulas, style handles) to a
// target anchor, possibly on another sheet. Source and target may not
// overlap on the same sheet.
func CopyRange(f *excelize.File, sheet, sourceRef, targetSheet, targetCell string) (addr.Range, error) {
	src, err := bindRange(f, sheet, sourceRef)
	if err != nil {
		return addr.Range{}, err
	}
	if targetSheet == "" {
		targetSheet = src.Sheet
	}
	if err := requireSheet(f, targetSheet); err != nil {
		return addr.Range{}, err
	}
	refSheet, anchor, err := addr.ParseCell(targetCell)
	if err != nil {
		return addr.Range{}, err
	}
	if refSheet != "" {
		targetSheet = refSheet
		if err := requireSheet(f, targetSheet); err != nil {
			return addr.Range{}, err
		}
	}
	dst := addr.Range{
		Sheet:  targetSheet,
		MinRow: anchor.Row,
		MinCol: anchor.Col,
		MaxRow: anchor.Row + src.Rows() - 1,
		MaxCol: anchor.Col + src.Cols() - 1,
	}
	if dst.Sheet == src.Sheet && dst.Overlaps(src) {
		return addr.Range{}, xlerr.New(xlerr.Conflict, "target %s overlaps source %s", dst.A1(), src.A1())
	}
	for dr := 0; dr < src.Rows(); dr++ {
		for dc := 0; dc < src.Cols(); dc++ {
			from := addr.Cell{Row: src.MinRow + dr, Col: src.MinCol + dc}
			to := addr.Cell{Row: dst.MinRow + dr, Col: dst.MinCol + dc}
			if err := copyCell(f, src.Sheet, from, dst.Sheet, to); err != nil {
				return addr.Range{}, err
			}
		}
	}
	return dst, nil
}

// ShiftDirection says which way remaining cells move after a range delete.
type ShiftDirection string

const (
	ShiftUp   ShiftDirection = "up"
	ShiftLeft ShiftDirection = "left"
)

// DeleteRange clears a bound range and shifts trailing cells up or left to
// close the gap.
func DeleteRange(f *excelize.File, sheet, rangeRef string, shift ShiftDirection) (addr.Range, error) {
	r, err := bindRange(f, sheet, rangeRef)
	if err != nil {
		return addr.Range{}, err
	}
	rows, cols, err := sheetExtent(f, r.Sheet)
	if err != nil {
		return addr.Range{}, err
	}
	switch shift {
	case ShiftUp:
		for col := r.MinCol; col <= r.MaxCol; col++ {
			for row := r.MinRow; row+r.Rows() <= rows; row++ {
				from := addr.Cell{Row: row + r.Rows(), Col: col}
				to := addr.Cell{Row: row, Col: col}
				if err := copyCell(f, r.Sheet, from, r.Sheet, to); err != nil {
					return addr.Range{}, err
				}
			}
			for row := rows - r.Rows() + 1; row <= rows; row++ {
				if row < r.MinRow {
					continue
				}
				if err := clearCell(f, r.Sheet, addr.Cell{Row: row, Col: col}); err != nil {
					return addr.Range{}, err
				}
			}
		}
	case ShiftLeft:
		for row := r.MinRow; row <= r.MaxRow; row++ {
			for col := r.MinCol; col+r.Cols() <= cols; col++ {
				from := addr.Cell{Row: row, Col: col + r.Cols()}
				to := addr.Cell{Row: row, Col: col}
				if err := copyCell(f, r.Sheet, from, r.Sheet, to); err != nil {
					return addr.Range{}, err
				}
			}
			for col := cols - r.Cols() + 1; col <= cols; col++ {
				if col < r.MinCol {
					continue
				}
				if err := clearCell(f, r.Sheet, addr.Cell{Row: row, Col: col}); err != nil {
					return addr.Range{}, err
				}
			}
		}
	default:
		return addr.Range{}, xlerr.New(xlerr.Validation, "shift direction must be up or left, got %q", shift)
	}
	return r, nil
}

func clearCell(f *excelize.File, sheet string, c addr.Cell) error {
	name := c.Name()
	if err := f.SetCellFormula(sheet, name, ""); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "clear formula %s", name)
	}
	if err := f.SetCellValue(sheet, name, nil); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "clear cell %s", name)
	}
	return nil
}

// SheetInfo summarizes one worksheet for metadata payloads.
type SheetInfo struct {
	Name      string   `json:"name"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	UsedRange string   `json:"used_range,omitempty"`
	Tables    []string `json:"tables,omitempty"`
	Merged    []string `json:"merged,omitempty"`
}

// WorkbookInfo summarizes a workbook's structure without cell data.
type WorkbookInfo struct {
	Sheets []SheetInfo `json:"sheets"`
}

// Metadata inspects sheet extents, tables, and merged ranges.
func Metadata(f *excelize.File, includeRanges bool) (WorkbookInfo, error) {
	var info WorkbookInfo
	for _, name := range f.GetSheetList() {
		rows, cols, err := sheetExtent(f, name)
		if err != nil {
			return WorkbookInfo{}, err
		}
		si := SheetInfo{Name: name, Rows: rows, Cols: cols}
		if includeRanges && rows > 0 && cols > 0 {
			si.UsedRange = (addr.Range{MinRow: 1, MinCol: 1, MaxRow: rows, MaxCol: cols}).A1()
			tables, err := f.GetTables(name)
			if err != nil {
				return WorkbookInfo{}, xlerr.Wrap(xlerr.Format, err, "read tables on %q", name)
			}
			for _, tbl := range tables {
				si.Tables = append(si.Tables, tbl.Name)
			}
			merged, err := f.GetMergeCells(name)
			if err != nil {
				return WorkbookInfo{}, xlerr.Wrap(xlerr.Format, err, "read merges on %q", name)
			}
			for _, m := range merged {
				si.Merged = append(si.Merged, m.GetStartAxis()+":"+m.GetEndAxis())
			}
		}
		info.Sheets = append(info.Sheets, si)
	}
	return info, nil
}
