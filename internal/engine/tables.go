package engine

import (
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// Table summarizes a structured table object for result payloads.
type Table struct {
	Name    string
	Sheet   string
	Range   string
	Style   string
	Columns []string
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]{0,254}$`)

// validateTableName rejects names the container format would refuse:
// blank, spaced, cell-reference-like, or malformed identifiers.
func validateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return xlerr.New(xlerr.Validation, "invalid table name %q", name)
	}
	if _, _, err := addr.ParseCell(name); err == nil {
		return xlerr.New(xlerr.Validation, "table name %q looks like a cell reference", name)
	}
	return nil
}

// headerColumns reads the header row of a bound range and derives column
// definitions. Every header cell must hold distinct, non-blank text.
func headerColumns(f *excelize.File, r addr.Range) ([]string, error) {
	cols := make([]string, 0, r.Cols())
	seen := make(map[string]int, r.Cols())
	for col := r.MinCol; col <= r.MaxCol; col++ {
		name := addr.Cell{Row: r.MinRow, Col: col}.Name()
		v, err := f.GetCellValue(r.Sheet, name)
		if err != nil {
			return nil, xlerr.Wrap(xlerr.Format, err, "read header cell %s", name)
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, xlerr.New(xlerr.Validation, "blank header in column %s", name)
		}
		key := strings.ToLower(v)
		if prev, dup := seen[key]; dup {
			return nil, xlerr.New(xlerr.Validation, "duplicate header %q in columns %d and %d", v, prev, col-r.MinCol+1)
		}
		seen[key] = col - r.MinCol + 1
		cols = append(cols, v)
	}
	return cols, nil
}

// findTable locates a table by name on a sheet.
func findTable(f *excelize.File, sheet, name string) (*excelize.Table, error) {
	tables, err := f.GetTables(sheet)
	if err != nil {
		return nil, xlerr.Wrap(xlerr.Format, err, "read tables on %q", sheet)
	}
	for i := range tables {
		if strings.EqualFold(tables[i].Name, name) {
			return &tables[i], nil
		}
	}
	return nil, xlerr.New(xlerr.NotFound, "table %q not found on sheet %q", name, sheet)
}

// checkTableConflicts verifies name uniqueness across the workbook and
// non-overlap against other tables on the target sheet. ignore names a table
// excluded from both checks (used by resize).
func checkTableConflicts(f *excelize.File, sheet, name string, r addr.Range, ignore string) error {
	for _, s := range f.GetSheetList() {
		tables, err := f.GetTables(s)
		if err != nil {
			return xlerr.Wrap(xlerr.Format, err, "read tables on %q", s)
		}
		for _, tbl := range tables {
			if ignore != "" && strings.EqualFold(tbl.Name, ignore) {
				continue
			}
			if strings.EqualFold(tbl.Name, name) {
				return xlerr.New(xlerr.Conflict, "table name %q already used on sheet %q", name, s)
			}
			if s != sheet {
				continue
			}
			existing, err := addr.ParseRange(tbl.Range)
			if err != nil {
				continue
			}
			if r.Overlaps(existing) {
				return xlerr.New(xlerr.Conflict, "range %s overlaps table %q (%s)", r.A1(), tbl.Name, tbl.Range)
			}
		}
	}
	return nil
}

// CreateTable registers a structured table over a bound range. The first row
// of the range is the header row and must carry distinct, non-blank text in
// every column.
func CreateTable(f *excelize.File, sheet, rangeRef, name, styleName string) (Table, error) {
	if err := validateTableName(name); err != nil {
		return Table{}, err
	}
	r, err := bindRange(f, sheet, rangeRef)
	if err != nil {
		return Table{}, err
	}
	if r.Rows() < 2 {
		return Table{}, xlerr.New(xlerr.Validation, "table range %s needs a header row plus at least one data row", r.A1())
	}
	columns, err := headerColumns(f, r)
	if err != nil {
		return Table{}, err
	}
	if err := checkTableConflicts(f, r.Sheet, name, r, ""); err != nil {
		return Table{}, err
	}
	if styleName == "" {
		styleName = "TableStyleMedium9"
	}
	showHeader, stripes := true, true
	if err := f.AddTable(r.Sheet, &excelize.Table{
		Range:          r.A1(),
		Name:           name,
		StyleName:      styleName,
		ShowHeaderRow:  &showHeader,
		ShowRowStripes: &stripes,
	}); err != nil {
		return Table{}, xlerr.Wrap(xlerr.Format, err, "add table %q", name)
	}
	return Table{Name: name, Sheet: r.Sheet, Range: r.A1(), Style: styleName, Columns: columns}, nil
}

// RenameTable updates a table's name without touching underlying cell data.
func RenameTable(f *excelize.File, sheet, oldName, newName string) (Table, error) {
	if err := requireSheet(f, sheet); err != nil {
		return Table{}, err
	}
	if err := validateTableName(newName); err != nil {
		return Table{}, err
	}
	tbl, err := findTable(f, sheet, oldName)
	if err != nil {
		return Table{}, err
	}
	r, err := addr.ParseRange(tbl.Range)
	if err != nil {
		return Table{}, xlerr.Wrap(xlerr.Format, err, "table %q range", oldName)
	}
	r.Sheet = sheet
	if err := checkTableConflicts(f, sheet, newName, r, oldName); err != nil {
		return Table{}, err
	}
	columns, err := headerColumns(f, r)
	if err != nil {
		return Table{}, err
	}
	// The container library has no in-place rename; re-register with the
	// same geometry, style, and display flags.
	if err := f.DeleteTable(tbl.Name); err != nil {
		return Table{}, xlerr.Wrap(xlerr.Format, err, "delete table %q", oldName)
	}
	readd := *tbl
	readd.Name = newName
	if err := f.AddTable(sheet, &readd); err != nil {
		return Table{}, xlerr.Wrap(xlerr.Format, err, "re-add table %q", newName)
	}
	return Table{Name: newName, Sheet: sheet, Range: r.A1(), Style: tbl.StyleName, Columns: columns}, nil
}

// DeleteTable removes the table object, leaving cell data in place.
func DeleteTable(f *excelize.File, sheet, name string) error {
	if err := requireSheet(f, sheet); err != nil {
		return err
	}
	tbl, err := findTable(f, sheet, name)
	if err != nil {
		return err
	}
	if err := f.DeleteTable(tbl.Name); err != nil {
		return xlerr.Wrap(xlerr.Format, err, "delete table %q", name)
	}
	return nil
}

// ResizeTable rebinds a table to a new range: equivalent to delete+create
// with the same name, revalidating header and overlap constraints.
func ResizeTable(f *excelize.File, sheet, name, rangeRef string) (Table, error) {
	if err := requireSheet(f, sheet); err != nil {
		return Table{}, err
	}
	tbl, err := findTable(f, sheet, name)
	if err != nil {
		return Table{}, err
	}
	r, err := bindRange(f, sheet, rangeRef)
	if err != nil {
		return Table{}, err
	}
	if r.Rows() < 2 {
		return Table{}, xlerr.New(xlerr.Validation, "table range %s needs a header row plus at least one data row", r.A1())
	}
	columns, err := headerColumns(f, r)
	if err != nil {
		return Table{}, err
	}
	if err := checkTableConflicts(f, r.Sheet, name, r, name); err != nil {
		return Table{}, err
	}
	if err := f.DeleteTable(tbl.Name); err != nil {
		return Table{}, xlerr.Wrap(xlerr.Format, err, "delete table %q", name)
	}
	readd := *tbl
	readd.Range = r.A1()
	if err := f.AddTable(r.Sheet, &readd); err != nil {
		return Table{}, xlerr.Wrap(xlerr.Format, err, "re-add table %q", name)
	}
	return Table{Name: tbl.Name, Sheet: r.Sheet, Range: r.A1(), Style: tbl.StyleName, Columns: columns}, nil
}
