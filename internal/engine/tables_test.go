package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

func tableFixture(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for cell, v := range map[string]any{
		"A1": "Name", "B1": "Amount",
		"A2": "widget", "B2": 3,
		"A3": "gadget", "B3": 9,
	} {
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	return f
}

func TestCreateTable(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	tbl, err := CreateTable(f, "Sheet1", "A1:B3", "Sales", "")
	require.NoError(t, err)
	require.Equal(t, "Sales", tbl.Name)
	require.Equal(t, []string{"Name", "Amount"}, tbl.Columns)
	require.Equal(t, "TableStyleMedium9", tbl.Style)

	found, err := findTable(f, "Sheet1", "Sales")
	require.NoError(t, err)
	require.Equal(t, "A1:B3", found.Range)
}

func TestCreateTableDuplicateHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "X"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "x"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 2))

	_, err := CreateTable(f, "Sheet1", "A1:B2", "T1", "")
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}

func TestCreateTableBlankHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "X"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 2))

	_, err := CreateTable(f, "Sheet1", "A1:B2", "T1", "")
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}

func TestCreateTableOverlapConflict(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := CreateTable(f, "Sheet1", "A1:B3", "First", "")
	require.NoError(t, err)

	require.NoError(t, f.SetCellValue("Sheet1", "B5", "H"))
	_, err = CreateTable(f, "Sheet1", "B2:B5", "Second", "")
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Conflict))
}

func TestCreateTableDuplicateNameAcrossSheets(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := CreateTable(f, "Sheet1", "A1:B3", "Sales", "")
	require.NoError(t, err)

	_, err = CreateSheet(f, "Other")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Other", "A1", "H"))
	require.NoError(t, f.SetCellValue("Other", "A2", 1))

	_, err = CreateTable(f, "Other", "A1:A2", "sales", "")
	require.Error(t, err, "table names are unique workbook-wide, case-insensitively")
	require.True(t, xlerr.IsKind(err, xlerr.Conflict))
}

func TestCreateTableInvalidNames(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	for _, name := range []string{"", "has space", "1leading", "A1", "BC42"} {
		_, err := CreateTable(f, "Sheet1", "A1:B3", name, "")
		require.Error(t, err, name)
		require.True(t, xlerr.IsKind(err, xlerr.Validation), name)
	}
}

func TestCreateTableHeaderOnly(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := CreateTable(f, "Sheet1", "A1:B1", "T1", "")
	require.Error(t, err, "a table needs at least one data row")
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}

func TestRenameTable(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := CreateTable(f, "Sheet1", "A1:B3", "Old", "")
	require.NoError(t, err)

	tbl, err := RenameTable(f, "Sheet1", "Old", "New")
	require.NoError(t, err)
	require.Equal(t, "New", tbl.Name)
	require.Equal(t, "A1:B3", tbl.Range)

	_, err = findTable(f, "Sheet1", "Old")
	require.True(t, xlerr.IsKind(err, xlerr.NotFound))
}

func TestDeleteTableKeepsData(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := CreateTable(f, "Sheet1", "A1:B3", "Sales", "")
	require.NoError(t, err)
	require.NoError(t, DeleteTable(f, "Sheet1", "Sales"))

	v, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	require.Equal(t, "widget", v, "cell data survives table deletion")

	_, err = findTable(f, "Sheet1", "Sales")
	require.True(t, xlerr.IsKind(err, xlerr.NotFound))
}

func TestResizeTable(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := CreateTable(f, "Sheet1", "A1:B2", "Sales", "")
	require.NoError(t, err)

	tbl, err := ResizeTable(f, "Sheet1", "Sales", "A1:B3")
	require.NoError(t, err)
	require.Equal(t, "A1:B3", tbl.Range)
	require.Equal(t, "Sales", tbl.Name)
}

func TestResizeUnknownTable(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := ResizeTable(f, "Sheet1", "Ghost", "A1:B3")
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.NotFound))
}

func TestRenameTableKeepsDisplayFlags(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()

	_, err := CreateTable(f, "Sheet1", "A1:B3", "Flags", "")
	require.NoError(t, err)
	before, err := findTable(f, "Sheet1", "Flags")
	require.NoError(t, err)

	_, err = RenameTable(f, "Sheet1", "Flags", "Renamed")
	require.NoError(t, err)

	after, err := findTable(f, "Sheet1", "Renamed")
	require.NoError(t, err)
	require.Equal(t, before.StyleName, after.StyleName)
	require.Equal(t, before.ShowHeaderRow, after.ShowHeaderRow)
	require.Equal(t, before.ShowRowStripes, after.ShowRowStripes)
	require.Equal(t, before.ShowFirstColumn, after.ShowFirstColumn)
	require.Equal(t, before.ShowColumnStripes, after.ShowColumnStripes)
}

func TestResizeTableKeepsDisplayFlags(t *testing.T) {
	f := tableFixture(t)
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A4", "gizmo"))
	require.NoError(t, f.SetCellValue("Sheet1", "B4", 5))

	_, err := CreateTable(f, "Sheet1", "A1:B3", "Flags", "")
	require.NoError(t, err)
	before, err := findTable(f, "Sheet1", "Flags")
	require.NoError(t, err)

	_, err = ResizeTable(f, "Sheet1", "Flags", "A1:B4")
	require.NoError(t, err)

	after, err := findTable(f, "Sheet1", "Flags")
	require.NoError(t, err)
	require.Equal(t, "A1:B4", after.Range)
	require.Equal(t, before.StyleName, after.StyleName)
	require.Equal(t, before.ShowHeaderRow, after.ShowHeaderRow)
	require.Equal(t, before.ShowRowStripes, after.ShowRowStripes)
}
