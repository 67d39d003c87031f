package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

func TestSheetLifecycle(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	_, err := CreateSheet(f, "Data")
	require.NoError(t, err)
	require.Contains(t, f.GetSheetList(), "Data")

	_, err = CreateSheet(f, "data")
	require.True(t, xlerr.IsKind(err, xlerr.Conflict), "sheet names are unique case-insensitively")

	require.NoError(t, RenameSheet(f, "Data", "Archive"))
	require.NotContains(t, f.GetSheetList(), "Data")
	require.Contains(t, f.GetSheetList(), "Archive")

	require.NoError(t, DeleteSheet(f, "Archive"))
	require.Len(t, f.GetSheetList(), 1)

	err = DeleteSheet(f, "Sheet1")
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "the last sheet cannot be deleted")
}

func TestCreateSheetBadNames(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	for _, name := range []string{"", "   ", "way/too:bad", "this sheet name is far longer than permitted"} {
		_, err := CreateSheet(f, name)
		require.True(t, xlerr.IsKind(err, xlerr.Validation), "%q", name)
	}
}

func TestCopySheetCarriesContent(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "hello"))

	require.NoError(t, CopySheet(f, "Sheet1", "Backup"))

	v, err := f.GetCellValue("Backup", "A1")
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	err = CopySheet(f, "Ghost", "X")
	require.True(t, xlerr.IsKind(err, xlerr.NotFound))
}

func TestMergeAndUnmerge(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	r, err := MergeRange(f, "Sheet1", "A1:B2")
	require.NoError(t, err)
	require.Equal(t, "A1:B2", r.A1())

	merged, err := f.GetMergeCells("Sheet1")
	require.NoError(t, err)
	require.Len(t, merged, 1)

	_, err = UnmergeRange(f, "Sheet1", "A1:B2")
	require.NoError(t, err)
	merged, err = f.GetMergeCells("Sheet1")
	require.NoError(t, err)
	require.Empty(t, merged)
}

func TestCopyRange(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", 2))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 3))
	require.NoError(t, f.SetCellFormula("Sheet1", "B2", "A1+B1"))

	dst, err := CopyRange(f, "Sheet1", "A1:B2", "", "D5")
	require.NoError(t, err)
	require.Equal(t, "D5:E6", dst.A1())

	v, err := f.GetCellValue("Sheet1", "D5")
	require.NoError(t, err)
	require.Equal(t, "1", v)
	formula, err := f.GetCellFormula("Sheet1", "E6")
	require.NoError(t, err)
	require.Equal(t, "A1+B1", formula)
}

func TestCopyRangeOverlapConflict(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 2))

	_, err := CopyRange(f, "Sheet1", "A1:B2", "", "B2")
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Conflict))
}

func TestCopyRangeAcrossSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "x"))
	_, err := CreateSheet(f, "Other")
	require.NoError(t, err)

	dst, err := CopyRange(f, "Sheet1", "A1", "Other", "A1")
	require.NoError(t, err)
	require.Equal(t, "Other", dst.Sheet)

	v, err := f.GetCellValue("Other", "A1")
	require.NoError(t, err)
	require.Equal(t, "x", v)
}

func TestDeleteRangeShiftUp(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	for i, v := range []string{"one", "two", "three", "four"} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}

	_, err := DeleteRange(f, "Sheet1", "A2", ShiftUp)
	require.NoError(t, err)

	got := make([]string, 4)
	for i := range got {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		got[i], err = f.GetCellValue("Sheet1", cell)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"one", "three", "four", ""}, got)
}

func TestDeleteRangeShiftLeft(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	for i, v := range []string{"a", "b", "c"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}

	_, err := DeleteRange(f, "Sheet1", "A1", ShiftLeft)
	require.NoError(t, err)

	got := make([]string, 3)
	for i := range got {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		got[i], err = f.GetCellValue("Sheet1", cell)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"b", "c", ""}, got)
}

func TestDeleteRangeBadShift(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "x"))

	_, err := DeleteRange(f, "Sheet1", "A1", "sideways")
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}

func TestMetadata(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "H"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", 9))
	_, err := CreateSheet(f, "Empty")
	require.NoError(t, err)

	info, err := Metadata(f, true)
	require.NoError(t, err)
	require.Len(t, info.Sheets, 2)
	require.Equal(t, "Sheet1", info.Sheets[0].Name)
	require.Equal(t, 3, info.Sheets[0].Rows)
	require.Equal(t, 2, info.Sheets[0].Cols)
	require.Equal(t, "A1:B3", info.Sheets[0].UsedRange)
	require.Equal(t, 0, info.Sheets[1].Rows)
}

func TestSheetNameLengthCountsRunes(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	name := strings.Repeat("é", 31)
	_, err := CreateSheet(f, name)
	require.NoError(t, err, "31 runes is within the limit even when over 31 bytes")

	_, err = CreateSheet(f, strings.Repeat("é", 32))
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}
