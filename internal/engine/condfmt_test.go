package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

func condFixture(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for i, v := range []int{5, 15, 25, 35} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	return f
}

func TestAddConditionalFormatCellIs(t *testing.T) {
	f := condFixture(t)
	defer f.Close()

	r, err := AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondCellIs, Operator: "greaterThan", Value: "20", Style: StyleAttrs{FillColor: "FF0000"}},
	})
	require.NoError(t, err)
	require.Equal(t, "A1:A4", r.A1())

	formats, err := f.GetConditionalFormats("Sheet1")
	require.NoError(t, err)
	require.Len(t, formats["A1:A4"], 1)
}

func TestAddConditionalFormatPriorityOrder(t *testing.T) {
	f := condFixture(t)
	defer f.Close()

	_, err := AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondCellIs, Operator: "greaterThan", Value: "30", Style: StyleAttrs{FillColor: "00FF00"}, Priority: 2},
		{Kind: CondCellIs, Operator: "greaterThan", Value: "10", Style: StyleAttrs{FillColor: "FF0000"}, Priority: 1},
	})
	require.NoError(t, err)

	formats, err := f.GetConditionalFormats("Sheet1")
	require.NoError(t, err)
	rules := formats["A1:A4"]
	require.Len(t, rules, 2)
	// Lower priority number lands first in evaluation order.
	require.Equal(t, "10", rules[0].Value)
	require.Equal(t, "30", rules[1].Value)
}

func TestAddConditionalFormatBetween(t *testing.T) {
	f := condFixture(t)
	defer f.Close()

	_, err := AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondCellIs, Operator: "between", Value: "10", Value2: "30", Style: StyleAttrs{Bold: true}},
	})
	require.NoError(t, err)

	_, err = AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondCellIs, Operator: "between", Value: "10", Style: StyleAttrs{Bold: true}},
	})
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "between needs two operands")
}

func TestAddConditionalFormatFormulaKind(t *testing.T) {
	f := condFixture(t)
	defer f.Close()

	_, err := AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondFormula, Value: "=MOD(ROW(),2)=0", Style: StyleAttrs{FillColor: "EEEEEE"}},
	})
	require.NoError(t, err)

	_, err = AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondFormula, Value: "=SUM(A1", Style: StyleAttrs{Bold: true}},
	})
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "formula text is validated before storage")
}

func TestAddConditionalFormatDuplicateUnique(t *testing.T) {
	f := condFixture(t)
	defer f.Close()

	_, err := AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondDuplicate, Style: StyleAttrs{FillColor: "FFCC00"}},
		{Kind: CondUnique, Style: StyleAttrs{FillColor: "00CCFF"}},
	})
	require.NoError(t, err)
}

func TestAddConditionalFormatBadInputs(t *testing.T) {
	f := condFixture(t)
	defer f.Close()

	_, err := AddConditionalFormat(f, "Sheet1", "A1:A4", nil)
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "no rules")

	_, err = AddConditionalFormat(f, "Sheet1", "A1:A4", []CondRule{
		{Kind: CondCellIs, Operator: "nearlyEqual", Value: "1"},
	})
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "unknown operator")

	_, err = AddConditionalFormat(f, "Sheet1", "A1:A999", []CondRule{
		{Kind: CondDuplicate},
	})
	require.True(t, xlerr.IsKind(err, xlerr.Range), "range beyond extent")
}
