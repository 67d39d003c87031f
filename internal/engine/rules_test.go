package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

func ruleFixture(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	// Grow the extent so ranges below bind.
	require.NoError(t, f.SetCellValue("Sheet1", "E10", "x"))
	return f
}

func TestAttachListRuleEnforcedOnWrite(t *testing.T) {
	f := ruleFixture(t)
	defer f.Close()

	r, err := AttachValidation(f, "Sheet1", "A1:A5", Rule{Kind: RuleList, Items: []string{"red", "green", "blue"}})
	require.NoError(t, err)
	require.Equal(t, "A1:A5", r.A1())

	require.NoError(t, checkCellWrite(f, "Sheet1", addr.Cell{Row: 2, Col: 1}, "green"))

	err = checkCellWrite(f, "Sheet1", addr.Cell{Row: 2, Col: 1}, "purple")
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.Validation))

	// Outside the validated range anything goes.
	require.NoError(t, checkCellWrite(f, "Sheet1", addr.Cell{Row: 2, Col: 3}, "purple"))
}

func TestAttachWholeBetweenRule(t *testing.T) {
	f := ruleFixture(t)
	defer f.Close()

	_, err := AttachValidation(f, "Sheet1", "B1:B5", Rule{
		Kind: RuleWhole, Operator: "between", Min: "1", Max: "10",
	})
	require.NoError(t, err)

	require.NoError(t, checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 2}, 5))
	require.NoError(t, checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 2}, 10))

	err = checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 2}, 11)
	require.True(t, xlerr.IsKind(err, xlerr.Validation))

	err = checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 2}, "not a number")
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}

func TestAttachDecimalGreaterThan(t *testing.T) {
	f := ruleFixture(t)
	defer f.Close()

	_, err := AttachValidation(f, "Sheet1", "C1:C5", Rule{
		Kind: RuleDecimal, Operator: "greaterThan", Min: "0.5",
	})
	require.NoError(t, err)

	require.NoError(t, checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 3}, 0.75))
	err = checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 3}, 0.25)
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}

func TestAttachDateRule(t *testing.T) {
	f := ruleFixture(t)
	defer f.Close()

	_, err := AttachValidation(f, "Sheet1", "D1:D5", Rule{
		Kind: RuleDate, Operator: "between", Min: "2024-01-01", Max: "2024-12-31",
	})
	require.NoError(t, err)

	require.NoError(t, checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 4}, "2024-06-15"))
	err = checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 4}, "2025-01-01")
	require.True(t, xlerr.IsKind(err, xlerr.Validation))
}

func TestAttachCustomRuleStoredNotEnforced(t *testing.T) {
	f := ruleFixture(t)
	defer f.Close()

	_, err := AttachValidation(f, "Sheet1", "E1:E5", Rule{Kind: RuleCustom, Formula: "=A1>B1"})
	require.NoError(t, err)

	// Custom formulas are recorded but never evaluated locally.
	require.NoError(t, checkCellWrite(f, "Sheet1", addr.Cell{Row: 1, Col: 5}, "anything"))

	rules, err := f.GetDataValidations("Sheet1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "custom", rules[0].Type)
}

func TestAttachValidationBadInputs(t *testing.T) {
	f := ruleFixture(t)
	defer f.Close()

	_, err := AttachValidation(f, "Sheet1", "A1:A5", Rule{Kind: RuleList})
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "empty list")

	_, err = AttachValidation(f, "Sheet1", "A1:A5", Rule{Kind: RuleWhole, Operator: "near", Min: "1"})
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "unknown operator")

	_, err = AttachValidation(f, "Sheet1", "A1:A5", Rule{Kind: RuleDate, Operator: "equal", Min: "June 1st"})
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "bad date bound")

	_, err = AttachValidation(f, "Sheet1", "A1:A5", Rule{Kind: "regex"})
	require.True(t, xlerr.IsKind(err, xlerr.Validation), "unknown kind")

	_, err = AttachValidation(f, "Sheet1", "A1:A9999", Rule{Kind: RuleList, Items: []string{"x"}})
	require.True(t, xlerr.IsKind(err, xlerr.Range), "range beyond extent")
}
