package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

func TestValidateFormula(t *testing.T) {
	cases := []struct {
		formula  string
		ok       bool
		warnings int
	}{
		{"=SUM(A1:A5)", true, 0},
		{"=IF(A1>0, \"yes\", \"no\")", true, 0},
		{"=sum(a1:a5)", true, 0},
		{"=SUM(A1:A5) + AVERAGE(B1:B5)", true, 0},
		{"=FROBNICATE(A1)", true, 1},
		{"=CONCAT(\"a (\", B1)", true, 0},
		{"=CONCAT(\"escaped \"\" quote(\", B1)", true, 0},
		{"='My Sheet'!A1+1", true, 0},
		{"SUM(A1)", false, 0},
		{"=", false, 0},
		{"=SUM(A1", false, 0},
		{"=SUM(A1))", false, 0},
		{"=SUM[A1)", false, 0},
		{"=\"unterminated", false, 0},
	}
	for _, tc := range cases {
		warnings, err := ValidateFormula(tc.formula)
		if !tc.ok {
			require.Error(t, err, tc.formula)
			require.True(t, xlerr.IsKind(err, xlerr.Validation), tc.formula)
			continue
		}
		require.NoError(t, err, tc.formula)
		require.Len(t, warnings, tc.warnings, tc.formula)
	}
}

func TestApplyFormulaClearsValue(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 7))

	warnings, err := ApplyFormula(f, "Sheet1", "A1", "=SUM(B1:B3)")
	require.NoError(t, err)
	require.Empty(t, warnings)

	formula, err := f.GetCellFormula("Sheet1", "A1")
	require.NoError(t, err)
	require.Equal(t, "SUM(B1:B3)", formula)
}

func TestApplyFormulaUnknownFunctionWarns(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	warnings, err := ApplyFormula(f, "Sheet1", "B2", "=WIBBLE(A1)")
	require.NoError(t, err, "soft warning must not fail the operation")
	require.Len(t, warnings, 1)

	formula, err := f.GetCellFormula("Sheet1", "B2")
	require.NoError(t, err)
	require.Equal(t, "WIBBLE(A1)", formula)
}

func TestApplyFormulaMissingSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	_, err := ApplyFormula(f, "Ghost", "A1", "=SUM(A1)")
	require.Error(t, err)
	require.True(t, xlerr.IsKind(err, xlerr.NotFound))
}
