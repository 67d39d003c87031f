package engine

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// knownFunctions is the recognized function set for formula placement.
// Unrecognized names produce a soft warning, not an error: the stored text
// is opaque to the engine beyond syntactic checks, and evaluation is left to
// whatever opens the final container.
var knownFunctions = map[string]struct{}{
	"ABS": {}, "AND": {}, "AVERAGE": {}, "AVERAGEIF": {}, "AVERAGEIFS": {},
	"CEILING": {}, "CONCAT": {}, "CONCATENATE": {}, "COUNT": {}, "COUNTA": {},
	"COUNTBLANK": {}, "COUNTIF": {}, "COUNTIFS": {}, "DATE": {}, "DAY": {},
	"FLOOR": {}, "HLOOKUP": {}, "IF": {}, "IFERROR": {}, "IFS": {},
	"INDEX": {}, "INDIRECT": {}, "INT": {}, "LEFT": {}, "LEN": {},
	"LOWER": {}, "MATCH": {}, "MAX": {}, "MEDIAN": {}, "MID": {},
	"MIN": {}, "MOD": {}, "MONTH": {}, "NOT": {}, "NOW": {},
	"OR": {}, "POWER": {}, "PRODUCT": {}, "PROPER": {}, "RIGHT": {},
	"ROUND": {}, "ROUNDDOWN": {}, "ROUNDUP": {}, "SQRT": {}, "SUBSTITUTE": {},
	"SUBTOTAL": {}, "SUM": {}, "SUMIF": {}, "SUMIFS": {}, "SUMPRODUCT": {},
	"TEXT": {}, "TODAY": {}, "TRIM": {}, "UPPER": {}, "VALUE": {},
	"VLOOKUP": {}, "XLOOKUP": {}, "YEAR": {},
}

// ValidateFormula checks formula syntax without storing anything: leading
// marker, balanced parentheses/brackets, terminated quoted segments. It
// returns warnings for function names outside the recognized set and fails
// only on syntactic malformation.
func ValidateFormula(text string) ([]string, error) {
	if !strings.HasPrefix(text, "=") {
		return nil, xlerr.New(xlerr.Validation, "formula must start with '='")
	}
	body := text[1:]
	if strings.TrimSpace(body) == "" {
		return nil, xlerr.New(xlerr.Validation, "empty formula")
	}

	var depth []byte
	inString := false
	inSheetQuote := false
	var ident strings.Builder
	var warnings []string

	flushIdent := func(next byte) {
		name := ident.String()
		ident.Reset()
		if name == "" || next != '(' {
			return
		}
		if _, ok := knownFunctions[strings.ToUpper(name)]; !ok {
			warnings = append(warnings, fmt.Sprintf("unrecognized function %q", strings.ToUpper(name)))
		}
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case inString:
			if c == '"' {
				// Doubled quote is an escaped quote inside the string.
				if i+1 < len(body) && body[i+1] == '"' {
					i++
					continue
				}
				inString = false
			}
		case inSheetQuote:
			if c == '\'' {
				if i+1 < len(body) && body[i+1] == '\'' {
					i++
					continue
				}
				inSheetQuote = false
			}
		case c == '"':
			flushIdent(c)
			inString = true
		case c == '\'':
			flushIdent(c)
			inSheetQuote = true
		case c == '(' || c == '[' || c == '{':
			flushIdent(c)
			depth = append(depth, c)
		case c == ')' || c == ']' || c == '}':
			flushIdent(c)
			if len(depth) == 0 {
				return nil, xlerr.New(xlerr.Validation, "unbalanced %q at offset %d", string(c), i+1)
			}
			open := depth[len(depth)-1]
			if (c == ')' && open != '(') || (c == ']' && open != '[') || (c == '}' && open != '{') {
				return nil, xlerr.New(xlerr.Validation, "mismatched %q at offset %d", string(c), i+1)
			}
			depth = depth[:len(depth)-1]
		case isIdentByte(c):
			ident.WriteByte(c)
		default:
			flushIdent(c)
		}
	}
	flushIdent(0)
	if inString {
		return nil, xlerr.New(xlerr.Validation, "unterminated string literal")
	}
	if inSheetQuote {
		return nil, xlerr.New(xlerr.Validation, "unterminated sheet name quote")
	}
	if len(depth) != 0 {
		return nil, xlerr.New(xlerr.Validation, "unbalanced %q", string(depth[len(depth)-1]))
	}
	return warnings, nil
}

// ApplyFormula validates the formula and attaches it to the cell. The cell's
// literal value and its formula are mutually exclusive: attaching a formula
// clears any stored value. Warnings from unrecognized functions are returned
// alongside success.
func ApplyFormula(f *excelize.File, sheet, cellRef, formula string) ([]string, error) {
	if err := requireSheet(f, sheet); err != nil {
		return nil, err
	}
	refSheet, cell, err := addr.ParseCell(cellRef)
	if err != nil {
		return nil, err
	}
	if refSheet != "" {
		if err := requireSheet(f, refSheet); err != nil {
			return nil, err
		}
		sheet = refSheet
	}
	warnings, err := ValidateFormula(formula)
	if err != nil {
		return nil, err
	}
	name := cell.Name()
	if err := f.SetCellValue(sheet, name, nil); err != nil {
		return nil, xlerr.Wrap(xlerr.Format, err, "clear cell %s", name)
	}
	if err := f.SetCellFormula(sheet, name, strings.TrimPrefix(formula, "=")); err != nil {
		return nil, xlerr.Wrap(xlerr.Format, err, "set formula on %s", name)
	}
	return warnings, nil
}

func isIdentByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '.'
}
