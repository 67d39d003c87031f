package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// RuleKind enumerates the supported data-validation rule kinds.
type RuleKind string

const (
	RuleList    RuleKind = "list"
	RuleWhole   RuleKind = "whole"
	RuleDecimal RuleKind = "decimal"
	RuleDate    RuleKind = "date"
	RuleCustom  RuleKind = "custom"
)

// Rule describes a data-validation rule to attach to a range. List and
// numeric/date comparison rules with literal bounds are enforced locally on
// later writes; custom-formula rules are recorded but not evaluated.
type Rule struct {
	Kind     RuleKind
	Items    []string // list kind
	Operator string   // between, notBetween, equal, notEqual, greaterThan, lessThan, greaterThanOrEqual, lessThanOrEqual
	Min      string   // first literal bound
	Max      string   // second literal bound (between / notBetween)
	Formula  string   // custom kind
}

var operatorByName = map[string]excelize.DataValidationOperator{
	"between":            excelize.DataValidationOperatorBetween,
	"notBetween":         excelize.DataValidationOperatorNotBetween,
	"equal":              excelize.DataValidationOperatorEqual,
	"notEqual":           excelize.DataValidationOperatorNotEqual,
	"greaterThan":        excelize.DataValidationOperatorGreaterThan,
	"lessThan":           excelize.DataValidationOperatorLessThan,
	"greaterThanOrEqual": excelize.DataValidationOperatorGreaterThanOrEqual,
	"lessThanOrEqual":    excelize.DataValidationOperatorLessThanOrEqual,
}

// AttachValidation stores the rule once for the bound range.
func AttachValidation(f *excelize.File, sheet, rangeRef string, rule Rule) (addr.Range, error) {
	r, err := bindRange(f, sheet, rangeRef)
	if err != nil {
		return addr.Range{}, err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = r.A1()

	switch rule.Kind {
	case RuleList:
		if len(rule.Items) == 0 {
			return addr.Range{}, xlerr.New(xlerr.Validation, "list rule requires at least one item")
		}
		if err := dv.SetDropList(rule.Items); err != nil {
			return addr.Range{}, xlerr.Wrap(xlerr.Validation, err, "list rule")
		}
	case RuleWhole, RuleDecimal, RuleDate:
		op, ok := operatorByName[rule.Operator]
		if !ok {
			return addr.Range{}, xlerr.New(xlerr.Validation, "unknown operator %q", rule.Operator)
		}
		lo, err := parseBound(rule.Kind, rule.Min)
		if err != nil {
			return addr.Range{}, err
		}
		hi := lo
		if rule.Operator == "between" || rule.Operator == "notBetween" {
			if hi, err = parseBound(rule.Kind, rule.Max); err != nil {
				return addr.Range{}, err
			}
		}
		var t excelize.DataValidationType
		switch rule.Kind {
		case RuleWhole:
			t = excelize.DataValidationTypeWhole
		case RuleDecimal:
			t = excelize.DataValidationTypeDecimal
		default:
			t = excelize.DataValidationTypeDate
		}
		if err := dv.SetRange(lo, hi, t, op); err != nil {
			return addr.Range{}, xlerr.Wrap(xlerr.Validation, err, "range rule")
		}
	case RuleCustom:
		if strings.TrimSpace(rule.Formula) == "" {
			return addr.Range{}, xlerr.New(xlerr.Validation, "custom rule requires a formula")
		}
		if _, err := ValidateFormula(ensureMarker(rule.Formula)); err != nil {
			return addr.Range{}, err
		}
		dv.Type = "custom"
		formula := strings.TrimPrefix(rule.Formula, "=")
		dv.Formula1 = fmt.Sprintf("<formula1>%s</formula1>", formula)
	default:
		return addr.Range{}, xlerr.New(xlerr.Validation, "unknown rule kind %q", rule.Kind)
	}

	if err := f.AddDataValidation(r.Sheet, dv); err != nil {
		return addr.Range{}, xlerr.Wrap(xlerr.Format, err, "attach validation to %s", r.String())
	}
	return r, nil
}

// checkCellWrite enforces locally-checkable rules before a value lands in a
// validated cell. List and whole/decimal/date rules with literal bounds are
// enforced; formula-kind rules are recorded but not evaluated here.
func checkCellWrite(f *excelize.File, sheet string, cell addr.Cell, value any) error {
	rules, err := f.GetDataValidations(sheet)
	if err != nil {
		return xlerr.Wrap(xlerr.Format, err, "read validations on %q", sheet)
	}
	for _, dv := range rules {
		if dv == nil || !sqrefContains(dv.Sqref, cell) {
			continue
		}
		if err := enforceRule(dv, cell, value); err != nil {
			return err
		}
	}
	return nil
}

func enforceRule(dv *excelize.DataValidation, cell addr.Cell, value any) error {
	switch dv.Type {
	case "list":
		items, ok := literalListItems(dv.Formula1)
		if !ok {
			return nil // range-sourced list; not locally checkable
		}
		got := strings.TrimSpace(fmt.Sprint(value))
		for _, item := range items {
			if got == item {
				return nil
			}
		}
		return xlerr.New(xlerr.Validation, "value %q for %s not in allowed list", got, cell.Name())
	case "whole", "decimal", "date":
		lo, ok1 := literalNumber(dv.Formula1)
		hi, ok2 := literalNumber(dv.Formula2)
		if !ok1 {
			return nil // bound is a reference; not locally checkable
		}
		if !ok2 {
			hi = lo
		}
		v, ok := numericValue(dv.Type, value)
		if !ok {
			return xlerr.New(xlerr.Validation, "value %v for %s is not comparable under %s rule", value, cell.Name(), dv.Type)
		}
		if !satisfies(dv.Operator, v, lo, hi) {
			return xlerr.New(xlerr.Validation, "value %v for %s violates %s %s rule", value, cell.Name(), dv.Type, dv.Operator)
		}
		return nil
	default:
		return nil // custom and other kinds are stored, not evaluated
	}
}

func satisfies(operator string, v, lo, hi float64) bool {
	switch operator {
	case "between", "":
		return v >= lo && v <= hi
	case "notBetween":
		return v < lo || v > hi
	case "equal":
		return v == lo
	case "notEqual":
		return v != lo
	case "greaterThan":
		return v > lo
	case "lessThan":
		return v < lo
	case "greaterThanOrEqual":
		return v >= lo
	case "lessThanOrEqual":
		return v <= lo
	default:
		return true
	}
}

// sqrefContains reports whether the cell falls inside any of the
// space-separated ranges of a validation's sqref.
func sqrefContains(sqref string, cell addr.Cell) bool {
	for _, part := range strings.Fields(sqref) {
		r, err := addr.ParseRange(part)
		if err != nil {
			continue
		}
		if r.Contains(cell.Row, cell.Col) {
			return true
		}
	}
	return false
}

// literalListItems extracts drop-list items from a stored formula of the
// shape "a,b,c" (quoted literal). Range-sourced lists return false.
func literalListItems(formula string) ([]string, bool) {
	s := strings.TrimSpace(formula)
	s = strings.TrimPrefix(s, "<formula1>")
	s = strings.TrimSuffix(s, "</formula1>")
	if !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) || len(s) < 2 {
		return nil, false
	}
	items := strings.Split(s[1:len(s)-1], ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items, true
}

func literalNumber(formula string) (float64, bool) {
	s := strings.TrimSpace(formula)
	s = strings.TrimPrefix(s, "<formula1>")
	s = strings.TrimSuffix(s, "</formula1>")
	s = strings.TrimPrefix(s, "<formula2>")
	s = strings.TrimSuffix(s, "</formula2>")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// numericValue lowers a written value into the comparable domain of a rule:
// floats for whole/decimal, container date serials for date.
func numericValue(ruleType string, value any) (float64, bool) {
	switch v := value.(type) {
	case time.Time:
		return dateSerial(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		return 0, false
	}
	s := strings.TrimSpace(fmt.Sprint(value))
	if ruleType == "date" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return dateSerial(t), true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseBound lowers a rule bound literal to the numeric domain used by the
// container: plain numbers for whole/decimal, date serials for date.
func parseBound(kind RuleKind, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if kind == RuleDate {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return 0, xlerr.New(xlerr.Validation, "date bound %q must be YYYY-MM-DD", s)
		}
		return dateSerial(t), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, xlerr.New(xlerr.Validation, "bound %q is not numeric", s)
	}
	return v, nil
}

// dateSerial converts a time to the container's day-serial epoch
// (days since 1899-12-30).
func dateSerial(t time.Time) float64 {
	epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	d := t.Sub(epoch)
	return d.Hours() / 24
}

func ensureMarker(formula string) string {
	if strings.HasPrefix(formula, "=") {
		return formula
	}
	return "=" + formula
}
