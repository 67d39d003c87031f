package engine

import (
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// CondRuleKind enumerates the conditional formatting rule kinds.
type CondRuleKind string

const (
	CondCellIs    CondRuleKind = "cellIs"
	CondFormula   CondRuleKind = "formula"
	CondDuplicate CondRuleKind = "duplicate"
	CondUnique    CondRuleKind = "unique"
)

// condCriteria maps comparison operator tokens to the container library's
// criteria strings for cell-is rules.
var condCriteria = map[string]string{
	"equal":              "==",
	"notEqual":           "!=",
	"greaterThan":        ">",
	"lessThan":           "<",
	"greaterThanOrEqual": ">=",
	"lessThanOrEqual":    "<=",
	"between":            "between",
	"notBetween":         "not between",
}

// CondRule is one conditional formatting rule: a condition, the style to
// apply, and a priority. Lower priority numbers evaluate first.
type CondRule struct {
	Kind     CondRuleKind
	Operator string // cellIs kinds
	Value    string // first operand, or the formula text for formula kinds
	Value2   string // second operand for between/notBetween
	Style    StyleAttrs
	Priority int
}

// AddConditionalFormat attaches the rules to a bound range. Rules are
// ordered by ascending priority before they reach the container, which
// evaluates them in slice order.
func AddConditionalFormat(f *excelize.File, sheet, rangeRef string, rules []CondRule) (addr.Range, error) {
	if len(rules) == 0 {
		return addr.Range{}, xlerr.New(xlerr.Validation, "at least one rule required")
	}
	r, err := bindRange(f, sheet, rangeRef)
	if err != nil {
		return addr.Range{}, err
	}

	ordered := make([]CondRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	opts := make([]excelize.ConditionalFormatOptions, 0, len(ordered))
	for i, rule := range ordered {
		style, err := rule.Style.excelizeStyle()
		if err != nil {
			return addr.Range{}, err
		}
		formatID, err := f.NewConditionalStyle(style)
		if err != nil {
			return addr.Range{}, xlerr.Wrap(xlerr.Format, err, "register conditional style")
		}
		opt := excelize.ConditionalFormatOptions{Format: &formatID}
		switch rule.Kind {
		case CondCellIs:
			criteria, ok := condCriteria[rule.Operator]
			if !ok {
				return addr.Range{}, xlerr.New(xlerr.Validation, "rule %d: unknown operator %q", i+1, rule.Operator)
			}
			opt.Type = "cell"
			opt.Criteria = criteria
			opt.Value = rule.Value
			if criteria == "between" || criteria == "not between" {
				if strings.TrimSpace(rule.Value2) == "" {
					return addr.Range{}, xlerr.New(xlerr.Validation, "rule %d: %s needs two operands", i+1, rule.Operator)
				}
				opt.MinValue = rule.Value
				opt.MaxValue = rule.Value2
			}
		case CondFormula:
			if _, err := ValidateFormula(ensureMarker(rule.Value)); err != nil {
				return addr.Range{}, err
			}
			opt.Type = "formula"
			opt.Criteria = ensureMarker(rule.Value)
		case CondDuplicate:
			opt.Type = "duplicate"
		case CondUnique:
			opt.Type = "unique"
		default:
			return addr.Range{}, xlerr.New(xlerr.Validation, "rule %d: unknown kind %q", i+1, rule.Kind)
		}
		opts = append(opts, opt)
	}

	if err := f.SetConditionalFormat(r.Sheet, r.A1(), opts); err != nil {
		return addr.Range{}, xlerr.Wrap(xlerr.Format, err, "set conditional format on %s", r.String())
	}
	return r, nil
}
