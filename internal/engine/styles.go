package engine

import (
	"encoding/json"

	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// StyleAttrs is an immutable formatting bundle. Identical bundles collapse
// to one handle per workbook; no operation ever mutates a bundle in place,
// so two cells that happen to share a handle are never co-mutated.
type StyleAttrs struct {
	Bold         bool   `json:"bold,omitempty"`
	Italic       bool   `json:"italic,omitempty"`
	Underline    bool   `json:"underline,omitempty"`
	FontSize     int    `json:"font_size,omitempty"`
	FontColor    string `json:"font_color,omitempty"`
	FillColor    string `json:"fill_color,omitempty"`
	BorderStyle  string `json:"border_style,omitempty"`
	BorderColor  string `json:"border_color,omitempty"`
	Horizontal   string `json:"horizontal,omitempty"`
	Vertical     string `json:"vertical,omitempty"`
	WrapText     bool   `json:"wrap_text,omitempty"`
	NumberFormat string `json:"number_format,omitempty"`
}

// borderStyleIDs maps border style names onto the container's numeric codes.
var borderStyleIDs = map[string]int{
	"thin": 1, "medium": 2, "dashed": 3, "dotted": 4, "thick": 5, "double": 6, "hair": 7,
}

// excelizeStyle lowers the bundle into the container library's style type.
func (a StyleAttrs) excelizeStyle() (*excelize.Style, error) {
	s := &excelize.Style{}
	if a.Bold || a.Italic || a.Underline || a.FontSize > 0 || a.FontColor != "" {
		font := &excelize.Font{Bold: a.Bold, Italic: a.Italic}
		if a.Underline {
			font.Underline = "single"
		}
		if a.FontSize > 0 {
			font.Size = float64(a.FontSize)
		}
		font.Color = a.FontColor
		s.Font = font
	}
	if a.FillColor != "" {
		s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{a.FillColor}}
	}
	if a.BorderStyle != "" {
		id, ok := borderStyleIDs[a.BorderStyle]
		if !ok {
			return nil, xlerr.New(xlerr.Validation, "unknown border style %q", a.BorderStyle)
		}
		color := a.BorderColor
		if color == "" {
			color = "000000"
		}
		for _, side := range []string{"left", "right", "top", "bottom"} {
			s.Border = append(s.Border, excelize.Border{Type: side, Style: id, Color: color})
		}
	}
	if a.Horizontal != "" || a.Vertical != "" || a.WrapText {
		s.Alignment = &excelize.Alignment{Horizontal: a.Horizontal, Vertical: a.Vertical, WrapText: a.WrapText}
	}
	if a.NumberFormat != "" {
		s.CustomNumFmt = &a.NumberFormat
	}
	return s, nil
}

// canonicalStyleKey renders a style into a comparable content key.
func canonicalStyleKey(s *excelize.Style) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", xlerr.Wrap(xlerr.Format, err, "encode style")
	}
	return string(b), nil
}

// ResolveStyle returns the handle of an identical bundle already registered
// in the workbook, or registers the bundle and returns a new handle. The
// probe walks the workbook's own style table, so deduplication survives a
// save/reload cycle.
func ResolveStyle(f *excelize.File, attrs StyleAttrs) (int, error) {
	style, err := attrs.excelizeStyle()
	if err != nil {
		return 0, err
	}
	want, err := canonicalStyleKey(style)
	if err != nil {
		return 0, err
	}
	// Style handles are dense from 0; the table is small in practice.
	for id := 0; ; id++ {
		existing, err := f.GetStyle(id)
		if err != nil {
			break
		}
		key, kerr := canonicalStyleKey(existing)
		if kerr != nil {
			return 0, kerr
		}
		if key == want {
			return id, nil
		}
	}
	id, err := f.NewStyle(style)
	if err != nil {
		return 0, xlerr.Wrap(xlerr.Format, err, "register style")
	}
	return id, nil
}

// ApplyStyle sets every cell in the range to the resolved handle, creating
// cells that do not yet exist. It returns the handle and the normalized
// range it was applied to.
func ApplyStyle(f *excelize.File, sheet, rangeRef string, attrs StyleAttrs) (int, addr.Range, error) {
	r, err := resolveRange(f, sheet, rangeRef)
	if err != nil {
		return 0, addr.Range{}, err
	}
	handle, err := ResolveStyle(f, attrs)
	if err != nil {
		return 0, addr.Range{}, err
	}
	tl := addr.Cell{Row: r.MinRow, Col: r.MinCol}.Name()
	br := addr.Cell{Row: r.MaxRow, Col: r.MaxCol}.Name()
	if err := f.SetCellStyle(r.Sheet, tl, br, handle); err != nil {
		return 0, addr.Range{}, xlerr.Wrap(xlerr.Format, err, "apply style to %s", r.String())
	}
	return handle, r, nil
}
