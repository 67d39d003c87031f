package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/internal/engine"
	"github.com/sheetforge/sheetforge/pkg/pagination"
	"github.com/sheetforge/sheetforge/pkg/validation"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// ReadRangeInput defines parameters for a paginated range read. A cursor
// resumes a previous read and takes precedence over the other fields.
type ReadRangeInput struct {
	Path    string `json:"path,omitempty" validate:"required_without=Cursor,omitempty,filepath_ext" jsonschema_description:"Workbook path (or supply cursor)"`
	Sheet   string `json:"sheet,omitempty" validate:"required_without=Cursor,omitempty,sheetname" jsonschema_description:"Sheet name (or supply cursor)"`
	Range   string `json:"range,omitempty" validate:"required_without=Cursor,omitempty,a1range" jsonschema_description:"A1-style range like A1:D50 (or supply cursor)"`
	MaxRows int    `json:"max_rows,omitempty" validate:"omitempty,gte=1" jsonschema_description:"Rows per page (bounded by server default)"`
	Cursor  string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous read_range call"`
}

// PageMeta captures paging and truncation metadata.
type PageMeta struct {
	TotalRows  int    `json:"totalRows"`
	Returned   int    `json:"returned"`
	Offset     int    `json:"offset"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ReadRangeOutput carries one page of display values.
type ReadRangeOutput struct {
	Path  string     `json:"path"`
	Sheet string     `json:"sheet"`
	Range string     `json:"range"`
	Rows  [][]string `json:"rows"`
	Meta  PageMeta   `json:"meta"`
}

// WriteRangeInput defines parameters for writing a row-major grid.
type WriteRangeInput struct {
	Path       string  `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet      string  `json:"sheet" validate:"required,sheetname" jsonschema_description:"Target sheet (created when absent)"`
	StartCell  string  `json:"start_cell" validate:"required,a1range" jsonschema_description:"Top-left anchor cell like B2"`
	Data       [][]any `json:"data" validate:"required,min=1" jsonschema_description:"Row-major grid of values"`
	AutoDetect bool    `json:"auto_detect,omitempty" jsonschema_description:"Infer numbers, percents, currency, dates, and booleans from strings"`
}

// WriteRangeOutput reports the written region.
type WriteRangeOutput struct {
	Path    string `json:"path"`
	Sheet   string `json:"sheet"`
	Range   string `json:"range" jsonschema_description:"A1 range covering the written block"`
	Written int    `json:"written" jsonschema_description:"Cells written"`
}

// WriteCSVInput defines parameters for importing CSV text into a sheet.
type WriteCSVInput struct {
	Path      string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet     string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Target sheet (created when absent)"`
	StartCell string `json:"start_cell,omitempty" validate:"omitempty,a1range" jsonschema_description:"Top-left anchor cell, default A1"`
	CSV       string `json:"csv" validate:"required" jsonschema_description:"CSV content; values go through type inference"`
}

// AutoFormatOutput reports how many cells received inferred formats.
type AutoFormatOutput struct {
	Path      string `json:"path"`
	Sheet     string `json:"sheet"`
	Range     string `json:"range"`
	Formatted int    `json:"formatted" jsonschema_description:"Cells whose value and number format were rewritten"`
}

// RangeRefInput names a workbook, sheet, and range.
type RangeRefInput struct {
	Path  string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Range string `json:"range" validate:"required,a1range" jsonschema_description:"A1-style range"`
}

// RangeOpOutput reports a range-level mutation.
type RangeOpOutput struct {
	Path  string `json:"path"`
	Sheet string `json:"sheet"`
	Range string `json:"range"`
}

// ValidateRangeOutput reports a bound range's normalized geometry.
type ValidateRangeOutput struct {
	Path  string `json:"path"`
	Sheet string `json:"sheet"`
	Range string `json:"range" jsonschema_description:"Normalized A1 range"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
}

// CopyRangeInput defines parameters for copying a rectangle.
type CopyRangeInput struct {
	Path        string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet       string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Source sheet"`
	Range       string `json:"range" validate:"required,a1range" jsonschema_description:"Source A1 range"`
	TargetSheet string `json:"target_sheet,omitempty" validate:"omitempty,sheetname" jsonschema_description:"Destination sheet, default source sheet"`
	TargetCell  string `json:"target_cell" validate:"required,a1range" jsonschema_description:"Destination top-left cell"`
}

// DeleteRangeInput defines parameters for deleting a range with a shift.
type DeleteRangeInput struct {
	Path  string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Range string `json:"range" validate:"required,a1range" jsonschema_description:"A1 range to delete"`
	Shift string `json:"shift" validate:"required,oneof=up left" jsonschema_description:"Direction remaining cells move: up or left"`
}

// ApplyFormulaInput defines parameters for placing a formula in a cell.
type ApplyFormulaInput struct {
	Path    string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet   string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Cell    string `json:"cell" validate:"required,a1range" jsonschema_description:"Target cell like B2"`
	Formula string `json:"formula" validate:"required" jsonschema_description:"Formula text starting with '='"`
}

// FormulaOutput reports formula placement or validation.
type FormulaOutput struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty" jsonschema_description:"Soft warnings such as unknown function names"`
}

// ValidateFormulaInput carries a formula for standalone syntax checking.
type ValidateFormulaInput struct {
	Formula string `json:"formula" validate:"required" jsonschema_description:"Formula text starting with '='"`
}

// RegisterDataTools wires range read/write, CSV import, structural range
// operations, and formula tools.
func RegisterDataTools(s *server.MCPServer, reg *Registry, d Deps) {
	readRange := mcp.NewTool(
		"read_range",
		mcp.WithDescription("Return display values of a range, paged by rows, with an opaque cursor for continuation"),
		mcp.WithInputSchema[ReadRangeInput](),
		mcp.WithOutputSchema[ReadRangeOutput](),
	)
	s.AddTool(readRange, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ReadRangeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		rawPath, sheet, rangeRef := in.Path, in.Sheet, in.Range
		offset := 0
		pageSize := in.MaxRows
		if in.Cursor != "" {
			cur, err := pagination.DecodeCursor(in.Cursor)
			if err != nil {
				return xlerr.ResultText(xlerr.Validation, err.Error()), nil
			}
			rawPath, sheet, rangeRef = cur.P, cur.S, cur.R
			offset, pageSize = cur.Off, cur.Ps
		}
		if pageSize <= 0 || pageSize > d.Limits.ReadPageRows {
			pageSize = d.Limits.ReadPageRows
		}
		path, err := d.Policy.Resolve(rawPath)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var page engine.ReadPage
		err = d.Store.View(ctx, path, func(f *excelize.File) error {
			page, err = engine.ReadRange(f, sheet, rangeRef, offset, pageSize)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := ReadRangeOutput{
			Path:  path,
			Sheet: page.Range.Sheet,
			Range: page.Range.A1(),
			Rows:  page.Rows,
			Meta: PageMeta{
				TotalRows: page.TotalRows,
				Returned:  page.Returned,
				Offset:    page.Offset,
				Truncated: page.Truncated,
			},
		}
		if page.Truncated {
			token, err := pagination.EncodeCursor(pagination.Cursor{
				P:   path,
				S:   page.Range.Sheet,
				R:   page.Range.A1(),
				Off: pagination.NextOffset(page.Offset, page.Returned),
				Ps:  pageSize,
			})
			if err == nil {
				out.Meta.NextCursor = token
			}
		}
		summary := fmt.Sprintf("rows=%d/%d offset=%d truncated=%v", page.Returned, page.TotalRows, page.Offset, page.Truncated)
		return structured(out, summary), nil
	}))
	reg.Register(readRange)

	writeRange := mcp.NewTool(
		"write_range",
		mcp.WithDescription("Write a row-major grid of values starting at an anchor cell, growing the sheet as needed; the whole write succeeds or nothing is saved"),
		mcp.WithInputSchema[WriteRangeInput](),
		mcp.WithOutputSchema[WriteRangeOutput](),
	)
	s.AddTool(writeRange, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in WriteRangeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		if cells := gridCells(in.Data); cells > d.Limits.MaxCellsPerOp {
			return xlerr.ResultText(xlerr.Validation, fmt.Sprintf("write of %d cells exceeds limit %d", cells, d.Limits.MaxCellsPerOp)), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var written int
		var r addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			written, r, err = engine.WriteRange(f, in.Sheet, in.StartCell, in.Data, in.AutoDetect)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := WriteRangeOutput{Path: path, Sheet: r.Sheet, Range: r.A1(), Written: written}
		return structured(out, fmt.Sprintf("wrote %d cell(s) into %s", written, r.String())), nil
	}))
	reg.Register(writeRange)

	writeCSV := mcp.NewTool(
		"write_csv",
		mcp.WithDescription("Import CSV text into a sheet starting at an anchor cell, with type inference on every value"),
		mcp.WithInputSchema[WriteCSVInput](),
		mcp.WithOutputSchema[WriteRangeOutput](),
	)
	s.AddTool(writeCSV, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in WriteCSVInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		records, err := csv.NewReader(strings.NewReader(in.CSV)).ReadAll()
		if err != nil {
			return xlerr.ResultText(xlerr.Validation, "malformed CSV: "+err.Error()), nil
		}
		if len(records) == 0 {
			return xlerr.ResultText(xlerr.Validation, "CSV content is empty"), nil
		}
		data := make([][]any, len(records))
		for i, rec := range records {
			line := make([]any, len(rec))
			for j, v := range rec {
				line[j] = v
			}
			data[i] = line
		}
		if cells := gridCells(data); cells > d.Limits.MaxCellsPerOp {
			return xlerr.ResultText(xlerr.Validation, fmt.Sprintf("import of %d cells exceeds limit %d", cells, d.Limits.MaxCellsPerOp)), nil
		}
		start := in.StartCell
		if start == "" {
			start = "A1"
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var written int
		var r addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			written, r, err = engine.WriteRange(f, in.Sheet, start, data, true)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := WriteRangeOutput{Path: path, Sheet: r.Sheet, Range: r.A1(), Written: written}
		return structured(out, fmt.Sprintf("imported %d CSV cell(s) into %s", written, r.String())), nil
	}))
	reg.Register(writeCSV)

	autoFormat := mcp.NewTool(
		"auto_format_range",
		mcp.WithDescription("Re-scan an existing range, inferring each populated cell's type (numbers, percents, currency, dates, booleans) and applying the matching value and number format"),
		mcp.WithInputSchema[RangeRefInput](),
		mcp.WithOutputSchema[AutoFormatOutput](),
	)
	s.AddTool(autoFormat, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RangeRefInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var formatted int
		var r addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			formatted, r, err = engine.AutoFormatRange(f, in.Sheet, in.Range)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := AutoFormatOutput{Path: path, Sheet: r.Sheet, Range: r.A1(), Formatted: formatted}
		return structured(out, fmt.Sprintf("auto-formatted %d cell(s) in %s", formatted, r.String())), nil
	}))
	reg.Register(autoFormat)

	mergeCells := mcp.NewTool(
		"merge_cells",
		mcp.WithDescription("Merge a range into a single cell; the top-left value survives"),
		mcp.WithInputSchema[RangeRefInput](),
		mcp.WithOutputSchema[RangeOpOutput](),
	)
	s.AddTool(mergeCells, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RangeRefInput) (*mcp.CallToolResult, error) {
		return rangeMutation(ctx, d, in, func(f *excelize.File) (addr.Range, error) {
			return engine.MergeRange(f, in.Sheet, in.Range)
		}, "merged %s")
	}))
	reg.Register(mergeCells)

	unmergeCells := mcp.NewTool(
		"unmerge_cells",
		mcp.WithDescription("Split previously merged cells back apart"),
		mcp.WithInputSchema[RangeRefInput](),
		mcp.WithOutputSchema[RangeOpOutput](),
	)
	s.AddTool(unmergeCells, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RangeRefInput) (*mcp.CallToolResult, error) {
		return rangeMutation(ctx, d, in, func(f *excelize.File) (addr.Range, error) {
			return engine.UnmergeRange(f, in.Sheet, in.Range)
		}, "unmerged %s")
	}))
	reg.Register(unmergeCells)

	copyRange := mcp.NewTool(
		"copy_range",
		mcp.WithDescription("Copy a rectangle (values, formulas, styles) to a target anchor, possibly on another sheet; source and target may not overlap"),
		mcp.WithInputSchema[CopyRangeInput](),
		mcp.WithOutputSchema[RangeOpOutput](),
	)
	s.AddTool(copyRange, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CopyRangeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var dst addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			dst, err = engine.CopyRange(f, in.Sheet, in.Range, in.TargetSheet, in.TargetCell)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := RangeOpOutput{Path: path, Sheet: dst.Sheet, Range: dst.A1()}
		return structured(out, fmt.Sprintf("copied %s to %s", in.Range, dst.String())), nil
	}))
	reg.Register(copyRange)

	deleteRange := mcp.NewTool(
		"delete_range",
		mcp.WithDescription("Clear a range and shift trailing cells up or left to close the gap"),
		mcp.WithInputSchema[DeleteRangeInput](),
		mcp.WithOutputSchema[RangeOpOutput](),
	)
	s.AddTool(deleteRange, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in DeleteRangeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var r addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			r, err = engine.DeleteRange(f, in.Sheet, in.Range, engine.ShiftDirection(in.Shift))
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := RangeOpOutput{Path: path, Sheet: r.Sheet, Range: r.A1()}
		return structured(out, fmt.Sprintf("deleted %s shifting %s", r.String(), in.Shift)), nil
	}))
	reg.Register(deleteRange)

	validateRange := mcp.NewTool(
		"validate_range",
		mcp.WithDescription("Check that an A1 range parses and lies within the sheet's current extent; returns the normalized geometry"),
		mcp.WithInputSchema[RangeRefInput](),
		mcp.WithOutputSchema[ValidateRangeOutput](),
	)
	s.AddTool(validateRange, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RangeRefInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var r addr.Range
		err = d.Store.View(ctx, path, func(f *excelize.File) error {
			r, err = engine.BindRange(f, in.Sheet, in.Range)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := ValidateRangeOutput{Path: path, Sheet: r.Sheet, Range: r.A1(), Rows: r.Rows(), Cols: r.Cols()}
		return structured(out, fmt.Sprintf("%s binds to %d x %d cells", r.String(), r.Rows(), r.Cols())), nil
	}))
	reg.Register(validateRange)

	applyFormula := mcp.NewTool(
		"apply_formula",
		mcp.WithDescription("Validate a formula's syntax and place it in a cell; any literal value on the cell is cleared"),
		mcp.WithInputSchema[ApplyFormulaInput](),
		mcp.WithOutputSchema[FormulaOutput](),
	)
	s.AddTool(applyFormula, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ApplyFormulaInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var warnings []string
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			warnings, err = engine.ApplyFormula(f, in.Sheet, in.Cell, in.Formula)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := FormulaOutput{Valid: true, Warnings: warnings}
		return structured(out, fmt.Sprintf("formula set on %s (%d warning(s))", in.Cell, len(warnings))), nil
	}))
	reg.Register(applyFormula)

	validateFormula := mcp.NewTool(
		"validate_formula",
		mcp.WithDescription("Check formula syntax without touching any workbook: leading '=', balanced brackets and quotes, known function names"),
		mcp.WithInputSchema[ValidateFormulaInput](),
		mcp.WithOutputSchema[FormulaOutput](),
	)
	s.AddTool(validateFormula, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ValidateFormulaInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		warnings, err := engine.ValidateFormula(in.Formula)
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := FormulaOutput{Valid: true, Warnings: warnings}
		return structured(out, fmt.Sprintf("formula is valid (%d warning(s))", len(warnings))), nil
	}))
	reg.Register(validateFormula)
}

// rangeMutation runs one range-level mutation inside an update session and
// shapes the shared output payload.
func rangeMutation(ctx context.Context, d Deps, in RangeRefInput, fn func(*excelize.File) (addr.Range, error), summaryFmt string) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	path, err := d.Policy.Resolve(in.Path)
	if err != nil {
		return xlerr.Result(err), nil
	}
	var r addr.Range
	err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
		r, err = fn(f)
		return err
	})
	if err != nil {
		return xlerr.Result(err), nil
	}
	out := RangeOpOutput{Path: path, Sheet: r.Sheet, Range: r.A1()}
	return structured(out, fmt.Sprintf(summaryFmt, r.String())), nil
}

func gridCells(data [][]any) int {
	n := 0
	for _, line := range data {
		n += len(line)
	}
	return n
}
