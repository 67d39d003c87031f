package registry

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/addr"
	"github.com/sheetforge/sheetforge/internal/engine"
	"github.com/sheetforge/sheetforge/pkg/validation"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// FormatRangeInput applies a formatting bundle to a range.
type FormatRangeInput struct {
	Path  string            `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string            `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Range string            `json:"range" validate:"required,a1range" jsonschema_description:"A1 range to format"`
	Style engine.StyleAttrs `json:"style" jsonschema_description:"Formatting attributes: font, fill, border, alignment, number format"`
}

// FormatRangeOutput reports the applied style handle.
type FormatRangeOutput struct {
	Path   string `json:"path"`
	Sheet  string `json:"sheet"`
	Range  string `json:"range"`
	Handle int    `json:"handle" jsonschema_description:"Deduplicated style handle; identical bundles share one handle"`
}

// CondRuleInput is one conditional formatting rule.
type CondRuleInput struct {
	Kind     string            `json:"kind" validate:"required,oneof=cellIs formula duplicate unique" jsonschema_description:"Rule kind"`
	Operator string            `json:"operator,omitempty" jsonschema_description:"Comparison for cellIs: equal, notEqual, greaterThan, lessThan, greaterThanOrEqual, lessThanOrEqual, between, notBetween"`
	Value    string            `json:"value,omitempty" jsonschema_description:"First operand, or the formula text for formula kind"`
	Value2   string            `json:"value2,omitempty" jsonschema_description:"Second operand for between/notBetween"`
	Style    engine.StyleAttrs `json:"style" jsonschema_description:"Formatting applied when the condition holds"`
	Priority int               `json:"priority,omitempty" jsonschema_description:"Lower numbers evaluate first"`
}

// CondFormatInput attaches conditional formatting rules to a range.
type CondFormatInput struct {
	Path  string          `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string          `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Range string          `json:"range" validate:"required,a1range" jsonschema_description:"A1 range the rules watch"`
	Rules []CondRuleInput `json:"rules" validate:"required,min=1,dive" jsonschema_description:"Rules in priority order"`
}

// DataValidationInput attaches a data-validation rule to a range.
type DataValidationInput struct {
	Path     string   `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet    string   `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Range    string   `json:"range" validate:"required,a1range" jsonschema_description:"A1 range the rule governs"`
	Kind     string   `json:"kind" validate:"required,oneof=list whole decimal date custom" jsonschema_description:"Rule kind"`
	Items    []string `json:"items,omitempty" jsonschema_description:"Allowed values for list kind"`
	Operator string   `json:"operator,omitempty" jsonschema_description:"Comparison for whole/decimal/date: between, notBetween, equal, notEqual, greaterThan, lessThan, greaterThanOrEqual, lessThanOrEqual"`
	Min      string   `json:"min,omitempty" jsonschema_description:"First literal bound; dates as YYYY-MM-DD"`
	Max      string   `json:"max,omitempty" jsonschema_description:"Second literal bound for between/notBetween"`
	Formula  string   `json:"formula,omitempty" jsonschema_description:"Formula for custom kind (stored, not evaluated)"`
}

// TableInput defines parameters for creating a structured table.
type TableInput struct {
	Path  string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Range string `json:"range" validate:"required,a1range" jsonschema_description:"Table range; first row is the header row"`
	Name  string `json:"name" validate:"required" jsonschema_description:"Table name, unique workbook-wide"`
	Style string `json:"style,omitempty" jsonschema_description:"Table style name, default TableStyleMedium9"`
}

// TableOutput summarizes a table after a mutation.
type TableOutput struct {
	Path    string   `json:"path"`
	Sheet   string   `json:"sheet"`
	Name    string   `json:"name"`
	Range   string   `json:"range"`
	Style   string   `json:"style,omitempty"`
	Columns []string `json:"columns,omitempty" jsonschema_description:"Header texts defining the table's columns"`
}

// RenameTableInput renames a table in place.
type RenameTableInput struct {
	Path    string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet   string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet holding the table"`
	Name    string `json:"name" validate:"required" jsonschema_description:"Current table name"`
	NewName string `json:"new_name" validate:"required" jsonschema_description:"New table name"`
}

// NamedTableInput names an existing table.
type NamedTableInput struct {
	Path  string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet holding the table"`
	Name  string `json:"name" validate:"required" jsonschema_description:"Table name"`
}

// ResizeTableInput rebinds a table to a new range.
type ResizeTableInput struct {
	Path  string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet holding the table"`
	Name  string `json:"name" validate:"required" jsonschema_description:"Table name"`
	Range string `json:"range" validate:"required,a1range" jsonschema_description:"New table range; header constraints re-checked"`
}

// ChartSeriesInput is one chart series.
type ChartSeriesInput struct {
	Name       string `json:"name,omitempty" jsonschema_description:"Series display name"`
	Values     string `json:"values" validate:"required,a1range" jsonschema_description:"Value vector range (single row or column)"`
	Categories string `json:"categories,omitempty" validate:"omitempty,a1range" jsonschema_description:"Category vector range matching the series length"`
}

// ChartInput defines parameters for chart creation.
type ChartInput struct {
	Path   string             `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet  string             `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet the chart lives on"`
	Type   string             `json:"type" validate:"required" jsonschema_description:"Chart type: line, bar, barh, pie, scatter, area, doughnut, radar"`
	Anchor string             `json:"anchor" validate:"required,a1range" jsonschema_description:"Top-left anchor cell"`
	Title  string             `json:"title,omitempty" jsonschema_description:"Chart title"`
	XAxis  string             `json:"x_axis,omitempty" jsonschema_description:"X axis title"`
	YAxis  string             `json:"y_axis,omitempty" jsonschema_description:"Y axis title"`
	Series []ChartSeriesInput `json:"series" validate:"required,min=1,dive" jsonschema_description:"Chart series; all value vectors must be the same length"`
}

// ChartOutput reports a created chart.
type ChartOutput struct {
	Path   string `json:"path"`
	Sheet  string `json:"sheet"`
	Type   string `json:"type"`
	Anchor string `json:"anchor"`
	Series int    `json:"series"`
}

// PivotValueInput pairs a source field with an aggregation.
type PivotValueInput struct {
	Field string `json:"field" validate:"required" jsonschema_description:"Source column header"`
	Agg   string `json:"agg" validate:"required,oneof=sum count average min max" jsonschema_description:"Aggregation function"`
}

// PivotInput defines parameters for building a pivot grid.
type PivotInput struct {
	Path         string            `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet        string            `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet holding the source range"`
	Source       string            `json:"source" validate:"required,a1range" jsonschema_description:"Source range; first row is the header row"`
	RowFields    []string          `json:"row_fields,omitempty" jsonschema_description:"Headers grouped into output rows"`
	ColumnFields []string          `json:"column_fields,omitempty" jsonschema_description:"Headers grouped into output columns"`
	Values       []PivotValueInput `json:"values" validate:"required,min=1,dive" jsonschema_description:"Value fields with aggregations"`
	Filters      map[string]string `json:"filters,omitempty" jsonschema_description:"Equality filters applied to source rows"`
	TargetSheet  string            `json:"target_sheet,omitempty" validate:"omitempty,sheetname" jsonschema_description:"Output sheet (created when absent), default source sheet"`
	Anchor       string            `json:"anchor,omitempty" validate:"omitempty,a1range" jsonschema_description:"Output top-left cell, default A1"`
}

// PivotOutput summarizes a materialized pivot grid.
type PivotOutput struct {
	Path       string `json:"path"`
	Source     string `json:"source"`
	Output     string `json:"output" jsonschema_description:"Range covering the written grid"`
	RowGroups  int    `json:"rowGroups"`
	ColGroups  int    `json:"colGroups"`
	SourceRows int    `json:"sourceRows" jsonschema_description:"Source rows that contributed after filtering"`
}

// RegisterObjectTools wires formatting, validation-rule, table, chart, and
// pivot tools.
func RegisterObjectTools(s *server.MCPServer, reg *Registry, d Deps) {
	formatRange := mcp.NewTool(
		"format_range",
		mcp.WithDescription("Resolve a formatting bundle to a deduplicated style handle and apply it to every cell of a range"),
		mcp.WithInputSchema[FormatRangeInput](),
		mcp.WithOutputSchema[FormatRangeOutput](),
	)
	s.AddTool(formatRange, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in FormatRangeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var handle int
		var r addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			handle, r, err = engine.ApplyStyle(f, in.Sheet, in.Range, in.Style)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := FormatRangeOutput{Path: path, Sheet: r.Sheet, Range: r.A1(), Handle: handle}
		return structured(out, fmt.Sprintf("style %d applied to %s", handle, r.String())), nil
	}))
	reg.Register(formatRange)

	condFormat := mcp.NewTool(
		"add_conditional_format",
		mcp.WithDescription("Attach conditional formatting rules (cell comparison, formula, duplicate, unique) to a range, ordered by priority"),
		mcp.WithInputSchema[CondFormatInput](),
		mcp.WithOutputSchema[RangeOpOutput](),
	)
	s.AddTool(condFormat, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CondFormatInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		rules := make([]engine.CondRule, len(in.Rules))
		for i, r := range in.Rules {
			rules[i] = engine.CondRule{
				Kind:     engine.CondRuleKind(r.Kind),
				Operator: r.Operator,
				Value:    r.Value,
				Value2:   r.Value2,
				Style:    r.Style,
				Priority: r.Priority,
			}
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var r addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			r, err = engine.AddConditionalFormat(f, in.Sheet, in.Range, rules)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := RangeOpOutput{Path: path, Sheet: r.Sheet, Range: r.A1()}
		return structured(out, fmt.Sprintf("%d rule(s) attached to %s", len(rules), r.String())), nil
	}))
	reg.Register(condFormat)

	dataValidation := mcp.NewTool(
		"add_data_validation",
		mcp.WithDescription("Attach a data-validation rule (list, whole, decimal, date, custom formula) to a range; list and literal-bound rules are enforced on later writes"),
		mcp.WithInputSchema[DataValidationInput](),
		mcp.WithOutputSchema[RangeOpOutput](),
	)
	s.AddTool(dataValidation, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in DataValidationInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		rule := engine.Rule{
			Kind:     engine.RuleKind(in.Kind),
			Items:    in.Items,
			Operator: in.Operator,
			Min:      in.Min,
			Max:      in.Max,
			Formula:  in.Formula,
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var r addr.Range
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			r, err = engine.AttachValidation(f, in.Sheet, in.Range, rule)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := RangeOpOutput{Path: path, Sheet: r.Sheet, Range: r.A1()}
		return structured(out, fmt.Sprintf("%s rule attached to %s", in.Kind, r.String())), nil
	}))
	reg.Register(dataValidation)

	createTable := mcp.NewTool(
		"create_table",
		mcp.WithDescription("Register a structured table over a range whose first row is a header row with distinct non-blank texts; names are unique workbook-wide and tables on a sheet may not overlap"),
		mcp.WithInputSchema[TableInput](),
		mcp.WithOutputSchema[TableOutput](),
	)
	s.AddTool(createTable, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in TableInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		return tableMutation(ctx, d, in.Path, func(f *excelize.File) (engine.Table, error) {
			return engine.CreateTable(f, in.Sheet, in.Range, in.Name, in.Style)
		}, "created table %q over %s")
	}))
	reg.Register(createTable)

	renameTable := mcp.NewTool(
		"rename_table",
		mcp.WithDescription("Rename a table without touching the underlying cell data"),
		mcp.WithInputSchema[RenameTableInput](),
		mcp.WithOutputSchema[TableOutput](),
	)
	s.AddTool(renameTable, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RenameTableInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		return tableMutation(ctx, d, in.Path, func(f *excelize.File) (engine.Table, error) {
			return engine.RenameTable(f, in.Sheet, in.Name, in.NewName)
		}, "renamed table to %q (%s)")
	}))
	reg.Register(renameTable)

	deleteTable := mcp.NewTool(
		"delete_table",
		mcp.WithDescription("Remove a table object, leaving its cell data in place"),
		mcp.WithInputSchema[NamedTableInput](),
		mcp.WithOutputSchema[TableOutput](),
	)
	s.AddTool(deleteTable, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in NamedTableInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			return engine.DeleteTable(f, in.Sheet, in.Name)
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := TableOutput{Path: path, Sheet: in.Sheet, Name: in.Name}
		return structured(out, fmt.Sprintf("deleted table %q", in.Name)), nil
	}))
	reg.Register(deleteTable)

	resizeTable := mcp.NewTool(
		"resize_table",
		mcp.WithDescription("Rebind a table to a new range, revalidating header and overlap constraints"),
		mcp.WithInputSchema[ResizeTableInput](),
		mcp.WithOutputSchema[TableOutput](),
	)
	s.AddTool(resizeTable, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ResizeTableInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		return tableMutation(ctx, d, in.Path, func(f *excelize.File) (engine.Table, error) {
			return engine.ResizeTable(f, in.Sheet, in.Name, in.Range)
		}, "resized table %q to %s")
	}))
	reg.Register(resizeTable)

	createChart := mcp.NewTool(
		"create_chart",
		mcp.WithDescription("Anchor a chart (line, bar, barh, pie, scatter, area, doughnut, radar) over series vectors; charts are static snapshots of their source ranges"),
		mcp.WithInputSchema[ChartInput](),
		mcp.WithOutputSchema[ChartOutput](),
	)
	s.AddTool(createChart, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ChartInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		series := make([]engine.Series, len(in.Series))
		for i, sp := range in.Series {
			series[i] = engine.Series{Name: sp.Name, Values: sp.Values, Categories: sp.Categories}
		}
		spec := engine.ChartSpec{
			Type:   in.Type,
			Series: series,
			Anchor: in.Anchor,
			Title:  in.Title,
			XAxis:  in.XAxis,
			YAxis:  in.YAxis,
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			return engine.CreateChart(f, in.Sheet, spec)
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := ChartOutput{Path: path, Sheet: in.Sheet, Type: in.Type, Anchor: in.Anchor, Series: len(series)}
		return structured(out, fmt.Sprintf("%s chart with %d series anchored at %s", in.Type, len(series), in.Anchor)), nil
	}))
	reg.Register(createChart)

	createPivot := mcp.NewTool(
		"create_pivot_table",
		mcp.WithDescription("Aggregate a source range into a rectangular grid (sum, count, average, min, max) grouped by row and column fields in first-seen order; the grid is a static snapshot"),
		mcp.WithInputSchema[PivotInput](),
		mcp.WithOutputSchema[PivotOutput](),
	)
	s.AddTool(createPivot, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in PivotInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		values := make([]engine.ValueField, len(in.Values))
		for i, vf := range in.Values {
			values[i] = engine.ValueField{Field: vf.Field, Agg: engine.Aggregation(vf.Agg)}
		}
		spec := engine.PivotSpec{
			Source:      in.Source,
			RowFields:   in.RowFields,
			ColFields:   in.ColumnFields,
			Values:      values,
			Filters:     in.Filters,
			TargetSheet: in.TargetSheet,
			Anchor:      in.Anchor,
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var res engine.PivotResult
		err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
			res, err = engine.BuildPivot(f, in.Sheet, spec)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := PivotOutput{
			Path:       path,
			Source:     res.Source,
			Output:     res.Output,
			RowGroups:  res.RowGroups,
			ColGroups:  res.ColGroups,
			SourceRows: res.SourceRows,
		}
		summary := fmt.Sprintf("pivot %s from %d source row(s): %d row group(s) x %d col group(s)",
			res.Output, res.SourceRows, res.RowGroups, res.ColGroups)
		return structured(out, summary), nil
	}))
	reg.Register(createPivot)
}

// tableMutation runs one table mutation inside an update session and shapes
// the shared output payload.
func tableMutation(ctx context.Context, d Deps, inPath string, fn func(*excelize.File) (engine.Table, error), summaryFmt string) (*mcp.CallToolResult, error) {
	path, err := d.Policy.Resolve(inPath)
	if err != nil {
		return xlerr.Result(err), nil
	}
	var tbl engine.Table
	err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
		tbl, err = fn(f)
		return err
	})
	if err != nil {
		return xlerr.Result(err), nil
	}
	out := TableOutput{Path: path, Sheet: tbl.Sheet, Name: tbl.Name, Range: tbl.Range, Style: tbl.Style, Columns: tbl.Columns}
	return structured(out, fmt.Sprintf(summaryFmt, tbl.Name, tbl.Range)), nil
}
