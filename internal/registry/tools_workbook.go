package registry

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xuri/excelize/v2"

	"github.com/sheetforge/sheetforge/internal/engine"
	"github.com/sheetforge/sheetforge/pkg/validation"
	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// --- Input / Output schemas ---

// CreateWorkbookInput defines parameters for creating an empty workbook file.
type CreateWorkbookInput struct {
	Path string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Destination path inside an allowed directory"`
}

// CreateWorkbookOutput reports the created file.
type CreateWorkbookOutput struct {
	Path   string `json:"path" jsonschema_description:"Resolved workbook path"`
	Sheets int    `json:"sheets" jsonschema_description:"Number of sheets in the new workbook"`
}

// MetadataInput defines parameters for workbook structure discovery.
type MetadataInput struct {
	Path          string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path inside an allowed directory"`
	IncludeRanges bool   `json:"include_ranges,omitempty" jsonschema_description:"Include used ranges, tables, and merged cells per sheet"`
}

// MetadataOutput summarizes workbook structure without cell data.
type MetadataOutput struct {
	Path   string             `json:"path"`
	Sheets []engine.SheetInfo `json:"sheets"`
}

// WorksheetInput names a workbook and a sheet for lifecycle operations.
type WorksheetInput struct {
	Path  string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Worksheet name"`
}

// RenameWorksheetInput defines parameters for renaming a worksheet.
type RenameWorksheetInput struct {
	Path    string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet   string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Current worksheet name"`
	NewName string `json:"new_name" validate:"required,sheetname" jsonschema_description:"New worksheet name"`
}

// CopyWorksheetInput defines parameters for duplicating a worksheet.
type CopyWorksheetInput struct {
	Path   string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Workbook path"`
	Sheet  string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Source worksheet name"`
	Target string `json:"target" validate:"required,sheetname" jsonschema_description:"Name for the copy"`
}

// SheetOpOutput reports a sheet-level mutation.
type SheetOpOutput struct {
	Path   string `json:"path"`
	Sheet  string `json:"sheet"`
	Sheets int    `json:"sheets" jsonschema_description:"Sheet count after the operation"`
}

// RegisterWorkbookTools wires workbook and worksheet lifecycle tools.
func RegisterWorkbookTools(s *server.MCPServer, reg *Registry, d Deps) {
	createWorkbook := mcp.NewTool(
		"create_workbook",
		mcp.WithDescription("Create a new empty workbook file at a path inside an allowed directory; fails if the file already exists"),
		mcp.WithInputSchema[CreateWorkbookInput](),
		mcp.WithOutputSchema[CreateWorkbookOutput](),
	)
	s.AddTool(createWorkbook, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CreateWorkbookInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		if err := d.Store.Create(ctx, path); err != nil {
			return xlerr.Result(err), nil
		}
		out := CreateWorkbookOutput{Path: path, Sheets: 1}
		return structured(out, fmt.Sprintf("created workbook %s", path)), nil
	}))
	reg.Register(createWorkbook)

	metadata := mcp.NewTool(
		"get_workbook_metadata",
		mcp.WithDescription("Return workbook structure: sheet names, dimensions, and optionally used ranges, tables, and merged cells (no cell data)"),
		mcp.WithInputSchema[MetadataInput](),
		mcp.WithOutputSchema[MetadataOutput](),
	)
	s.AddTool(metadata, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in MetadataInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		path, err := d.Policy.Resolve(in.Path)
		if err != nil {
			return xlerr.Result(err), nil
		}
		var info engine.WorkbookInfo
		err = d.Store.View(ctx, path, func(f *excelize.File) error {
			info, err = engine.Metadata(f, in.IncludeRanges)
			return err
		})
		if err != nil {
			return xlerr.Result(err), nil
		}
		out := MetadataOutput{Path: path, Sheets: info.Sheets}
		return structured(out, fmt.Sprintf("workbook has %d sheet(s)", len(info.Sheets))), nil
	}))
	reg.Register(metadata)

	createSheet := mcp.NewTool(
		"create_worksheet",
		mcp.WithDescription("Add a new empty worksheet to a workbook; sheet names are unique case-insensitively"),
		mcp.WithInputSchema[WorksheetInput](),
		mcp.WithOutputSchema[SheetOpOutput](),
	)
	s.AddTool(createSheet, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in WorksheetInput) (*mcp.CallToolResult, error) {
		return sheetMutation(ctx, d, in.Path, in.Sheet, func(f *excelize.File) error {
			_, err := engine.CreateSheet(f, in.Sheet)
			return err
		}, "created worksheet %q")
	}))
	reg.Register(createSheet)

	renameSheet := mcp.NewTool(
		"rename_worksheet",
		mcp.WithDescription("Rename a worksheet, preserving its contents and attached objects"),
		mcp.WithInputSchema[RenameWorksheetInput](),
		mcp.WithOutputSchema[SheetOpOutput](),
	)
	s.AddTool(renameSheet, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RenameWorksheetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		return sheetMutation(ctx, d, in.Path, in.NewName, func(f *excelize.File) error {
			return engine.RenameSheet(f, in.Sheet, in.NewName)
		}, "renamed worksheet to %q")
	}))
	reg.Register(renameSheet)

	deleteSheet := mcp.NewTool(
		"delete_worksheet",
		mcp.WithDescription("Delete a worksheet and everything on it; the last remaining sheet cannot be deleted"),
		mcp.WithInputSchema[WorksheetInput](),
		mcp.WithOutputSchema[SheetOpOutput](),
	)
	s.AddTool(deleteSheet, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in WorksheetInput) (*mcp.CallToolResult, error) {
		return sheetMutation(ctx, d, in.Path, in.Sheet, func(f *excelize.File) error {
			return engine.DeleteSheet(f, in.Sheet)
		}, "deleted worksheet %q")
	}))
	reg.Register(deleteSheet)

	copySheet := mcp.NewTool(
		"copy_worksheet",
		mcp.WithDescription("Duplicate a worksheet within the same workbook under a new name"),
		mcp.WithInputSchema[CopyWorksheetInput](),
		mcp.WithOutputSchema[SheetOpOutput](),
	)
	s.AddTool(copySheet, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CopyWorksheetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		return sheetMutation(ctx, d, in.Path, in.Target, func(f *excelize.File) error {
			return engine.CopySheet(f, in.Sheet, in.Target)
		}, "copied worksheet to %q")
	}))
	reg.Register(copySheet)
}

// sheetMutation runs one sheet-level mutation inside an update session and
// shapes the shared output payload.
func sheetMutation(ctx context.Context, d Deps, inPath, sheet string, fn func(*excelize.File) error, summaryFmt string) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(struct {
		Path  string `validate:"required,filepath_ext"`
		Sheet string `validate:"required,sheetname"`
	}{inPath, sheet}); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	path, err := d.Policy.Resolve(inPath)
	if err != nil {
		return xlerr.Result(err), nil
	}
	sheets := 0
	err = d.Store.Update(ctx, path, false, func(f *excelize.File) error {
		if err := fn(f); err != nil {
			return err
		}
		sheets = len(f.GetSheetList())
		return nil
	})
	if err != nil {
		return xlerr.Result(err), nil
	}
	out := SheetOpOutput{Path: path, Sheet: sheet, Sheets: sheets}
	return structured(out, fmt.Sprintf(summaryFmt, sheet)), nil
}
