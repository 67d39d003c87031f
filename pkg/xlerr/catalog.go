package xlerr

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Entry documents a kind's standard message, retry semantics, and next steps
// for MCP clients that surface only a message string.
type Entry struct {
	Kind      Kind
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical kinds to guidance. Messages can be overridden per error.
var catalog = map[Kind]Entry{
	Path:       {Kind: Path, Message: "path is outside the permitted roots", Retryable: false, NextSteps: []string{"Use a path inside an allowed directory", "Avoid '..' traversal segments"}},
	NotFound:   {Kind: NotFound, Message: "referenced entity not found", Retryable: true, NextSteps: []string{"Call get_workbook_metadata to list sheets and objects", "Check case and spacing"}},
	Range:      {Kind: Range, Message: "malformed or out-of-extent address", Retryable: true, NextSteps: []string{"Use A1-style references like Sheet1!A1:D50", "Bind ranges within the sheet's current extent"}},
	Validation: {Kind: Validation, Message: "rule or formula violation", Retryable: true, NextSteps: []string{"Correct the inputs and retry", "Formulas must start with '=' and balance parentheses and quotes"}},
	Format:     {Kind: Format, Message: "container could not be parsed or serialized", Retryable: false, NextSteps: []string{"Verify the file is a valid .xlsx workbook", "Provide a clean copy"}},
	Conflict:   {Kind: Conflict, Message: "name collision or overlapping range", Retryable: true, NextSteps: []string{"Pick a distinct name", "Move or shrink the range so objects do not overlap"}},
}

// normalize builds a standard error string including next steps.
// Format: "KIND: message" followed by a compact guidance tail.
func normalize(kind Kind, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[kind]
	if !ok {
		if base == "" {
			return string(kind)
		}
		return string(kind) + ": " + base
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return string(e.Kind) + ": " + base + guidance
}

// Result maps an engine error to an MCP tool error result, surfacing the
// kind and message verbatim plus catalog guidance.
func Result(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError(normalize(Format, ""))
	}
	kind := KindOf(err)
	msg := err.Error()
	// Strip the leading "KIND: " the Error type already prints.
	msg = strings.TrimPrefix(msg, string(kind)+": ")
	return mcp.NewToolResultError(normalize(kind, msg))
}

// ResultText returns an MCP error result for a kind and message without an
// underlying error value, for handler-level rejections.
func ResultText(kind Kind, msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(kind, msg))
}
