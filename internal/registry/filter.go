package registry

import (
	"context"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// EnvEnableWrites toggles discovery of mutating tools.
const EnvEnableWrites = "SHEETFORGE_ENABLE_WRITES"

// readOnlyTools never mutate a workbook and stay discoverable regardless of
// the write toggle.
var readOnlyTools = map[string]struct{}{
	"get_workbook_metadata": {},
	"read_range":            {},
	"validate_range":        {},
	"validate_formula":      {},
}

// WriteToolFilter hides mutating tools unless explicitly enabled.
// Enable by setting environment variable SHEETFORGE_ENABLE_WRITES=true.
type WriteToolFilter struct {
	allowWrites bool
}

// NewWriteToolFilterFromEnv constructs a filter using SHEETFORGE_ENABLE_WRITES.
func NewWriteToolFilterFromEnv() *WriteToolFilter {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvEnableWrites)))
	allow := v == "1" || v == "true" || v == "yes"
	return &WriteToolFilter{allowWrites: allow}
}

// FilterTools implements server tool filtering semantics. When writes are
// disabled, only the read-only allowlist remains discoverable.
func (f *WriteToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowWrites {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if _, ok := readOnlyTools[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}
