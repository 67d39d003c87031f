package registry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func TestRegistrySortedDiscovery(t *testing.T) {
	reg := New()
	reg.Register(mcp.NewTool("write_range"))
	reg.Register(mcp.NewTool("create_chart"))
	reg.Register(mcp.NewTool("read_range"))

	tools := reg.Tools()

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	require.Equal(t, []string{"create_chart", "read_range", "write_range"}, names)

	_, ok := reg.Get("read_range")
	require.True(t, ok)
	_, ok = reg.Get("nope")
	require.False(t, ok)
}

func TestWriteToolFilterHidesMutatingTools(t *testing.T) {
	all := []mcp.Tool{
		mcp.NewTool("read_range"),
		mcp.NewTool("write_range"),
		mcp.NewTool("create_pivot_table"),
		mcp.NewTool("get_workbook_metadata"),
		mcp.NewTool("validate_formula"),
	}

	denied := &WriteToolFilter{allowWrites: false}
	got := denied.FilterTools(context.Background(), all)
	names := make([]string, len(got))
	for i, tool := range got {
		names[i] = tool.Name
	}
	require.ElementsMatch(t, []string{"read_range", "get_workbook_metadata", "validate_formula"}, names)

	allowed := &WriteToolFilter{allowWrites: true}
	require.Len(t, allowed.FilterTools(context.Background(), all), len(all))
}

func TestWriteToolFilterFromEnv(t *testing.T) {
	t.Setenv(EnvEnableWrites, "true")
	require.True(t, NewWriteToolFilterFromEnv().allowWrites)

	t.Setenv(EnvEnableWrites, "")
	require.False(t, NewWriteToolFilterFromEnv().allowWrites)
}
