package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolMiddlewarePassesThrough(t *testing.T) {
	limits := NewLimits(2, 1)
	mw := NewMiddleware(NewController(limits))

	wrapped := mw.ToolMiddleware(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("done"), nil
	})

	res, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "done", resultText(t, res))
}

func TestToolMiddlewareReleasesSlot(t *testing.T) {
	limits := NewLimits(1, 1)
	mw := NewMiddleware(NewController(limits))

	wrapped := mw.ToolMiddleware(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})

	// Sequential calls through a single slot prove the slot is returned.
	for i := 0; i < 3; i++ {
		res, err := wrapped(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)
		require.False(t, res.IsError)
	}
}

func TestToolMiddlewareBusyWhenSaturated(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.AcquireRequestTimeout = 10 * time.Millisecond
	ctrl := NewController(limits)

	require.NoError(t, ctrl.AcquireRequest(context.Background()))
	defer ctrl.ReleaseRequest()

	wrapped := NewMiddleware(ctrl).ToolMiddleware(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t.Fatal("handler must not run while saturated")
		return nil, nil
	})

	res, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(t, res), "BUSY_RESOURCE")
}

func TestToolMiddlewareDeadline(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.OperationTimeout = 20 * time.Millisecond
	wrapped := NewMiddleware(NewController(limits)).ToolMiddleware(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	res, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(t, res), "TIMEOUT")
}
