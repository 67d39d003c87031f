package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Middleware wraps tool handlers with the Controller's guardrails: a bounded
// wait for a request slot and a per-call execution deadline.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

// ToolMiddleware plugs into mcp-go's tool handler chain. Saturation and
// deadline conditions surface as tool-level errors so clients can back off
// and retry instead of treating them as protocol failures.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		release, err := m.reserve(ctx)
		if err != nil {
			msg := fmt.Sprintf("BUSY_RESOURCE: request limit reached (max=%d); retry shortly", m.ctrl.limits.MaxConcurrentRequests)
			return mcp.NewToolResultError(msg), nil
		}
		defer release()

		callCtx := ctx
		if d := m.ctrl.limits.OperationTimeout; d > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		res, err := next(callCtx, req)
		if errors.Is(err, context.DeadlineExceeded) {
			return mcp.NewToolResultError("TIMEOUT: operation exceeded the configured time limit"), nil
		}
		return res, err
	}
}

// reserve takes a request slot, waiting at most AcquireRequestTimeout. The
// returned function releases the slot.
func (m *Middleware) reserve(ctx context.Context) (func(), error) {
	if d := m.ctrl.limits.AcquireRequestTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err := m.ctrl.AcquireRequest(ctx); err != nil {
		return nil, err
	}
	return m.ctrl.ReleaseRequest, nil
}
