package mcpserver

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/parthrao/sqlite-mcp/pkg/gateway"
)

// logCalls records one line per tool call with its outcome and latency.
// Argument values are left out; they may hold user data.
func logCalls(logger *slog.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			l := logger.With(
				"tool", req.Params.Name,
				"call_id", uuid.NewString(),
			)
			l.Debug("tool call started", "arguments", argumentNames(req))

			start := time.Now()
			res, err := next(ctx, req)
			elapsed := time.Since(start).Milliseconds()

			switch {
			case err != nil:
				l.Error("tool call failed", "elapsed_ms", elapsed, "error", err)
			case res != nil && res.IsError:
				l.Warn("tool call returned error", "elapsed_ms", elapsed, "kind", errorKind(res))
			default:
				l.Info("tool call", "elapsed_ms", elapsed)
			}
			return res, err
		}
	}
}

func argumentNames(req mcp.CallToolRequest) []string {
	args := req.GetArguments()
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func errorKind(res *mcp.CallToolResult) string {
	r, ok := res.StructuredContent.(gateway.Result)
	if !ok || r.Error == nil {
		return "unknown"
	}
	return string(r.Error.Kind)
}
