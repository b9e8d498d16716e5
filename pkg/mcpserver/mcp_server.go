package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/parthrao/sqlite-mcp/pkg/gateway"
)

const instructions = `Tools for SQLite databases stored in the server's data directory.
Start with list_databases, list_tables and get_schema. execute_sql runs one
statement per call; pass values through params with ? placeholders.`

type Config struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

// New builds an MCP server exposing every gateway operation as a tool, plus
// the query prompts and reference documents.
func New(gw *gateway.Gateway, cfg Config) *server.MCPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcpserver")

	if cfg.Name == "" {
		cfg.Name = "SQLite"
	}
	if cfg.Version == "" {
		cfg.Version = "v0.0.1"
	}

	s := &handlers{
		gateway: gw,
	}

	srv := server.NewMCPServer(cfg.Name, cfg.Version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithToolHandlerMiddleware(logCalls(logger)),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	for _, op := range gw.Operations() {
		srv.AddTool(toolFor(op), s.invokeHandler(op.Name))
		logger.Debug("registered tool", "tool", op.Name)
	}
	addPrompts(srv)
	addResources(srv)

	return srv
}

// toolFor derives the MCP tool definition from the operation's params.
func toolFor(op gateway.Operation) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(op.Description),
		WithOutputSchema(gateway.Result{}),
	}
	switch {
	case op.ReadOnly:
		opts = append(opts,
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
		)
	case op.Destructive:
		opts = append(opts,
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(true),
		)
	default:
		opts = append(opts,
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
		)
	}

	for _, p := range op.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}

		switch p.Type {
		case gateway.TypeString:
			if p.Default != "" {
				props = append(props, mcp.DefaultString(p.Default))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		case gateway.TypeStringMap:
			props = append(props, mcp.AdditionalProperties(map[string]any{"type": "string"}))
			opts = append(opts, mcp.WithObject(p.Name, props...))
		case gateway.TypeValueList:
			props = append(props, mcp.Items(map[string]any{
				"type": []string{"string", "number", "boolean", "null"},
			}))
			opts = append(opts, mcp.WithArray(p.Name, props...))
		}
	}

	return mcp.NewTool(op.Name, opts...)
}

type handlers struct {
	gateway *gateway.Gateway
}

// invokeHandler runs one operation. Failures come back as an error result
// carrying the same envelope, never as a Go error.
func (s *handlers) invokeHandler(op string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.gateway.Invoke(ctx, op, req.GetArguments())
		if err != nil {
			res = s.gateway.Failure(op, err)
		}
		return toolResult(res), nil
	}
}

func toolResult(res gateway.Result) *mcp.CallToolResult {
	text, err := json.Marshal(res)
	if err != nil {
		return mcp.NewToolResultErrorf("failed to encode result: %v", err)
	}
	out := mcp.NewToolResultStructured(res, string(text))
	out.IsError = !res.Success
	return out
}
