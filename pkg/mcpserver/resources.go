package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const markdownMIME = "text/markdown"

type document struct {
	uri         string
	name        string
	description string
	file        string
}

var documents = []document{
	{
		uri:         "sqlite://docs/quick-reference",
		name:        "SQLite Quick Reference",
		description: "Everyday SQLite statements, functions and the tools on this server",
		file:        "content/quick_reference.md",
	},
	{
		uri:         "sqlite://examples/common-queries",
		name:        "Common Query Examples",
		description: "Query patterns for paging, aggregation, joins, CTEs and JSON",
		file:        "content/common_queries.md",
	},
	{
		uri:         "sqlite://docs/best-practices",
		name:        "SQLite Best Practices",
		description: "Safety, schema, indexing and maintenance advice",
		file:        "content/best_practices.md",
	},
}

func addResources(srv *server.MCPServer) {
	for _, d := range documents {
		srv.AddResource(
			mcp.NewResource(d.uri, d.name,
				mcp.WithResourceDescription(d.description),
				mcp.WithMIMEType(markdownMIME),
			),
			d.handler,
		)
	}
}

func (d document) handler(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := content.ReadFile(d.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      d.uri,
			MIMEType: markdownMIME,
			Text:     string(text),
		},
	}, nil
}
