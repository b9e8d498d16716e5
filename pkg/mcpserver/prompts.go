package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed content
var content embed.FS

var promptTemplates = template.Must(template.ParseFS(content, "content/*.md.tmpl"))

type promptArg struct {
	name        string
	description string
	required    bool
}

type prompt struct {
	name        string
	description string
	template    string
	args        []promptArg
	// data maps the request arguments onto the template's fields.
	data func(args map[string]string) any
}

var prompts = []prompt{
	{
		name:        "sqlite_query_assistant",
		description: "Guidance for writing SQLite queries for a task",
		template:    "query_assistant.md.tmpl",
		args: []promptArg{
			{name: "task_description", description: "What the query should accomplish", required: true},
			{name: "table_info", description: "Tables and columns available, e.g. get_schema output"},
		},
		data: func(args map[string]string) any {
			return struct{ TaskDescription, TableInfo string }{
				TaskDescription: args["task_description"],
				TableInfo:       args["table_info"],
			}
		},
	},
	{
		name:        "database_design_helper",
		description: "Guidance for designing or evolving a SQLite schema",
		template:    "design_helper.md.tmpl",
		args: []promptArg{
			{name: "requirements", description: "What the database has to store and serve", required: true},
			{name: "existing_schema", description: "Current schema, if there is one"},
		},
		data: func(args map[string]string) any {
			return struct{ Requirements, ExistingSchema string }{
				Requirements:   args["requirements"],
				ExistingSchema: args["existing_schema"],
			}
		},
	},
}

func addPrompts(srv *server.MCPServer) {
	for _, p := range prompts {
		opts := []mcp.PromptOption{mcp.WithPromptDescription(p.description)}
		for _, a := range p.args {
			argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(a.description)}
			if a.required {
				argOpts = append(argOpts, mcp.RequiredArgument())
			}
			opts = append(opts, mcp.WithArgument(a.name, argOpts...))
		}
		srv.AddPrompt(mcp.NewPrompt(p.name, opts...), p.handler)
	}
}

func (p prompt) handler(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	for _, a := range p.args {
		if a.required && args[a.name] == "" {
			return nil, fmt.Errorf("missing required argument %q", a.name)
		}
	}

	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, p.template, p.data(args)); err != nil {
		return nil, fmt.Errorf("failed to render prompt %s: %w", p.name, err)
	}

	return mcp.NewGetPromptResult(p.description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(buf.String())),
	}), nil
}
