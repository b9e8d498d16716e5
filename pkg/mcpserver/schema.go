package mcpserver

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
)

// WithOutputSchema is mcp.WithOutputSchema for a value instead of a type
// parameter.
func WithOutputSchema(zero any) mcp.ToolOption {
	return func(t *mcp.Tool) {
		reflector := jsonschema.Reflector{
			DoNotReference:            true,
			Anonymous:                 true,
			AllowAdditionalProperties: true,
		}
		schema := reflector.Reflect(zero)
		schema.Version = ""

		raw, err := json.Marshal(schema)
		if err != nil {
			return
		}
		t.RawOutputSchema = json.RawMessage(raw)
	}
}
