package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

// ConvertToResponses converts MCP tool definitions to Responses API function
// tools.
//
// MCP Tool structure:
//
//	{
//	  "name": "get_dataset_csv",
//	  "description": "Returns the raw CSV data...",
//	  "inputSchema": {"type": "object", "properties": {...}, "required": [...]}
//	}
//
// Responses function tool structure:
//
//	{
//	  "type": "function",
//	  "name": "get_dataset_csv",
//	  "description": "Returns the raw CSV data...",
//	  "parameters": {...}
//	}
//
// Both schemas are JSON Schema; the conversion is structural.
func ConvertToResponses(mcpTools []mcp.Tool) []responses.ToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]responses.ToolUnionParam, len(mcpTools))

	for i, tool := range mcpTools {
		params := map[string]any{
			"type":       tool.InputSchema.Type,
			"properties": tool.InputSchema.Properties,
		}

		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}

		if tool.InputSchema.Defs != nil {
			params["$defs"] = tool.InputSchema.Defs
		}

		result[i] = responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
				Strict:      openai.Bool(false),
			},
		}
	}

	return result
}
