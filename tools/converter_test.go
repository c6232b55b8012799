package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestConvertToResponses(t *testing.T) {
	tests := []struct {
		name  string
		input []mcp.Tool
		count int
	}{
		{"nil input", nil, 0},
		{"empty input", []mcp.Tool{}, 0},
		{"ambient tool set", Definitions(), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToResponses(tt.input)
			if tt.count == 0 {
				if result != nil {
					t.Fatalf("expected nil, got %d tools", len(result))
				}
				return
			}
			if len(result) != tt.count {
				t.Fatalf("tool count: got %d, want %d", len(result), tt.count)
			}

			for i, tool := range result {
				if tool.OfFunction == nil {
					t.Fatalf("tool %d: no function definition", i)
				}
				if tool.OfFunction.Name != tt.input[i].Name {
					t.Errorf("tool %d name: got %q, want %q", i, tool.OfFunction.Name, tt.input[i].Name)
				}
				params := tool.OfFunction.Parameters
				if params["type"] != "object" {
					t.Errorf("tool %d parameters type: got %v, want object", i, params["type"])
				}
			}
		})
	}
}

func TestDefinitionsNames(t *testing.T) {
	defs := Definitions()
	expected := []string{ToolGetDatasetCSV, ToolGetInstructions, ToolGetChartImageFileID}
	if len(defs) != len(expected) {
		t.Fatalf("definition count: got %d, want %d", len(defs), len(expected))
	}
	for i, name := range expected {
		if defs[i].Name != name {
			t.Errorf("definition %d: got %q, want %q", i, defs[i].Name, name)
		}
	}
}
