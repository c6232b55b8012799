package model

// ToolCall is a model-issued request to run one of the ambient lookups
// before the final answer is generated. CallID keys the eventual result back
// to the request; Arguments is the raw JSON argument string (always "{}" for
// the ambient tools, which take no arguments).
type ToolCall struct {
	Name      string
	CallID    string
	Arguments string
}

// ToolResult is the executed outcome of a ToolCall. Output is a JSON string
// fed back to the model as a function result. ImageFileID is set only by the
// chart-image lookup, so the caller can attach the image itself to the
// follow-up request.
type ToolResult struct {
	Name        string
	CallID      string
	Output      string
	ImageFileID string
}
