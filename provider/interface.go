// Package provider implements access to the hosted model API.
//
// The conversation protocol has two legs per turn: a cheap non-streaming
// decision call that lets the model request tool calls, and a streaming call
// that produces the narrative answer. Both continue the same server-side
// conversation through a previous-response identifier, so the client never
// re-sends full history.
package provider

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chartchat/model"
)

// InputKind discriminates the item kinds a request can carry.
type InputKind int

const (
	// InputText is a plain message with a role.
	InputText InputKind = iota
	// InputFunctionResult feeds a tool output back, keyed by call id.
	InputFunctionResult
	// InputImage attaches a previously uploaded chart image by file id.
	InputImage
)

// InputItem is a provider-agnostic request input item. Exactly the fields
// for its Kind are set.
type InputItem struct {
	Kind   InputKind
	Role   string
	Text   string
	CallID string
	Output string
	FileID string
}

// UserText builds a user-role text item.
func UserText(text string) InputItem {
	return InputItem{Kind: InputText, Role: model.RoleUser, Text: text}
}

// SystemText builds a system-role text item (hidden background context).
func SystemText(text string) InputItem {
	return InputItem{Kind: InputText, Role: model.RoleSystem, Text: text}
}

// FunctionResult builds a function-result item keyed to its originating call.
func FunctionResult(callID, output string) InputItem {
	return InputItem{Kind: InputFunctionResult, CallID: callID, Output: output}
}

// ImageReference builds an input item carrying a hosted image file id.
func ImageReference(fileID string) InputItem {
	return InputItem{Kind: InputImage, FileID: fileID}
}

// DecideRequest is the non-streaming tool-decision probe. The output-token
// ceiling keeps the probe cheap: its only job is to surface tool-call intent.
type DecideRequest struct {
	Instructions       string
	Tools              []mcptypes.Tool
	Input              []InputItem
	PreviousResponseID string
	MaxOutputTokens    int64
}

// Decision is the probe's outcome. ResponseID is always set on success, even
// when no tools were requested, and must replace the stored linkage.
type Decision struct {
	ResponseID string
	ToolCalls  []model.ToolCall
}

// StreamRequest is the streaming answer call.
type StreamRequest struct {
	Instructions       string
	Tools              []mcptypes.Tool
	Input              []InputItem
	PreviousResponseID string
	Temperature        float64
	MaxOutputTokens    int64
}

// StreamResult is the assembled outcome of a completed stream. ResponseID may
// be empty when the stream never surfaced one; callers keep their previous
// linkage in that case.
type StreamResult struct {
	ResponseID string
	Text       string
}

// Client is the model-API surface the orchestrator depends on.
type Client interface {
	// Decide runs the tool-decision probe.
	Decide(ctx context.Context, req DecideRequest) (*Decision, error)

	// Stream runs the streaming answer call. onDelta is invoked once per
	// text fragment, in order, before Stream returns.
	Stream(ctx context.Context, req StreamRequest, onDelta func(delta string)) (*StreamResult, error)

	// Classify runs a small zero-temperature classification call outside
	// the conversation chain and returns the raw answer text.
	Classify(ctx context.Context, instructions, input string) (string, error)
}
