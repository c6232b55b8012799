package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chartchat/assets"
	"chartchat/logx"
	"chartchat/model"
)

// ErrUnknownTool reports a tool name outside the recognized set. It is fatal
// to the turn: silently ignoring it would hide protocol drift between client
// and model.
var ErrUnknownTool = errors.New("unknown tool")

// Executor runs tool calls against the session's ambient context. It holds
// no mutable state; executions are independent and may run concurrently.
type Executor struct {
	assets *assets.Client
	params model.StudyParams
}

func NewExecutor(assetClient *assets.Client, params model.StudyParams) *Executor {
	return &Executor{
		assets: assetClient,
		params: params,
	}
}

// Execute runs a single tool call and returns its result keyed by the call
// id. Asset-fetch failures propagate so the turn aborts rather than feeding
// the model fabricated context.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error) {
	logx.Debug().Str("tool", call.Name).Str("call_id", call.CallID).Msg("executing tool call")

	switch call.Name {
	case ToolGetDatasetCSV:
		csv, err := e.assets.DatasetCSV(ctx, e.params)
		if err != nil {
			return model.ToolResult{}, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		return e.result(call, map[string]string{"csv": csv}, "")

	case ToolGetInstructions:
		// Instructions only exist in instructions mode; in alt-text mode
		// the tool answers empty without a fetch.
		if e.params.ContentType != model.ContentInstructions {
			return e.result(call, map[string]string{"instructions": ""}, "")
		}
		instructions, err := e.assets.Instructions(ctx, e.params)
		if err != nil {
			return model.ToolResult{}, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		return e.result(call, map[string]string{"instructions": instructions}, "")

	case ToolGetChartImageFileID:
		fileID := ChartImageFileID(e.params)
		return e.result(call, map[string]string{"file_id": fileID}, fileID)

	default:
		return model.ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
}

func (e *Executor) result(call model.ToolCall, output map[string]string, imageFileID string) (model.ToolResult, error) {
	encoded, err := json.Marshal(output)
	if err != nil {
		return model.ToolResult{}, fmt.Errorf("tool %s: failed to encode output: %w", call.Name, err)
	}
	return model.ToolResult{
		Name:        call.Name,
		CallID:      call.CallID,
		Output:      string(encoded),
		ImageFileID: imageFileID,
	}, nil
}
