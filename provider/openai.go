package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"chartchat/logx"
	"chartchat/model"
	"chartchat/tools"
)

// OpenAIClient implements Client against the OpenAI Responses API using the
// official SDK. The SDK owns transport, auth and request encoding; the
// streaming call hands its raw body to DecodeEventStream.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a Responses API client.
//
// Parameters:
//   - baseURL: API base URL (default: "https://api.openai.com/v1")
//   - apiKey: API key (required)
//   - model: model name (default: "gpt-4o")
//
// Returns an error if the API key is missing.
func NewOpenAIClient(baseURL, apiKey, model string) (*OpenAIClient, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIClient{
		client: client,
		model:  model,
	}, nil
}

// Decide implements Client.Decide with a non-streaming call. Function-call
// items are collected in the order the model returned them.
func (c *OpenAIClient) Decide(ctx context.Context, req DecideRequest) (*Decision, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(c.model),
		Instructions: openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertInputItems(req.Input),
		},
		Temperature:     openai.Float(0),
		MaxOutputTokens: openai.Int(req.MaxOutputTokens),
		Tools:           tools.ConvertToResponses(req.Tools),
		ToolChoice: responses.ResponseNewParamsToolChoiceUnion{
			OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsAuto),
		},
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tool decision request failed: %w", err)
	}

	decision := &Decision{ResponseID: resp.ID}
	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		call := item.AsFunctionCall()
		decision.ToolCalls = append(decision.ToolCalls, model.ToolCall{
			Name:      call.Name,
			CallID:    call.CallID,
			Arguments: call.Arguments,
		})
	}

	logx.Debug().Str("response_id", decision.ResponseID).
		Int("tool_calls", len(decision.ToolCalls)).Msg("tool decision completed")
	return decision, nil
}

// Stream implements Client.Stream. The request goes through the SDK with the
// raw response body handed back untouched, so the event framing is decoded
// here rather than inside the SDK.
func (c *OpenAIClient) Stream(ctx context.Context, req StreamRequest, onDelta func(delta string)) (*StreamResult, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(c.model),
		Instructions: openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertInputItems(req.Input),
		},
		Temperature:     openai.Float(req.Temperature),
		MaxOutputTokens: openai.Int(req.MaxOutputTokens),
		Tools:           tools.ConvertToResponses(req.Tools),
		ToolChoice: responses.ResponseNewParamsToolChoiceUnion{
			OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsAuto),
		},
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}

	var httpRes *http.Response
	err := c.client.Post(ctx, "responses", params, nil,
		option.WithJSONSet("stream", true),
		option.WithHeaderAdd("Accept", "text/event-stream"),
		option.WithResponseBodyInto(&httpRes),
	)
	if err != nil {
		return nil, fmt.Errorf("streaming request failed: %w", err)
	}
	defer httpRes.Body.Close()

	var answer strings.Builder
	var responseID string

	err = DecodeEventStream(httpRes.Body, func(event StreamEvent) {
		switch event.Type {
		case eventResponseCreated:
			if event.Response.ID != "" {
				responseID = event.Response.ID
			}
		case eventOutputTextDelta:
			answer.WriteString(event.Delta)
			if onDelta != nil {
				onDelta(event.Delta)
			}
		case eventOutputTextDone, eventOutputItemDone, eventResponseCompleted:
			if event.Response.ID != "" {
				responseID = event.Response.ID
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return &StreamResult{ResponseID: responseID, Text: answer.String()}, nil
}

// Classify implements Client.Classify. The call is deliberately outside the
// conversation chain: no previous-response id in, none captured out.
func (c *OpenAIClient) Classify(ctx context.Context, instructions, input string) (string, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(c.model),
		Instructions: openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(input),
		},
		Temperature:     openai.Float(0),
		MaxOutputTokens: openai.Int(16),
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}

	return resp.OutputText(), nil
}

// convertInputItems converts neutral input items to Responses API input
// items.
func convertInputItems(items []InputItem) responses.ResponseInputParam {
	result := make(responses.ResponseInputParam, 0, len(items))

	for _, item := range items {
		switch item.Kind {
		case InputText:
			role := responses.EasyInputMessageRoleUser
			if item.Role == model.RoleSystem {
				role = responses.EasyInputMessageRoleSystem
			}
			result = append(result, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role: role,
					Content: responses.EasyInputMessageContentUnionParam{
						OfString: openai.String(item.Text),
					},
				},
			})

		case InputFunctionResult:
			result = append(result, responses.ResponseInputItemParamOfFunctionCallOutput(item.CallID, item.Output))

		case InputImage:
			result = append(result, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role: responses.EasyInputMessageRoleUser,
					Content: responses.EasyInputMessageContentUnionParam{
						OfInputItemContentList: responses.ResponseInputMessageContentListParam{
							responses.ResponseInputContentUnionParam{
								OfInputImage: &responses.ResponseInputImageParam{
									Detail: responses.ResponseInputImageDetailAuto,
									FileID: openai.String(item.FileID),
								},
							},
						},
					},
				},
			})
		}
	}

	return result
}
