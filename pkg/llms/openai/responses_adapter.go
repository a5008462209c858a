package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llms/openai/internal/openaiclient"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// Responses API output item types
const (
	outputTypeMessage      = "message"
	outputTypeFunctionCall = "function_call"
)

// responsesAdapter sends the transcript as typed input items.
// Tool calls are function_call items, results are function_call_output items
// correlated by call_id.
type responsesAdapter struct {
	client *openaiclient.Client
}

func (a *responsesAdapter) style() APIStyle {
	return APIStyleResponses
}

func (a *responsesAdapter) generate(ctx context.Context, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error) {
	input, err := toInputItems(messages)
	if err != nil {
		return nil, err
	}

	req := &responses.ResponseNewParams{
		Model: opts.Model,
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		Store: param.NewOpt(false),
	}
	if opts.MaxTokens > 0 {
		req.MaxOutputTokens = param.NewOpt(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		req.Temperature = param.NewOpt(opts.Temperature)
	}
	for _, tool := range opts.Tools {
		t, err := functionToolFromTool(tool)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to convert llms tool to openai tool")
		}
		req.Tools = append(req.Tools, t)
	}
	if len(req.Tools) > 0 {
		if opts.ParallelToolCalls != nil {
			req.ParallelToolCalls = param.NewOpt(*opts.ParallelToolCalls)
		}
		mode, fn := toolChoiceMode(opts.ToolChoice)
		switch {
		case fn != "":
			req.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfFunctionTool: &responses.ToolChoiceFunctionParam{Name: fn},
			}
		case mode != "":
			req.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptions(mode)),
			}
		}
	}

	resp, err := a.client.CreateResponse(ctx, req)
	if err != nil {
		return nil, err
	}

	choice := &llms.ContentChoice{
		StopReason: llms.StopReasonStop,
		GenerationInfo: generationInfo(
			resp.Usage.InputTokens,
			resp.Usage.OutputTokens,
			resp.Usage.TotalTokens,
			resp.Usage.OutputTokensDetails.ReasoningTokens,
		),
	}

	var text strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case outputTypeFunctionCall:
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   item.CallID,
				Type: string(openaiclient.ToolTypeFunction),
				FunctionCall: &llms.FunctionCall{
					Name:      item.Name,
					Arguments: item.Arguments.OfString,
				},
			})
		case outputTypeMessage:
			for _, c := range item.Content {
				if c.Type == "output_text" {
					text.WriteString(c.Text)
				}
			}
		}
	}
	choice.Content = text.String()

	switch {
	case len(choice.ToolCalls) > 0:
		choice.StopReason = llms.StopReasonToolCalls
	case resp.Status == responses.ResponseStatusIncomplete:
		choice.StopReason = llms.StopReasonLength
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func toInputItems(messages []llms.Message) (responses.ResponseInputParam, error) {
	res := make(responses.ResponseInputParam, 0, len(messages))
	for _, m := range messages {
		var role responses.EasyInputMessageRole
		switch m.Role {
		case llms.RoleSystem:
			role = responses.EasyInputMessageRoleSystem
		case llms.RoleDeveloper:
			role = responses.EasyInputMessageRoleDeveloper
		case llms.RoleHuman:
			role = responses.EasyInputMessageRoleUser
		case llms.RoleAI:
			role = responses.EasyInputMessageRoleAssistant
		case llms.RoleTool:
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "role %s", m.Role)
		}

		for _, p := range m.Parts {
			switch part := p.(type) {
			case llms.TextContent:
				if m.Role == llms.RoleTool {
					return nil, errors.Newf("unsupported part %T for role %s", p, m.Role)
				}
				res = append(res, responses.ResponseInputItemUnionParam{
					OfMessage: &responses.EasyInputMessageParam{
						Role: role,
						Content: responses.EasyInputMessageContentUnionParam{
							OfString: param.NewOpt(part.Text),
						},
					},
				})
			case llms.ToolCall:
				if m.Role != llms.RoleAI || part.FunctionCall == nil {
					return nil, errors.Newf("unexpected tool call %s for role %s", part.ID, m.Role)
				}
				res = append(res, responses.ResponseInputItemUnionParam{
					OfFunctionCall: &responses.ResponseFunctionToolCallParam{
						CallID:    part.ID,
						Name:      part.FunctionCall.Name,
						Arguments: part.FunctionCall.Arguments,
					},
				})
			case llms.ToolCallResponse:
				if m.Role != llms.RoleTool {
					return nil, errors.Newf("unexpected tool response %s for role %s", part.ToolCallID, m.Role)
				}
				res = append(res, responses.ResponseInputItemUnionParam{
					OfFunctionCallOutput: &responses.ResponseInputItemFunctionCallOutputParam{
						CallID: part.ToolCallID,
						Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{
							OfString: param.NewOpt(part.Content),
						},
					},
				})
			default:
				return nil, errors.Newf("unsupported part %T for role %s", p, m.Role)
			}
		}
	}
	return res, nil
}

func functionToolFromTool(t llms.Tool) (responses.ToolUnionParam, error) {
	if t.Type != string(openaiclient.ToolTypeFunction) || t.Function == nil {
		return responses.ToolUnionParam{}, errors.Newf("tool type %v not supported", t.Type)
	}

	params, err := schemaToMap(t.Function.Parameters)
	if err != nil {
		return responses.ToolUnionParam{}, err
	}

	fn := &responses.FunctionToolParam{
		Name:       t.Function.Name,
		Parameters: params,
		Strict:     param.NewOpt(t.Function.Strict),
	}
	if t.Function.Description != "" {
		fn.Description = param.NewOpt(t.Function.Description)
	}
	return responses.ToolUnionParam{OfFunction: fn}, nil
}

func schemaToMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	js, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}
	var m map[string]any
	if err := json.Unmarshal(js, &m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal schema")
	}
	return m, nil
}
