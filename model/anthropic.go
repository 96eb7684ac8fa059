package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// MinThinkingBudget is the lowest thinking-token budget the Anthropic API
// accepts; AgentConfig clamps to this floor (§3).
const MinThinkingBudget = 1024

// messagesAPI captures the subset of the SDK used here, so tests can supply a
// fake in place of a real *anthropic.Client.
type messagesAPI interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient adapts the content-block Request/Response model onto
// github.com/anthropics/anthropic-sdk-go's Messages API.
type AnthropicClient struct {
	msg messagesAPI
	log *zap.SugaredLogger
}

// NewAnthropicClient builds a client from resolved credentials. baseURL may
// be empty to use the SDK default. log may be nil.
func NewAnthropicClient(apiKey, baseURL string, log *zap.SugaredLogger) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := sdk.NewClient(opts...)
	return &AnthropicClient{msg: &c.Messages, log: log}
}

// Send issues one Messages.New call with retry and translates the result.
func (c *AnthropicClient) Send(ctx context.Context, req Request) (*Response, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := sendWithRetry(ctx, c.log, func() (*sdk.Message, error) {
		return c.msg.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(msg), nil
}

func buildParams(req Request) (sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return sdk.MessageNewParams{}, errors.New("anthropic: at least one message is required")
	}
	if req.MaxTokens <= 0 {
		return sdk.MessageNewParams{}, errors.New("anthropic: max_tokens must be positive")
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := encodeBlocks(m.Blocks)
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, sdk.NewUserMessage(blocks...))
		case RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(blocks...))
		default:
			return sdk.MessageNewParams{}, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	if req.ThinkingBudget > 0 {
		budget := req.ThinkingBudget
		if budget < MinThinkingBudget {
			budget = MinThinkingBudget
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(budget))
	}
	return params, nil
}

func encodeBlocks(blocks []Block) []sdk.ContentBlockParamUnion {
	out := make([]sdk.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			if b.Text != "" {
				out = append(out, sdk.NewTextBlock(b.Text))
			}
		case BlockToolUse:
			var input any
			if len(b.Input) > 0 {
				_ = json.Unmarshal(b.Input, &input)
			}
			out = append(out, sdk.NewToolUseBlock(b.ID, input, b.Name))
		case BlockToolResult:
			out = append(out, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
		case BlockThinking:
			// Extended thinking requires the signed thinking block that preceded
			// a tool_use to be replayed verbatim in the next request, or the API
			// rejects the turn. A thinking block with no signature (shouldn't
			// happen for a real response) can't be replayed faithfully, so it's
			// dropped rather than sent back unsigned.
			if b.Signature != "" {
				out = append(out, sdk.NewThinkingBlock(b.Signature, b.Text))
			}
		}
	}
	return out
}

func encodeTools(defs []ToolDef) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema sdk.ToolInputSchemaParam
		if len(d.InputSchema) > 0 {
			var raw map[string]any
			if err := json.Unmarshal(d.InputSchema, &raw); err == nil {
				if props, ok := raw["properties"]; ok {
					schema.Properties = props
				}
				if req, ok := raw["required"]; ok {
					if reqList, ok := req.([]any); ok {
						strs := make([]string, 0, len(reqList))
						for _, r := range reqList {
							if s, ok := r.(string); ok {
								strs = append(strs, s)
							}
						}
						schema.Required = strs
					}
				}
			}
		}
		out = append(out, sdk.ToolUnionParamOfTool(sdk.ToolParam{
			Name:        d.Name,
			Description: sdk.String(d.Description),
			InputSchema: schema,
		}))
	}
	return out
}

func translateResponse(msg *sdk.Message) *Response {
	resp := &Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				resp.Blocks = append(resp.Blocks, Text(block.Text))
			}
		case "thinking":
			if block.Thinking != "" {
				resp.Blocks = append(resp.Blocks, Thinking(block.Thinking, block.Signature))
			}
		case "tool_use":
			input, _ := json.Marshal(block.Input)
			resp.Blocks = append(resp.Blocks, ToolUse(block.ID, block.Name, input))
		}
	}
	resp.Usage = Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	return resp
}
