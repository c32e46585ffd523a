// Package backends wires the model registry's non-OpenAI-shaped vendors
// (Anthropic, Google, AWS Bedrock, Azure OpenAI) into provider.Provider
// implementations, each translating the shared message.Message model to
// and from its own SDK rather than speaking the hand-rolled OpenAI wire
// protocol in internal/provider.
package backends

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/provider"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// AnthropicProvider implements provider.Provider against the Messages
// API via anthropic-sdk-go.
type AnthropicProvider struct {
	client anthropic.Client
	model  model.Model
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   model.Model
}

func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: cfg.Model}, nil
}

func (p *AnthropicProvider) Model() model.Model { return p.model }

func (p *AnthropicProvider) SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (provider.Response, error) {
	params, err := p.buildParams(messages, systemPrompt, tools)
	if err != nil {
		return provider.Response{}, &provider.Error{Kind: provider.ErrTransport, Message: err.Error()}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return provider.Response{}, &provider.Error{Kind: provider.ErrAPI, Message: err.Error()}
	}

	var parts []message.ContentPart
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, message.NewText(variant.Text))
		case anthropic.ToolUseBlock:
			parts = append(parts, message.NewToolCall(variant.ID, variant.Name, string(variant.Input)))
		}
	}

	return provider.Response{
		Parts:        parts,
		FinishReason: mapStopReason(string(resp.StopReason)),
		Usage: message.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// StreamResponse issues one streaming Messages.NewStreaming call and
// folds Anthropic's content-block event sequence into the shared
// provider.Event shape (content_block_start/delta/stop, message_delta,
// message_stop), mirroring the block-by-block accumulation the teacher's
// processStream uses for its own chunk type.
func (p *AnthropicProvider) StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan provider.Event, error) {
	params, err := p.buildParams(messages, systemPrompt, tools)
	if err != nil {
		return nil, &provider.Error{Kind: provider.ErrTransport, Message: err.Error()}
	}

	out := make(chan provider.Event, 64)
	go func() {
		defer close(out)

		stream := p.client.Messages.NewStreaming(ctx, params)
		contentOpen := false
		var curToolID, curToolName string
		inTool := false
		sawToolUse := false
		var inputTokens, outputTokens int

		for stream.Next() {
			ev := stream.Current()
			switch ev.Type {
			case "content_block_start":
				block := ev.AsContentBlockStart().ContentBlock
				if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
					curToolID, curToolName = toolUse.ID, toolUse.Name
					inTool = true
					sawToolUse = true
					out <- provider.Event{Kind: provider.EventToolUseStart, ToolCallID: curToolID, ToolCallName: curToolName}
				}

			case "content_block_delta":
				delta := ev.AsContentBlockDelta().Delta
				switch delta.Type {
				case "text_delta":
					if !contentOpen {
						out <- provider.Event{Kind: provider.EventContentStart}
						contentOpen = true
					}
					out <- provider.Event{Kind: provider.EventContentDelta, Text: delta.Text}
				case "thinking_delta":
					out <- provider.Event{Kind: provider.EventThinkingDelta, Text: delta.Thinking}
				case "input_json_delta":
					if inTool {
						out <- provider.Event{Kind: provider.EventToolUseDelta, ToolCallID: curToolID, InputChunk: delta.PartialJSON}
					}
				}

			case "content_block_stop":
				if contentOpen {
					out <- provider.Event{Kind: provider.EventContentStop}
					contentOpen = false
				}
				if inTool {
					out <- provider.Event{Kind: provider.EventToolUseStop, ToolCallID: curToolID}
					inTool = false
				}

			case "message_delta":
				md := ev.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					outputTokens = int(md.Usage.OutputTokens)
				}

			case "message_start":
				ms := ev.AsMessageStart()
				if ms.Message.Usage.InputTokens > 0 {
					inputTokens = int(ms.Message.Usage.InputTokens)
				}

			case "message_stop":
				finish := message.FinishEndTurn
				if sawToolUse {
					finish = message.FinishToolUse
				}
				out <- provider.Event{Kind: provider.EventComplete,
					FinishReason: finish,
					Usage:        message.TokenUsage{InputTokens: inputTokens, OutputTokens: outputTokens}}
				return
			}
		}
		if err := stream.Err(); err != nil {
			out <- provider.Event{Kind: provider.EventError, Err: &provider.Error{Kind: provider.ErrStream, Message: err.Error()}}
		}
	}()
	return out, nil
}

func (p *AnthropicProvider) buildParams(messages []message.Message, systemPrompt string, tools []tool.Definition) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model.ID),
		MaxTokens: int64(p.model.MaxOutputTokens),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	for _, m := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, part := range m.Parts {
			switch part.Kind {
			case message.PartText:
				if part.Text != "" {
					content = append(content, anthropic.NewTextBlock(part.Text))
				}
			case message.PartToolResult:
				content = append(content, anthropic.NewToolResultBlock(part.ToolCallID, part.ToolResultContent, part.ToolResultIsError))
			case message.PartToolCall:
				var input map[string]any
				if part.ToolCallInput != "" {
					if err := json.Unmarshal([]byte(part.ToolCallInput), &input); err != nil {
						return anthropic.MessageNewParams{}, err
					}
				}
				content = append(content, anthropic.NewToolUseBlock(part.ToolCallID, input, part.ToolCallName))
			}
		}
		if len(content) == 0 {
			continue
		}
		if m.Role == message.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(content...))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(content...))
		}
	}

	if len(tools) > 0 {
		wireTools, err := convertTools(tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = wireTools
	}
	return params, nil
}

func convertTools(tools []tool.Definition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]any, len(t.Parameters))
		for name, schema := range t.Parameters {
			props[name] = map[string]any{"type": schema.Type, "description": schema.Description}
		}
		schema := anthropic.ToolInputSchemaParam{
			Properties: props,
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			continue
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func mapStopReason(reason string) message.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return message.FinishEndTurn
	case "max_tokens":
		return message.FinishMaxTokens
	case "tool_use":
		return message.FinishToolUse
	default:
		return message.FinishEndTurn
	}
}
