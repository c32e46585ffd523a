package provider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// CompatClient implements Provider against any OpenAI-compatible
// endpoint (OpenRouter, a local Ollama instance, etc.) using
// sashabaranov/go-openai rather than this package's hand-rolled SSE
// decoder, for vendors whose only exposed surface is the request/response
// SDK shape. StreamResponse synthesizes a streaming event sequence from a
// single buffered call instead of reimplementing chunk decoding.
type CompatClient struct {
	client *openai.Client
	model  model.Model
}

type CompatConfig struct {
	BaseURL string
	APIKey  string
	Model   model.Model
}

func NewCompatClient(cfg CompatConfig) *CompatClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &CompatClient{client: openai.NewClientWithConfig(clientConfig), model: cfg.Model}
}

func (c *CompatClient) Model() model.Model { return c.model }

func (c *CompatClient) SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    string(c.model.ID),
		Messages: toCompatMessages(systemPrompt, messages),
	}
	if c.model.MaxOutputTokens > 0 {
		req.MaxTokens = c.model.MaxOutputTokens
	}
	if len(tools) > 0 {
		req.Tools = toCompatTools(tools)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, &Error{Kind: ErrAPI, Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return Response{}, &Error{Kind: ErrAPI, Message: "compat: empty choices in response"}
	}

	choice := resp.Choices[0]
	var parts []message.ContentPart
	if choice.Message.Content != "" {
		parts = append(parts, message.NewText(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, message.NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	return Response{
		Parts:        parts,
		FinishReason: mapFinishReason(string(choice.FinishReason)),
		Usage: message.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// StreamResponse issues one non-streaming SendMessages call and replays
// it as a single content run plus one tool-use run per call, so callers
// driving the agent loop's event-accumulation path don't need a separate
// code path for compat-backed models.
func (c *CompatClient) StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan Event, error) {
	resp, err := c.SendMessages(ctx, messages, systemPrompt, tools)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 8+len(resp.Parts)*3)
	contentOpen := false
	for _, part := range resp.Parts {
		switch part.Kind {
		case message.PartText:
			if !contentOpen {
				out <- Event{Kind: EventContentStart}
				contentOpen = true
			}
			out <- Event{Kind: EventContentDelta, Text: part.Text}
		case message.PartToolCall:
			if contentOpen {
				out <- Event{Kind: EventContentStop}
				contentOpen = false
			}
			out <- Event{Kind: EventToolUseStart, ToolCallID: part.ToolCallID, ToolCallName: part.ToolCallName}
			if part.ToolCallInput != "" {
				out <- Event{Kind: EventToolUseDelta, ToolCallID: part.ToolCallID, InputChunk: part.ToolCallInput}
			}
			out <- Event{Kind: EventToolUseStop, ToolCallID: part.ToolCallID}
		}
	}
	if contentOpen {
		out <- Event{Kind: EventContentStop}
	}
	out <- Event{Kind: EventComplete, FinishReason: resp.FinishReason, Usage: resp.Usage}
	close(out)
	return out, nil
}

func toCompatMessages(systemPrompt string, messages []message.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		switch m.Role {
		case message.RoleTool:
			for _, part := range m.Parts {
				if part.Kind == message.PartToolResult {
					result = append(result, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    part.ToolResultContent,
						ToolCallID: part.ToolCallID,
					})
				}
			}
		case message.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, part := range m.Parts {
				switch part.Kind {
				case message.PartText:
					msg.Content = part.Text
				case message.PartToolCall:
					msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
						ID:   part.ToolCallID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      part.ToolCallName,
							Arguments: part.ToolCallInput,
						},
					})
				}
			}
			result = append(result, msg)
		default:
			text := joinText(m.Parts)
			if text == "" {
				continue
			}
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
		}
	}
	return result
}

func toCompatTools(tools []tool.Definition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]any, len(t.Parameters))
		for name, schema := range t.Parameters {
			props[name] = map[string]any{"type": schema.Type, "description": schema.Description}
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": props,
					"required":   t.Required,
				},
			},
		})
	}
	return result
}
