package backends

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/provider"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// AzureProvider implements provider.Provider against Azure OpenAI Service
// via sashabaranov/go-openai's Azure client config, which swaps in
// Azure's deployment-name URL shape and api-version query parameter in
// place of OpenAI's own endpoint.
type AzureProvider struct {
	client *openai.Client
	model  model.Model
}

type AzureConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Model      model.Model
}

func NewAzureProvider(cfg AzureConfig) (*AzureProvider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azure: API key is required")
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "2024-02-15-preview"
	}

	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	clientConfig.APIVersion = apiVersion

	return &AzureProvider{client: openai.NewClientWithConfig(clientConfig), model: cfg.Model}, nil
}

func (p *AzureProvider) Model() model.Model { return p.model }

func (p *AzureProvider) SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (provider.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    string(p.model.ID),
		Messages: convertAzureMessages(messages, systemPrompt),
	}
	if p.model.MaxOutputTokens > 0 {
		req.MaxTokens = p.model.MaxOutputTokens
	}
	if len(tools) > 0 {
		req.Tools = convertAzureTools(tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return provider.Response{}, &provider.Error{Kind: provider.ErrAPI, Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return provider.Response{}, &provider.Error{Kind: provider.ErrAPI, Message: "azure: empty choices in response"}
	}

	choice := resp.Choices[0]
	var parts []message.ContentPart
	if choice.Message.Content != "" {
		parts = append(parts, message.NewText(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, message.NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	return provider.Response{
		Parts:        parts,
		FinishReason: mapAzureFinishReason(string(choice.FinishReason)),
		Usage: message.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// StreamResponse follows the teacher's processStream accumulation:
// delta.ToolCalls are keyed by index, arguments are concatenated, and
// a "tool_calls" finish reason flushes every call collected so far.
func (p *AzureProvider) StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan provider.Event, error) {
	req := openai.ChatCompletionRequest{
		Model:    string(p.model.ID),
		Messages: convertAzureMessages(messages, systemPrompt),
		Stream:   true,
	}
	if p.model.MaxOutputTokens > 0 {
		req.MaxTokens = p.model.MaxOutputTokens
	}
	if len(tools) > 0 {
		req.Tools = convertAzureTools(tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, &provider.Error{Kind: provider.ErrAPI, Message: err.Error()}
	}

	out := make(chan provider.Event, 64)
	go func() {
		defer close(out)
		defer stream.Close()

		contentOpen := false
		type call struct {
			id, name, input string
		}
		calls := map[int]*call{}
		var order []int

		flush := func(finish message.FinishReason, usage message.TokenUsage) {
			if contentOpen {
				out <- provider.Event{Kind: provider.EventContentStop}
				contentOpen = false
			}
			for _, idx := range order {
				c := calls[idx]
				if c.id == "" || c.name == "" {
					continue
				}
				out <- provider.Event{Kind: provider.EventToolUseStart, ToolCallID: c.id, ToolCallName: c.name}
				if c.input != "" {
					out <- provider.Event{Kind: provider.EventToolUseDelta, ToolCallID: c.id, InputChunk: c.input}
				}
				out <- provider.Event{Kind: provider.EventToolUseStop, ToolCallID: c.id}
			}
			out <- provider.Event{Kind: provider.EventComplete, FinishReason: finish, Usage: usage}
		}

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					flush(message.FinishEndTurn, message.TokenUsage{})
					return
				}
				out <- provider.Event{Kind: provider.EventError, Err: &provider.Error{Kind: provider.ErrStream, Message: err.Error()}}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				if !contentOpen {
					out <- provider.Event{Kind: provider.EventContentStart}
					contentOpen = true
				}
				out <- provider.Event{Kind: provider.EventContentDelta, Text: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				c, seen := calls[index]
				if !seen {
					c = &call{}
					calls[index] = c
					order = append(order, index)
				}
				if tc.ID != "" {
					c.id = tc.ID
				}
				if tc.Function.Name != "" {
					c.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					c.input += tc.Function.Arguments
				}
			}
			if choice.FinishReason == "tool_calls" || choice.FinishReason == "stop" || choice.FinishReason == "length" {
				usage := message.TokenUsage{}
				if resp.Usage != nil {
					usage = message.TokenUsage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
				}
				flush(mapAzureFinishReason(string(choice.FinishReason)), usage)
				return
			}
		}
	}()
	return out, nil
}

func convertAzureMessages(messages []message.Message, systemPrompt string) []openai.ChatCompletionMessage {
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
			var text string
			for _, part := range m.Parts {
				if part.Kind == message.PartText {
					text += part.Text
				}
			}
			if text == "" {
				continue
			}
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
		}
	}
	return result
}

func convertAzureTools(tools []tool.Definition) []openai.Tool {
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

func mapAzureFinishReason(reason string) message.FinishReason {
	switch reason {
	case "stop":
		return message.FinishEndTurn
	case "length":
		return message.FinishMaxTokens
	case "tool_calls":
		return message.FinishToolUse
	default:
		return message.FinishEndTurn
	}
}
