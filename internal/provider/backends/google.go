package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/provider"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// GoogleProvider implements provider.Provider against the Gemini API via
// google.golang.org/genai, translating the shared message.Message model
// to genai.Content/genai.Part and folding its iterator-based response
// stream into provider.Event.
type GoogleProvider struct {
	client *genai.Client
	model  model.Model
}

type GoogleConfig struct {
	APIKey string
	Model  model.Model
}

func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GoogleProvider{client: client, model: cfg.Model}, nil
}

func (p *GoogleProvider) Model() model.Model { return p.model }

func (p *GoogleProvider) SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (provider.Response, error) {
	contents, err := convertMessages(messages)
	if err != nil {
		return provider.Response{}, &provider.Error{Kind: provider.ErrTransport, Message: err.Error()}
	}
	config := buildConfig(systemPrompt, p.model, tools)

	resp, err := p.client.Models.GenerateContent(ctx, string(p.model.ID), contents, config)
	if err != nil {
		return provider.Response{}, &provider.Error{Kind: provider.ErrAPI, Message: err.Error()}
	}

	var parts []message.ContentPart
	finish := message.FinishEndTurn
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				switch {
				case part.Text != "":
					parts = append(parts, message.NewText(part.Text))
				case part.FunctionCall != nil:
					input, _ := json.Marshal(part.FunctionCall.Args)
					parts = append(parts, message.NewToolCall(generateToolCallID(part.FunctionCall.Name), part.FunctionCall.Name, string(input)))
				}
			}
		}
		if hasFunctionCall(cand.Content) {
			finish = message.FinishToolUse
		} else if string(cand.FinishReason) == "MAX_TOKENS" {
			finish = message.FinishMaxTokens
		}
	}

	var usage message.TokenUsage
	if resp.UsageMetadata != nil {
		usage = message.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return provider.Response{Parts: parts, FinishReason: finish, Usage: usage}, nil
}

// StreamResponse ranges over the genai iter.Seq2 response stream,
// emitting one ContentDelta per text part and tracking tool calls by
// name since Gemini sends each function call whole rather than as
// incremental argument deltas.
func (p *GoogleProvider) StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan provider.Event, error) {
	contents, err := convertMessages(messages)
	if err != nil {
		return nil, &provider.Error{Kind: provider.ErrTransport, Message: err.Error()}
	}
	config := buildConfig(systemPrompt, p.model, tools)

	out := make(chan provider.Event, 64)
	go func() {
		defer close(out)

		contentOpen := false
		sawToolUse := false
		var inputTokens, outputTokens int

		for resp, err := range p.client.Models.GenerateContentStream(ctx, string(p.model.ID), contents, config) {
			if err != nil {
				out <- provider.Event{Kind: provider.EventError, Err: &provider.Error{Kind: provider.ErrStream, Message: err.Error()}}
				return
			}
			if resp.UsageMetadata != nil {
				inputTokens = int(resp.UsageMetadata.PromptTokenCount)
				outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				switch {
				case part.Text != "":
					if !contentOpen {
						out <- provider.Event{Kind: provider.EventContentStart}
						contentOpen = true
					}
					out <- provider.Event{Kind: provider.EventContentDelta, Text: part.Text}
				case part.FunctionCall != nil:
					if contentOpen {
						out <- provider.Event{Kind: provider.EventContentStop}
						contentOpen = false
					}
					sawToolUse = true
					id := generateToolCallID(part.FunctionCall.Name)
					input, _ := json.Marshal(part.FunctionCall.Args)
					out <- provider.Event{Kind: provider.EventToolUseStart, ToolCallID: id, ToolCallName: part.FunctionCall.Name}
					out <- provider.Event{Kind: provider.EventToolUseDelta, ToolCallID: id, InputChunk: string(input)}
					out <- provider.Event{Kind: provider.EventToolUseStop, ToolCallID: id}
				}
			}
		}

		if contentOpen {
			out <- provider.Event{Kind: provider.EventContentStop}
		}
		finish := message.FinishEndTurn
		if sawToolUse {
			finish = message.FinishToolUse
		}
		out <- provider.Event{Kind: provider.EventComplete,
			FinishReason: finish,
			Usage:        message.TokenUsage{InputTokens: inputTokens, OutputTokens: outputTokens}}
	}()
	return out, nil
}

// convertMessages maps message.Message roles the way Gemini's protocol
// expects: assistant turns are "model", everything else (including tool
// results, which Gemini treats as a user-side FunctionResponse) is "user".
func convertMessages(messages []message.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == message.RoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for _, part := range m.Parts {
			switch part.Kind {
			case message.PartText:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case message.PartToolCall:
				var args map[string]any
				if part.ToolCallInput != "" {
					if err := json.Unmarshal([]byte(part.ToolCallInput), &args); err != nil {
						return nil, err
					}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: part.ToolCallName, Args: args}})
			case message.PartToolResult:
				response := map[string]any{"content": part.ToolResultContent}
				if part.ToolResultIsError {
					response["error"] = true
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					Name:     toolNameForResult(messages, part.ToolCallID),
					Response: response,
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

// toolNameForResult recovers the originating call's name, since Gemini's
// FunctionResponse requires it but message.ContentPart only carries the
// call ID on the result side.
func toolNameForResult(messages []message.Message, callID string) string {
	for _, m := range messages {
		for _, part := range m.Parts {
			if part.Kind == message.PartToolCall && part.ToolCallID == callID {
				return part.ToolCallName
			}
		}
	}
	return ""
}

// generateToolCallID synthesizes a call ID, since Gemini's protocol
// doesn't assign one the way OpenAI/Anthropic do.
func generateToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}

func hasFunctionCall(content *genai.Content) bool {
	if content == nil {
		return false
	}
	for _, part := range content.Parts {
		if part.FunctionCall != nil {
			return true
		}
	}
	return false
}

func convertGeminiTools(tools []tool.Definition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Parameters))
		for name, schema := range t.Parameters {
			propSchema := &genai.Schema{Description: schema.Description}
			if schema.Type != "" {
				propSchema.Type = genai.Type(strings.ToUpper(schema.Type))
			}
			propSchema.Enum = schema.EnumValues
			props[name] = propSchema
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.Required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func buildConfig(systemPrompt string, m model.Model, tools []tool.Definition) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if m.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(m.MaxOutputTokens)
	}
	if wireTools := convertGeminiTools(tools); wireTools != nil {
		config.Tools = wireTools
	}
	return config
}
