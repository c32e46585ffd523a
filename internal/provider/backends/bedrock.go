package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/provider"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// BedrockProvider implements provider.Provider against AWS Bedrock's
// Converse/ConverseStream API, which speaks a vendor-neutral message
// shape distinct from both the OpenAI wire protocol and any one model
// vendor's native SDK.
type BedrockProvider struct {
	client *bedrockruntime.Client
	model  model.Model
}

type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Model           model.Model
}

func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg), model: cfg.Model}, nil
}

func (p *BedrockProvider) Model() model.Model { return p.model }

func (p *BedrockProvider) SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (provider.Response, error) {
	bedrockMessages, err := convertBedrockMessages(messages)
	if err != nil {
		return provider.Response{}, &provider.Error{Kind: provider.ErrTransport, Message: err.Error()}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(string(p.model.ID)),
		Messages: bedrockMessages,
	}
	if systemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: systemPrompt}}
	}
	if p.model.MaxOutputTokens > 0 {
		input.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(p.model.MaxOutputTokens))}
	}
	if len(tools) > 0 {
		input.ToolConfig = convertBedrockTools(tools)
	}

	resp, err := p.client.Converse(ctx, input)
	if err != nil {
		return provider.Response{}, &provider.Error{Kind: provider.ErrAPI, Message: err.Error()}
	}

	var parts []message.ContentPart
	if out, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range out.Value.Content {
			switch b := block.(type) {
			case *types.ContentBlockMemberText:
				parts = append(parts, message.NewText(b.Value))
			case *types.ContentBlockMemberToolUse:
				var decoded any
				_ = b.Value.Input.UnmarshalSmithyDocument(&decoded)
				input, _ := json.Marshal(decoded)
				parts = append(parts, message.NewToolCall(aws.ToString(b.Value.ToolUseId), aws.ToString(b.Value.Name), string(input)))
			}
		}
	}

	var usage message.TokenUsage
	if resp.Usage != nil {
		usage = message.TokenUsage{InputTokens: int(aws.ToInt32(resp.Usage.InputTokens)), OutputTokens: int(aws.ToInt32(resp.Usage.OutputTokens))}
	}

	return provider.Response{Parts: parts, FinishReason: mapBedrockStopReason(string(resp.StopReason)), Usage: usage}, nil
}

// StreamResponse mirrors the teacher's processStream loop: content block
// start/delta/stop events accumulate into a running tool call, and
// message stop closes the channel.
func (p *BedrockProvider) StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan provider.Event, error) {
	bedrockMessages, err := convertBedrockMessages(messages)
	if err != nil {
		return nil, &provider.Error{Kind: provider.ErrTransport, Message: err.Error()}
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(string(p.model.ID)),
		Messages: bedrockMessages,
	}
	if systemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: systemPrompt}}
	}
	if p.model.MaxOutputTokens > 0 {
		input.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(p.model.MaxOutputTokens))}
	}
	if len(tools) > 0 {
		input.ToolConfig = convertBedrockTools(tools)
	}

	resp, err := p.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, &provider.Error{Kind: provider.ErrAPI, Message: err.Error()}
	}

	out := make(chan provider.Event, 64)
	go func() {
		defer close(out)

		eventStream := resp.GetStream()
		defer eventStream.Close()

		contentOpen := false
		sawToolUse := false
		var curToolID, curToolName string
		var toolInput strings.Builder
		inTool := false

		for event := range eventStream.Events() {
			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					curToolID = aws.ToString(toolUse.Value.ToolUseId)
					curToolName = aws.ToString(toolUse.Value.Name)
					inTool = true
					sawToolUse = true
					toolInput.Reset()
					out <- provider.Event{Kind: provider.EventToolUseStart, ToolCallID: curToolID, ToolCallName: curToolName}
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						if !contentOpen {
							out <- provider.Event{Kind: provider.EventContentStart}
							contentOpen = true
						}
						out <- provider.Event{Kind: provider.EventContentDelta, Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput.WriteString(*delta.Value.Input)
						out <- provider.Event{Kind: provider.EventToolUseDelta, ToolCallID: curToolID, InputChunk: *delta.Value.Input}
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if contentOpen {
					out <- provider.Event{Kind: provider.EventContentStop}
					contentOpen = false
				}
				if inTool {
					out <- provider.Event{Kind: provider.EventToolUseStop, ToolCallID: curToolID}
					inTool = false
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				finish := message.FinishEndTurn
				if sawToolUse {
					finish = message.FinishToolUse
				} else if string(ev.Value.StopReason) == "max_tokens" {
					finish = message.FinishMaxTokens
				}
				out <- provider.Event{Kind: provider.EventComplete, FinishReason: finish}
				return
			}
		}

		if err := eventStream.Err(); err != nil {
			out <- provider.Event{Kind: provider.EventError, Err: &provider.Error{Kind: provider.ErrStream, Message: err.Error()}}
		}
	}()
	return out, nil
}

func convertBedrockMessages(messages []message.Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		var content []types.ContentBlock
		for _, part := range m.Parts {
			switch part.Kind {
			case message.PartText:
				if part.Text != "" {
					content = append(content, &types.ContentBlockMemberText{Value: part.Text})
				}
			case message.PartToolResult:
				content = append(content, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(part.ToolCallID),
						Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: part.ToolResultContent}},
					},
				})
			case message.PartToolCall:
				var input any
				if part.ToolCallInput != "" {
					if err := json.Unmarshal([]byte(part.ToolCallInput), &input); err != nil {
						return nil, err
					}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(part.ToolCallID),
						Name:      aws.String(part.ToolCallName),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
		}
		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == message.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}
	return result, nil
}

func convertBedrockTools(tools []tool.Definition) *types.ToolConfiguration {
	bedrockTools := make([]types.Tool, len(tools))
	for i, t := range tools {
		props := make(map[string]any, len(t.Parameters))
		for name, schema := range t.Parameters {
			props[name] = map[string]any{"type": schema.Type, "description": schema.Description}
		}
		schema := map[string]any{"type": "object", "properties": props, "required": t.Required}
		bedrockTools[i] = &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		}
	}
	return &types.ToolConfiguration{Tools: bedrockTools}
}

func mapBedrockStopReason(reason string) message.FinishReason {
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
