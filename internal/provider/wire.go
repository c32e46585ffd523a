package provider

import (
	"strings"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// wireMessage is one entry of the request's "messages" array (spec §4.2).
type wireMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string                        `json:"name"`
	Description string                        `json:"description,omitempty"`
	Parameters  wireParameters                `json:"parameters"`
}

type wireParameters struct {
	Type       string                        `json:"type"`
	Properties map[string]tool.ParamSchema   `json:"properties"`
	Required   []string                      `json:"required,omitempty"`
}

// toWireMessages translates the loop's typed history into the wire shape,
// per spec §4.2's per-role rules. Empty user messages are skipped.
func toWireMessages(systemPrompt string, messages []message.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, wireMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		switch m.Role {
		case message.RoleUser:
			text := joinText(m.Parts)
			if text == "" {
				continue
			}
			out = append(out, wireMessage{Role: "user", Content: text})

		case message.RoleAssistant:
			wm := wireMessage{Role: "assistant"}
			if text := joinText(m.Parts); text != "" {
				wm.Content = text
			}
			for _, p := range m.Parts {
				if p.Kind != message.PartToolCall {
					continue
				}
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID:   p.ToolCallID,
					Type: "function",
					Function: wireFunctionCall{
						Name:      p.ToolCallName,
						Arguments: p.ToolCallInput,
					},
				})
			}
			out = append(out, wm)

		case message.RoleTool:
			for _, p := range m.Parts {
				if p.Kind != message.PartToolResult {
					continue
				}
				out = append(out, wireMessage{
					Role:       "tool",
					Content:    p.ToolResultContent,
					ToolCallID: p.ToolCallID,
				})
			}

		case message.RoleSystem:
			if text := joinText(m.Parts); text != "" {
				out = append(out, wireMessage{Role: "system", Content: text})
			}
		}
	}
	return out
}

func joinText(parts []message.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Kind == message.PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// toWireTools translates tool definitions into the function-calling
// schema shape the endpoint expects.
func toWireTools(defs []tool.Definition) []wireTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(defs))
	for _, d := range defs {
		out = append(out, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters: wireParameters{
					Type:       "object",
					Properties: d.Parameters,
					Required:   d.Required,
				},
			},
		})
	}
	return out
}

// mapFinishReason applies spec §4.2's finish-string mapping, defaulting
// unknown values to EndTurn.
func mapFinishReason(s string) message.FinishReason {
	switch s {
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
