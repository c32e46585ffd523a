package provider

import (
	"testing"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

func textMsg(role message.Role, text string) message.Message {
	return message.Message{Role: role, Parts: []message.ContentPart{message.NewText(text)}}
}

func TestToWireMessagesSystemPromptLeads(t *testing.T) {
	out := toWireMessages("be helpful", []message.Message{textMsg(message.RoleUser, "hi")})
	if len(out) != 2 || out[0].Role != "system" || out[0].Content != "be helpful" {
		t.Fatalf("expected leading system message, got %+v", out)
	}
}

func TestToWireMessagesSkipsEmptyUserMessage(t *testing.T) {
	out := toWireMessages("", []message.Message{textMsg(message.RoleUser, "")})
	if len(out) != 0 {
		t.Fatalf("expected empty user message to be skipped, got %+v", out)
	}
}

func TestToWireMessagesAssistantWithToolCalls(t *testing.T) {
	m := message.Message{Role: message.RoleAssistant, Parts: []message.ContentPart{
		message.NewText("let me check"),
		message.NewToolCall("call_1", "get_weather", `{"city":"nyc"}`),
	}}
	out := toWireMessages("", []message.Message{m})
	if len(out) != 1 {
		t.Fatalf("expected 1 wire message, got %d", len(out))
	}
	if out[0].Content != "let me check" || len(out[0].ToolCalls) != 1 {
		t.Fatalf("unexpected assistant wire message: %+v", out[0])
	}
	if out[0].ToolCalls[0].Function.Name != "get_weather" {
		t.Fatalf("unexpected tool call: %+v", out[0].ToolCalls[0])
	}
}

func TestToWireMessagesExplodesToolResults(t *testing.T) {
	m := message.Message{Role: message.RoleTool, Parts: []message.ContentPart{
		message.NewToolResult("call_1", "sunny", false),
		message.NewToolResult("call_2", "boom", true),
	}}
	out := toWireMessages("", []message.Message{m})
	if len(out) != 2 {
		t.Fatalf("expected one wire message per tool result, got %d", len(out))
	}
	if out[0].ToolCallID != "call_1" || out[0].Content != "sunny" {
		t.Fatalf("unexpected first tool message: %+v", out[0])
	}
	if out[1].ToolCallID != "call_2" || out[1].Content != "boom" {
		t.Fatalf("unexpected second tool message: %+v", out[1])
	}
}

func TestToWireToolsShapesFunctionSchema(t *testing.T) {
	defs := []tool.Definition{{
		Name:        "view",
		Description: "Read a file",
		Parameters:  map[string]tool.ParamSchema{"path": {Type: "string"}},
		Required:    []string{"path"},
	}}
	out := toWireTools(defs)
	if len(out) != 1 || out[0].Type != "function" {
		t.Fatalf("unexpected wire tools: %+v", out)
	}
	if out[0].Function.Name != "view" || out[0].Function.Parameters.Type != "object" {
		t.Fatalf("unexpected function schema: %+v", out[0].Function)
	}
	if len(out[0].Function.Parameters.Required) != 1 || out[0].Function.Parameters.Required[0] != "path" {
		t.Fatalf("expected required=[path], got %+v", out[0].Function.Parameters.Required)
	}
}

func TestMapFinishReason(t *testing.T) {
	cases := map[string]message.FinishReason{
		"stop":        message.FinishEndTurn,
		"length":      message.FinishMaxTokens,
		"tool_calls":  message.FinishToolUse,
		"weird_value": message.FinishEndTurn,
	}
	for in, want := range cases {
		if got := mapFinishReason(in); got != want {
			t.Errorf("mapFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}
