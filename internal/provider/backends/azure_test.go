package backends

import (
	"testing"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

func TestNewAzureProviderRequiresEndpointAndKey(t *testing.T) {
	if _, err := NewAzureProvider(AzureConfig{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if _, err := NewAzureProvider(AzureConfig{Endpoint: "https://x.openai.azure.com"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestConvertAzureMessagesLeadsWithSystemPrompt(t *testing.T) {
	out := convertAzureMessages([]message.Message{
		{Role: message.RoleUser, Parts: []message.ContentPart{message.NewText("hi")}},
	}, "be helpful")
	if len(out) != 2 || out[0].Role != "system" || out[0].Content != "be helpful" {
		t.Fatalf("expected leading system message, got %+v", out)
	}
}

func TestConvertAzureMessagesExplodesToolResults(t *testing.T) {
	out := convertAzureMessages([]message.Message{
		{Role: message.RoleTool, Parts: []message.ContentPart{
			message.NewToolResult("call_1", "sunny", false),
			message.NewToolResult("call_2", "boom", true),
		}},
	}, "")
	if len(out) != 2 {
		t.Fatalf("expected one wire message per tool result, got %d", len(out))
	}
	if out[0].ToolCallID != "call_1" || out[1].ToolCallID != "call_2" {
		t.Fatalf("unexpected tool call ids: %+v", out)
	}
}

func TestConvertAzureToolsShapesFunctionDefinition(t *testing.T) {
	defs := []tool.Definition{{
		Name:        "view",
		Description: "Read a file",
		Parameters:  map[string]tool.ParamSchema{"path": {Type: "string"}},
		Required:    []string{"path"},
	}}
	out := convertAzureTools(defs)
	if len(out) != 1 || out[0].Function.Name != "view" {
		t.Fatalf("unexpected tools: %+v", out)
	}
}

func TestMapAzureFinishReason(t *testing.T) {
	cases := map[string]message.FinishReason{
		"stop":       message.FinishEndTurn,
		"length":     message.FinishMaxTokens,
		"tool_calls": message.FinishToolUse,
		"weird":      message.FinishEndTurn,
	}
	for in, want := range cases {
		if got := mapAzureFinishReason(in); got != want {
			t.Errorf("mapAzureFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}
