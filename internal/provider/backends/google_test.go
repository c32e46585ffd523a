package backends

import (
	"testing"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

func TestNewGoogleProviderRequiresAPIKey(t *testing.T) {
	_, err := NewGoogleProvider(nil, GoogleConfig{}) //nolint:staticcheck // ctx unused before the APIKey check
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestConvertMessagesMapsAssistantToModelRole(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleUser, Parts: []message.ContentPart{message.NewText("hi")}},
		{Role: message.RoleAssistant, Parts: []message.ContentPart{message.NewText("hello")}},
	}
	contents, err := convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Fatalf("unexpected roles: %q, %q", contents[0].Role, contents[1].Role)
	}
}

func TestConvertMessagesToolResultBecomesFunctionResponse(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleAssistant, Parts: []message.ContentPart{message.NewToolCall("call_1", "get_weather", `{"city":"nyc"}`)}},
		{Role: message.RoleTool, Parts: []message.ContentPart{message.NewToolResult("call_1", "sunny", false)}},
	}
	contents, err := convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	toolResultContent := contents[1]
	if toolResultContent.Role != "user" {
		t.Fatalf("expected tool results to surface as user role, got %q", toolResultContent.Role)
	}
	fr := toolResultContent.Parts[0].FunctionResponse
	if fr == nil || fr.Name != "get_weather" {
		t.Fatalf("expected function response named get_weather, got %+v", fr)
	}
}

func TestConvertToolsBuildsFunctionDeclarations(t *testing.T) {
	defs := []tool.Definition{{
		Name:        "get_weather",
		Description: "Look up weather",
		Parameters:  map[string]tool.ParamSchema{"city": {Type: "string"}},
		Required:    []string{"city"},
	}}
	out := convertGeminiTools(defs)
	if len(out) != 1 || len(out[0].FunctionDeclarations) != 1 {
		t.Fatalf("unexpected tools: %+v", out)
	}
	decl := out[0].FunctionDeclarations[0]
	if decl.Name != "get_weather" || decl.Parameters.Type != "OBJECT" {
		t.Fatalf("unexpected declaration: %+v", decl)
	}
}

func TestGenerateToolCallIDIsUnique(t *testing.T) {
	a := generateToolCallID("get_weather")
	b := generateToolCallID("get_weather")
	if a == b {
		t.Fatalf("expected distinct call IDs, got %q twice", a)
	}
}
