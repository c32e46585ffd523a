package backends

import (
	"testing"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(AnthropicConfig{})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestConvertToolsShapesInputSchema(t *testing.T) {
	defs := []tool.Definition{{
		Name:        "view",
		Description: "Read a file",
		Parameters:  map[string]tool.ParamSchema{"path": {Type: "string", Description: "file path"}},
		Required:    []string{"path"},
	}}
	out, err := convertTools(defs)
	if err != nil {
		t.Fatalf("convertTools: %v", err)
	}
	if len(out) != 1 || out[0].OfTool == nil {
		t.Fatalf("unexpected tool union: %+v", out)
	}
	if out[0].OfTool.Name != "view" {
		t.Fatalf("unexpected tool name: %+v", out[0].OfTool)
	}
}

func TestMapStopReason(t *testing.T) {
	cases := map[string]message.FinishReason{
		"end_turn":      message.FinishEndTurn,
		"stop_sequence": message.FinishEndTurn,
		"max_tokens":    message.FinishMaxTokens,
		"tool_use":      message.FinishToolUse,
		"weird":         message.FinishEndTurn,
	}
	for in, want := range cases {
		if got := mapStopReason(in); got != want {
			t.Errorf("mapStopReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildParamsLeadsWithSystemPrompt(t *testing.T) {
	p := &AnthropicProvider{model: model.Model{ID: "claude-3-5-sonnet", MaxOutputTokens: 4096}}
	params, err := p.buildParams([]message.Message{
		{Role: message.RoleUser, Parts: []message.ContentPart{message.NewText("hi")}},
	}, "be helpful", nil)
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.System) != 1 || params.System[0].Text != "be helpful" {
		t.Fatalf("expected leading system block, got %+v", params.System)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(params.Messages))
	}
}

func TestBuildParamsSkipsEmptyMessages(t *testing.T) {
	p := &AnthropicProvider{model: model.Model{ID: "claude-3-5-sonnet", MaxOutputTokens: 4096}}
	params, err := p.buildParams([]message.Message{
		{Role: message.RoleUser, Parts: []message.ContentPart{message.NewText("")}},
	}, "", nil)
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 0 {
		t.Fatalf("expected empty-text message to be skipped, got %+v", params.Messages)
	}
}
