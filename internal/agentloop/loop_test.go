package agentloop

import (
	"context"
	"testing"
	"time"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/provider"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

type stubProvider struct {
	mdl       model.Model
	calls     int
	responses [][]provider.Event
}

func (s *stubProvider) Model() model.Model { return s.mdl }

func (s *stubProvider) SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (provider.Response, error) {
	return provider.Response{}, nil
}

func (s *stubProvider) StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan provider.Event, error) {
	idx := s.calls
	s.calls++
	evs := s.responses[idx]
	ch := make(chan provider.Event, len(evs))
	for _, e := range evs {
		ch <- e
	}
	close(ch)
	return ch, nil
}

type stubTool struct {
	content string
}

func (t *stubTool) Definition() tool.Definition {
	return tool.Definition{Name: "view", Description: "stub"}
}

func (t *stubTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	return tool.Result{Content: t.content}, nil
}

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func newTestLoop(p provider.Provider, tools ...tool.Tool) *Loop {
	reg := tool.NewRegistry()
	for _, tl := range tools {
		reg.Register(tl)
	}
	return NewLoop(p, NewDispatcher(reg, nil), "you are a test agent")
}

func TestRunSingleShotTextReply(t *testing.T) {
	p := &stubProvider{
		mdl: model.Default.Lookup(model.ID("gpt-4o")),
		responses: [][]provider.Event{
			{
				{Kind: provider.EventContentDelta, Text: "hello"},
				{Kind: provider.EventComplete, FinishReason: message.FinishEndTurn, Usage: message.TokenUsage{InputTokens: 1, OutputTokens: 1}},
			},
		},
	}
	loop := newTestLoop(p)
	ch, cancel := loop.Run(context.Background(), "s1", nil, "hi")
	defer cancel()

	events := collectEvents(t, ch)
	last := events[len(events)-1]
	if last.Kind != EventComplete {
		t.Fatalf("expected final event to be Complete, got %v", last.Kind)
	}
	if last.FinishReason != message.FinishEndTurn {
		t.Fatalf("expected EndTurn, got %v", last.FinishReason)
	}
	if last.Usage.InputTokens != 1 || last.Usage.OutputTokens != 1 {
		t.Fatalf("unexpected usage %+v", last.Usage)
	}
	parts := last.Message.Parts
	if len(parts) != 2 || parts[0].Kind != message.PartText || parts[0].Text != "hello" {
		t.Fatalf("unexpected parts %+v", parts)
	}
	if parts[1].Kind != message.PartFinish || parts[1].FinishReason != message.FinishEndTurn {
		t.Fatalf("expected trailing Finish part, got %+v", parts[1])
	}
}

func TestRunSingleToolCallRoundTrip(t *testing.T) {
	p := &stubProvider{
		mdl: model.Default.Lookup(model.ID("gpt-4o")),
		responses: [][]provider.Event{
			{
				{Kind: provider.EventToolUseStart, ToolCallID: "c1", ToolCallName: "view"},
				{Kind: provider.EventToolUseDelta, ToolCallID: "c1", InputChunk: `{"path":`},
				{Kind: provider.EventToolUseDelta, ToolCallID: "c1", InputChunk: `"a.txt"}`},
				{Kind: provider.EventToolUseStop, ToolCallID: "c1"},
				{Kind: provider.EventComplete, FinishReason: message.FinishToolUse, Usage: message.TokenUsage{InputTokens: 10, OutputTokens: 5}},
			},
			{
				{Kind: provider.EventContentDelta, Text: "done"},
				{Kind: provider.EventComplete, FinishReason: message.FinishEndTurn, Usage: message.TokenUsage{InputTokens: 12, OutputTokens: 1}},
			},
		},
	}
	loop := newTestLoop(p, &stubTool{content: "ok"})
	ch, cancel := loop.Run(context.Background(), "s1", nil, "look at a.txt")
	defer cancel()

	events := collectEvents(t, ch)

	var toolResult *Event
	for i := range events {
		if events[i].Kind == EventToolResult {
			toolResult = &events[i]
		}
	}
	if toolResult == nil {
		t.Fatal("expected a ToolResult event")
	}
	want := "<tool_output tool=\"view\">\nok\n</tool_output>"
	if toolResult.Result != want {
		t.Fatalf("got %q want %q", toolResult.Result, want)
	}
	if toolResult.IsError {
		t.Fatal("expected tool result to not be an error")
	}

	last := events[len(events)-1]
	if last.Kind != EventComplete || last.FinishReason != message.FinishEndTurn {
		t.Fatalf("expected final Complete/EndTurn, got %+v", last)
	}
	foundDone := false
	for _, p := range last.Message.Parts {
		if p.Kind == message.PartText && p.Text == "done" {
			foundDone = true
		}
	}
	if !foundDone {
		t.Fatalf("expected final assistant message to contain Text(\"done\"), got %+v", last.Message.Parts)
	}
}

func TestRunCancellationStopsLoop(t *testing.T) {
	p := &stubProvider{
		mdl: model.Default.Lookup(model.ID("gpt-4o")),
		responses: [][]provider.Event{
			{
				{Kind: provider.EventContentDelta, Text: "partial"},
			},
		},
	}
	loop := newTestLoop(p)
	ctx, cancelParent := context.WithCancel(context.Background())
	ch, cancel := loop.Run(ctx, "s1", nil, "hi")
	defer cancel()
	cancelParent()

	events := collectEvents(t, ch)
	last := events[len(events)-1]
	if last.Kind != EventComplete || last.FinishReason != message.FinishCancelled {
		t.Fatalf("expected Cancelled completion, got %+v", last)
	}
}
