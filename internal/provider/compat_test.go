package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

func TestToCompatMessagesLeadsWithSystemPrompt(t *testing.T) {
	out := toCompatMessages("be helpful", []message.Message{textMsg(message.RoleUser, "hi")})
	if len(out) != 2 || out[0].Role != "system" || out[0].Content != "be helpful" {
		t.Fatalf("expected leading system message, got %+v", out)
	}
}

func TestCompatStreamResponseSynthesizesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`)
	}))
	defer srv.Close()

	c := NewCompatClient(CompatConfig{BaseURL: srv.URL, APIKey: "test", Model: testModel()})
	events, err := c.StreamResponse(context.Background(), nil, "", nil)
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}

	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 4 || kinds[0] != EventContentStart || kinds[1] != EventContentDelta || kinds[2] != EventContentStop || kinds[3] != EventComplete {
		t.Fatalf("unexpected synthesized event sequence: %+v", kinds)
	}
}
