package codeintel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shankslo8/octo-code-agent/internal/tool"
)

func TestProbeSucceedsOnHealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	tl := NewTool(srv.URL, "/work")
	if err := tl.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
}

func TestProbeFailsWhenUnreachable(t *testing.T) {
	tl := NewTool("http://127.0.0.1:1", "/work")
	if err := tl.Probe(context.Background()); err == nil {
		t.Fatal("expected Probe() to fail against an unreachable server")
	}
}

func TestRunAcquiresSessionAndForwardsHeader(t *testing.T) {
	var gotSessionHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sessionResponse{SessionID: "sess-1"})
		case "/symbols/search":
			gotSessionHeader = r.Header.Get("X-Session-Id")
			if r.URL.Query().Get("query") != "Foo" {
				t.Errorf("expected query=Foo, got %q", r.URL.Query().Get("query"))
			}
			w.Write([]byte("found Foo in foo.go:12"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tl := NewTool(srv.URL, "/work")
	input, _ := json.Marshal(map[string]any{"operation": "search", "query": "Foo"})
	result, err := tl.Run(context.Background(), tool.Call{Input: string(input)}, tool.Context{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("Run() unexpected error result: %s", result.Content)
	}
	if gotSessionHeader != "sess-1" {
		t.Fatalf("X-Session-Id = %q, want sess-1", gotSessionHeader)
	}
	if result.Content != "found Foo in foo.go:12" {
		t.Fatalf("Run() content = %q", result.Content)
	}
}

func TestRunRefreshesSessionOn401(t *testing.T) {
	sessionCount := 0
	requestCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			sessionCount++
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sessionResponse{SessionID: "sess-stale"})
		case "/structure":
			requestCount++
			if requestCount == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte("{}"))
		}
	}))
	defer srv.Close()

	tl := NewTool(srv.URL, "/work")
	input, _ := json.Marshal(map[string]any{"operation": "structure"})
	result, err := tl.Run(context.Background(), tool.Call{Input: string(input)}, tool.Context{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("Run() unexpected error result: %s", result.Content)
	}
	if sessionCount != 2 {
		t.Fatalf("expected 2 session acquisitions (initial + refresh), got %d", sessionCount)
	}
}

func TestRunRejectsUnknownOperation(t *testing.T) {
	tl := NewTool("http://example.invalid", "/work")
	input, _ := json.Marshal(map[string]any{"operation": "bogus"})
	result, err := tl.Run(context.Background(), tool.Call{Input: string(input)}, tool.Context{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown operation")
	}
}

func TestRunRequiresOperationSpecificParams(t *testing.T) {
	tl := NewTool("http://example.invalid", "/work")
	input, _ := json.Marshal(map[string]any{"operation": "peek"})
	if _, err := tl.Run(context.Background(), tool.Call{Input: string(input)}, tool.Context{}); err == nil {
		t.Fatal("expected InvalidParams error for 'peek' missing file/start/end")
	}
}

func TestDefinitionListsAllOperations(t *testing.T) {
	tl := NewTool("http://example.invalid", "/work")
	def := tl.Definition()
	opSchema, ok := def.Parameters["operation"]
	if !ok {
		t.Fatal("expected an 'operation' parameter")
	}
	if len(opSchema.EnumValues) != len(operations) {
		t.Fatalf("expected %d enum values, got %d", len(operations), len(opSchema.EnumValues))
	}
}
