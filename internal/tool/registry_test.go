package tool

import (
	"context"
	"strings"
	"testing"
)

type stubTool struct {
	def Definition
	run func(call Call) (Result, error)
}

func (s stubTool) Definition() Definition { return s.def }

func (s stubTool) Run(ctx context.Context, call Call, tc Context) (Result, error) {
	return s.run(call)
}

func TestDispatchUnknownToolIsFatalNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), Call{Name: "nope"}, Context{})
	var toolErr *Error
	if err == nil {
		t.Fatal("expected error")
	}
	if e, ok := err.(*Error); !ok || e.Kind != ErrNotFound {
		t.Fatalf("expected NotFound error, got %v (%T)", err, toolErr)
	}
}

func TestDispatchRunsRegisteredTool(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{
		def: Definition{Name: "echo"},
		run: func(call Call) (Result, error) {
			return Result{Content: "echo:" + call.Input}, nil
		},
	})
	res, err := r.Dispatch(context.Background(), Call{Name: "echo", Input: "hi"}, Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "echo:hi" {
		t.Fatalf("unexpected content %q", res.Content)
	}
}

func TestDispatchRejectsOversizedInput(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{def: Definition{Name: "big"}, run: func(Call) (Result, error) { return Result{}, nil }})
	huge := strings.Repeat("a", MaxToolParamsSize+1)
	_, err := r.Dispatch(context.Background(), Call{Name: "big", Input: huge}, Context{})
	if err == nil {
		t.Fatal("expected error for oversized input")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != ErrInvalidParams {
		t.Fatalf("expected InvalidParams error, got %v", err)
	}
}

func TestDispatchRejectsCallMissingRequiredParam(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{
		def: Definition{
			Name:       "grep",
			Parameters: map[string]ParamSchema{"pattern": {Type: "string"}},
			Required:   []string{"pattern"},
		},
		run: func(Call) (Result, error) { return Result{Content: "ran"}, nil },
	})
	_, err := r.Dispatch(context.Background(), Call{Name: "grep", Input: `{}`}, Context{})
	if err == nil {
		t.Fatal("expected error for missing required param")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != ErrInvalidParams {
		t.Fatalf("expected InvalidParams error, got %v", err)
	}
}

func TestDispatchAcceptsCallSatisfyingSchema(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{
		def: Definition{
			Name:       "grep",
			Parameters: map[string]ParamSchema{"pattern": {Type: "string"}},
			Required:   []string{"pattern"},
		},
		run: func(call Call) (Result, error) { return Result{Content: "ran:" + call.Input}, nil },
	})
	res, err := r.Dispatch(context.Background(), Call{Name: "grep", Input: `{"pattern":"foo"}`}, Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != `ran:{"pattern":"foo"}` {
		t.Fatalf("unexpected content %q", res.Content)
	}
}

func TestDispatchSkipsSchemaForParameterlessTool(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{
		def: Definition{Name: "ping"},
		run: func(call Call) (Result, error) { return Result{Content: "pong:" + call.Input}, nil },
	})
	res, err := r.Dispatch(context.Background(), Call{Name: "ping", Input: "not json"}, Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "pong:not json" {
		t.Fatalf("unexpected content %q", res.Content)
	}
}

func TestDefinitionsReturnsAllRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{def: Definition{Name: "a"}, run: func(Call) (Result, error) { return Result{}, nil }})
	r.Register(stubTool{def: Definition{Name: "b"}, run: func(Call) (Result, error) { return Result{}, nil }})
	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
}
