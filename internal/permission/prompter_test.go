package permission

import (
	"bufio"
	"strings"
	"testing"
)

func TestLinePrompterVariants(t *testing.T) {
	cases := map[string]Decision{
		"y\n":      Allow,
		"yes\n":    Allow,
		"\n":       Allow,
		"a\n":      AllowPersistent,
		"always\n": AllowPersistent,
		"n\n":      Deny,
		"nope\n":   Deny,
	}
	for input, want := range cases {
		p := NewLinePrompter(bufio.NewReader(strings.NewReader(input)), nil)
		got := p.Prompt(Request{ToolName: "bash", Action: "exec"})
		if got != want {
			t.Errorf("input %q: got %v want %v", input, got, want)
		}
	}
}

func TestChannelPrompterRoundTrip(t *testing.T) {
	ch := make(chan PendingRequest, 1)
	p := NewChannelPrompter(ch)

	done := make(chan Decision, 1)
	go func() { done <- p.Prompt(Request{ToolName: "edit", Action: "write"}) }()

	pending := <-ch
	pending.Reply <- AllowPersistent

	if got := <-done; got != AllowPersistent {
		t.Fatalf("expected AllowPersistent, got %v", got)
	}
}

func TestChannelPrompterDeniesOnClosedReply(t *testing.T) {
	ch := make(chan PendingRequest, 1)
	p := NewChannelPrompter(ch)

	done := make(chan Decision, 1)
	go func() { done <- p.Prompt(Request{ToolName: "edit", Action: "write"}) }()

	pending := <-ch
	close(pending.Reply)

	if got := <-done; got != Deny {
		t.Fatalf("expected Deny on closed reply channel, got %v", got)
	}
}
