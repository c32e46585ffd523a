package tool

import (
	"strings"
	"testing"
)

func TestTruncateShortStringUnchanged(t *testing.T) {
	if got := Truncate("hello"); got != "hello" {
		t.Fatalf("expected unchanged short string, got %q", got)
	}
}

func TestTruncateLongStringAppendsTrailer(t *testing.T) {
	long := strings.Repeat("x", MaxOutputChars+500)
	got := Truncate(long)
	if !strings.Contains(got, "truncated: ") {
		t.Fatalf("expected truncation trailer, got suffix %q", got[len(got)-60:])
	}
	if !strings.HasPrefix(got, strings.Repeat("x", 10)) {
		t.Fatalf("expected prefix preserved")
	}
}

func TestWrapOutputTagsWithToolName(t *testing.T) {
	got := WrapOutput("view", "ok")
	want := "<tool_output tool=\"view\">\nok\n</tool_output>"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
