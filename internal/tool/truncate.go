package tool

import (
	"fmt"
	"unicode/utf8"
)

// MaxOutputChars bounds any tool result payload before it is handed back
// to the model (spec §4.1, §4.4, §6).
const MaxOutputChars = 30_000

// Truncate trims s to at most MaxOutputChars runes, cutting at a valid
// rune boundary and appending a trailer noting how much was dropped.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxOutputChars {
		return s
	}
	total := utf8.RuneCountInString(s)
	cut := 0
	count := 0
	for i := range s {
		if count == MaxOutputChars {
			cut = i
			break
		}
		count++
	}
	if cut == 0 {
		cut = len(s)
	}
	return fmt.Sprintf("%s… [truncated: %d total chars, showing first %d]", s[:cut], total, MaxOutputChars)
}

// WrapOutput wraps a tool's truncated output in the prompt-injection
// defense tag the agent loop attaches before storing it as a ToolResult.
func WrapOutput(toolName, content string) string {
	return fmt.Sprintf("<tool_output tool=\"%s\">\n%s\n</tool_output>", toolName, Truncate(content))
}
