// Package agentloop drives a single conversation turn: it trims history
// to fit the model's context budget, streams a completion from a
// provider, dispatches any tool calls sequentially, and repeats until a
// terminal finish reason is reached. It owns no persistence of its own;
// the caller is responsible for storing the returned messages.
package agentloop

import "github.com/shankslo8/octo-code-agent/internal/message"

// EventKind discriminates Event's payload, following the same
// single-discriminator idiom used for provider events and content parts.
type EventKind string

const (
	EventStarted            EventKind = "started"
	EventContentDelta        EventKind = "content_delta"
	EventThinkingDelta       EventKind = "thinking_delta"
	EventToolCallStart       EventKind = "tool_call_start"
	EventToolCallInputDelta  EventKind = "tool_call_input_delta"
	EventToolResult          EventKind = "tool_result"
	EventComplete            EventKind = "complete"
	EventError               EventKind = "error"
)

// Event is one item on a turn's event channel.
type Event struct {
	Kind EventKind

	SessionID string // EventStarted

	Text string // EventContentDelta / EventThinkingDelta

	ToolCallID string // EventToolCallStart / EventToolCallInputDelta / EventToolResult
	ToolName   string // EventToolCallStart / EventToolResult
	InputChunk string // EventToolCallInputDelta
	Result     string // EventToolResult
	IsError    bool   // EventToolResult

	Message      message.Message      // EventComplete
	FinishReason message.FinishReason // EventComplete
	Usage        message.TokenUsage   // EventComplete

	Err string // EventError
}

// EventChannelCapacity bounds the per-turn event channel (spec §4.1).
const EventChannelCapacity = 256
