// Package provider implements the streaming adapter that speaks an
// OpenAI-chat-completions-shaped wire protocol: translating typed
// messages to wire JSON, issuing throttled/retrying HTTP requests, and
// decoding the SSE response into a typed event sequence (spec §4.2).
package provider

import (
	"context"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// EventKind discriminates ProviderEvent's payload.
type EventKind string

const (
	EventContentStart EventKind = "content_start"
	EventContentDelta EventKind = "content_delta"
	EventContentStop  EventKind = "content_stop"
	EventThinkingDelta EventKind = "thinking_delta"
	EventToolUseStart EventKind = "tool_use_start"
	EventToolUseDelta EventKind = "tool_use_delta"
	EventToolUseStop  EventKind = "tool_use_stop"
	EventComplete     EventKind = "complete"
	EventError        EventKind = "error"
)

// Event is one decoded item from the streaming response.
type Event struct {
	Kind EventKind

	Text string // EventContentDelta / EventThinkingDelta

	ToolCallID   string // EventToolUseStart / Delta / Stop
	ToolCallName string // EventToolUseStart
	InputChunk   string // EventToolUseDelta

	FinishReason message.FinishReason // EventComplete
	Usage        message.TokenUsage   // EventComplete

	Err error // EventError
}

// Response is the one-shot (non-streaming) result shape.
type Response struct {
	Parts        []message.ContentPart
	FinishReason message.FinishReason
	Usage        message.TokenUsage
}

// ErrorKind taxonomizes provider failures (spec §7).
type ErrorKind string

const (
	ErrTransport   ErrorKind = "transport"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrAPI         ErrorKind = "api"
	ErrStream      ErrorKind = "stream"
)

// Error is the typed error every Provider call can fail with.
type Error struct {
	Kind         ErrorKind
	Message      string
	Status       int
	RetryAfterMS int64 // populated for ErrRateLimited
}

func (e *Error) Error() string { return e.Message }

// Provider is the contract the agent loop drives (spec §4.2).
type Provider interface {
	Model() model.Model
	SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (Response, error)
	StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan Event, error)
}
