// Package message defines the conversation data model shared by the agent
// loop, provider adapter, and tool dispatcher: messages, their content
// parts, and token usage accounting.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// FinishReason records why an assistant turn stopped producing content.
type FinishReason string

const (
	FinishEndTurn           FinishReason = "end_turn"
	FinishMaxTokens         FinishReason = "max_tokens"
	FinishToolUse           FinishReason = "tool_use"
	FinishCancelled         FinishReason = "cancelled"
	FinishError             FinishReason = "error"
	FinishPermissionDenied  FinishReason = "permission_denied"
)

// PartKind discriminates ContentPart's payload, following the "single
// discriminator with exactly one non-nil payload" idiom used for events
// elsewhere in this codebase.
type PartKind string

const (
	PartText       PartKind = "text"
	PartReasoning  PartKind = "reasoning"
	PartImage      PartKind = "image"
	PartImageURL   PartKind = "image_url"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
	PartFinish     PartKind = "finish"
)

// ContentPart is the atomic unit of a Message. Exactly one of the
// payload fields matching Kind is populated; the rest are zero.
type ContentPart struct {
	Kind PartKind `json:"kind"`

	// PartText / PartReasoning
	Text string `json:"text,omitempty"`

	// PartImage
	ImageBytes []byte `json:"image_bytes,omitempty"`
	MediaType  string `json:"media_type,omitempty"`

	// PartImageURL
	ImageURL    string `json:"image_url,omitempty"`
	ImageDetail string `json:"image_detail,omitempty"`

	// PartToolCall: Input is stored verbatim as a JSON string since it may
	// arrive in fragments while streaming and is only parsed by the tool.
	ToolCallID    string `json:"tool_call_id,omitempty"`
	ToolCallName  string `json:"tool_call_name,omitempty"`
	ToolCallInput string `json:"tool_call_input,omitempty"`

	// PartToolResult
	ToolResultContent string `json:"tool_result_content,omitempty"`
	ToolResultIsError bool   `json:"tool_result_is_error,omitempty"`

	// PartFinish
	FinishReason    FinishReason `json:"finish_reason,omitempty"`
	FinishTimestamp time.Time    `json:"finish_timestamp,omitempty"`
}

func NewText(text string) ContentPart { return ContentPart{Kind: PartText, Text: text} }

func NewReasoning(text string) ContentPart { return ContentPart{Kind: PartReasoning, Text: text} }

func NewToolCall(id, name, input string) ContentPart {
	return ContentPart{Kind: PartToolCall, ToolCallID: id, ToolCallName: name, ToolCallInput: input}
}

func NewToolResult(toolCallID, content string, isError bool) ContentPart {
	return ContentPart{Kind: PartToolResult, ToolCallID: toolCallID, ToolResultContent: content, ToolResultIsError: isError}
}

func NewFinish(reason FinishReason, at time.Time) ContentPart {
	return ContentPart{Kind: PartFinish, FinishReason: reason, FinishTimestamp: at}
}

// TokenUsage is additive and zero-valued by default.
type TokenUsage struct {
	InputTokens        int `json:"input_tokens"`
	OutputTokens       int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens    int `json:"cache_read_tokens"`
}

// Add returns the element-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:         u.InputTokens + o.InputTokens,
		OutputTokens:        u.OutputTokens + o.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens + o.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens + o.CacheReadTokens,
	}
}

// Message is one turn's worth of content from a single role.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Role      Role          `json:"role"`
	Parts     []ContentPart `json:"parts"`
	ModelID   string        `json:"model_id,omitempty"`
	Usage     *TokenUsage   `json:"usage,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewMessage builds an empty message with a fresh id and timestamps.
func NewMessage(sessionID string, role Role) Message {
	now := time.Now().UTC()
	return Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ToolCalls returns every PartToolCall part, in order.
func (m Message) ToolCalls() []ContentPart {
	var out []ContentPart
	for _, p := range m.Parts {
		if p.Kind == PartToolCall {
			out = append(out, p)
		}
	}
	return out
}

// Finish returns the message's Finish part, if any.
func (m Message) Finish() (ContentPart, bool) {
	for _, p := range m.Parts {
		if p.Kind == PartFinish {
			return p, true
		}
	}
	return ContentPart{}, false
}

// Session is a conversation thread; cmd/octo is the sole writer of its
// token/cost fields, updating them after each turn.
type Session struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	MessageCount     int       `json:"message_count"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Cost             float64   `json:"cost"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
