package agentloop

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/provider"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

const (
	maxLoopRetries      = 3
	rateLimitFloorMS    = 5000
)

// Loop drives one conversation at a time to a terminal finish reason.
// It persists nothing itself; the caller owns the returned messages.
type Loop struct {
	Provider     provider.Provider
	Dispatcher   *Dispatcher
	SystemPrompt string
	WorkingDir   string
	Team         tool.TeamHandle // nil if this process has no active team
}

func NewLoop(p provider.Provider, d *Dispatcher, systemPrompt string) *Loop {
	return &Loop{Provider: p, Dispatcher: d, SystemPrompt: systemPrompt}
}

// Run launches a turn in the background and returns the event channel
// and a cancellation function (spec §4.1: "launches the turn and
// returns two handles synchronously").
func (l *Loop) Run(ctx context.Context, sessionID string, history []message.Message, userInput string) (<-chan Event, context.CancelFunc) {
	turnCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, EventChannelCapacity)
	go l.run(turnCtx, sessionID, history, userInput, events)
	return events, cancel
}

func newUserMessage(sessionID, text string) message.Message {
	m := message.NewMessage(sessionID, message.RoleUser)
	m.Parts = []message.ContentPart{message.NewText(text)}
	return m
}

func (l *Loop) run(ctx context.Context, sessionID string, history []message.Message, userInput string, out chan<- Event) {
	defer close(out)
	out <- Event{Kind: EventStarted, SessionID: sessionID}

	messages := make([]message.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, newUserMessage(sessionID, userInput))

	mdl := l.Provider.Model()
	systemPromptTokens := ceilDiv(utf8.RuneCountInString(l.SystemPrompt), 4)
	budget := InputBudget(mdl.ContextWindow, systemPromptTokens)

	for {
		if ctx.Err() != nil {
			out <- Event{Kind: EventComplete, FinishReason: message.FinishCancelled}
			return
		}

		trimmed := Trim(messages, budget)
		toolDefs := l.Dispatcher.Registry.Definitions()

		events, err := l.streamWithRetry(ctx, trimmed, toolDefs, out)
		if err != nil {
			out <- Event{Kind: EventError, Err: err.Error()}
			return
		}
		if events == nil {
			// Cancelled while waiting out a rate-limit backoff.
			out <- Event{Kind: EventComplete, FinishReason: message.FinishCancelled}
			return
		}

		finishReason, usage, parts, streamErr := consumeStream(ctx, events, out)
		if streamErr != nil {
			out <- Event{Kind: EventError, Err: streamErr.Error()}
			return
		}

		assistant := message.NewMessage(sessionID, message.RoleAssistant)
		assistant.ModelID = string(mdl.ID)
		assistant.Parts = append(parts, message.NewFinish(finishReason, time.Now().UTC()))
		assistant.Usage = &usage
		messages = append(messages, assistant)

		switch finishReason {
		case message.FinishToolUse:
			toolMsg := l.runTools(ctx, sessionID, assistant, out)
			if toolMsg == nil {
				// Cancelled mid-dispatch or an unknown tool was requested;
				// runTools already emitted Complete or Error.
				return
			}
			messages = append(messages, *toolMsg)
			continue
		default:
			out <- Event{Kind: EventComplete, Message: assistant, FinishReason: finishReason, Usage: usage}
			return
		}
	}
}

// streamWithRetry calls StreamResponse, retrying up to maxLoopRetries
// times on a RateLimited provider error, waiting
// max(RetryAfterMS, 5000) × (attempt+1) milliseconds (spec §4.1 step 2). A nil, nil return means the turn was cancelled
// while sleeping out a backoff.
func (l *Loop) streamWithRetry(ctx context.Context, messages []message.Message, tools []tool.Definition, out chan<- Event) (<-chan provider.Event, error) {
	for attempt := 0; ; attempt++ {
		events, err := l.Provider.StreamResponse(ctx, messages, l.SystemPrompt, tools)
		if err == nil {
			return events, nil
		}
		perr, ok := err.(*provider.Error)
		if !ok || perr.Kind != provider.ErrRateLimited || attempt >= maxLoopRetries {
			return nil, err
		}
		wait := time.Duration(maxInt64(perr.RetryAfterMS, rateLimitFloorMS)*int64(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(wait):
		}
	}
}

// runTools dispatches every ToolCall part from assistant sequentially,
// in emission order, wrapping each result for the prompt-injection
// defense before packing them into a single tool-role message.
func (l *Loop) runTools(ctx context.Context, sessionID string, assistant message.Message, out chan<- Event) *message.Message {
	toolMsg := message.NewMessage(sessionID, message.RoleTool)
	for _, call := range assistant.ToolCalls() {
		if ctx.Err() != nil {
			out <- Event{Kind: EventComplete, FinishReason: message.FinishCancelled}
			return nil
		}

		out <- Event{Kind: EventToolCallStart, ToolCallID: call.ToolCallID, ToolName: call.ToolCallName}

		if _, ok := l.Dispatcher.Registry.Lookup(call.ToolCallName); !ok {
			out <- Event{Kind: EventError, Err: fmt.Sprintf("unknown tool %q", call.ToolCallName)}
			return nil
		}

		res, runErr := l.Dispatcher.Dispatch(ctx, tool.Call{
			ID: call.ToolCallID, Name: call.ToolCallName, Input: call.ToolCallInput,
		}, tool.Context{
			SessionID:  sessionID,
			WorkingDir: l.WorkingDir,
			Cancel:     ctx,
			Team:       l.Team,
		})

		var content string
		var isError bool
		if runErr != nil {
			isError = true
			if te, ok := runErr.(*tool.Error); ok {
				content = te.Error()
			} else {
				content = runErr.Error()
			}
		} else {
			content = res.Content
			isError = res.IsError
		}

		wrapped := tool.WrapOutput(call.ToolCallName, content)
		toolMsg.Parts = append(toolMsg.Parts, message.NewToolResult(call.ToolCallID, wrapped, isError))
		out <- Event{Kind: EventToolResult, ToolCallID: call.ToolCallID, ToolName: call.ToolCallName, Result: wrapped, IsError: isError}
	}
	return &toolMsg
}

// consumeStream folds a provider event stream into an assistant
// message's content parts, forwarding deltas to out as it goes (spec
// §4.1 step 3).
func consumeStream(ctx context.Context, events <-chan provider.Event, out chan<- Event) (message.FinishReason, message.TokenUsage, []message.ContentPart, error) {
	var parts []message.ContentPart
	var currentText, currentThinking strings.Builder
	var curID, curName, curInput string
	inProgress := false

	flushText := func() {
		if currentText.Len() > 0 {
			parts = append(parts, message.NewText(currentText.String()))
			currentText.Reset()
		}
	}
	flushThinking := func() {
		if currentThinking.Len() > 0 {
			parts = append(parts, message.NewReasoning(currentThinking.String()))
			currentThinking.Reset()
		}
	}
	flushToolCall := func() {
		if inProgress && curName != "" {
			parts = append(parts, message.NewToolCall(curID, curName, curInput))
		}
		inProgress = false
		curID, curName, curInput = "", "", ""
	}

	for {
		if ctx.Err() != nil {
			flushThinking()
			flushText()
			flushToolCall()
			return message.FinishCancelled, message.TokenUsage{}, parts, nil
		}
		select {
		case <-ctx.Done():
			flushThinking()
			flushText()
			flushToolCall()
			return message.FinishCancelled, message.TokenUsage{}, parts, nil
		case ev, ok := <-events:
			if !ok {
				flushThinking()
				flushText()
				flushToolCall()
				return message.FinishEndTurn, message.TokenUsage{}, parts, nil
			}
			switch ev.Kind {
			case provider.EventContentDelta:
				flushThinking()
				currentText.WriteString(ev.Text)
				out <- Event{Kind: EventContentDelta, Text: ev.Text}
			case provider.EventThinkingDelta:
				currentThinking.WriteString(ev.Text)
				out <- Event{Kind: EventThinkingDelta, Text: ev.Text}
			case provider.EventContentStop:
				flushText()
			case provider.EventToolUseStart:
				flushText()
				flushThinking()
				flushToolCall()
				curID, curName, curInput = ev.ToolCallID, ev.ToolCallName, ""
				inProgress = true
				out <- Event{Kind: EventToolCallStart, ToolCallID: ev.ToolCallID, ToolName: ev.ToolCallName}
			case provider.EventToolUseDelta:
				curInput += ev.InputChunk
				out <- Event{Kind: EventToolCallInputDelta, ToolCallID: ev.ToolCallID, InputChunk: ev.InputChunk}
			case provider.EventToolUseStop:
				flushToolCall()
			case provider.EventComplete:
				flushThinking()
				flushText()
				flushToolCall()
				return ev.FinishReason, ev.Usage, parts, nil
			case provider.EventError:
				return message.FinishError, message.TokenUsage{}, parts, ev.Err
			}
		}
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
