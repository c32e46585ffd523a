package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/shankslo8/octo-code-agent/internal/agentloop"
	"github.com/shankslo8/octo-code-agent/internal/message"
)

// runOnce drives a single turn non-interactively and exits: the form
// spawn_agent execs sub-agent processes with (-p, --team-name,
// --agent-name), but also usable standalone for scripting.
func (a *app) runOnce(ctx context.Context, prompt string) error {
	session, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	return a.runTurn(ctx, session, nil, prompt)
}

// runInteractive reads prompts from stdin in a loop, keeping history
// across turns within the same session until EOF or an error.
func (a *app) runInteractive(ctx context.Context) error {
	session, err := a.newSession(ctx)
	if err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdin.Fd()))

	var history []message.Message
	reader := bufio.NewReader(os.Stdin)
	for {
		if isTerminal {
			fmt.Fprint(os.Stdout, "> ")
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "/exit" || input == "/quit" {
			return nil
		}

		if err := a.runTurn(ctx, session, history, input); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		history, err = a.stores.Messages.ListBySession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("reload history: %w", err)
		}
	}
}

func (a *app) newSession(ctx context.Context) (*message.Session, error) {
	session := &message.Session{
		ID:        uuid.NewString(),
		Title:     "octo session",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := a.stores.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// runTurn runs one Loop.Run call to completion, streaming its events to
// stdout and persisting the resulting assistant message.
func (a *app) runTurn(ctx context.Context, session *message.Session, history []message.Message, input string) error {
	start := time.Now()
	events, cancel := a.loop.Run(ctx, session.ID, history, input)
	defer cancel()

	userMsg := message.NewMessage(session.ID, message.RoleUser)
	userMsg.Parts = append(userMsg.Parts, message.NewText(input))
	if err := a.stores.Messages.Create(ctx, &userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	outcome := "finished"
	for ev := range events {
		switch ev.Kind {
		case agentloop.EventContentDelta:
			fmt.Fprint(os.Stdout, ev.Text)
		case agentloop.EventToolCallStart:
			fmt.Fprintf(os.Stderr, "\n[tool] %s\n", ev.ToolName)
		case agentloop.EventToolResult:
			if ev.IsError {
				fmt.Fprintf(os.Stderr, "[tool error] %s: %s\n", ev.ToolName, ev.Result)
			}
		case agentloop.EventComplete:
			fmt.Fprintln(os.Stdout)
			if err := a.stores.Messages.Create(ctx, &ev.Message); err != nil {
				return fmt.Errorf("persist assistant message: %w", err)
			}
			if err := a.updateSessionUsage(ctx, session, ev.Usage); err != nil {
				return err
			}
		case agentloop.EventError:
			outcome = "error"
			a.metrics.RecordTurn(outcome, time.Since(start).Seconds())
			return fmt.Errorf("agent loop: %s", ev.Err)
		}
	}

	a.metrics.RecordTurn(outcome, time.Since(start).Seconds())
	return nil
}

func (a *app) updateSessionUsage(ctx context.Context, session *message.Session, usage message.TokenUsage) error {
	session.MessageCount++
	session.PromptTokens += usage.InputTokens
	session.CompletionTokens += usage.OutputTokens
	session.Cost += a.loop.Provider.Model().Pricing.Cost(usage.InputTokens, usage.OutputTokens)
	session.UpdatedAt = time.Now().UTC()
	return a.stores.Sessions.Update(ctx, session)
}
