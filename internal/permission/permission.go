// Package permission implements the per-invocation authorization gate:
// one-shot, session-wide, and persistent approval of sensitive tool
// actions.
package permission

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
)

// Decision is the outcome of a permission request.
type Decision string

const (
	Allow           Decision = "allow"
	AllowPersistent Decision = "allow_persistent"
	Deny            Decision = "deny"
)

// Request describes a single authorization check.
type Request struct {
	ID        string
	SessionID string
	ToolName  string
	Action    string
	Description string
	Path      string // optional
}

func persistentKey(sessionID, toolName, action string) string {
	return fmt.Sprintf("%s:%s:%s", sessionID, toolName, action)
}

// Prompter asks an operator to decide on a request that isn't already
// covered by session auto-approval or a persistent grant.
type Prompter interface {
	Prompt(req Request) Decision
}

// Gate resolves PermissionRequests per spec §4.3: session auto-approve,
// then persistent triple-key, then operator prompt.
type Gate struct {
	mu                 sync.Mutex
	autoApproveSessions map[string]bool
	persistentApprovals map[string]bool

	prompter Prompter
}

// NewGate builds a Gate that defers to prompter for anything not already
// auto-approved or persistently granted.
func NewGate(prompter Prompter) *Gate {
	return &Gate{
		autoApproveSessions: make(map[string]bool),
		persistentApprovals: make(map[string]bool),
		prompter:            prompter,
	}
}

// AutoApproveSession marks a session as unconditionally allowing; sticky
// for the lifetime of the Gate (spec §8: "sticky... without operator I/O").
func (g *Gate) AutoApproveSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoApproveSessions[sessionID] = true
}

// Request resolves a single authorization decision.
func (g *Gate) Request(req Request) Decision {
	g.mu.Lock()
	if g.autoApproveSessions[req.SessionID] {
		g.mu.Unlock()
		return Allow
	}
	key := persistentKey(req.SessionID, req.ToolName, req.Action)
	if g.persistentApprovals[key] {
		g.mu.Unlock()
		return Allow
	}
	g.mu.Unlock()

	decision := g.prompter.Prompt(req)
	if decision == AllowPersistent {
		g.mu.Lock()
		g.persistentApprovals[key] = true
		g.mu.Unlock()
		return Allow
	}
	return decision
}

// LinePrompter is the blocking, line-oriented operator prompt variant:
// y/yes/<enter> -> Allow, a/always -> AllowPersistent, anything else -> Deny.
type LinePrompter struct {
	In  *bufio.Reader
	Out func(string)
}

func NewLinePrompter(in *bufio.Reader, out func(string)) *LinePrompter {
	return &LinePrompter{In: in, Out: out}
}

func (p *LinePrompter) Prompt(req Request) Decision {
	if p.Out != nil {
		p.Out(fmt.Sprintf("Allow %s to %s? [Y/n/a] ", req.ToolName, req.Action))
	}
	line, _ := p.In.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	switch line {
	case "y", "yes", "":
		return Allow
	case "a", "always":
		return AllowPersistent
	default:
		return Deny
	}
}

// ChannelPrompter is the TUI variant: publishes requests on a bounded
// channel and blocks on a per-request reply channel, denying on channel
// failure (the UI went away).
type ChannelPrompter struct {
	Requests chan<- PendingRequest
}

// PendingRequest pairs a Request with the one-shot channel its decision
// must be sent back on.
type PendingRequest struct {
	Request Request
	Reply   chan Decision
}

func NewChannelPrompter(requests chan<- PendingRequest) *ChannelPrompter {
	return &ChannelPrompter{Requests: requests}
}

func (p *ChannelPrompter) Prompt(req Request) Decision {
	reply := make(chan Decision, 1)
	p.Requests <- PendingRequest{Request: req, Reply: reply}
	decision, ok := <-reply
	if !ok {
		return Deny
	}
	return decision
}
