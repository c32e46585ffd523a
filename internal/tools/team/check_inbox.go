package team

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// pollInterval and maxWait bound check_inbox's optional blocking wait
// for new messages (spec §4.5): poll every 2s, never longer than 30s
// regardless of the requested wait_seconds.
const (
	pollInterval = 2 * time.Second
	maxWait      = 30 * time.Second
)

var errNoWatch = errors.New("no fsnotify watch established")

// CheckInboxTool implements check_inbox: returns unread messages, marking
// them read, optionally polling for up to wait_seconds (capped at 30s) if
// none are unread yet.
type CheckInboxTool struct {
	handle *team.Handle
}

func NewCheckInboxTool(handle *team.Handle) *CheckInboxTool {
	return &CheckInboxTool{handle: handle}
}

func (t *CheckInboxTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "check_inbox",
		Description: "Check for unread messages sent to this agent, optionally waiting for one to arrive.",
		Parameters: map[string]tool.ParamSchema{
			"wait_seconds": {Type: "number", Description: "Poll up to this many seconds (capped at 30) if the inbox is empty."},
		},
	}
}

func (t *CheckInboxTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		WaitSeconds float64 `json:"wait_seconds"`
	}
	if len(call.Input) > 0 {
		if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
			return tool.Result{}, invalidParams("parse input: %v", err)
		}
	}
	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}

	wait := time.Duration(in.WaitSeconds * float64(time.Second))
	if wait > maxWait {
		wait = maxWait
	}
	deadline := time.Now().Add(wait)

	var watcher *fsnotify.Watcher
	watchErr := errNoWatch
	if wait > 0 {
		watcher, watchErr = newInboxWatcher(team.InboxPath(st.BaseDir, st.TeamName, st.AgentName))
		if watcher != nil {
			defer watcher.Close()
		}
	}

	for {
		unread, err := t.takeUnread(st)
		if err != nil {
			return tool.Result{}, executionFailed("read inbox: %v", err)
		}
		if len(unread) > 0 || wait <= 0 || time.Now().After(deadline) {
			body, _ := json.Marshal(unread)
			return tool.Result{Content: string(body)}, nil
		}

		remaining := time.Until(deadline)
		wakeUp := time.After(minDuration(pollInterval, remaining))
		if watchErr == nil {
			select {
			case <-ctx.Done():
				return tool.Result{}, executionFailed("cancelled while waiting for messages")
			case <-watcher.Events:
			case <-watcher.Errors:
			case <-wakeUp:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return tool.Result{}, executionFailed("cancelled while waiting for messages")
		case <-wakeUp:
		}
	}
}

// newInboxWatcher establishes an fsnotify watch on path's directory so
// check_inbox can wake up as soon as a message arrives instead of
// waiting out a full pollInterval tick; the caller still falls back to
// the poll loop on error or once the watch fires, so the 2-second poll
// contract in spec §4.5 holds even when the watch can't be established
// (e.g. the inbox file or its directory doesn't exist yet).
func newInboxWatcher(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}

// takeUnread reads the inbox, returns the messages that were unread, and
// rewrites the file with all of them marked read.
func (t *CheckInboxTool) takeUnread(st team.State) ([]team.InboxMessage, error) {
	msgs, err := team.ReadInbox(st.BaseDir, st.TeamName, st.AgentName)
	if err != nil {
		return nil, err
	}
	var unread []team.InboxMessage
	changed := false
	for i := range msgs {
		if !msgs[i].Read {
			unread = append(unread, msgs[i])
			msgs[i].Read = true
			changed = true
		}
	}
	if changed {
		if err := team.WriteInbox(st.BaseDir, st.TeamName, st.AgentName, msgs); err != nil {
			return nil, err
		}
	}
	return unread, nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
