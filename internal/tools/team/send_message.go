package team

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// SendMessageTool implements send_message's four message types, ported
// from original_source/crates/octo-tools/src/send_message.rs.
type SendMessageTool struct {
	handle *team.Handle

	// exit is process exit, overridable in tests so shutdown_response
	// approval doesn't kill the test binary.
	exit func(code int)
}

func NewSendMessageTool(handle *team.Handle) *SendMessageTool {
	return &SendMessageTool{handle: handle, exit: os.Exit}
}

func (t *SendMessageTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "send_message",
		Description: "Send messages to teammates. Supports direct messages, broadcasts, and shutdown requests/responses.",
		Parameters: map[string]tool.ParamSchema{
			"type": {
				Type:        "string",
				Description: "Message type: message, broadcast, shutdown_request, shutdown_response.",
				EnumValues:  []string{"message", "broadcast", "shutdown_request", "shutdown_response"},
			},
			"recipient": {Type: "string", Description: "Agent name of the recipient (for message/shutdown_request)."},
			"content":   {Type: "string", Description: "Message text."},
			"summary":   {Type: "string", Description: "Short summary of the message (5-10 words)."},
			"approve":   {Type: "boolean", Description: "Whether to approve shutdown (for shutdown_response)."},
		},
		Required: []string{"type"},
	}
}

type sendMessageInput struct {
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	// Summary nudges the model toward a short message description; like
	// send_message.rs, it's part of the call shape but never persisted.
	Summary string `json:"summary"`
	Approve bool   `json:"approve"`
}

func (t *SendMessageTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in sendMessageInput
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, invalidParams("parse input: %v", err)
	}
	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}

	switch in.Type {
	case "message":
		if in.Recipient == "" {
			return tool.Result{}, invalidParams("missing 'recipient'")
		}
		if err := t.appendTo(st, in.Recipient, in.Content); err != nil {
			return tool.Result{}, executionFailed("send message: %v", err)
		}
		return tool.Result{Content: fmt.Sprintf("Message sent to '%s'.", in.Recipient)}, nil

	case "broadcast":
		cfg, err := team.ReadTeamConfig(st.BaseDir, st.TeamName)
		if err != nil {
			return tool.Result{}, executionFailed("read team config: %v", err)
		}
		sent := 0
		for _, m := range cfg.Members {
			if m.Name == st.AgentName {
				continue
			}
			if err := t.appendTo(st, m.Name, in.Content); err != nil {
				return tool.Result{}, executionFailed("send to %s: %v", m.Name, err)
			}
			sent++
		}
		return tool.Result{Content: fmt.Sprintf("Broadcast sent to %d members.", sent)}, nil

	case "shutdown_request":
		if in.Recipient == "" {
			return tool.Result{}, invalidParams("missing 'recipient'")
		}
		payload, _ := json.Marshal(map[string]any{
			"type":       "shutdown_request",
			"from":       st.AgentName,
			"content":    in.Content,
			"request_id": uuid.NewString(),
		})
		if err := t.appendTo(st, in.Recipient, string(payload)); err != nil {
			return tool.Result{}, executionFailed("send shutdown request: %v", err)
		}
		return tool.Result{Content: fmt.Sprintf("Shutdown request sent to '%s'.", in.Recipient)}, nil

	case "shutdown_response":
		cfg, err := team.ReadTeamConfig(st.BaseDir, st.TeamName)
		if err != nil {
			return tool.Result{}, executionFailed("read team config: %v", err)
		}
		leadName := LeadAgentName
		for _, m := range cfg.Members {
			if m.AgentID == cfg.LeadAgentID {
				leadName = m.Name
				break
			}
		}

		if in.Approve {
			_ = t.appendTo(st, leadName, fmt.Sprintf("Shutdown approved by %s. Exiting.", st.AgentName))
			cfg.Members = removeMember(cfg.Members, st.AgentName)
			_ = team.WriteTeamConfig(st.BaseDir, st.TeamName, cfg)
			t.handle.Leave()
			t.exit(0)
			return tool.Result{Content: "shutting down"}, nil
		}
		if err := t.appendTo(st, leadName, fmt.Sprintf("Shutdown rejected by %s: %s", st.AgentName, in.Content)); err != nil {
			return tool.Result{}, executionFailed("send rejection: %v", err)
		}
		return tool.Result{Content: "Shutdown rejected."}, nil

	default:
		return tool.Result{}, invalidParams("unknown message type: %s", in.Type)
	}
}

func (t *SendMessageTool) appendTo(st team.State, recipient, content string) error {
	return team.AppendInbox(st.BaseDir, st.TeamName, recipient, team.InboxMessage{
		From:      st.AgentName,
		Text:      content,
		Timestamp: time.Now().UTC(),
		Read:      false,
	})
}

func removeMember(members []team.Member, name string) []team.Member {
	kept := members[:0:0]
	for _, m := range members {
		if m.Name != name {
			kept = append(kept, m)
		}
	}
	return kept
}
