package agentloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shankslo8/octo-code-agent/internal/permission"
	"github.com/shankslo8/octo-code-agent/internal/tool"
	"github.com/shankslo8/octo-code-agent/internal/tools/bash"
)

// ApprovalRule inspects a tool call's raw input and reports whether it
// needs a permission check before running, the action name to record
// against the gate, and a human-readable path/target for the prompt.
type ApprovalRule func(call tool.Call) (required bool, action string, path string)

// Dispatcher wraps a tool registry with the permission gate's
// write/edit/bash approval rules (spec §4.3, §4.4). Tools not named in
// Rules dispatch directly; bash's own deny-list still applies inside
// the tool regardless of this layer.
type Dispatcher struct {
	Registry *tool.Registry
	Gate     *permission.Gate
	Rules    map[string]ApprovalRule
}

func NewDispatcher(registry *tool.Registry, gate *permission.Gate) *Dispatcher {
	return &Dispatcher{Registry: registry, Gate: gate, Rules: DefaultApprovalRules()}
}

// DefaultApprovalRules gates write and edit unconditionally, and bash
// only for commands that fall outside its static allow/deny lists.
func DefaultApprovalRules() map[string]ApprovalRule {
	return map[string]ApprovalRule{
		"write": func(call tool.Call) (bool, string, string) {
			return true, "write", pathFromInput(call.Input)
		},
		"edit": func(call tool.Call) (bool, string, string) {
			return true, "edit", pathFromInput(call.Input)
		},
		"bash": func(call tool.Call) (bool, string, string) {
			var in struct {
				Command string `json:"command"`
			}
			_ = json.Unmarshal([]byte(call.Input), &in)
			return bash.Classify(in.Command) == bash.RequiresApproval, "execute", in.Command
		},
	}
}

func pathFromInput(input string) string {
	var in struct {
		Path string `json:"path"`
	}
	_ = json.Unmarshal([]byte(input), &in)
	return in.Path
}

// Dispatch checks the call against any applicable approval rule before
// handing off to the underlying registry.
func (d *Dispatcher) Dispatch(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	if d.Gate != nil {
		if rule, ok := d.Rules[call.Name]; ok {
			if required, action, path := rule(call); required {
				req := permission.Request{
					SessionID:   tc.SessionID,
					ToolName:    call.Name,
					Action:      action,
					Description: fmt.Sprintf("%s: %s", call.Name, path),
					Path:        path,
				}
				if d.Gate.Request(req) == permission.Deny {
					return tool.Result{}, tool.PermissionDenied(call.Name, action)
				}
			}
		}
	}
	return d.Registry.Dispatch(ctx, call, tc)
}
