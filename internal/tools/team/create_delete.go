package team

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// LeadAgentName is the fixed agent name team_create assigns to its
// caller; spawn_agent and send_message assume this name when a
// sub-agent needs to address the lead.
const LeadAgentName = "lead"

// CreateTool implements team_create: writes a fresh TeamConfig whose
// sole member is the caller (as lead) and joins the process's Handle.
type CreateTool struct {
	cfg    Config
	handle *team.Handle
}

func NewCreateTool(cfg Config, handle *team.Handle) *CreateTool {
	return &CreateTool{cfg: cfg, handle: handle}
}

func (t *CreateTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "team_create",
		Description: "Create a new team and join it as lead.",
		Parameters: map[string]tool.ParamSchema{
			"name":        {Type: "string", Description: "Team name."},
			"description": {Type: "string", Description: "Short description of the team's goal."},
		},
		Required: []string{"name"},
	}
}

func (t *CreateTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, invalidParams("parse input: %v", err)
	}
	if in.Name == "" {
		return tool.Result{}, invalidParams("name is required")
	}
	if _, active := t.handle.Get(); active {
		return tool.Result{}, executionFailed("this process already belongs to a team")
	}

	base := t.cfg.baseDir()
	now := time.Now().UTC()
	leadID := fmt.Sprintf("%s@%s", LeadAgentName, in.Name)
	cfg := team.Config{
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		LeadAgentID: leadID,
		Members: []team.Member{{
			AgentID:   leadID,
			Name:      LeadAgentName,
			AgentType: "lead",
			Cwd:       t.cfg.WorkingDir,
			JoinedAt:  now,
		}},
	}
	if err := team.WriteTeamConfig(base, in.Name, cfg); err != nil {
		return tool.Result{}, executionFailed("write team config: %v", err)
	}
	t.handle.Join(team.NewState(in.Name, LeadAgentName, true, base))
	return tool.Result{Content: fmt.Sprintf("Team '%s' created.", in.Name)}, nil
}

// DeleteTool implements team_delete: refuses while more than one member
// remains, otherwise removes the team's directory tree.
type DeleteTool struct {
	handle *team.Handle
}

func NewDeleteTool(handle *team.Handle) *DeleteTool { return &DeleteTool{handle: handle} }

func (t *DeleteTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "team_delete",
		Description: "Delete the active team, if it has no sub-agents left.",
	}
}

func (t *DeleteTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}
	cfg, err := team.ReadTeamConfig(st.BaseDir, st.TeamName)
	if err != nil {
		return tool.Result{}, executionFailed("read team config: %v", err)
	}
	if len(cfg.Members) > 1 {
		return tool.Result{}, executionFailed(
			"team '%s' still has %d members; initiate shutdown messaging first", st.TeamName, len(cfg.Members))
	}

	teamsDir := filepath.Join(st.BaseDir, "teams", st.TeamName)
	tasksDir := filepath.Join(st.BaseDir, "tasks", st.TeamName)
	if err := os.RemoveAll(teamsDir); err != nil {
		return tool.Result{}, executionFailed("remove team dir: %v", err)
	}
	if err := os.RemoveAll(tasksDir); err != nil {
		return tool.Result{}, executionFailed("remove tasks dir: %v", err)
	}
	t.handle.Leave()
	return tool.Result{Content: fmt.Sprintf("Team '%s' deleted.", st.TeamName)}, nil
}
