package team

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// spawnStaggerSeconds is the per-additional-member delay factor: the
// (member_index-2)'th spawn beyond the first two sleeps
// spawnStaggerSeconds*(member_index-2) seconds before forking, to avoid
// rate-limit storms against a shared provider key (spec §4.5, §9.1).
const spawnStaggerSeconds = 8

const promptTemplate = "You are a sub-agent on team %q, named %q. Work the task below to completion, " +
	"then report back to the team lead using send_message (type=\"message\", recipient=%q) before exiting.\n\n%s"

// SpawnTool implements spawn_agent: registers a new team member, then
// forks the current executable as a detached child with -p/--team-name/
// --agent-name flags.
type SpawnTool struct {
	cfg    Config
	handle *team.Handle
}

func NewSpawnTool(cfg Config, handle *team.Handle) *SpawnTool {
	return &SpawnTool{cfg: cfg, handle: handle}
}

func (t *SpawnTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "spawn_agent",
		Description: "Spawn a new sub-agent process as a member of the active team.",
		Parameters: map[string]tool.ParamSchema{
			"name":       {Type: "string", Description: "Unique agent name for the sub-agent."},
			"prompt":     {Type: "string", Description: "Task prompt for the sub-agent."},
			"agent_type": {Type: "string", Description: "Optional label for the sub-agent's role."},
		},
		Required: []string{"name", "prompt"},
	}
}

type spawnInput struct {
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	AgentType string `json:"agent_type"`
}

func (t *SpawnTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in spawnInput
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, invalidParams("parse input: %v", err)
	}
	if in.Name == "" || in.Prompt == "" {
		return tool.Result{}, invalidParams("name and prompt are required")
	}

	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}

	cfg, err := team.ReadTeamConfig(st.BaseDir, st.TeamName)
	if err != nil {
		return tool.Result{}, executionFailed("read team config: %v", err)
	}
	for _, m := range cfg.Members {
		if m.Name == in.Name {
			return tool.Result{}, invalidParams("agent name %q is already a team member", in.Name)
		}
	}

	memberIndex := len(cfg.Members) + 1
	cfg.Members = append(cfg.Members, team.Member{
		AgentID:   fmt.Sprintf("%s@%s", in.Name, st.TeamName),
		Name:      in.Name,
		AgentType: in.AgentType,
		Cwd:       t.cfg.WorkingDir,
		JoinedAt:  time.Now().UTC(),
	})
	if err := team.WriteTeamConfig(st.BaseDir, st.TeamName, cfg); err != nil {
		return tool.Result{}, executionFailed("write team config: %v", err)
	}

	if memberIndex > 2 {
		wait := time.Duration(spawnStaggerSeconds*(memberIndex-2)) * time.Second
		select {
		case <-ctx.Done():
			return tool.Result{}, executionFailed("cancelled while staggering spawn")
		case <-time.After(wait):
		}
	}

	execPath := t.cfg.ExecutablePath
	if execPath == "" {
		resolved, err := os.Executable()
		if err != nil {
			return tool.Result{}, executionFailed("resolve executable: %v", err)
		}
		execPath = resolved
	}

	wrapped := fmt.Sprintf(promptTemplate, st.TeamName, in.Name, LeadAgentName, in.Prompt)
	cmd := exec.Command(execPath, "-p", wrapped, "--team-name", st.TeamName, "--agent-name", in.Name)
	cmd.Dir = t.cfg.WorkingDir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return tool.Result{}, executionFailed("spawn sub-agent: %v", err)
	}

	return tool.Result{Content: fmt.Sprintf("Spawned agent '%s' (pid %d).", in.Name, cmd.Process.Pid)}, nil
}
