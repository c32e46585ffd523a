// Package team implements the team-coordination tool catalog: creating
// and tearing down a team, spawning sub-agent processes, the shared
// task board, and the inbox-based messaging protocol (spec §4.4, §4.5).
// Each tool operates on the calling process's internal/team.Handle
// rather than the narrow tool.TeamHandle interface, since these tools
// need to mutate membership (Join/Leave), not just read it.
package team

import (
	"fmt"

	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// Config carries the process-wide settings every team tool needs.
type Config struct {
	// BaseDir roots the team filesystem layout; used directly by
	// CreateTool before any team is active. Defaults to
	// team.DefaultBaseDir() if empty.
	BaseDir string

	// WorkingDir is inherited by spawned sub-agent processes and
	// recorded as a member's cwd.
	WorkingDir string

	// ExecutablePath is the binary SpawnTool forks. Empty means resolve
	// via os.Executable() at call time.
	ExecutablePath string
}

func (c Config) baseDir() string {
	if c.BaseDir != "" {
		return c.BaseDir
	}
	return team.DefaultBaseDir()
}

// requireState returns the calling process's active team membership,
// or a non-fatal ExecutionFailed error mirroring get_team's "No active
// team" guard (original_source/src/tools/team.rs).
func requireState(h *team.Handle) (team.State, error) {
	st, ok := h.Get()
	if !ok {
		return team.State{}, tool.ExecutionFailed("No active team")
	}
	return st, nil
}

func invalidParams(format string, args ...any) error {
	return tool.InvalidParams(fmt.Sprintf(format, args...))
}

func executionFailed(format string, args ...any) error {
	return tool.ExecutionFailed(fmt.Sprintf(format, args...))
}
