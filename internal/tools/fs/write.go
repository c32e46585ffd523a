package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// WriteTool creates or overwrites a file, creating parent directories.
// Permission-gated by the dispatcher, not by this tool (spec §4.3/§4.4).
type WriteTool struct {
	resolver Resolver
}

func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WriteTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "write",
		Description: "Write content to a file, creating parent directories as needed.",
		Parameters: map[string]tool.ParamSchema{
			"path":    {Type: "string", Description: "Path relative to the workspace."},
			"content": {Type: "string", Description: "File content to write."},
		},
		Required: []string{"path", "content"},
	}
}

type writeInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in writeInput
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
	}
	if strings.TrimSpace(in.Path) == "" {
		return tool.Result{}, tool.InvalidParams("path is required")
	}
	resolved, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return tool.Result{}, tool.InvalidParams(err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("mkdir: %v", err))
	}
	if err := os.WriteFile(resolved, []byte(in.Content), 0o644); err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("write: %v", err))
	}
	return tool.Result{Content: fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)}, nil
}
