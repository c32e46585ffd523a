package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// EditTool applies a single exact-string replacement, requiring the
// match to be unique in the file (spec §4.4: "single exact-string
// replace requiring uniqueness" — the teacher's edit.go replaces only
// the first occurrence; this tool rejects ambiguous edits instead).
type EditTool struct {
	resolver Resolver
}

func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *EditTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "edit",
		Description: "Replace an exact, unique occurrence of old_text with new_text in a file.",
		Parameters: map[string]tool.ParamSchema{
			"path":     {Type: "string", Description: "Path relative to the workspace."},
			"old_text": {Type: "string", Description: "Exact text to replace; must occur exactly once."},
			"new_text": {Type: "string", Description: "Replacement text."},
		},
		Required: []string{"path", "old_text", "new_text"},
	}
}

type editInput struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

func (t *EditTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in editInput
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
	}
	if strings.TrimSpace(in.Path) == "" || in.OldText == "" {
		return tool.Result{}, tool.InvalidParams("path and old_text are required")
	}
	resolved, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return tool.Result{}, tool.InvalidParams(err.Error())
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("read: %v", err))
	}
	content := string(data)
	count := strings.Count(content, in.OldText)
	switch count {
	case 0:
		return tool.Result{}, tool.ExecutionFailed("old_text not found in file")
	case 1:
		// unique, proceed
	default:
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("old_text is not unique: found %d occurrences", count))
	}
	updated := strings.Replace(content, in.OldText, in.NewText, 1)
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("write: %v", err))
	}
	return tool.Result{Content: fmt.Sprintf("replaced 1 occurrence in %s", in.Path)}, nil
}
