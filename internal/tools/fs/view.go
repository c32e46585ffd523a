package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// Config bounds the filesystem tools to a workspace root.
type Config struct {
	Workspace    string
	MaxReadBytes int
}

// ViewTool reads a file with offset/limit, falling back to a directory
// listing when the path names a directory.
type ViewTool struct {
	resolver Resolver
	maxBytes int
}

func NewViewTool(cfg Config) *ViewTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200_000
	}
	return &ViewTool{resolver: Resolver{Root: cfg.Workspace}, maxBytes: limit}
}

func (t *ViewTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "view",
		Description: "Read a file with optional offset/limit, or list a directory's contents.",
		Parameters: map[string]tool.ParamSchema{
			"path":      {Type: "string", Description: "Path relative to the workspace."},
			"offset":    {Type: "integer", Description: "Byte offset to start reading from (default 0)."},
			"max_bytes": {Type: "integer", Description: "Maximum bytes to read (capped by tool default)."},
		},
		Required: []string{"path"},
	}
}

type viewInput struct {
	Path     string `json:"path"`
	Offset   int64  `json:"offset"`
	MaxBytes int    `json:"max_bytes"`
}

func (t *ViewTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in viewInput
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
	}
	if strings.TrimSpace(in.Path) == "" {
		return tool.Result{}, tool.InvalidParams("path is required")
	}
	if in.Offset < 0 {
		return tool.Result{}, tool.InvalidParams("offset must be >= 0")
	}

	resolved, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return tool.Result{}, tool.InvalidParams(err.Error())
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("stat: %v", err))
	}
	if info.IsDir() {
		return t.listDir(resolved)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("open: %v", err))
	}
	defer f.Close()

	if in.Offset > 0 {
		if _, err := f.Seek(in.Offset, io.SeekStart); err != nil {
			return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("seek: %v", err))
		}
	}

	limit := t.maxBytes
	if in.MaxBytes > 0 && in.MaxBytes < limit {
		limit = in.MaxBytes
	}
	buf, err := io.ReadAll(io.LimitReader(f, int64(limit)))
	if err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("read: %v", err))
	}

	truncated := info.Size() > in.Offset+int64(len(buf))
	content := string(buf)
	if truncated {
		content += fmt.Sprintf("\n… [truncated: file is %d bytes, showing %d from offset %d]", info.Size(), len(buf), in.Offset)
	}
	return tool.Result{Content: content}, nil
}

func (t *ViewTool) listDir(path string) (tool.Result, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("read dir: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return tool.Result{Content: strings.Join(names, "\n")}, nil
}
