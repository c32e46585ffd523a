package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// LsTool lists a directory's immediate entries.
type LsTool struct{ resolver Resolver }

func NewLsTool(cfg Config) *LsTool { return &LsTool{resolver: Resolver{Root: cfg.Workspace}} }

func (t *LsTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "ls",
		Description: "List a directory's immediate entries.",
		Parameters: map[string]tool.ParamSchema{
			"path": {Type: "string", Description: "Directory path relative to the workspace (default: workspace root)."},
		},
	}
}

func (t *LsTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		Path string `json:"path"`
	}
	if call.Input != "" {
		if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
			return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
		}
	}
	if in.Path == "" {
		in.Path = "."
	}
	resolved, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return tool.Result{}, tool.InvalidParams(err.Error())
	}
	entries, err := os.ReadDir(resolved)
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

// GlobTool matches a glob pattern against the workspace tree, capped at
// 1000 results (spec §4.4).
type GlobTool struct{ resolver Resolver }

const GlobCap = 1000

func NewGlobTool(cfg Config) *GlobTool { return &GlobTool{resolver: Resolver{Root: cfg.Workspace}} }

func (t *GlobTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "glob",
		Description: "Find files matching a glob pattern under the workspace, capped at 1000 matches.",
		Parameters: map[string]tool.ParamSchema{
			"pattern": {Type: "string", Description: "Glob pattern, e.g. **/*.go"},
		},
		Required: []string{"pattern"},
	}
}

func (t *GlobTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
	}
	if strings.TrimSpace(in.Pattern) == "" {
		return tool.Result{}, tool.InvalidParams("pattern is required")
	}
	root, err := t.resolver.Resolve(".")
	if err != nil {
		return tool.Result{}, tool.InvalidParams(err.Error())
	}
	var matches []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= GlobCap {
			return filepath.SkipAll
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(in.Pattern, rel); ok {
			matches = append(matches, rel)
		} else if ok, _ := filepath.Match(in.Pattern, filepath.Base(rel)); ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("walk: %v", err))
	}
	sort.Strings(matches)
	truncated := ""
	if len(matches) >= GlobCap {
		truncated = fmt.Sprintf("\n… [capped at %d matches]", GlobCap)
	}
	return tool.Result{Content: strings.Join(matches, "\n") + truncated}, nil
}

// GrepTool searches the workspace tree for a regular expression, capped
// at 200 matching lines (spec §4.4).
type GrepTool struct{ resolver Resolver }

const GrepLineCap = 200

func NewGrepTool(cfg Config) *GrepTool { return &GrepTool{resolver: Resolver{Root: cfg.Workspace}} }

func (t *GrepTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "grep",
		Description: "Search the workspace tree for a regular expression, capped at 200 matching lines.",
		Parameters: map[string]tool.ParamSchema{
			"pattern": {Type: "string", Description: "Regular expression (RE2 syntax)."},
			"path":    {Type: "string", Description: "Subdirectory to search (default: workspace root)."},
		},
		Required: []string{"pattern"},
	}
}

func (t *GrepTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
	}
	if strings.TrimSpace(in.Pattern) == "" {
		return tool.Result{}, tool.InvalidParams("pattern is required")
	}
	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("invalid pattern: %v", err))
	}
	if in.Path == "" {
		in.Path = "."
	}
	root, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return tool.Result{}, tool.InvalidParams(err.Error())
	}

	var lines []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if len(lines) >= GrepLineCap {
			return filepath.SkipAll
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer f.Close()
		rel, _ := filepath.Rel(root, path)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				lines = append(lines, fmt.Sprintf("%s:%d:%s", rel, lineNo, scanner.Text()))
				if len(lines) >= GrepLineCap {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return tool.Result{}, tool.ExecutionFailed(fmt.Sprintf("walk: %v", err))
	}
	truncated := ""
	if len(lines) >= GrepLineCap {
		truncated = fmt.Sprintf("\n… [capped at %d lines]", GrepLineCap)
	}
	return tool.Result{Content: strings.Join(lines, "\n") + truncated}, nil
}
