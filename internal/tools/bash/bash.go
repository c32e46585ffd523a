// Package bash implements the `bash` tool: a static allow-list of safe
// read-only command prefixes runs without a permission prompt, an
// independent deny-list fails unconditionally, and everything else is
// left to the dispatcher's permission gate (spec §4.4).
package bash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shankslo8/octo-code-agent/internal/tool"
)

const (
	DefaultTimeoutSeconds = 120
	MaxTimeoutSeconds     = 600
)

// allowPrefixes are safe, read-only command prefixes that run without an
// operator prompt.
var allowPrefixes = []string{
	"git status", "git diff", "git log", "git show", "git branch",
	"ls", "cat", "pwd", "echo",
	"cargo check", "cargo test", "cargo clippy", "cargo fmt --check",
	"go version", "go vet", "node --version", "python --version", "python3 --version",
}

// denyPatterns are substrings that unconditionally fail the call,
// regardless of the permission gate.
var denyPatterns = []string{
	":(){ :|:& };:", // fork bomb
	"rm -rf /",
	"rm -rf /*",
	"mkfs",
	"curl | sh", "curl|sh", "wget | sh", "wget|sh",
	"curl | bash", "curl|bash",
	"shutdown", "reboot", "kill -9 1", "kill 1",
}

// Classification is the result of checking a command against the
// allow/deny lists.
type Classification int

const (
	RequiresApproval Classification = iota
	AllowedWithoutPrompt
	DeniedUnconditionally
)

// Classify checks cmd against the static allow-list and deny-list.
func Classify(cmd string) Classification {
	trimmed := strings.TrimSpace(cmd)
	for _, deny := range denyPatterns {
		if strings.Contains(trimmed, deny) {
			return DeniedUnconditionally
		}
	}
	// A curl/wget pipeline stage followed later by an sh/bash stage is a
	// download-and-execute regardless of spacing or arguments.
	fetched := false
	for _, stage := range strings.Split(trimmed, "|") {
		fields := strings.Fields(stage)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "curl", "wget":
			fetched = true
		case "sh", "bash":
			if fetched {
				return DeniedUnconditionally
			}
		}
	}
	for _, allow := range allowPrefixes {
		if trimmed == allow || strings.HasPrefix(trimmed, allow+" ") {
			return AllowedWithoutPrompt
		}
	}
	return RequiresApproval
}

// Tool runs shell commands synchronously, merging stdout+stderr and
// capping output at tool.MaxOutputChars.
type Tool struct {
	WorkingDir string
}

func NewTool(workingDir string) *Tool { return &Tool{WorkingDir: workingDir} }

func (t *Tool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "bash",
		Description: "Run a shell command and return merged stdout/stderr.",
		Parameters: map[string]tool.ParamSchema{
			"command":         {Type: "string", Description: "Shell command to run."},
			"timeout_seconds": {Type: "integer", Description: "Timeout in seconds (default 120, max 600)."},
		},
		Required: []string{"command"},
	}
}

type bashInput struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (t *Tool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in bashInput
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
	}
	if strings.TrimSpace(in.Command) == "" {
		return tool.Result{}, tool.InvalidParams("command is required")
	}

	if Classify(in.Command) == DeniedUnconditionally {
		return tool.Result{}, tool.PermissionDenied("bash", "run denied command")
	}

	timeout := in.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds
	}
	if timeout > MaxTimeoutSeconds {
		timeout = MaxTimeoutSeconds
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", in.Command)
	cmd.Dir = t.WorkingDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return tool.Result{}, tool.Timeout(timeout)
	}
	content := tool.Truncate(out.String())
	if err != nil {
		return tool.Result{Content: content, IsError: true}, nil
	}
	return tool.Result{Content: content}, nil
}
