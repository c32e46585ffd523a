// Package codeintel implements the `code_intel` tool: an HTTP client for
// a separate, tree-sitter-based code intelligence server (spec §6). The
// tool is optional — callers probe the server at startup and omit the
// tool from the catalog entirely if it's unreachable, since the agent
// loop must work the same with or without it.
package codeintel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shankslo8/octo-code-agent/internal/tool"
)

var operations = []string{
	"health", "structure", "symbols", "search", "implementation",
	"callers", "tests", "variables", "peek", "grep",
}

var operationPaths = map[string]string{
	"health":         "/health",
	"structure":      "/structure",
	"symbols":        "/symbols",
	"search":         "/symbols/search",
	"implementation": "/symbols/implementation",
	"callers":        "/symbols/callers",
	"tests":          "/symbols/tests",
	"variables":      "/symbols/variables",
	"peek":           "/peek",
	"grep":           "/grep",
}

const (
	healthProbeTimeout = 2 * time.Second
	requestTimeout     = 30 * time.Second
)

// Tool queries a running code-intel server over HTTP, lazily acquiring
// and, on expiry, refreshing a per-working-directory session.
type Tool struct {
	client     *http.Client
	serverURL  string
	workingDir string

	mu        sync.RWMutex
	sessionID string
}

// NewTool constructs a code-intel tool bound to serverURL and workingDir.
// Callers should run Probe before registering it; Probe's result decides
// whether the tool is offered to the model at all.
func NewTool(serverURL, workingDir string) *Tool {
	return &Tool{
		client:     &http.Client{Timeout: requestTimeout},
		serverURL:  strings.TrimRight(serverURL, "/"),
		workingDir: workingDir,
	}
}

// Probe checks GET {server}/health with a short timeout. The tool is
// omitted from the catalog if this returns an error.
func (t *Tool) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, t.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("code-intel server not reachable at %s: %w", t.serverURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("code-intel server health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (t *Tool) Definition() tool.Definition {
	return tool.Definition{
		Name: "code_intel",
		Description: "Code intelligence: precise semantic code navigation via symbol search, " +
			"implementation lookup, caller tracking, test discovery, and project structure. " +
			"Prefer this over grep/glob when accurate code understanding is needed.",
		Parameters: map[string]tool.ParamSchema{
			"operation":     {Type: "string", Description: "One of: " + strings.Join(operations, ", "), EnumValues: operations},
			"query":         {Type: "string", Description: "Search query string (required for 'search')."},
			"symbol":        {Type: "string", Description: "Symbol name (required for 'implementation', 'callers', 'tests')."},
			"function":      {Type: "string", Description: "Function name (required for 'variables')."},
			"file":          {Type: "string", Description: "File path filter (required for 'peek'; optional elsewhere)."},
			"pattern":       {Type: "string", Description: "Grep pattern (required for 'grep')."},
			"kind":          {Type: "string", Description: "Symbol kind filter for 'symbols' (e.g. function, class, struct)."},
			"start":         {Type: "integer", Description: "Start line number (required for 'peek')."},
			"end":           {Type: "integer", Description: "End line number (required for 'peek')."},
			"limit":         {Type: "integer", Description: "Maximum number of results."},
			"depth":         {Type: "integer", Description: "Directory depth for 'structure'."},
			"max_matches":   {Type: "integer", Description: "Max matches for 'grep'."},
			"context_lines": {Type: "integer", Description: "Context lines for 'grep'."},
		},
		Required: []string{"operation"},
	}
}

type codeIntelInput struct {
	Operation    string `json:"operation"`
	Query        string `json:"query"`
	Symbol       string `json:"symbol"`
	Function     string `json:"function"`
	File         string `json:"file"`
	Pattern      string `json:"pattern"`
	Kind         string `json:"kind"`
	Start        *int   `json:"start"`
	End          *int   `json:"end"`
	Limit        *int   `json:"limit"`
	Depth        *int   `json:"depth"`
	MaxMatches   *int   `json:"max_matches"`
	ContextLines *int   `json:"context_lines"`
}

func (t *Tool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in codeIntelInput
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, tool.InvalidParams(fmt.Sprintf("parse input: %v", err))
	}
	if in.Operation == "" {
		return tool.Result{}, tool.InvalidParams("operation is required")
	}
	path, ok := operationPaths[in.Operation]
	if !ok {
		return tool.Result{Content: fmt.Sprintf("unknown operation %q. Valid operations: %s", in.Operation, strings.Join(operations, ", ")), IsError: true}, nil
	}

	query := url.Values{}
	switch in.Operation {
	case "structure":
		addIntParam(query, "depth", in.Depth)
	case "symbols":
		addStringParam(query, "kind", in.Kind)
		addStringParam(query, "file", in.File)
		addIntParam(query, "limit", in.Limit)
	case "search":
		if in.Query == "" {
			return tool.Result{}, tool.InvalidParams("'search' requires 'query'")
		}
		query.Set("query", in.Query)
		addIntParam(query, "limit", in.Limit)
	case "implementation":
		if in.Symbol == "" {
			return tool.Result{}, tool.InvalidParams("'implementation' requires 'symbol'")
		}
		query.Set("symbol", in.Symbol)
		addStringParam(query, "file", in.File)
	case "callers":
		if in.Symbol == "" {
			return tool.Result{}, tool.InvalidParams("'callers' requires 'symbol'")
		}
		query.Set("symbol", in.Symbol)
		addStringParam(query, "file", in.File)
		addIntParam(query, "limit", in.Limit)
	case "tests":
		if in.Symbol == "" {
			return tool.Result{}, tool.InvalidParams("'tests' requires 'symbol'")
		}
		query.Set("symbol", in.Symbol)
		addStringParam(query, "file", in.File)
		addIntParam(query, "limit", in.Limit)
	case "variables":
		if in.Function == "" {
			return tool.Result{}, tool.InvalidParams("'variables' requires 'function'")
		}
		query.Set("function", in.Function)
		addStringParam(query, "file", in.File)
	case "peek":
		if in.File == "" || in.Start == nil || in.End == nil {
			return tool.Result{}, tool.InvalidParams("'peek' requires 'file', 'start', and 'end'")
		}
		query.Set("file", in.File)
		query.Set("start", strconv.Itoa(*in.Start))
		query.Set("end", strconv.Itoa(*in.End))
	case "grep":
		if in.Pattern == "" {
			return tool.Result{}, tool.InvalidParams("'grep' requires 'pattern'")
		}
		query.Set("pattern", in.Pattern)
		addIntParam(query, "max_matches", in.MaxMatches)
		addIntParam(query, "context_lines", in.ContextLines)
	}

	body, err := t.apiGet(ctx, path, query)
	if err != nil {
		return tool.Result{Content: err.Error(), IsError: true}, nil
	}
	return tool.Result{Content: tool.Truncate(body)}, nil
}

func addStringParam(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

func addIntParam(q url.Values, key string, val *int) {
	if val != nil {
		q.Set(key, strconv.Itoa(*val))
	}
}

// apiGet issues an authenticated GET, lazily acquiring a session and
// retrying once with a fresh session on a 401/410 (session expired).
func (t *Tool) apiGet(ctx context.Context, path string, query url.Values) (string, error) {
	sessionID, err := t.ensureSession(ctx)
	if err != nil {
		return "", err
	}

	body, status, err := t.doGet(ctx, path, query, sessionID)
	if err != nil {
		return "", fmt.Errorf("code-intel request failed: %w", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusGone {
		t.invalidateSession()
		sessionID, err = t.createSession(ctx)
		if err != nil {
			return "", err
		}
		body, status, err = t.doGet(ctx, path, query, sessionID)
		if err != nil {
			return "", fmt.Errorf("code-intel request failed after session refresh: %w", err)
		}
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("code-intel HTTP %d: %s", status, body)
	}
	return body, nil
}

func (t *Tool) doGet(ctx context.Context, path string, query url.Values, sessionID string) (string, int, error) {
	u := t.serverURL + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("X-Session-Id", sessionID)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return string(data), resp.StatusCode, nil
}

func (t *Tool) ensureSession(ctx context.Context) (string, error) {
	t.mu.RLock()
	if t.sessionID != "" {
		defer t.mu.RUnlock()
		return t.sessionID, nil
	}
	t.mu.RUnlock()
	return t.createSession(ctx)
}

func (t *Tool) invalidateSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = ""
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

func (t *Tool) createSession(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{"cwd": t.workingDir})
	if err != nil {
		return "", fmt.Errorf("marshal session request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/sessions", strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("code-intel server not reachable at %s: %w", t.serverURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to create code-intel session: HTTP %d - %s", resp.StatusCode, string(data))
	}

	var sr sessionResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return "", fmt.Errorf("invalid session response: %w", err)
	}

	t.mu.Lock()
	t.sessionID = sr.SessionID
	t.mu.Unlock()
	return sr.SessionID, nil
}
