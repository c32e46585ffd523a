// Package team implements the filesystem-backed message-passing and
// task-board substrate shared among a team's lead and spawned sub-agent
// processes (spec §3, §4.5). Ported from original_source's
// core/team.rs, including its accepted non-atomicity (spec §9.2/§9.3).
package team

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// State is this process's view of its team membership: which team, which
// agent name it answers to, and whether it is the lead. Shared behind a
// reader/writer lock by the driver; each spawned sub-agent has its own.
type State struct {
	TeamName  string
	AgentName string
	AgentID   string
	IsLead    bool
	BaseDir   string
}

// NewState builds a State for a freshly joining/creating agent.
func NewState(teamName, agentName string, isLead bool, baseDir string) State {
	return State{
		TeamName:  teamName,
		AgentName: agentName,
		AgentID:   fmt.Sprintf("%s@%s", agentName, teamName),
		IsLead:    isLead,
		BaseDir:   baseDir,
	}
}

// DefaultBaseDir returns "$HOME/.octo-code", falling back to "." if the
// home directory can't be resolved.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".octo-code")
}

func teamsDir(base string) string          { return filepath.Join(base, "teams") }
func tasksDir(base, team string) string    { return filepath.Join(base, "tasks", team) }
func teamConfigPath(base, team string) string {
	return filepath.Join(teamsDir(base), team, "config.json")
}
func inboxesDir(base, team string) string { return filepath.Join(teamsDir(base), team, "inboxes") }
func inboxPath(base, team, agent string) string {
	return filepath.Join(inboxesDir(base, team), agent+".json")
}

// InboxPath exposes an agent's inbox file path so callers can watch it
// directly (check_inbox's fsnotify fast path) instead of polling.
func InboxPath(base, team, agent string) string {
	return inboxPath(base, team, agent)
}

// Member is one team participant.
type Member struct {
	AgentID  string    `json:"agent_id"`
	Name     string    `json:"name"`
	AgentType string   `json:"agent_type"`
	Model    string    `json:"model,omitempty"`
	Cwd      string    `json:"cwd"`
	JoinedAt time.Time `json:"joined_at"`
}

// Config is the team's on-disk manifest.
type Config struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	LeadAgentID string    `json:"lead_agent_id"`
	Members     []Member  `json:"members"`
}

// Status enumerates Task.Status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Task is one entry on the team's shared task board.
type Task struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	ActiveForm  string         `json:"active_form,omitempty"`
	Owner       string         `json:"owner,omitempty"`
	Blocks      []string       `json:"blocks"`
	BlockedBy   []string       `json:"blocked_by"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InboxMessage is one entry in an agent's inbox file.
type InboxMessage struct {
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSONPretty(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadTeamConfig loads a team's config.json.
func ReadTeamConfig(base, team string) (Config, error) {
	var cfg Config
	err := readJSON(teamConfigPath(base, team), &cfg)
	return cfg, err
}

// WriteTeamConfig persists a team's config.json, creating parents.
func WriteTeamConfig(base, team string, cfg Config) error {
	return writeJSONPretty(teamConfigPath(base, team), cfg)
}

// ReadTask loads a single task by id.
func ReadTask(base, team, id string) (Task, error) {
	var t Task
	err := readJSON(filepath.Join(tasksDir(base, team), id+".json"), &t)
	return t, err
}

// WriteTask persists a task, creating the team's task directory.
func WriteTask(base, team string, t Task) error {
	return writeJSONPretty(filepath.Join(tasksDir(base, team), t.ID+".json"), t)
}

// DeleteTask removes a task file; a "deleted" request is file removal,
// never a status value (spec §3).
func DeleteTask(base, team, id string) error {
	path := filepath.Join(tasksDir(base, team), id+".json")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Remove(path)
}

// ListTasks reads every task file in the team's task directory (excluding
// counter.json), sorted by numeric id.
func ListTasks(base, team string) ([]Task, error) {
	dir := tasksDir(base, team)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tasks []Task
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		stem := name[:len(name)-len(".json")]
		if stem == "counter" {
			continue
		}
		var t Task
		if err := readJSON(filepath.Join(dir, name), &t); err == nil {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, _ := strconv.ParseUint(tasks[i].ID, 10, 64)
		b, _ := strconv.ParseUint(tasks[j].ID, 10, 64)
		return a < b
	})
	return tasks, nil
}

// OpenBlockers returns the subset of t.BlockedBy whose referenced task
// exists and is not completed (task_list's "open blockers" computation,
// spec §4.5).
func OpenBlockers(base, team string, t Task) []string {
	var open []string
	for _, id := range t.BlockedBy {
		blocker, err := ReadTask(base, team, id)
		if err != nil {
			continue
		}
		if blocker.Status != StatusCompleted {
			open = append(open, id)
		}
	}
	return open
}

// UnblockDownstream removes completedID from every other task's
// BlockedBy list (task_update's auto-unblock side effect, spec §4.5).
func UnblockDownstream(base, team, completedID string) error {
	tasks, err := ListTasks(base, team)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t.ID == completedID {
			continue
		}
		changed := false
		kept := t.BlockedBy[:0:0]
		for _, id := range t.BlockedBy {
			if id == completedID {
				changed = true
				continue
			}
			kept = append(kept, id)
		}
		if changed {
			t.BlockedBy = kept
			if err := WriteTask(base, team, t); err != nil {
				return err
			}
		}
	}
	return nil
}

type counter struct {
	NextID uint64 `json:"next_id"`
}

// NextTaskID reads-increments-writes the team's counter.json, returning
// the pre-increment value as a decimal string. Not crash-safe across
// concurrent writers from separate processes (spec §9.3) — by design,
// matching the source this is ported from.
func NextTaskID(base, team string) (string, error) {
	dir := tasksDir(base, team)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "counter.json")

	c := counter{NextID: 1}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &c)
		if c.NextID == 0 {
			c.NextID = 1
		}
	}

	id := c.NextID
	c.NextID++

	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return strconv.FormatUint(id, 10), nil
}

// ReadInbox loads an agent's inbox, returning an empty slice if the file
// doesn't exist or is blank.
func ReadInbox(base, team, agent string) ([]InboxMessage, error) {
	path := inboxPath(base, team, agent)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []InboxMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// AppendInbox does a full read-modify-write of an agent's inbox file.
// Concurrent appends from sibling processes race here by design (spec
// §9.2): this mirrors the source's behavior rather than fixing it.
func AppendInbox(base, team, agent string, msg InboxMessage) error {
	if err := os.MkdirAll(inboxesDir(base, team), 0o755); err != nil {
		return err
	}
	msgs, err := ReadInbox(base, team, agent)
	if err != nil {
		msgs = nil
	}
	msgs = append(msgs, msg)
	return writeJSONPretty(inboxPath(base, team, agent), msgs)
}

// WriteInbox overwrites an agent's inbox wholesale, used by check_inbox
// to persist messages marked read. Same non-atomic write as AppendInbox.
func WriteInbox(base, team, agent string, msgs []InboxMessage) error {
	if err := os.MkdirAll(inboxesDir(base, team), 0o755); err != nil {
		return err
	}
	return writeJSONPretty(inboxPath(base, team, agent), msgs)
}
