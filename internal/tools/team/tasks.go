package team

import (
	"context"
	"encoding/json"

	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

// taskView is the JSON shape returned to the model: a Task plus its
// computed open blockers (task_list/task_get's "open blockers"
// computation, spec §4.5).
type taskView struct {
	team.Task
	OpenBlockers []string `json:"open_blockers"`
}

func viewOf(base, teamName string, t team.Task) taskView {
	return taskView{Task: t, OpenBlockers: team.OpenBlockers(base, teamName, t)}
}

// CreateTaskTool implements task_create.
type CreateTaskTool struct{ handle *team.Handle }

func NewCreateTaskTool(handle *team.Handle) *CreateTaskTool { return &CreateTaskTool{handle: handle} }

func (t *CreateTaskTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "task_create",
		Description: "Create a task on the active team's shared task board.",
		Parameters: map[string]tool.ParamSchema{
			"subject":     {Type: "string", Description: "Short task title."},
			"description": {Type: "string", Description: "Full task description."},
			"blocked_by":  {Type: "array", Description: "Task ids this task is blocked by."},
		},
		Required: []string{"subject"},
	}
}

func (t *CreateTaskTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		Subject     string   `json:"subject"`
		Description string   `json:"description"`
		BlockedBy   []string `json:"blocked_by"`
	}
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, invalidParams("parse input: %v", err)
	}
	if in.Subject == "" {
		return tool.Result{}, invalidParams("subject is required")
	}
	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}

	id, err := team.NextTaskID(st.BaseDir, st.TeamName)
	if err != nil {
		return tool.Result{}, executionFailed("allocate task id: %v", err)
	}
	task := team.Task{
		ID:          id,
		Subject:     in.Subject,
		Description: in.Description,
		Status:      team.StatusPending,
		BlockedBy:   in.BlockedBy,
		Blocks:      []string{},
	}
	if err := team.WriteTask(st.BaseDir, st.TeamName, task); err != nil {
		return tool.Result{}, executionFailed("write task: %v", err)
	}
	body, _ := json.Marshal(viewOf(st.BaseDir, st.TeamName, task))
	return tool.Result{Content: string(body)}, nil
}

// GetTaskTool implements task_get.
type GetTaskTool struct{ handle *team.Handle }

func NewGetTaskTool(handle *team.Handle) *GetTaskTool { return &GetTaskTool{handle: handle} }

func (t *GetTaskTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "task_get",
		Description: "Fetch a task from the active team's task board by id.",
		Parameters: map[string]tool.ParamSchema{
			"id": {Type: "string", Description: "Task id."},
		},
		Required: []string{"id"},
	}
}

func (t *GetTaskTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, invalidParams("parse input: %v", err)
	}
	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}
	task, err := team.ReadTask(st.BaseDir, st.TeamName, in.ID)
	if err != nil {
		return tool.Result{}, executionFailed("task %q not found: %v", in.ID, err)
	}
	body, _ := json.Marshal(viewOf(st.BaseDir, st.TeamName, task))
	return tool.Result{Content: string(body)}, nil
}

// UpdateTaskTool implements task_update, including the deleted-is-a-
// file-removal and completed-triggers-auto-unblock special cases.
type UpdateTaskTool struct{ handle *team.Handle }

func NewUpdateTaskTool(handle *team.Handle) *UpdateTaskTool { return &UpdateTaskTool{handle: handle} }

func (t *UpdateTaskTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "task_update",
		Description: "Update a task's status, owner, or progress label.",
		Parameters: map[string]tool.ParamSchema{
			"id":          {Type: "string", Description: "Task id."},
			"status":      {Type: "string", Description: "pending, in_progress, completed, or deleted.", EnumValues: []string{"pending", "in_progress", "completed", "deleted"}},
			"owner":       {Type: "string", Description: "Agent name now owning the task."},
			"active_form": {Type: "string", Description: "Present-continuous label shown while in progress."},
		},
		Required: []string{"id"},
	}
}

func (t *UpdateTaskTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	var in struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		Owner      string `json:"owner"`
		ActiveForm string `json:"active_form"`
	}
	if err := json.Unmarshal([]byte(call.Input), &in); err != nil {
		return tool.Result{}, invalidParams("parse input: %v", err)
	}
	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}

	if in.Status == "deleted" {
		if err := team.DeleteTask(st.BaseDir, st.TeamName, in.ID); err != nil {
			return tool.Result{}, executionFailed("delete task: %v", err)
		}
		return tool.Result{Content: "task deleted"}, nil
	}

	task, err := team.ReadTask(st.BaseDir, st.TeamName, in.ID)
	if err != nil {
		return tool.Result{}, executionFailed("task %q not found: %v", in.ID, err)
	}
	if in.Status != "" {
		task.Status = team.Status(in.Status)
	}
	if in.Owner != "" {
		task.Owner = in.Owner
	}
	if in.ActiveForm != "" {
		task.ActiveForm = in.ActiveForm
	}
	if err := team.WriteTask(st.BaseDir, st.TeamName, task); err != nil {
		return tool.Result{}, executionFailed("write task: %v", err)
	}
	if task.Status == team.StatusCompleted {
		if err := team.UnblockDownstream(st.BaseDir, st.TeamName, task.ID); err != nil {
			return tool.Result{}, executionFailed("auto-unblock: %v", err)
		}
	}
	body, _ := json.Marshal(viewOf(st.BaseDir, st.TeamName, task))
	return tool.Result{Content: string(body)}, nil
}

// ListTasksTool implements task_list.
type ListTasksTool struct{ handle *team.Handle }

func NewListTasksTool(handle *team.Handle) *ListTasksTool { return &ListTasksTool{handle: handle} }

func (t *ListTasksTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "task_list",
		Description: "List every task on the active team's task board.",
	}
}

func (t *ListTasksTool) Run(ctx context.Context, call tool.Call, tc tool.Context) (tool.Result, error) {
	st, err := requireState(t.handle)
	if err != nil {
		return tool.Result{}, err
	}
	tasks, err := team.ListTasks(st.BaseDir, st.TeamName)
	if err != nil {
		return tool.Result{}, executionFailed("list tasks: %v", err)
	}
	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, viewOf(st.BaseDir, st.TeamName, task))
	}
	body, _ := json.Marshal(views)
	return tool.Result{Content: string(body)}, nil
}
