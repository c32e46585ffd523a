package team

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

func newTestConfig(t *testing.T) Config {
	t.Helper()
	return Config{BaseDir: t.TempDir(), WorkingDir: t.TempDir()}
}

func run(t *testing.T, tl tool.Tool, input string) tool.Result {
	t.Helper()
	res, err := tl.Run(context.Background(), tool.Call{ID: "c1", Name: tl.Definition().Name, Input: input}, tool.Context{})
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", tl.Definition().Name, err)
	}
	return res
}

func TestTeamCreateJoinsHandle(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	create := NewCreateTool(cfg, h)

	run(t, create, `{"name":"alpha","description":"test team"}`)

	st, ok := h.Get()
	if !ok {
		t.Fatal("expected handle to have joined a team")
	}
	if st.TeamName != "alpha" || st.AgentName != LeadAgentName || !st.IsLead {
		t.Fatalf("unexpected state: %+v", st)
	}

	loaded, err := team.ReadTeamConfig(cfg.BaseDir, "alpha")
	if err != nil {
		t.Fatalf("read team config: %v", err)
	}
	if len(loaded.Members) != 1 || loaded.Members[0].Name != LeadAgentName {
		t.Fatalf("expected sole lead member, got %+v", loaded.Members)
	}
}

func TestTeamCreateRejectsWhenAlreadyOnATeam(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	h.Join(team.NewState("existing", LeadAgentName, true, cfg.BaseDir))

	_, err := NewCreateTool(cfg, h).Run(context.Background(), tool.Call{Input: `{"name":"other"}`}, tool.Context{})
	if err == nil {
		t.Fatal("expected error joining a second team")
	}
}

func TestTeamDeleteRefusesWithMultipleMembers(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	run(t, NewSpawnTool(withHarmlessExec(cfg), h), `{"name":"helper","prompt":"do stuff"}`)

	_, err := NewDeleteTool(h).Run(context.Background(), tool.Call{}, tool.Context{})
	if err == nil {
		t.Fatal("expected team_delete to refuse while a sub-agent remains")
	}
}

func TestTeamDeleteSucceedsAlone(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)

	run(t, NewDeleteTool(h), "")

	if _, ok := h.Get(); ok {
		t.Fatal("expected handle to have left the team")
	}
}

// withHarmlessExec points spawn_agent at a binary that exits immediately,
// so tests can exercise membership bookkeeping without leaving the test
// process's own agent config behind as a fork target.
func withHarmlessExec(cfg Config) Config {
	cfg.ExecutablePath = "/bin/true"
	return cfg
}

func TestSpawnAgentRejectsDuplicateName(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	spawn := NewSpawnTool(withHarmlessExec(cfg), h)
	run(t, spawn, `{"name":"helper","prompt":"work"}`)

	_, err := spawn.Run(context.Background(), tool.Call{Input: `{"name":"helper","prompt":"again"}`}, tool.Context{})
	if err == nil {
		t.Fatal("expected rejection of a duplicate agent name")
	}
}

func TestSpawnAgentRegistersMember(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	run(t, NewSpawnTool(withHarmlessExec(cfg), h), `{"name":"helper","prompt":"work","agent_type":"researcher"}`)

	loaded, err := team.ReadTeamConfig(cfg.BaseDir, "alpha")
	if err != nil {
		t.Fatalf("read team config: %v", err)
	}
	if len(loaded.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(loaded.Members))
	}
	if loaded.Members[1].Name != "helper" || loaded.Members[1].AgentType != "researcher" {
		t.Fatalf("unexpected second member: %+v", loaded.Members[1])
	}
}

func TestTaskCreateGetListRoundTrip(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)

	created := run(t, NewCreateTaskTool(h), `{"subject":"write docs","description":"draft the readme"}`)
	var view taskView
	if err := json.Unmarshal([]byte(created.Content), &view); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	if view.Subject != "write docs" || view.Status != team.StatusPending {
		t.Fatalf("unexpected created task: %+v", view)
	}

	got := run(t, NewGetTaskTool(h), `{"id":"`+view.ID+`"}`)
	var fetched taskView
	if err := json.Unmarshal([]byte(got.Content), &fetched); err != nil {
		t.Fatalf("unmarshal get response: %v", err)
	}
	if fetched.ID != view.ID {
		t.Fatalf("expected task %s, got %s", view.ID, fetched.ID)
	}

	listed := run(t, NewListTasksTool(h), "")
	var all []taskView
	if err := json.Unmarshal([]byte(listed.Content), &all); err != nil {
		t.Fatalf("unmarshal list response: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 task, got %d", len(all))
	}
}

func TestTaskUpdateDeletedRemovesFile(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	created := run(t, NewCreateTaskTool(h), `{"subject":"throwaway"}`)
	var view taskView
	_ = json.Unmarshal([]byte(created.Content), &view)

	run(t, NewUpdateTaskTool(h), `{"id":"`+view.ID+`","status":"deleted"}`)

	_, err := NewGetTaskTool(h).Run(context.Background(), tool.Call{Input: `{"id":"` + view.ID + `"}`}, tool.Context{})
	if err == nil {
		t.Fatal("expected task_get to fail after deletion")
	}
}

func TestTaskUpdateCompletedUnblocksDownstream(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)

	upstream := run(t, NewCreateTaskTool(h), `{"subject":"upstream"}`)
	var up taskView
	_ = json.Unmarshal([]byte(upstream.Content), &up)

	downstream := run(t, NewCreateTaskTool(h), `{"subject":"downstream","blocked_by":["`+up.ID+`"]}`)
	var down taskView
	_ = json.Unmarshal([]byte(downstream.Content), &down)
	if len(down.OpenBlockers) != 1 {
		t.Fatalf("expected downstream task to start blocked, got %+v", down.OpenBlockers)
	}

	run(t, NewUpdateTaskTool(h), `{"id":"`+up.ID+`","status":"completed"}`)

	refetched := run(t, NewGetTaskTool(h), `{"id":"`+down.ID+`"}`)
	var refetchedView taskView
	_ = json.Unmarshal([]byte(refetched.Content), &refetchedView)
	if len(refetchedView.OpenBlockers) != 0 {
		t.Fatalf("expected downstream task to be unblocked, got %+v", refetchedView.OpenBlockers)
	}
}

func TestSendMessageDirectDeliversToInbox(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	run(t, NewSpawnTool(withHarmlessExec(cfg), h), `{"name":"helper","prompt":"work"}`)

	run(t, NewSendMessageTool(h), `{"type":"message","recipient":"helper","content":"hello there"}`)

	inbox, err := team.ReadInbox(cfg.BaseDir, "alpha", "helper")
	if err != nil {
		t.Fatalf("read inbox: %v", err)
	}
	if len(inbox) != 1 || inbox[0].Text != "hello there" || inbox[0].From != LeadAgentName {
		t.Fatalf("unexpected inbox contents: %+v", inbox)
	}
}

func TestSendMessageBroadcastSkipsSelf(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	run(t, NewSpawnTool(withHarmlessExec(cfg), h), `{"name":"helper","prompt":"work"}`)

	run(t, NewSendMessageTool(h), `{"type":"broadcast","content":"status check"}`)

	leadInbox, _ := team.ReadInbox(cfg.BaseDir, "alpha", LeadAgentName)
	if len(leadInbox) != 0 {
		t.Fatalf("lead should not message itself, got %+v", leadInbox)
	}
	helperInbox, err := team.ReadInbox(cfg.BaseDir, "alpha", "helper")
	if err != nil {
		t.Fatalf("read helper inbox: %v", err)
	}
	if len(helperInbox) != 1 || helperInbox[0].Text != "status check" {
		t.Fatalf("unexpected helper inbox: %+v", helperInbox)
	}
}

func TestSendMessageShutdownResponseApproveExitsAndRemovesMember(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	run(t, NewSpawnTool(withHarmlessExec(cfg), h), `{"name":"helper","prompt":"work"}`)

	helperHandle := team.NewHandle()
	helperHandle.Join(team.NewState("alpha", "helper", false, cfg.BaseDir))

	sendTool := NewSendMessageTool(helperHandle)
	exited := false
	sendTool.exit = func(code int) { exited = true }

	run(t, sendTool, `{"type":"shutdown_response","approve":true}`)

	if !exited {
		t.Fatal("expected exit to be invoked on shutdown approval")
	}
	if _, ok := helperHandle.Get(); ok {
		t.Fatal("expected helper handle to have left the team")
	}
	loaded, err := team.ReadTeamConfig(cfg.BaseDir, "alpha")
	if err != nil {
		t.Fatalf("read team config: %v", err)
	}
	for _, m := range loaded.Members {
		if m.Name == "helper" {
			t.Fatal("expected helper to be removed from team config")
		}
	}

	leadInbox, err := team.ReadInbox(cfg.BaseDir, "alpha", LeadAgentName)
	if err != nil {
		t.Fatalf("read lead inbox: %v", err)
	}
	if len(leadInbox) != 1 {
		t.Fatalf("expected lead to receive a shutdown confirmation, got %+v", leadInbox)
	}
}

func TestSendMessageShutdownResponseRejectKeepsMembership(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	run(t, NewSpawnTool(withHarmlessExec(cfg), h), `{"name":"helper","prompt":"work"}`)

	helperHandle := team.NewHandle()
	helperHandle.Join(team.NewState("alpha", "helper", false, cfg.BaseDir))
	sendTool := NewSendMessageTool(helperHandle)
	sendTool.exit = func(code int) { t.Fatal("exit should not be called on rejection") }

	run(t, sendTool, `{"type":"shutdown_response","approve":false,"content":"not done yet"}`)

	if _, ok := helperHandle.Get(); !ok {
		t.Fatal("expected helper to remain on the team after rejecting shutdown")
	}
}

func TestCheckInboxMarksReadAndReturnsOnlyNew(t *testing.T) {
	cfg := newTestConfig(t)
	h := team.NewHandle()
	run(t, NewCreateTool(cfg, h), `{"name":"alpha"}`)
	if err := team.AppendInbox(cfg.BaseDir, "alpha", LeadAgentName, team.InboxMessage{From: "helper", Text: "first"}); err != nil {
		t.Fatalf("seed inbox: %v", err)
	}

	first := run(t, NewCheckInboxTool(h), "")
	var firstMsgs []team.InboxMessage
	if err := json.Unmarshal([]byte(first.Content), &firstMsgs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(firstMsgs) != 1 || firstMsgs[0].Text != "first" {
		t.Fatalf("unexpected first check_inbox result: %+v", firstMsgs)
	}

	second := run(t, NewCheckInboxTool(h), "")
	var secondMsgs []team.InboxMessage
	if err := json.Unmarshal([]byte(second.Content), &secondMsgs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(secondMsgs) != 0 {
		t.Fatalf("expected no unread messages on second check, got %+v", secondMsgs)
	}
}

func TestCheckInboxWithoutActiveTeamFails(t *testing.T) {
	h := team.NewHandle()
	_, err := NewCheckInboxTool(h).Run(context.Background(), tool.Call{}, tool.Context{})
	if err == nil {
		t.Fatal("expected error with no active team")
	}
}
