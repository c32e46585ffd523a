package team

import "testing"

func TestHandleJoinLeave(t *testing.T) {
	h := NewHandle()
	if _, ok := h.Get(); ok {
		t.Fatal("expected no active team initially")
	}
	h.Join(NewState("alpha", "lead", true, "/base"))
	s, ok := h.Get()
	if !ok || s.TeamName != "alpha" || !s.IsLead {
		t.Fatalf("unexpected state after join: %+v ok=%v", s, ok)
	}
	if h.TeamName() != "alpha" || h.AgentName() != "lead" || !h.IsLead() {
		t.Fatalf("handle accessors mismatch")
	}
	h.Leave()
	if _, ok := h.Get(); ok {
		t.Fatal("expected no active team after leave")
	}
}
