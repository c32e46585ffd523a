package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

func TestMemorySessionStoreLifecycle(t *testing.T) {
	store := NewMemorySessionStore()
	sess := &message.Session{ID: uuid.NewString(), Title: "first session", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(context.Background(), sess); err != ErrAlreadyExists {
		t.Fatalf("Create() duplicate error = %v, want ErrAlreadyExists", err)
	}

	got, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != sess.Title {
		t.Fatalf("Get() title = %q", got.Title)
	}

	sess.Title = "renamed"
	sess.UpdatedAt = time.Now()
	if err := store.Update(context.Background(), sess); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	list, total, err := store.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].Title != "renamed" {
		t.Fatalf("List() = %+v, total = %d", list, total)
	}

	if err := store.Delete(context.Background(), sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(context.Background(), sess.ID); err != ErrNotFound {
		t.Fatalf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryMessageStoreOrdersBySessionCreatedAt(t *testing.T) {
	store := NewMemoryMessageStore()
	sessionID := uuid.NewString()
	base := time.Now()

	older := newMessage(sessionID, message.RoleUser, base, "first")
	newer := newMessage(sessionID, message.RoleAssistant, base.Add(time.Second), "second")
	other := newMessage(uuid.NewString(), message.RoleUser, base, "other session")

	for _, m := range []*message.Message{newer, older, other} {
		if err := store.Create(context.Background(), m); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := store.ListBySession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != older.ID || got[1].ID != newer.ID {
		t.Fatalf("ListBySession() order = %+v", got)
	}
}

func TestMemoryMessageStorePreservesContentPartRoundTrip(t *testing.T) {
	store := NewMemoryMessageStore()
	msg := message.NewMessage(uuid.NewString(), message.RoleAssistant)
	msg.Parts = []message.ContentPart{
		message.NewText("hello"),
		message.NewToolCall("call_1", "view", `{"path":"a.go"}`),
	}
	usage := message.TokenUsage{InputTokens: 5, OutputTokens: 7}
	msg.Usage = &usage

	if err := store.Create(context.Background(), &msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Parts) != 2 || got.Parts[1].ToolCallName != "view" {
		t.Fatalf("Get() parts = %+v", got.Parts)
	}
	if got.Usage == nil || got.Usage.InputTokens != 5 {
		t.Fatalf("Get() usage = %+v", got.Usage)
	}

	// mutating the returned copy must not leak back into the store
	got.Parts[0].Text = "mutated"
	reGot, err := store.Get(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if reGot.Parts[0].Text != "hello" {
		t.Fatalf("store leaked caller mutation: %q", reGot.Parts[0].Text)
	}
}

func newMessage(sessionID string, role message.Role, createdAt time.Time, text string) *message.Message {
	m := message.NewMessage(sessionID, role)
	m.CreatedAt = createdAt
	m.Parts = []message.ContentPart{message.NewText(text)}
	return &m
}
