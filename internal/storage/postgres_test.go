package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

func TestPostgresSessionStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := &postgresSessionStore{db: db}
	sess := &message.Session{ID: "sess-1", Title: "t", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(sess.ID, sess.Title, sess.MessageCount, sess.PromptTokens, sess.CompletionTokens, sess.Cost, sess.CreatedAt, sess.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSessionStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := &postgresSessionStore{db: db}
	mock.ExpectQuery("SELECT id, title").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "message_count", "prompt_tokens", "completion_tokens", "cost", "created_at", "updated_at"}))

	if _, err := store.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresMessageStoreRoundTripsParts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := &postgresMessageStore{db: db}
	now := time.Now()
	partsJSON := `[{"kind":"text","text":"hi"}]`

	mock.ExpectQuery("SELECT id, session_id, role, parts").
		WithArgs("msg-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "role", "parts", "model_id", "usage", "created_at", "updated_at"}).
			AddRow("msg-1", "sess-1", "assistant", partsJSON, "gpt", nil, now, now))

	got, err := store.Get(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Parts) != 1 || got.Parts[0].Text != "hi" {
		t.Fatalf("Get() parts = %+v", got.Parts)
	}
	if got.ModelID != "gpt" {
		t.Fatalf("Get() model_id = %q", got.ModelID)
	}
}

func TestPostgresSessionStoreUpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := &postgresSessionStore{db: db}
	sess := &message.Session{ID: "missing", Title: "t", UpdatedAt: time.Now()}

	mock.ExpectExec("UPDATE sessions").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Update(context.Background(), sess); err != ErrNotFound {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestNewPostgresStoresFromDSNRequiresDSN(t *testing.T) {
	if _, err := NewPostgresStoresFromDSN("", nil); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
