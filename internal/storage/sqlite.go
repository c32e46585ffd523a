package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

// SQLite driver names registered with database/sql: DriverCGO is
// mattn/go-sqlite3 (cgo, the faster default); DriverPureGo is
// modernc.org/sqlite (pure Go, for cross-compiled/CGO_ENABLED=0 builds),
// matching the teacher's own cgo-vs-pure-Go sqlite driver split.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	cost REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	parts TEXT NOT NULL,
	model_id TEXT,
	usage TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages (session_id, created_at);
`

// NewSQLiteStores opens (creating if absent) a sqlite-backed StoreSet at
// path using the cgo mattn/go-sqlite3 driver, the zero-config on-disk
// default: no server, no DSN tuning, just a file. ":memory:" is accepted
// for tests.
func NewSQLiteStores(path string) (StoreSet, error) {
	return newSQLiteStores(path, DriverCGO)
}

// NewPureGoSQLiteStores is NewSQLiteStores backed by modernc.org/sqlite
// instead, for CGO_ENABLED=0 builds that can't link the cgo driver.
func NewPureGoSQLiteStores(path string) (StoreSet, error) {
	return newSQLiteStores(path, DriverPureGo)
}

func newSQLiteStores(path, driver string) (StoreSet, error) {
	if strings.TrimSpace(path) == "" {
		return StoreSet{}, fmt.Errorf("path is required")
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return StoreSet{}, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite is not safe for concurrent writers across connections

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return StoreSet{}, fmt.Errorf("migrate schema: %w", err)
	}

	return StoreSet{
		Sessions: &sqliteSessionStore{db: db},
		Messages: &sqliteMessageStore{db: db},
		closer:   db.Close,
	}, nil
}

type sqliteSessionStore struct {
	db *sql.DB
}

func (s *sqliteSessionStore) Create(ctx context.Context, session *message.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, message_count, prompt_tokens, completion_tokens, cost, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		session.ID, session.Title, session.MessageCount, session.PromptTokens,
		session.CompletionTokens, session.Cost, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *sqliteSessionStore) Get(ctx context.Context, id string) (*message.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, message_count, prompt_tokens, completion_tokens, cost, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*message.Session, error) {
	var sess message.Session
	if err := row.Scan(
		&sess.ID, &sess.Title, &sess.MessageCount, &sess.PromptTokens,
		&sess.CompletionTokens, &sess.Cost, &sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *sqliteSessionStore) List(ctx context.Context, limit, offset int) ([]*message.Session, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	query := `SELECT id, title, message_count, prompt_tokens, completion_tokens, cost, created_at, updated_at
		FROM sessions ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*message.Session
	for rows.Next() {
		var sess message.Session
		if err := rows.Scan(
			&sess.ID, &sess.Title, &sess.MessageCount, &sess.PromptTokens,
			&sess.CompletionTokens, &sess.Cost, &sess.CreatedAt, &sess.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, &sess)
	}
	return out, total, rows.Err()
}

func (s *sqliteSessionStore) Update(ctx context.Context, session *message.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title=?, message_count=?, prompt_tokens=?, completion_tokens=?, cost=?, updated_at=?
		 WHERE id=?`,
		session.Title, session.MessageCount, session.PromptTokens, session.CompletionTokens,
		session.Cost, session.UpdatedAt, session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

func (s *sqliteSessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

type sqliteMessageStore struct {
	db *sql.DB
}

func (s *sqliteMessageStore) Create(ctx context.Context, msg *message.Message) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("message is required")
	}
	partsJSON, usageJSON, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, parts, model_id, usage, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		msg.ID, msg.SessionID, string(msg.Role), partsJSON, msg.ModelID, usageJSON, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *sqliteMessageStore) Get(ctx context.Context, id string) (*message.Message, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, role, parts, model_id, usage, created_at, updated_at
		 FROM messages WHERE id = ?`, id)
	return scanMessageRow(row)
}

func (s *sqliteMessageStore) ListBySession(ctx context.Context, sessionID string) ([]*message.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, parts, model_id, usage, created_at, updated_at
		 FROM messages WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*message.Message
	for rows.Next() {
		msg, err := scanMessageRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *sqliteMessageStore) Update(ctx context.Context, msg *message.Message) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("message is required")
	}
	partsJSON, usageJSON, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET parts=?, model_id=?, usage=?, updated_at=? WHERE id=?`,
		partsJSON, msg.ModelID, usageJSON, msg.UpdatedAt, msg.ID,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

func (s *sqliteMessageStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

// encodeMessage marshals a Message's Parts and Usage to JSON for storage,
// preserving the exactly-one-payload ContentPart shape on round-trip.
func encodeMessage(msg *message.Message) (partsJSON string, usageJSON sql.NullString, err error) {
	raw, err := json.Marshal(msg.Parts)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("marshal parts: %w", err)
	}
	partsJSON = string(raw)
	if msg.Usage != nil {
		u, err := json.Marshal(msg.Usage)
		if err != nil {
			return "", sql.NullString{}, fmt.Errorf("marshal usage: %w", err)
		}
		usageJSON = sql.NullString{String: string(u), Valid: true}
	}
	return partsJSON, usageJSON, nil
}

func decodeMessage(msg *message.Message, partsJSON string, usageJSON sql.NullString) error {
	if partsJSON != "" {
		if err := json.Unmarshal([]byte(partsJSON), &msg.Parts); err != nil {
			return fmt.Errorf("unmarshal parts: %w", err)
		}
	}
	if usageJSON.Valid {
		var u message.TokenUsage
		if err := json.Unmarshal([]byte(usageJSON.String), &u); err != nil {
			return fmt.Errorf("unmarshal usage: %w", err)
		}
		msg.Usage = &u
	}
	return nil
}

func scanMessageRow(row *sql.Row) (*message.Message, error) {
	var msg message.Message
	var role, partsJSON string
	var modelID sql.NullString
	var usageJSON sql.NullString
	if err := row.Scan(&msg.ID, &msg.SessionID, &role, &partsJSON, &modelID, &usageJSON, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	msg.Role = message.Role(role)
	msg.ModelID = modelID.String
	if err := decodeMessage(&msg, partsJSON, usageJSON); err != nil {
		return nil, err
	}
	return &msg, nil
}

func scanMessageRows(rows *sql.Rows) (*message.Message, error) {
	var msg message.Message
	var role, partsJSON string
	var modelID sql.NullString
	var usageJSON sql.NullString
	if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &partsJSON, &modelID, &usageJSON, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	msg.Role = message.Role(role)
	msg.ModelID = modelID.String
	if err := decodeMessage(&msg, partsJSON, usageJSON); err != nil {
		return nil, err
	}
	return &msg, nil
}

func rowsAffectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
