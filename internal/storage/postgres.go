package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

// PostgresConfig configures connection pooling for the postgres backend,
// following the teacher's Cockroach pool-tuning defaults.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	parts JSONB NOT NULL,
	model_id TEXT,
	usage JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages (session_id, created_at);
`

// NewPostgresStoresFromDSN creates postgres-backed stores using a DSN,
// the durable option for deployments that already run Postgres rather
// than the sqlite default.
func NewPostgresStoresFromDSN(dsn string, config *PostgresConfig) (StoreSet, error) {
	if strings.TrimSpace(dsn) == "" {
		return StoreSet{}, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return StoreSet{}, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return StoreSet{}, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return StoreSet{}, fmt.Errorf("migrate schema: %w", err)
	}

	return StoreSet{
		Sessions: &postgresSessionStore{db: db},
		Messages: &postgresMessageStore{db: db},
		closer:   db.Close,
	}, nil
}

type postgresSessionStore struct {
	db *sql.DB
}

func (s *postgresSessionStore) Create(ctx context.Context, session *message.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, message_count, prompt_tokens, completion_tokens, cost, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		session.ID, session.Title, session.MessageCount, session.PromptTokens,
		session.CompletionTokens, session.Cost, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *postgresSessionStore) Get(ctx context.Context, id string) (*message.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, message_count, prompt_tokens, completion_tokens, cost, created_at, updated_at
		 FROM sessions WHERE id = $1`, id)

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

func (s *postgresSessionStore) List(ctx context.Context, limit, offset int) ([]*message.Session, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	args := []any{}
	var query strings.Builder
	query.WriteString(`SELECT id, title, message_count, prompt_tokens, completion_tokens, cost, created_at, updated_at
		FROM sessions ORDER BY created_at DESC`)
	if limit > 0 {
		args = append(args, limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if offset > 0 {
		args = append(args, offset)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
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

func (s *postgresSessionStore) Update(ctx context.Context, session *message.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title=$1, message_count=$2, prompt_tokens=$3, completion_tokens=$4, cost=$5, updated_at=$6
		 WHERE id=$7`,
		session.Title, session.MessageCount, session.PromptTokens, session.CompletionTokens,
		session.Cost, session.UpdatedAt, session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

func (s *postgresSessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

type postgresMessageStore struct {
	db *sql.DB
}

func (s *postgresMessageStore) Create(ctx context.Context, msg *message.Message) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("message is required")
	}
	partsJSON, usageJSON, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, parts, model_id, usage, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		msg.ID, msg.SessionID, string(msg.Role), partsJSON, msg.ModelID, usageJSON, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *postgresMessageStore) Get(ctx context.Context, id string) (*message.Message, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, role, parts, model_id, usage, created_at, updated_at
		 FROM messages WHERE id = $1`, id)
	return scanPostgresMessage(row)
}

func scanPostgresMessage(row *sql.Row) (*message.Message, error) {
	var msg message.Message
	var role, partsJSON string
	var modelID, usageJSON sql.NullString
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

func (s *postgresMessageStore) ListBySession(ctx context.Context, sessionID string) ([]*message.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, parts, model_id, usage, created_at, updated_at
		 FROM messages WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*message.Message
	for rows.Next() {
		var msg message.Message
		var role, partsJSON string
		var modelID, usageJSON sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &partsJSON, &modelID, &usageJSON, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = message.Role(role)
		msg.ModelID = modelID.String
		if err := decodeMessage(&msg, partsJSON, usageJSON); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func (s *postgresMessageStore) Update(ctx context.Context, msg *message.Message) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("message is required")
	}
	partsJSON, usageJSON, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET parts=$1, model_id=$2, usage=$3, updated_at=$4 WHERE id=$5`,
		partsJSON, msg.ModelID, usageJSON, msg.UpdatedAt, msg.ID,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

func (s *postgresMessageStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}
