// Package storage implements the persistence collaborator contract the
// agent loop depends on but does not own: CRUD on sessions and messages,
// with messages always returned ordered by creation time. Session/message
// storage is explicitly a collaborator, not a core concern, so these
// implementations exist to exercise real backends rather than to define
// the system's semantics.
package storage

import (
	"context"
	"errors"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// SessionStore persists Session records.
type SessionStore interface {
	Create(ctx context.Context, session *message.Session) error
	Get(ctx context.Context, id string) (*message.Session, error)
	List(ctx context.Context, limit, offset int) ([]*message.Session, int, error)
	Update(ctx context.Context, session *message.Session) error
	Delete(ctx context.Context, id string) error
}

// MessageStore persists Message records, always returning them ordered
// by CreatedAt ascending for a given session.
type MessageStore interface {
	Create(ctx context.Context, msg *message.Message) error
	Get(ctx context.Context, id string) (*message.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]*message.Message, error)
	Update(ctx context.Context, msg *message.Message) error
	Delete(ctx context.Context, id string) error
}

// StoreSet groups the storage collaborators the agent loop's host wires up.
type StoreSet struct {
	Sessions SessionStore
	Messages MessageStore
	closer   func() error
}

// Close closes any underlying resources (a no-op for memory stores).
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
