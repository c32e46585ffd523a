package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shankslo8/octo-code-agent/internal/message"
)

// MemorySessionStore provides an in-memory SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*message.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*message.Session)}
}

func (s *MemorySessionStore) Create(ctx context.Context, session *message.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*message.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) List(ctx context.Context, limit, offset int) ([]*message.Session, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*message.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		cp := *session
		sessions = append(sessions, &cp)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return paginateSessions(sessions, limit, offset), len(sessions), nil
}

func paginateSessions(sessions []*message.Session, limit, offset int) []*message.Session {
	if offset < 0 {
		offset = 0
	}
	if offset > len(sessions) {
		offset = len(sessions)
	}
	end := len(sessions)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sessions[offset:end]
}

func (s *MemorySessionStore) Update(ctx context.Context, session *message.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; !exists {
		return ErrNotFound
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; !exists {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// MemoryMessageStore provides an in-memory MessageStore.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[string]*message.Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[string]*message.Message)}
}

func (s *MemoryMessageStore) Create(ctx context.Context, msg *message.Message) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("message is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[msg.ID]; exists {
		return ErrAlreadyExists
	}
	cp := deepCopyMessage(msg)
	s.messages[msg.ID] = cp
	return nil
}

func (s *MemoryMessageStore) Get(ctx context.Context, id string) (*message.Message, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopyMessage(msg), nil
}

func (s *MemoryMessageStore) ListBySession(ctx context.Context, sessionID string) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]*message.Message, 0)
	for _, msg := range s.messages {
		if msg.SessionID != sessionID {
			continue
		}
		msgs = append(msgs, deepCopyMessage(msg))
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (s *MemoryMessageStore) Update(ctx context.Context, msg *message.Message) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("message is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[msg.ID]; !exists {
		return ErrNotFound
	}
	s.messages[msg.ID] = deepCopyMessage(msg)
	return nil
}

func (s *MemoryMessageStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[id]; !exists {
		return ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

func deepCopyMessage(msg *message.Message) *message.Message {
	cp := *msg
	cp.Parts = append([]message.ContentPart(nil), msg.Parts...)
	if msg.Usage != nil {
		u := *msg.Usage
		cp.Usage = &u
	}
	return &cp
}

// NewMemoryStores constructs a StoreSet backed entirely by memory; nothing
// it holds survives the process.
func NewMemoryStores() StoreSet {
	return StoreSet{
		Sessions: NewMemorySessionStore(),
		Messages: NewMemoryMessageStore(),
	}
}
