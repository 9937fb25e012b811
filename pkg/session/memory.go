package session

import (
	"context"
	"time"

	"github.com/alphadose/haxmap"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	sessions *haxmap.Map[string, *Session]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: haxmap.New[string, *Session]()}
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(ctx context.Context, threadID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := m.sessions.Get(threadID)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save stores a copy of s, replacing any previous version.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.sessions.Set(s.ThreadID, s.Clone())
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := m.sessions.Get(threadID); !ok {
		return ErrNotFound
	}
	m.sessions.Del(threadID)
	return nil
}

func (m *MemoryStore) Idle(ctx context.Context, before time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var idle []string
	m.sessions.ForEach(func(id string, s *Session) bool {
		if s.UpdatedAt.Before(before) {
			idle = append(idle, id)
		}
		return true
	})
	return idle, nil
}

// Expire re-reads the session before removing it. Writers of one thread
// must be serialized by the caller, as Registry does.
func (m *MemoryStore) Expire(ctx context.Context, threadID string, before time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s, ok := m.sessions.Get(threadID)
	if !ok || !s.UpdatedAt.Before(before) {
		return false, nil
	}
	m.sessions.Del(threadID)
	return true, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	return int(m.sessions.Len())
}
