package session

import (
	"context"
	"errors"
	"time"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/messages"
)

// ErrNotFound is returned by stores for unknown threads.
var ErrNotFound = errors.New("session not found")

// Session is the server-side record of one thread.
type Session struct {
	ThreadID  string        `json:"threadId"`
	Messages  messages.List `json:"messages"`
	State     any           `json:"state,omitempty"`
	LastRunID string        `json:"lastRunId,omitempty"`
	Runs      int           `json:"runs"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = s.Messages.Clone()
	out.State = core.CloneJSON(s.State)
	return &out
}

// Store persists sessions. Implementations must be safe for concurrent use
// and return ErrNotFound for unknown threads.
type Store interface {
	Load(ctx context.Context, threadID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, threadID string) error
	// Idle returns the thread ids of sessions last updated before the
	// cutoff.
	Idle(ctx context.Context, before time.Time) ([]string, error)
	// Expire removes the session of threadID if it is still idle at the
	// cutoff and reports whether it did.
	Expire(ctx context.Context, threadID string, before time.Time) (bool, error)
}
