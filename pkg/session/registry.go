package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
)

// Defaults used by NewRegistry.
const (
	DefaultIdleTimeout     = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTimeout sets how long a session may go without updates before
// ExpireIdle removes it.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithCleanupInterval sets the period of the StartCleanup loop.
func WithCleanupInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.cleanupInterval = d
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry tracks the sessions of a server. Work on one thread is
// serialized: a Lease or an Update holds the thread until it is done.
type Registry struct {
	store           Store
	idleTimeout     time.Duration
	cleanupInterval time.Duration
	logger          logrus.FieldLogger
	now             func() time.Time

	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	ch   chan struct{}
	refs int
}

// NewRegistry returns a registry over store.
func NewRegistry(store Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, &core.ConfigError{Field: "store", Err: core.ErrInvalidConfig}
	}
	r := &Registry{
		store:           store,
		idleTimeout:     DefaultIdleTimeout,
		cleanupInterval: DefaultCleanupInterval,
		logger:          logrus.StandardLogger(),
		now:             time.Now,
		locks:           make(map[string]*threadLock),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.idleTimeout <= 0 {
		return nil, &core.ConfigError{Field: "idle_timeout", Value: r.idleTimeout, Err: core.ErrInvalidConfig}
	}
	if r.cleanupInterval <= 0 {
		return nil, &core.ConfigError{Field: "cleanup_interval", Value: r.cleanupInterval, Err: core.ErrInvalidConfig}
	}
	return r, nil
}

// lock waits for exclusive use of threadID.
func (r *Registry) lock(ctx context.Context, threadID string) (func(), error) {
	r.mu.Lock()
	l, ok := r.locks[threadID]
	if !ok {
		l = &threadLock{ch: make(chan struct{}, 1)}
		r.locks[threadID] = l
	}
	l.refs++
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, threadID)
		}
		r.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				release()
			})
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

// tryLock takes threadID only if nobody holds it.
func (r *Registry) tryLock(threadID string) (func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.locks[threadID]; busy {
		return nil, false
	}
	l := &threadLock{ch: make(chan struct{}, 1), refs: 1}
	l.ch <- struct{}{}
	r.locks[threadID] = l
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			r.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(r.locks, threadID)
			}
			r.mu.Unlock()
		})
	}, true
}

// Lease is exclusive use of one thread's session.
type Lease struct {
	registry *Registry
	session  *Session
	created  bool
	unlock   func()
}

// Acquire waits until no other lease or update holds threadID, then loads
// its session, creating an empty one if the thread is new. The caller must
// Release the lease.
func (r *Registry) Acquire(ctx context.Context, threadID string) (*Lease, error) {
	if threadID == "" {
		return nil, errors.New("thread id is required")
	}
	unlock, err := r.lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	sess, err := r.store.Load(ctx, threadID)
	created := false
	if errors.Is(err, ErrNotFound) {
		now := r.now()
		sess = &Session{ThreadID: threadID, CreatedAt: now, UpdatedAt: now}
		created = true
		err = nil
	}
	if err != nil {
		unlock()
		return nil, err
	}
	return &Lease{registry: r, session: sess, created: created, unlock: unlock}, nil
}

// Session returns the leased session. Changes are stored by Save.
func (l *Lease) Session() *Session {
	return l.session
}

// Created reports whether the session did not exist before the lease.
func (l *Lease) Created() bool {
	return l.created
}

// Save stores the leased session, stamping its update time.
func (l *Lease) Save(ctx context.Context) error {
	l.session.UpdatedAt = l.registry.now()
	l.session.Messages = l.session.Messages.Durable()
	if err := l.registry.store.Save(ctx, l.session); err != nil {
		return err
	}
	l.created = false
	return nil
}

// Release gives up the thread. It is safe to call more than once.
func (l *Lease) Release() {
	l.unlock()
}

// GetOrCreate returns the session of threadID, creating and storing an
// empty one for new threads.
func (r *Registry) GetOrCreate(ctx context.Context, threadID string) (*Session, bool, error) {
	lease, err := r.Acquire(ctx, threadID)
	if err != nil {
		return nil, false, err
	}
	defer lease.Release()
	created := lease.Created()
	if created {
		if err := lease.Save(ctx); err != nil {
			return nil, false, err
		}
	}
	return lease.Session().Clone(), created, nil
}

// Get returns the stored session or ErrNotFound.
func (r *Registry) Get(ctx context.Context, threadID string) (*Session, error) {
	return r.store.Load(ctx, threadID)
}

// Update applies fn to the session of threadID while holding the thread and
// stores the result. Nothing is stored when fn fails.
func (r *Registry) Update(ctx context.Context, threadID string, fn func(*Session) error) (*Session, error) {
	lease, err := r.Acquire(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	if err := fn(lease.Session()); err != nil {
		return nil, err
	}
	if err := lease.Save(ctx); err != nil {
		return nil, err
	}
	return lease.Session().Clone(), nil
}

// Delete removes the session of threadID, waiting for current work on the
// thread to finish first.
func (r *Registry) Delete(ctx context.Context, threadID string) error {
	unlock, err := r.lock(ctx, threadID)
	if err != nil {
		return err
	}
	defer unlock()
	return r.store.Delete(ctx, threadID)
}

// ExpireIdle removes sessions that have not been updated within the idle
// timeout and returns how many were removed. Threads held by a lease or an
// update are skipped, and each candidate is checked again while held.
func (r *Registry) ExpireIdle(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.idleTimeout)
	ids, err := r.store.Idle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire idle sessions: %w", err)
	}
	removed := 0
	for _, id := range ids {
		unlock, ok := r.tryLock(id)
		if !ok {
			continue
		}
		expired, err := r.store.Expire(ctx, id, cutoff)
		unlock()
		if err != nil {
			return removed, fmt.Errorf("expire idle sessions: %w", err)
		}
		if expired {
			removed++
		}
	}
	if removed > 0 {
		r.logger.WithField("count", removed).Debug("expired idle sessions")
	}
	return removed, nil
}

// StartCleanup runs ExpireIdle every cleanup interval until ctx is done.
// The returned channel is closed when the loop has stopped.
func (r *Registry) StartCleanup(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.ExpireIdle(ctx); err != nil && ctx.Err() == nil {
					r.logger.WithError(err).Warn("session cleanup failed")
				}
			}
		}
	}()
	return done
}
