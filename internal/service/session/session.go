// Package session keeps one workflow controller per client session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/pii-guardian/internal/service/workflow"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

var ErrSessionNotFound = errors.New("session not found")

// Factory builds the controller for a new session.
type Factory func(sessionID string) workflow.Workflow

type Session struct {
	ID        string
	Workflow  workflow.Workflow
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen is the last time the session was looked up.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory Factory
	idleTTL time.Duration
	logger  logger.Logger
	now     func() time.Time
}

func NewRegistry(factory Factory, idleTTL time.Duration, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		idleTTL:  idleTTL,
		logger:   log.Named("session"),
		now:      time.Now,
	}
}

func (r *Registry) Create() *Session {
	now := r.now()
	id := uuid.New().String()
	s := &Session{
		ID:        id,
		Workflow:  r.factory(id),
		CreatedAt: now,
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("Session created",
		logger.String("sessionId", id),
		logger.Int("active", count),
	)
	return s
}

// Get returns the session and marks it as recently used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.logger.Info("Session deleted", logger.String("sessionId", id))
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cleanup evicts sessions idle for longer than the TTL and returns how many
// were removed. A run still in flight finishes against its detached
// controller.
func (r *Registry) Cleanup() int {
	if r.idleTTL <= 0 {
		return 0
	}
	threshold := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.LastSeen().Before(threshold) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("Evicted idle sessions",
			logger.Int("removed", removed),
			logger.Time("threshold", threshold),
		)
	}
	return removed
}

// RunJanitor calls Cleanup every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup()
		}
	}
}
