package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/logging"
)

// Store keeps live sessions by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	maxIdle  time.Duration
	logger   *logging.Logger
}

// NewStore creates a store whose sessions share cfg. Sessions idle for
// longer than maxIdle are removed by Sweep.
func NewStore(cfg Config, maxIdle time.Duration) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		maxIdle:  maxIdle,
		logger:   logger.WithService("session_store"),
	}
}

// Create starts a new session with a random id.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	sess, err := New(ctx, id, s.cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Debug("session created", "session_id", id)
	return sess, nil
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("session")
	}
	return sess, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now minus maxIdle and returns how
// many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.maxIdle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccess()) > s.maxIdle {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired idle sessions", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
