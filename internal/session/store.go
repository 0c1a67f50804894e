package session

import (
	"context"
	"sync"
	"time"

	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
)

// Default timings.
const (
	DefaultIdleTimeout   = 10 * time.Minute
	DefaultSweepInterval = 2 * time.Minute
)

// Store is the in-memory session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	timeout  time.Duration
	now      func() time.Time
	onExpire func(*Session)
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOnExpire registers a callback run for each session removed by a
// sweep. It runs outside the store lock.
func WithOnExpire(fn func(*Session)) Option {
	return func(s *Store) { s.onExpire = fn }
}

// NewStore creates a store whose sessions expire after timeout of
// inactivity. A non-positive timeout uses DefaultIdleTimeout.
func NewStore(timeout time.Duration, opts ...Option) *Store {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	s := &Store{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetActive returns the live session for userID and refreshes its activity
// time. Expired sessions are reported as absent.
func (s *Store) GetActive(userID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	now := s.now()
	if sess.expired(now, s.timeout) {
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// Create installs a fresh session for userID, discarding any previous one.
func (s *Store) Create(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(userID)
}

func (s *Store) createLocked(userID string) *Session {
	sess := newSession(userID, s.now())
	s.sessions[userID] = sess
	metrics.SetSessionsActive(len(s.sessions))
	return sess
}

// GetOrCreate returns the live session for userID, creating one when none
// exists or the old one has expired. created reports which happened.
func (s *Store) GetOrCreate(userID string) (sess *Session, created bool) {
	if sess, ok := s.GetActive(userID); ok {
		return sess, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another handler may have created it between the two locks.
	if cur, ok := s.sessions[userID]; ok && !cur.expired(s.now(), s.timeout) {
		cur.touch(s.now())
		return cur, false
	}
	return s.createLocked(userID), true
}

// Remove deletes the session for userID.
func (s *Store) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	metrics.SetSessionsActive(len(s.sessions))
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepExpired removes every expired session and returns how many were
// removed. Expiry is checked under the write lock, so a session created or
// touched concurrently survives.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	now := s.now()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.expired(now, s.timeout) {
			delete(s.sessions, id)
			expired = append(expired, sess)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.SetSessionsActive(count)
	if len(expired) == 0 {
		return 0
	}
	metrics.RecordSessionsExpired(len(expired))
	if s.onExpire != nil {
		for _, sess := range expired {
			s.onExpire(sess)
		}
	}
	return len(expired)
}

// Run sweeps on every interval tick until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				logging.Info("expired idle sessions", logging.Int("count", n))
			}
		}
	}
}
