// Package memory provides an in-memory implementation of the storage
// interfaces. It is suitable for development, testing, and
// single-instance deployments.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gatekit/gatekit/storage"
)

// Store is an in-memory implementation of storage.UserStore and
// storage.SessionStore. Expired sessions are swept by a background
// cleanup loop; call Stop when the store is no longer needed.
type Store struct {
	mu sync.RWMutex

	users    map[string]*storage.User
	sessions map[string]*storage.Session

	// Atomic counters for metrics (lock-free access during metric collection)
	usersCountAtomic    atomic.Int64
	sessionsCountAtomic atomic.Int64

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.UserStore    = (*Store)(nil)
	_ storage.SessionStore = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval
// (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup
// interval. If cleanupInterval is 0 or negative, the default of 1
// minute is used.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		users:           make(map[string]*storage.User),
		sessions:        make(map[string]*storage.Session),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()
	return s
}

// SetLogger sets the logger for the store. If nil, slog.Default() is used.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	// Return a copy so callers cannot mutate the stored record.
	copied := *user
	copied.Roles = append([]string(nil), user.Roles...)
	copied.Permissions = append([]string(nil), user.Permissions...)
	return &copied, nil
}

// SaveUser stores a user record, replacing any existing record with the
// same ID.
func (s *Store) SaveUser(ctx context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; !exists {
		s.usersCountAtomic.Add(1)
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// DeleteUser removes a user record.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[userID]; exists {
		delete(s.users, userID)
		s.usersCountAtomic.Add(-1)
	}
	return nil
}

// SessionExists reports whether a live session exists for the key.
func (s *Store) SessionExists(ctx context.Context, sessionKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionKey]
	if !ok {
		return false, nil
	}
	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// SaveSession stores a session record.
func (s *Store) SaveSession(ctx context.Context, session *storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.Key]; !exists {
		s.sessionsCountAtomic.Add(1)
	}
	copied := *session
	s.sessions[session.Key] = &copied
	return nil
}

// DeleteSession removes a session record.
func (s *Store) DeleteSession(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionKey]; exists {
		delete(s.sessions, sessionKey)
		s.sessionsCountAtomic.Add(-1)
	}
	return nil
}

// TouchSession updates a session's last-activity time and extends its
// expiry by the given duration. Returns storage.ErrSessionNotFound if
// the session does not exist.
func (s *Store) TouchSession(ctx context.Context, sessionKey string, extend time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionKey]
	if !ok {
		return storage.ErrSessionNotFound
	}
	now := time.Now()
	session.LastActivity = now
	if extend > 0 {
		session.ExpiresAt = now.Add(extend)
	}
	return nil
}

// Counts returns the current number of users and sessions. Safe to call
// from metric collection callbacks without taking the store lock.
func (s *Store) Counts() (users, sessions int64) {
	return s.usersCountAtomic.Load(), s.sessionsCountAtomic.Load()
}

// Stop halts the background cleanup loop. Safe to call multiple times.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// cleanupLoop periodically removes expired sessions.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpiredSessions()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) cleanupExpiredSessions() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, session := range s.sessions {
		if !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt) {
			delete(s.sessions, key)
			s.sessionsCountAtomic.Add(-1)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Cleaned up expired sessions",
			"removed", removed,
			"remaining", len(s.sessions))
	}
}
