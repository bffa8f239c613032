// Package store provides session storage backends for Zenflow.
//
// Sessions live behind the Store interface so the orchestrator never touches
// a bare global map: tests inject the in-memory store, production can point
// at SQLite or PostgreSQL through a DSN.
package store

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

// Default store configuration.
const (
	// DefaultSessionTTL is how long an idle session survives before eviction.
	DefaultSessionTTL = time.Hour
	// DefaultEvictionInterval is how often the in-memory janitor sweeps.
	DefaultEvictionInterval = 5 * time.Minute
)

// Store defines the session persistence interface.
type Store interface {
	// GetSession retrieves a session by ID, returning nil when absent.
	GetSession(sessionID string) (*models.Session, error)
	// SaveSession inserts or replaces a session.
	SaveSession(session models.Session) error
	// DeleteSession removes a session; deleting an absent session is not an error.
	DeleteSession(sessionID string) error
	// CountSessions returns the number of live sessions.
	CountSessions() (int, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN              string
	SessionTTL       time.Duration
	EvictionInterval time.Duration
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSessionTTL overrides how long idle sessions are kept.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.SessionTTL = ttl
	}
}

// WithEvictionInterval overrides the janitor sweep interval.
func WithEvictionInterval(interval time.Duration) Option {
	return func(o *Opts) {
		o.EvictionInterval = interval
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite" based on its scheme.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps sessions in a process-local map with TTL eviction.
// Unbounded growth of stale sessions is a correctness risk, so idle entries
// are swept by a background janitor.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]inMemoryEntry
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type inMemoryEntry struct {
	session  models.Session
	lastSeen time.Time
}

// NewInMemoryStore creates an in-memory session store and starts its janitor.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := Opts{SessionTTL: DefaultSessionTTL, EvictionInterval: DefaultEvictionInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &InMemoryStore{
		sessions: make(map[string]inMemoryEntry),
		ttl:      cfg.SessionTTL,
		stop:     make(chan struct{}),
	}
	go s.janitor(cfg.EvictionInterval)
	slog.Debug("InMemoryStore created", "ttl", cfg.SessionTTL, "eviction_interval", cfg.EvictionInterval)
	return s
}

// GetSession retrieves a session by ID, returning nil when absent or expired.
func (s *InMemoryStore) GetSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.expired(entry, time.Now()) {
		return nil, nil
	}
	session := entry.session
	session.Params = entry.session.Params.Clone()
	return &session, nil
}

// SaveSession inserts or replaces a session and refreshes its TTL.
func (s *InMemoryStore) SaveSession(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Params = session.Params.Clone()
	s.sessions[session.ID] = inMemoryEntry{session: session, lastSeen: time.Now()}
	return nil
}

// DeleteSession removes a session.
func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// CountSessions returns the number of unexpired sessions.
func (s *InMemoryStore) CountSessions() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	count := 0
	for _, entry := range s.sessions {
		if !s.expired(entry, now) {
			count++
		}
	}
	return count, nil
}

// Close stops the janitor.
func (s *InMemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *InMemoryStore) expired(entry inMemoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(entry.lastSeen) > s.ttl
}

func (s *InMemoryStore) janitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			evicted := s.evictExpired(time.Now())
			if evicted > 0 {
				slog.Debug("InMemoryStore evicted stale sessions", "count", evicted)
			}
		case <-s.stop:
			return
		}
	}
}

// evictExpired removes sessions idle beyond the TTL and returns how many were dropped.
func (s *InMemoryStore) evictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
