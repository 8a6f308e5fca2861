// Package session implements the Pending-Session Store (C10): the
// process-local, non-persistent bridge between an ingest response that
// contains merge proposals and the client's confirmation call.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campaigngraph/campaigngraph/engine/domain"
)

// DefaultTTL is the pending-session lifetime (§4.2, §6's session_ttl_seconds).
const DefaultTTL = 15 * time.Minute

// DefaultSweepInterval is how often expired sessions are evicted (§4.10).
const DefaultSweepInterval = 60 * time.Second

// Store is an in-process map from note id to its PendingDedupSession,
// intentionally not persistent: a crashed process forfeits pending
// sessions, and the client re-ingests the same content-derived note id to
// recover (§4.10).
type Store struct {
	sessions sync.Map // note id -> domain.PendingDedupSession

	sweepInterval time.Duration
}

// New builds a Store. sweepInterval overrides DefaultSweepInterval when > 0.
func New(sweepInterval time.Duration) *Store {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Store{sweepInterval: sweepInterval}
}

// Put stores a pending session, keyed by its note id, overwriting any
// existing entry for that note.
func (s *Store) Put(sess domain.PendingDedupSession) {
	s.sessions.Store(sess.NoteID, sess)
}

// Get returns the pending session for noteID, if present and unexpired.
func (s *Store) Get(noteID string) (domain.PendingDedupSession, bool) {
	v, ok := s.sessions.Load(noteID)
	if !ok {
		return domain.PendingDedupSession{}, false
	}
	sess := v.(domain.PendingDedupSession)
	if time.Now().After(sess.ExpiresAt) {
		s.sessions.Delete(noteID)
		return domain.PendingDedupSession{}, false
	}
	return sess, true
}

// Remove deletes the pending session for noteID, called on confirmation.
func (s *Store) Remove(noteID string) {
	s.sessions.Delete(noteID)
}

// RunSweeper evicts expired sessions every sweepInterval until ctx is
// cancelled. Intended to run in its own goroutine for the process lifetime.
func (s *Store) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	evicted := 0
	s.sessions.Range(func(key, value any) bool {
		sess := value.(domain.PendingDedupSession)
		if now.After(sess.ExpiresAt) {
			s.sessions.Delete(key)
			evicted++
		}
		return true
	})
	if evicted > 0 {
		slog.Debug("session: swept expired pending sessions", "evicted", evicted)
	}
}
