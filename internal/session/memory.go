package session

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	turns    []Turn
	lastSeen time.Time
}

// MemoryStore is an in-process Store. Sessions idle for longer than TTL are
// dropped on access or by Sweep. A non-positive TTL never expires sessions.
type MemoryStore struct {
	TTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*memorySession
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		TTL:      ttl,
		sessions: map[string]*memorySession{},
		now:      time.Now,
	}
}

func (s *MemoryStore) expired(sess *memorySession, now time.Time) bool {
	return s.TTL > 0 && now.Sub(sess.lastSeen) > s.TTL
}

func (s *MemoryStore) History(ctx context.Context, userID string) ([]Turn, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return []Turn{}, nil
	}
	if s.expired(sess, now) {
		delete(s.sessions, userID)
		return []Turn{}, nil
	}
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, userID string, turns ...Turn) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || s.expired(sess, now) {
		sess = &memorySession{}
		s.sessions[userID] = sess
	}
	sess.turns = append(sess.turns, turns...)
	sess.lastSeen = now
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// Sweep removes every expired session and reports how many were dropped.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for userID, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, userID)
			n++
		}
	}
	return n
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
