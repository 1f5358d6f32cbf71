package event

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store, safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event

	// userBySession maps sessions to owning users for CountByUser; callers
	// record it via BindSession.
	userBySession map[uuid.UUID]uuid.UUID
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{userBySession: make(map[uuid.UUID]uuid.UUID)}
}

// BindSession associates a session with its user for user-scoped counting.
func (s *MemoryStore) BindSession(sessionUUID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userBySession[sessionUUID] = userID
}

func (s *MemoryStore) Insert(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) CountByDevice(_ context.Context, deviceUUID uuid.UUID, since time.Time, types ...Type) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.events {
		if e.DeviceUUID == deviceUUID && !e.OccurredAt.Before(since) && matchType(e.Type, types) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID uuid.UUID, since time.Time, types ...Type) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.events {
		if s.userBySession[e.SessionUUID] == userID && !e.OccurredAt.Before(since) && matchType(e.Type, types) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DistinctFingerprints(_ context.Context, sessionUUID uuid.UUID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range s.events {
		if e.SessionUUID != sessionUUID || e.OccurredAt.Before(since) {
			continue
		}
		if fp := e.Metadata.String("fingerprint"); fp != "" {
			seen[fp] = struct{}{}
		}
	}
	return len(seen), nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.events)
	s.events = slices.DeleteFunc(s.events, func(e Event) bool {
		return e.OccurredAt.Before(cutoff)
	})
	return int64(before - len(s.events)), nil
}

func matchType(t Type, types []Type) bool {
	if len(types) == 0 {
		return true
	}
	return slices.Contains(types, t)
}
