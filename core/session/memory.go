package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store with compare-and-set semantics, safe for
// concurrent use. Intended for tests and single-process deployments.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]Session)}
}

func (s *MemoryStore) GetByUUID(_ context.Context, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return &sess, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUnfinished(_ context.Context, deviceUUID, userID uuid.UUID) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.DeviceUUID == deviceUUID && sess.UserID == userID && sess.FinishedAt.IsZero() {
			copy := sess
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.sessions[sess.UUID]; ok && stored.Version != sess.Version {
		return ErrVersionConflict
	}
	sess.Version++
	s.sessions[sess.UUID] = *sess
	return nil
}

func (s *MemoryStore) ListIdleSince(_ context.Context, cutoff time.Time) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.FinishedAt.IsZero() && sess.LastActivityAt.Before(cutoff) {
			copy := sess
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (s *MemoryStore) PreviousForUser(_ context.Context, userID uuid.UUID, before time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev *Session
	for _, sess := range s.sessions {
		if sess.UserID != userID || !sess.StartedAt.Before(before) {
			continue
		}
		if prev == nil || sess.StartedAt.After(prev.StartedAt) {
			copy := sess
			prev = &copy
		}
	}
	if prev == nil {
		return nil, ErrNotFound
	}
	return prev, nil
}

func (s *MemoryStore) CountStartedSince(_ context.Context, deviceUUID uuid.UUID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.DeviceUUID == deviceUUID && !sess.StartedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
