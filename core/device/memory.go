package device

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation, safe for concurrent use.
// Intended for tests and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]Device
}

// NewMemoryStore creates an empty in-memory device store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[uuid.UUID]Device)}
}

func (s *MemoryStore) GetByUUID(_ context.Context, id uuid.UUID) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.devices[id]; ok {
		return &d, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByFingerprint(_ context.Context, fingerprint string) (*Device, error) {
	if fingerprint == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.Fingerprint == fingerprint {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByAdvertisingID(_ context.Context, platform, browser, engine, advertisingID string) (*Device, error) {
	if advertisingID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.AdvertisingID == advertisingID && d.Platform == platform &&
			d.Browser == browser && d.BrowserEngine == engine {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByDeviceID(_ context.Context, platform, browser, engine, deviceID string) (*Device, error) {
	if deviceID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.DeviceID == deviceID && d.Platform == platform &&
			d.Browser == browser && d.BrowserEngine == engine {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Save(_ context.Context, d *Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.UUID] = *d
	return nil
}

func (s *MemoryStore) DeleteOrphaned(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The in-memory store has no session index, so every device past the
	// cutoff counts as orphaned.
	var n int64
	for id, d := range s.devices {
		if d.CreatedAt.Before(cutoff) {
			delete(s.devices, id)
			n++
		}
	}
	return n, nil
}
