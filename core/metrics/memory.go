package metrics

import (
	"context"
	"sync"
	"time"
)

// MemorySampleStore is an in-memory SampleStore for tests and single-node
// deployments. TTLs are ignored; cleanup happens through Delete.
type MemorySampleStore struct {
	mu     sync.Mutex
	series map[string][]Point
}

func NewMemorySampleStore() *MemorySampleStore {
	return &MemorySampleStore{series: make(map[string][]Point)}
}

func (s *MemorySampleStore) Inc(_ context.Context, key Key, v float64, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	pts := s.series[k]
	if len(pts) == 0 {
		s.series[k] = []Point{{Timestamp: time.Now().Unix(), Value: v, Count: 1}}
		return nil
	}
	pts[0].Value += v
	pts[0].Count++
	pts[0].Timestamp = time.Now().Unix()
	return nil
}

func (s *MemorySampleStore) Append(_ context.Context, key Key, p Point, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	s.series[k] = append(s.series[k], p)
	return nil
}

func (s *MemorySampleStore) Keys(_ context.Context, window Window, maxSlot int64) ([]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Key
	for raw := range s.series {
		key, err := ParseKey(raw)
		if err != nil {
			continue
		}
		if key.Window == window && key.Slot <= maxSlot {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *MemorySampleStore) Points(_ context.Context, key Key) ([]Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pts := s.series[key.String()]
	out := make([]Point, len(pts))
	copy(out, pts)
	return out, nil
}

func (s *MemorySampleStore) Delete(_ context.Context, keys ...Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.series, key.String())
	}
	return nil
}

// MemoryAggregateStore is an in-memory AggregateStore keyed by
// (name, type, window, slot, dimensions) so Upsert overwrites.
type MemoryAggregateStore struct {
	mu   sync.Mutex
	rows map[string]Aggregate
}

func NewMemoryAggregateStore() *MemoryAggregateStore {
	return &MemoryAggregateStore{rows: make(map[string]Aggregate)}
}

func aggregateKey(a *Aggregate) string {
	return Key{
		Name:       a.Name,
		Type:       a.Type,
		Window:     a.Window,
		Slot:       a.Window.Slot(a.Timestamp),
		Dimensions: a.Dimensions,
	}.String()
}

func (s *MemoryAggregateStore) Upsert(_ context.Context, a *Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[aggregateKey(a)] = *a
	return nil
}

func (s *MemoryAggregateStore) List(_ context.Context, window Window, from, to time.Time) ([]Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Aggregate
	for _, a := range s.rows {
		if a.Window != window {
			continue
		}
		if a.Timestamp.Before(from) || !a.Timestamp.Before(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryAggregateStore) DeleteOlderThan(_ context.Context, window Window, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, a := range s.rows {
		if a.Window == window && a.Timestamp.Before(cutoff) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}
