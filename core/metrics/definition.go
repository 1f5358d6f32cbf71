package metrics

import (
	"fmt"
	"slices"
	"sync"
)

// Unit ties a histogram metric to a default bucket boundary set.
type Unit string

const (
	UnitMilliseconds Unit = "ms"
	UnitSeconds      Unit = "seconds"
	UnitScore        Unit = "score"
	UnitPercentage   Unit = "percentage"
	UnitBytes        Unit = "bytes"
)

// DefaultBuckets are the histogram bucket boundaries per unit.
var DefaultBuckets = map[Unit][]float64{
	UnitMilliseconds: {1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	UnitSeconds:      {0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 600},
	UnitScore:        {10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	UnitPercentage:   {10, 25, 50, 75, 90, 95, 99, 100},
	UnitBytes:        {1024, 10240, 102400, 1048576, 10485760, 104857600},
}

// Definition declares a metric: its type, allowed and required dimension
// keys, value bounds, and unit. Every recorded sample is validated against
// its definition.
type Definition struct {
	Name               string
	Type               Type
	AllowedDimensions  []string
	RequiredDimensions []string
	Min                *float64
	Max                *float64
	Unit               Unit
	Description        string
}

// Buckets returns the histogram boundaries for the definition's unit.
func (d Definition) Buckets() []float64 {
	if b, ok := DefaultBuckets[d.Unit]; ok {
		return b
	}
	return DefaultBuckets[UnitMilliseconds]
}

// Registry holds metric definitions. Registration failures are programming
// errors and fail loud; lookup misses at record time raise ErrNotRegistered.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Required dimensions must be a subset of the
// allowed ones.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return InvalidMetricError{Name: def.Name, Reason: "empty name"}
	}
	if !validTypes[def.Type] {
		return InvalidMetricError{Name: def.Name, Reason: fmt.Sprintf("unknown type %q", def.Type)}
	}
	for _, req := range def.RequiredDimensions {
		if !slices.Contains(def.AllowedDimensions, req) {
			return InvalidMetricError{Name: def.Name, Reason: fmt.Sprintf("required dimension %q not in allowed set", req)}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is Register that panics on failure, for startup paths.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Get returns the definition for a metric name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Validate checks a sample against its definition: correct type (when the
// caller states one), dimension keys within the allowed set, required
// dimensions present, value within [min, max]. Violations return
// InvalidMetricError; nothing is coerced.
func (r *Registry) Validate(name string, typ Type, value float64, dims map[string]string) (Definition, error) {
	def, ok := r.Get(name)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	if typ != "" && def.Type != typ {
		return def, InvalidMetricError{Name: name, Reason: fmt.Sprintf("type %q does not match registered %q", typ, def.Type)}
	}
	for key := range dims {
		if !slices.Contains(def.AllowedDimensions, key) {
			return def, InvalidMetricError{Name: name, Reason: fmt.Sprintf("dimension %q not allowed", key)}
		}
	}
	for _, req := range def.RequiredDimensions {
		if _, present := dims[req]; !present {
			return def, InvalidMetricError{Name: name, Reason: fmt.Sprintf("missing required dimension %q", req)}
		}
	}
	if def.Min != nil && value < *def.Min {
		return def, InvalidMetricError{Name: name, Reason: fmt.Sprintf("value %v below minimum %v", value, *def.Min)}
	}
	if def.Max != nil && value > *def.Max {
		return def, InvalidMetricError{Name: name, Reason: fmt.Sprintf("value %v above maximum %v", value, *def.Max)}
	}
	return def, nil
}
