package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Merger folds finer-window aggregates into the next coarser window. The
// in-progress target slot is recomputed on every pass; once a slot is
// complete and the processor has had a chance to emit its final source
// rows, the slot is sealed and never rewritten, so pruning source rows
// cannot shrink a finished aggregate to a partial sum.
type Merger struct {
	aggregates AggregateStore
	handlers   *Handlers
	windows    []Window
	enabled    map[Window]bool
	health     *Health
	log        *slog.Logger
	now        func() time.Time

	// processLag keeps the freshest completed target slot unsealed long
	// enough for a processor pass to land its last source rows.
	processLag time.Duration

	mu     sync.Mutex
	sealed map[Window]int64 // per source window: target slots before this are final
}

func NewMerger(aggregates AggregateStore, handlers *Handlers, cfg Config, health *Health, log *slog.Logger) (*Merger, error) {
	windows, err := cfg.EnabledWindows()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	enabled := make(map[Window]bool, len(windows))
	for _, w := range windows {
		enabled[w] = true
	}
	return &Merger{
		aggregates: aggregates,
		handlers:   handlers,
		windows:    windows,
		enabled:    enabled,
		health:     health,
		log:        log,
		now:        time.Now,
		processLag: cfg.ProcessInterval,
		sealed:     make(map[Window]int64),
	}, nil
}

// Merge rolls each enabled window up into its next coarser enabled window.
func (m *Merger) Merge(ctx context.Context) error {
	for _, w := range m.windows {
		target, ok := w.Next()
		if !ok || !m.enabled[target] {
			continue
		}
		if err := m.mergeInto(ctx, w, target); err != nil {
			return err
		}
	}
	return nil
}

// SealedBefore reports the boundary below which source rows of w have been
// folded into their final coarser slot. ok is false when w has no enabled
// coarser window.
func (m *Merger) SealedBefore(w Window) (time.Time, bool) {
	target, ok := w.Next()
	if !ok || !m.enabled[target] {
		return time.Time{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Unix(m.sealed[w], 0).UTC(), true
}

func (m *Merger) mergeInto(ctx context.Context, source, target Window) error {
	// Start behind the sealed boundary, clamped to the target retention on
	// a cold start. Sealed slots are final and stay out of the recompute.
	now := m.now()
	from := target.Slot(now.Add(-target.Retention()))
	m.mu.Lock()
	if s := m.sealed[source]; s > from {
		from = s
	}
	m.mu.Unlock()

	rows, err := m.aggregates.List(ctx, source, time.Unix(from, 0).UTC(), now)
	if err != nil {
		m.health.fail(target, 1)
		m.log.ErrorContext(ctx, "aggregate list failed",
			logger.Window(string(source)), logger.Error(err))
		return err
	}

	groups := make(map[string][]Aggregate)
	for _, row := range rows {
		key := Key{
			Name:       row.Name,
			Type:       row.Type,
			Window:     target,
			Slot:       target.Slot(row.Timestamp),
			Dimensions: row.Dimensions,
		}
		groups[key.String()] = append(groups[key.String()], row)
	}

	var failed int64
	for raw, members := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := ParseKey(raw)
		if err != nil {
			failed++
			continue
		}
		if err := m.mergeGroup(ctx, key, members); err != nil {
			failed++
			m.log.ErrorContext(ctx, "aggregate merge failed",
				logger.Metric(key.Name), logger.Window(string(target)), logger.Error(err))
		}
	}
	if failed > 0 {
		m.health.fail(target, failed)
		return nil
	}

	// Every completed slot older than the processor's cadence now holds its
	// final value.
	seal := target.Slot(now.Add(-m.processLag))
	m.mu.Lock()
	if seal > m.sealed[source] {
		m.sealed[source] = seal
	}
	m.mu.Unlock()
	return nil
}

func (m *Merger) mergeGroup(ctx context.Context, key Key, members []Aggregate) error {
	handler, err := m.handlers.For(key.Type)
	if err != nil {
		return err
	}
	if h, ok := handler.(HistogramHandler); ok {
		handler = h.Bind(key.Name)
	}

	values := make([]Value, len(members))
	for i, member := range members {
		values[i] = member.Value
	}
	agg := Aggregate{
		Name:       key.Name,
		Type:       key.Type,
		Value:      handler.Merge(values, key.Window),
		Dimensions: key.Dimensions,
		Timestamp:  time.Unix(key.Slot, 0).UTC(),
		Window:     key.Window,
	}
	return m.aggregates.Upsert(ctx, &agg)
}
