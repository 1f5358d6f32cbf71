package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Pruner deletes durable aggregates past their window's retention. Rows
// feeding an enabled coarser window are held until the merger has sealed
// them, retention notwithstanding.
type Pruner struct {
	aggregates AggregateStore
	merger     *Merger
	windows    []Window
	log        *slog.Logger
	now        func() time.Time
}

// NewPruner wires a pruner. A nil merger prunes by retention alone.
func NewPruner(aggregates AggregateStore, merger *Merger, cfg Config, log *slog.Logger) (*Pruner, error) {
	windows, err := cfg.EnabledWindows()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{aggregates: aggregates, merger: merger, windows: windows, log: log, now: time.Now}, nil
}

// Prune removes expired aggregates for every enabled window.
func (p *Pruner) Prune(ctx context.Context) error {
	now := p.now()
	for _, w := range p.windows {
		cutoff := now.Add(-w.Retention())
		if p.merger != nil {
			if sealed, ok := p.merger.SealedBefore(w); ok && sealed.Before(cutoff) {
				cutoff = sealed
			}
		}
		n, err := p.aggregates.DeleteOlderThan(ctx, w, cutoff)
		if err != nil {
			p.log.ErrorContext(ctx, "aggregate prune failed",
				logger.Window(string(w)), logger.Error(err))
			return err
		}
		if n > 0 {
			p.log.InfoContext(ctx, "aggregates pruned",
				logger.Window(string(w)), logger.Count("deleted", int(n)))
		}
	}
	return nil
}
