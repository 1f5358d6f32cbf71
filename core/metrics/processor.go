package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Processor rolls raw samples of completed slots into durable aggregates.
// Each key is processed in isolation: a failure is counted against the
// window's health and skipped, never aborting the pass. Consumed keys are
// deleted right after a successful upsert, so a second pass over the same
// slot finds nothing and produces no duplicates.
type Processor struct {
	samples    SampleStore
	aggregates AggregateStore
	handlers   *Handlers
	windows    []Window
	health     *Health
	log        *slog.Logger
	now        func() time.Time
}

func NewProcessor(samples SampleStore, aggregates AggregateStore, handlers *Handlers, cfg Config, health *Health, log *slog.Logger) (*Processor, error) {
	windows, err := cfg.EnabledWindows()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		samples:    samples,
		aggregates: aggregates,
		handlers:   handlers,
		windows:    windows,
		health:     health,
		log:        log,
		now:        time.Now,
	}, nil
}

// Process aggregates all completed slots of every enabled window.
func (p *Processor) Process(ctx context.Context) error {
	for _, w := range p.windows {
		if err := p.processWindow(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) processWindow(ctx context.Context, w Window) error {
	// Only slots whose end has passed; the current slot is still filling.
	maxSlot := w.Slot(p.now()) - w.Seconds()

	keys, err := p.samples.Keys(ctx, w, maxSlot)
	if err != nil {
		p.health.fail(w, 1)
		p.log.ErrorContext(ctx, "sample key scan failed",
			logger.Window(string(w)), logger.Error(err))
		return err
	}

	var failed int64
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processKey(ctx, key); err != nil {
			failed++
			p.log.ErrorContext(ctx, "sample rollup failed",
				logger.Metric(key.Name), logger.Window(string(w)), logger.Error(err))
		}
	}
	if failed > 0 {
		p.health.fail(w, failed)
	} else {
		p.health.clear(w)
	}
	return nil
}

func (p *Processor) processKey(ctx context.Context, key Key) error {
	handler, err := p.handlers.For(key.Type)
	if err != nil {
		return err
	}
	if h, ok := handler.(HistogramHandler); ok {
		handler = h.Bind(key.Name)
	}

	points, err := p.samples.Points(ctx, key)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return p.samples.Delete(ctx, key)
	}

	agg := Aggregate{
		Name:       key.Name,
		Type:       key.Type,
		Value:      handler.Compute(points, key.Window),
		Dimensions: key.Dimensions,
		Timestamp:  time.Unix(key.Slot, 0).UTC(),
		Window:     key.Window,
	}
	if err := p.aggregates.Upsert(ctx, &agg); err != nil {
		return err
	}
	return p.samples.Delete(ctx, key)
}
