package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Recorder validates samples against the registry and writes them into the
// sample store, one raw key per enabled window. Validation failures surface
// to the caller; storage failures are logged and swallowed so metric
// recording never breaks a request path.
type Recorder struct {
	registry *Registry
	samples  SampleStore
	windows  []Window
	enabled  bool
	log      *slog.Logger
	now      func() time.Time
}

// NewRecorder wires a recorder for the configured windows.
func NewRecorder(registry *Registry, samples SampleStore, cfg Config, log *slog.Logger) (*Recorder, error) {
	windows, err := cfg.EnabledWindows()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		registry: registry,
		samples:  samples,
		windows:  windows,
		enabled:  cfg.Enabled,
		log:      log,
		now:      time.Now,
	}, nil
}

// Record stores one observation of a registered metric.
func (r *Recorder) Record(ctx context.Context, name string, value float64, dims map[string]string) error {
	if !r.enabled {
		return nil
	}
	def, err := r.registry.Validate(name, "", value, dims)
	if err != nil {
		return err
	}
	now := r.now()
	for _, w := range r.windows {
		key := Key{Name: def.Name, Type: def.Type, Window: w, Slot: w.Slot(now), Dimensions: dims}
		ttl := 2 * w.Duration()

		var werr error
		if def.Type == TypeCounter {
			werr = r.samples.Inc(ctx, key, value, ttl)
		} else {
			werr = r.samples.Append(ctx, key, Point{Timestamp: now.Unix(), Value: value, Count: 1}, ttl)
		}
		if werr != nil {
			r.log.ErrorContext(ctx, "metric sample write failed",
				logger.Metric(name), logger.Window(string(w)), logger.Error(werr))
		}
	}
	return nil
}

// Inc is shorthand for recording a counter increment of n.
func (r *Recorder) Inc(ctx context.Context, name string, n float64, dims map[string]string) error {
	return r.Record(ctx, name, n, dims)
}
