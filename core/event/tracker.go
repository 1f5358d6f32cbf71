package event

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Config holds event tracking policy.
type Config struct {
	// Enabled toggles event recording entirely.
	Enabled bool `env:"EVENT_TRACKING_ENABLED" envDefault:"true"`
	// RetentionDays is how long events are kept before pruning.
	RetentionDays int `env:"EVENT_RETENTION_DAYS" envDefault:"90"`
}

// Tracker records events against the append-only log. Recording failures are
// logged and swallowed: event tracking must never break the request it is
// attached to.
type Tracker struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

// NewTracker creates an event tracker. A nil logger discards output.
func NewTracker(store Store, cfg Config, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{store: store, cfg: cfg, log: log.With(logger.Component("event.tracker"))}
}

// Record appends one event. No-op when tracking is disabled.
func (t *Tracker) Record(ctx context.Context, deviceUUID, sessionUUID uuid.UUID, typ Type, ip string, meta Metadata) {
	if !t.cfg.Enabled {
		return
	}

	e := &Event{
		UUID:        uuid.New(),
		DeviceUUID:  deviceUUID,
		SessionUUID: sessionUUID,
		Type:        typ,
		IPAddress:   ip,
		Metadata:    meta,
		OccurredAt:  time.Now(),
	}
	if err := t.store.Insert(ctx, e); err != nil {
		t.log.ErrorContext(ctx, "failed to record event",
			logger.Error(err),
			slog.String("type", string(typ)),
			logger.DeviceID(deviceUUID))
	}
}

// Prune removes events older than the retention period.
func (t *Tracker) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -t.cfg.RetentionDays)
	n, err := t.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.log.InfoContext(ctx, "events pruned", logger.Count("deleted", int(n)))
	}
	return n, nil
}
