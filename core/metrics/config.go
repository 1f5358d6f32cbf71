package metrics

import "time"

// Config controls the metrics pipeline. Defaults suit a single-node
// deployment; production setups typically enable only the windows they
// query.
type Config struct {
	Enabled          bool          `env:"METRICS_ENABLED" envDefault:"true"`
	Windows          string        `env:"METRICS_WINDOWS" envDefault:"realtime,hourly,daily"`
	RateInterval     time.Duration `env:"METRICS_RATE_INTERVAL" envDefault:"1m"`
	Quantiles        []float64     `env:"METRICS_QUANTILES" envDefault:"0.5,0.75,0.9,0.95,0.99"`
	ProcessInterval  time.Duration `env:"METRICS_PROCESS_INTERVAL" envDefault:"30s"`
	MergeInterval    time.Duration `env:"METRICS_MERGE_INTERVAL" envDefault:"5m"`
	PruneInterval    time.Duration `env:"METRICS_PRUNE_INTERVAL" envDefault:"1h"`
	DegradedFailures int64         `env:"METRICS_DEGRADED_FAILURES" envDefault:"10"`
}

// EnabledWindows parses the configured window list into canonical order.
func (c Config) EnabledWindows() ([]Window, error) {
	return ParseWindows(c.Windows)
}
