// Package metrics implements a windowed aggregation pipeline for
// behavioral measurements: counters, gauges, averages, histograms,
// summaries, and rates.
//
// Raw samples land in a fast transient store keyed by
// (name, type, window, slot, dimensions), where a slot is the aligned time
// bucket floor(unix/window)×window. A background processor rolls completed
// slots into durable aggregates, a merger folds fine windows into coarser
// ones, and a pruner enforces per-window retention. Every metric must be
// registered with a Definition before recording; samples violating the
// definition are rejected, never coerced.
//
//	registry := metrics.NewRegistry()
//	registry.MustRegister(metrics.Definition{
//		Name: "request_duration",
//		Type: metrics.TypeHistogram,
//		Unit: metrics.UnitMilliseconds,
//	})
//
//	recorder, _ := metrics.NewRecorder(registry, samples, cfg, log)
//	_ = recorder.Record(ctx, "request_duration", 42.0, map[string]string{"route": "/login"})
package metrics
