package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Handler implements type-specific aggregation semantics: Compute rolls raw
// points of one window slot into a Value; Merge combines finer-window values
// into one coarser-window Value.
type Handler interface {
	Compute(points []Point, window Window) Value
	Merge(values []Value, window Window) Value
}

// Handlers maps each metric type to its handler. The rate interval and
// summary quantiles come from configuration; histogram buckets come from the
// metric definition and are bound per-definition via HistogramHandler.
type Handlers struct {
	byType map[Type]Handler
}

// NewHandlers builds the standard handler set.
func NewHandlers(rateInterval time.Duration, quantiles []float64, buckets func(name string) []float64) *Handlers {
	if rateInterval <= 0 {
		rateInterval = time.Minute
	}
	if len(quantiles) == 0 {
		quantiles = []float64{0.5, 0.75, 0.9, 0.95, 0.99}
	}
	return &Handlers{byType: map[Type]Handler{
		TypeCounter:   CounterHandler{},
		TypeGauge:     GaugeHandler{},
		TypeAverage:   AverageHandler{},
		TypeHistogram: HistogramHandler{BucketsFor: buckets},
		TypeSummary:   SummaryHandler{Quantiles: quantiles},
		TypeRate:      RateHandler{Interval: rateInterval},
	}}
}

// For returns the handler for a metric type.
func (h *Handlers) For(typ Type) (Handler, error) {
	handler, ok := h.byType[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, typ)
	}
	return handler, nil
}

// CounterHandler sums raw values; counter merges are sums.
type CounterHandler struct{}

func (CounterHandler) Compute(points []Point, _ Window) Value {
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return Value{Value: sum, Sum: sum, Count: int64(len(points))}
}

func (CounterHandler) Merge(values []Value, _ Window) Value {
	var sum float64
	var count int64
	for _, v := range values {
		sum += v.Value
		count += v.Count
	}
	return Value{Value: sum, Sum: sum, Count: count}
}

// GaugeHandler keeps the most recent value by timestamp, within a window and
// across merged sub-windows.
type GaugeHandler struct{}

func (GaugeHandler) Compute(points []Point, _ Window) Value {
	var latest Point
	for _, p := range points {
		if p.Timestamp >= latest.Timestamp {
			latest = p
		}
	}
	return Value{Value: latest.Value, Timestamp: latest.Timestamp, Count: int64(len(points))}
}

func (GaugeHandler) Merge(values []Value, _ Window) Value {
	var out Value
	for _, v := range values {
		if v.Timestamp >= out.Timestamp {
			out = Value{Value: v.Value, Timestamp: v.Timestamp}
		}
	}
	return out
}

// AverageHandler computes weighted averages. Each point carries a (sum,
// count) pair; the window average is sum-of-sums over sum-of-counts. Merging
// carries sum and count forward — re-averaging already-averaged values would
// weight a 1-sample sub-window equal to a 1000-sample one.
type AverageHandler struct{}

func (AverageHandler) Compute(points []Point, _ Window) Value {
	var sum float64
	var count int64
	for _, p := range points {
		sum += p.Value
		n := p.Count
		if n <= 0 {
			n = 1
		}
		count += n
	}
	return averageValue(sum, count)
}

func (AverageHandler) Merge(values []Value, _ Window) Value {
	var sum float64
	var count int64
	for _, v := range values {
		sum += v.Sum
		count += v.Count
	}
	return averageValue(sum, count)
}

func averageValue(sum float64, count int64) Value {
	v := Value{Sum: sum, Count: count}
	if count > 0 {
		v.Value = sum / float64(count)
	}
	return v
}

// HistogramHandler buckets values against fixed boundaries. BucketsFor binds
// the boundary set per metric name; a nil func falls back to millisecond
// boundaries. The handler is bound to a metric via Bind before computing.
type HistogramHandler struct {
	BucketsFor func(name string) []float64
	name       string
}

// Bind returns a handler bound to a metric name for boundary lookup.
func (h HistogramHandler) Bind(name string) HistogramHandler {
	h.name = name
	return h
}

func (h HistogramHandler) boundaries() []float64 {
	if h.BucketsFor != nil {
		if b := h.BucketsFor(h.name); len(b) > 0 {
			return b
		}
	}
	return DefaultBuckets[UnitMilliseconds]
}

func (h HistogramHandler) Compute(points []Point, _ Window) Value {
	bounds := h.boundaries()
	buckets := make(map[string]int64, len(bounds)+1)
	for _, b := range bounds {
		buckets[bucketLabel(b)] = 0
	}
	buckets["inf"] = 0

	var sum float64
	for _, p := range points {
		sum += p.Value
		placed := false
		for _, b := range bounds {
			if p.Value <= b {
				buckets[bucketLabel(b)]++
				placed = true
				break
			}
		}
		if !placed {
			buckets["inf"]++
		}
	}
	return Value{Value: sum, Sum: sum, Count: int64(len(points)), Buckets: buckets}
}

func (h HistogramHandler) Merge(values []Value, _ Window) Value {
	buckets := make(map[string]int64)
	var sum float64
	var count int64
	for _, v := range values {
		sum += v.Sum
		count += v.Count
		for label, n := range v.Buckets {
			buckets[label] += n
		}
	}
	return Value{Value: sum, Sum: sum, Count: count, Buckets: buckets}
}

func bucketLabel(bound float64) string {
	return "le_" + strconv.FormatFloat(bound, 'g', -1, 64)
}

// SummaryHandler extracts configured quantiles from the sorted raw values.
// Merged summaries approximate: quantiles are count-weighted averages of the
// sub-window quantiles, while sum and count stay exact.
type SummaryHandler struct {
	Quantiles []float64
}

func (h SummaryHandler) Compute(points []Point, _ Window) Value {
	if len(points) == 0 {
		return Value{Quantiles: map[string]float64{}}
	}

	values := make([]float64, len(points))
	var sum float64
	for i, p := range points {
		values[i] = p.Value
		sum += p.Value
	}
	sort.Float64s(values)

	quantiles := make(map[string]float64, len(h.Quantiles))
	for _, q := range h.Quantiles {
		quantiles[quantileLabel(q)] = quantileOf(values, q)
	}
	return Value{Value: sum, Sum: sum, Count: int64(len(values)), Quantiles: quantiles}
}

func (h SummaryHandler) Merge(values []Value, _ Window) Value {
	quantileSums := make(map[string]float64)
	quantileWeights := make(map[string]float64)
	var sum float64
	var count int64

	for _, v := range values {
		sum += v.Sum
		count += v.Count
		weight := float64(v.Count)
		for label, q := range v.Quantiles {
			quantileSums[label] += q * weight
			quantileWeights[label] += weight
		}
	}

	quantiles := make(map[string]float64, len(quantileSums))
	for label, total := range quantileSums {
		if w := quantileWeights[label]; w > 0 {
			quantiles[label] = total / w
		}
	}
	return Value{Value: sum, Sum: sum, Count: count, Quantiles: quantiles}
}

// quantileOf uses linear interpolation between closest ranks on a sorted
// slice.
func quantileOf(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(pos)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}

func quantileLabel(q float64) string {
	return "p" + strconv.FormatFloat(q*100, 'g', -1, 64)
}

// RateHandler computes events-per-interval over the window:
// (validSampleCount * interval) / windowDuration. With fewer than two
// samples or a non-positive duration the rate degenerates to 0.0 and the
// raw count is preserved — a single point makes no rate.
type RateHandler struct {
	Interval time.Duration
}

func (h RateHandler) Compute(points []Point, window Window) Value {
	count := int64(len(points))
	duration := float64(window.Seconds())
	if count < 2 || duration <= 0 {
		return Value{Value: 0, Count: count}
	}
	rate := float64(count) * h.Interval.Seconds() / duration
	return Value{Value: rate, Count: count}
}

func (h RateHandler) Merge(values []Value, window Window) Value {
	var count int64
	for _, v := range values {
		count += v.Count
	}
	duration := float64(window.Seconds())
	if count < 2 || duration <= 0 {
		return Value{Value: 0, Count: count}
	}
	return Value{Value: float64(count) * h.Interval.Seconds() / duration, Count: count}
}
