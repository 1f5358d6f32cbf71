package metrics

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Type is the metric kind, determining compute and merge semantics.
type Type string

const (
	TypeCounter   Type = "counter"
	TypeGauge     Type = "gauge"
	TypeAverage   Type = "average"
	TypeHistogram Type = "histogram"
	TypeSummary   Type = "summary"
	TypeRate      Type = "rate"
)

var validTypes = map[Type]bool{
	TypeCounter: true, TypeGauge: true, TypeAverage: true,
	TypeHistogram: true, TypeSummary: true, TypeRate: true,
}

// Point is one raw timestamped observation. Average samples carry a
// pre-aggregated (sum, count) pair in (Value, Count); all other types carry
// Count == 1.
type Point struct {
	Timestamp int64   // unix seconds
	Value     float64 // raw value; the running sum for average samples
	Count     int64
}

// Value is a computed aggregate. The populated fields depend on the metric
// type: Value carries the primary scalar for every type; Sum/Count for
// average, histogram, summary, and rate; Buckets for histogram; Quantiles
// for summary; Timestamp for gauge last-write tracking.
type Value struct {
	Value     float64            `json:"value"`
	Sum       float64            `json:"sum,omitempty"`
	Count     int64              `json:"count,omitempty"`
	Timestamp int64              `json:"timestamp,omitempty"`
	Buckets   map[string]int64   `json:"buckets,omitempty"`
	Quantiles map[string]float64 `json:"quantiles,omitempty"`
}

// Key identifies one raw sample series: (name, type, window, slot,
// dimensions).
type Key struct {
	Name       string
	Type       Type
	Window     Window
	Slot       int64
	Dimensions map[string]string
}

// String renders the storage key:
// <name>:<type>:<window>:<slot>:<encoded-dimensions>. The store prepends its
// namespace prefix.
func (k Key) String() string {
	return strings.Join([]string{
		k.Name, string(k.Type), string(k.Window),
		strconv.FormatInt(k.Slot, 10), EncodeDimensions(k.Dimensions),
	}, ":")
}

// ParseKey reverses Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 {
		return Key{}, fmt.Errorf("metrics: malformed sample key %q", s)
	}
	slot, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("metrics: malformed slot in key %q", s)
	}
	dims, err := DecodeDimensions(parts[4])
	if err != nil {
		return Key{}, fmt.Errorf("metrics: malformed dimensions in key %q", s)
	}
	return Key{
		Name:       parts[0],
		Type:       Type(parts[1]),
		Window:     Window(parts[2]),
		Slot:       slot,
		Dimensions: dims,
	}, nil
}

// EncodeDimensions serializes dimensions deterministically: sorted
// url-escaped k=v pairs joined with "&", or "-" for none. Deterministic
// encoding makes the key act as a dimensions hash while staying reversible.
// Stores use the same encoding for their dimensions columns.
func EncodeDimensions(dims map[string]string) string {
	if len(dims) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(dims[k]))
	}
	return strings.Join(pairs, "&")
}

// DecodeDimensions reverses EncodeDimensions.
func DecodeDimensions(s string) (map[string]string, error) {
	if s == "-" || s == "" {
		return nil, nil
	}
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, err
	}
	dims := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			dims[k] = v[0]
		}
	}
	return dims, nil
}

// Aggregate is one durable rollup row.
type Aggregate struct {
	Name       string
	Type       Type
	Value      Value
	Dimensions map[string]string
	Timestamp  time.Time // slot start
	Window     Window
}
