package security

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/dmitrymomot/devicekit/core/device"
	"github.com/dmitrymomot/devicekit/core/logger"
	"github.com/dmitrymomot/devicekit/core/session"
)

// Factor is the output of one rule evaluation: a named score in [0, 1].
type Factor struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Level is the qualitative risk classification of an aggregate score.
type Level string

const (
	LevelLow    Level = "low"    // score < 31
	LevelMedium Level = "medium" // 31 <= score <= 70
	LevelHigh   Level = "high"   // score > 70
)

// LevelFor maps an aggregate score to its qualitative level.
func LevelFor(score int) Level {
	switch {
	case score > 70:
		return LevelHigh
	case score >= 31:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Assessment is the composite risk result persisted onto a device.
type Assessment struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Factors []Factor `json:"factors"`
}

// RiskInfo converts the assessment to the device persistence shape.
func (a Assessment) RiskInfo() device.RiskInfo {
	factors := make(map[string]float64, len(a.Factors))
	for _, f := range a.Factors {
		factors[f.Name] = f.Score
	}
	return device.RiskInfo{Score: a.Score, Level: string(a.Level), Factors: factors}
}

// RequestInfo carries the request attributes rules inspect.
type RequestInfo struct {
	Header http.Header
	IP     string
	// ClientTimezone is the timezone the client claims (reported by the
	// browser), compared against the geo-derived one for proxy detection.
	ClientTimezone string
}

// Context is the evaluation input. Any field may be nil; rules score 0.0 on
// missing context rather than failing.
type Context struct {
	Device  *device.Device
	Session *session.Session
	Request *RequestInfo
}

// Rule is one independent weighted risk scorer. Evaluate must tolerate
// missing context (absent device or session scores 0.0) and reserve errors
// for infrastructure failures, which the engine degrades to 0.0.
type Rule interface {
	Name() string
	Weight() float64
	Evaluate(ctx context.Context, rc Context) (Factor, error)
}

// Engine evaluates all enabled rules and combines them into a weighted
// aggregate: round(100 * sum(w_i * s_i) / sum(w_i)), clamped to [0, 100].
type Engine struct {
	rules []Rule
	log   *slog.Logger
}

// NewEngine creates a rule engine. A nil logger discards output.
func NewEngine(rules []Rule, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{rules: rules, log: log.With(logger.Component("security.engine"))}
}

// Evaluate runs every rule against the context. A rule returning an error
// contributes 0.0 but keeps its weight in the denominator; the error is
// logged, never propagated.
func (e *Engine) Evaluate(ctx context.Context, rc Context) Assessment {
	factors := make([]Factor, 0, len(e.rules))
	var weighted, totalWeight float64

	for _, rule := range e.rules {
		factor, err := rule.Evaluate(ctx, rc)
		if err != nil {
			e.log.ErrorContext(ctx, "rule evaluation failed",
				logger.Rule(rule.Name()), logger.Error(err))
			factor = Factor{Name: rule.Name(), Score: 0}
		}

		factors = append(factors, factor)
		weighted += rule.Weight() * factor.Score
		totalWeight += rule.Weight()
	}

	score := 0
	if totalWeight > 0 {
		score = int(math.Round(100 * weighted / totalWeight))
	}
	score = min(max(score, 0), 100)

	return Assessment{Score: score, Level: LevelFor(score), Factors: factors}
}
