package session

import (
	"context"
	"strings"
	"time"
)

// Action is the side effect the request pipeline must perform after a state
// machine step.
type Action int

const (
	// ActionContinue lets the request proceed without persisting anything.
	ActionContinue Action = iota
	// ActionRestart lets the request proceed; the activity timestamp was
	// refreshed.
	ActionRestart
	// ActionChallenge short-circuits the request toward the second-factor
	// challenge (redirect to the 2FA route or a 423 response).
	ActionChallenge
	// ActionTerminate forces logout of the auth principal and responds with
	// the configured logout code or a redirect to login.
	ActionTerminate
)

// Decision is the outcome of one state machine step.
type Decision struct {
	Status Status
	Action Action
}

// RequestInfo carries the request attributes the state machine needs.
type RequestInfo struct {
	Method string
	Route  string
}

// RouteRule is one {method, route} pair exempted from activity refresh.
type RouteRule struct {
	Method string
	Route  string
}

// ParseRouteRules parses a comma-separated "METHOD /route" list, e.g.
// "GET /heartbeat,POST /poll". Entries without a method match any method.
func ParseRouteRules(s string) []RouteRule {
	var rules []RouteRule
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if method, route, ok := strings.Cut(entry, " "); ok {
			rules = append(rules, RouteRule{Method: strings.ToUpper(method), Route: strings.TrimSpace(route)})
		} else {
			rules = append(rules, RouteRule{Route: entry})
		}
	}
	return rules
}

// Machine is the per-request authority on session status. Given a resolved
// session it computes the current status and applies the associated side
// effect, returning the action the pipeline must take.
type Machine struct {
	manager       *Manager
	ignoreRestart []RouteRule
}

// NewMachine creates a state machine over the manager. ignoreRestart lists
// routes (polling and heartbeat endpoints) that must not extend session life.
func NewMachine(manager *Manager, ignoreRestart []RouteRule) *Machine {
	return &Machine{manager: manager, ignoreRestart: ignoreRestart}
}

// Step runs one state machine transition for an inbound request.
//
// Locked sessions short-circuit toward the challenge without touching the
// activity timestamp. Blocked and finished sessions terminate. Inactive
// sessions either terminate (behaviour "terminate", finishing the session)
// or continue untouched (behaviour "ignore"). Active sessions refresh their
// activity timestamp unless the route is on the ignore-restart list.
func (m *Machine) Step(ctx context.Context, s *Session, req RequestInfo) (Decision, error) {
	status := s.Status(time.Now(), m.manager.cfg.Inactivity())

	switch status {
	case StatusLocked:
		return Decision{Status: StatusLocked, Action: ActionChallenge}, nil

	case StatusBlocked, StatusFinished:
		if err := m.manager.End(ctx, s); err != nil {
			return Decision{}, err
		}
		return Decision{Status: status, Action: ActionTerminate}, nil

	case StatusInactive:
		if m.manager.cfg.InactivityBehaviour == BehaviourTerminate {
			if err := m.manager.End(ctx, s); err != nil {
				return Decision{}, err
			}
			return Decision{Status: StatusInactive, Action: ActionTerminate}, nil
		}
		// Ignore mode keeps the session usable without refreshing activity,
		// so it stays inactive until something restarts it explicitly.
		return Decision{Status: StatusInactive, Action: ActionContinue}, nil

	default:
		if m.ignored(req) {
			return Decision{Status: StatusActive, Action: ActionContinue}, nil
		}
		if err := m.manager.Restart(ctx, s); err != nil {
			return Decision{}, err
		}
		return Decision{Status: StatusActive, Action: ActionRestart}, nil
	}
}

func (m *Machine) ignored(req RequestInfo) bool {
	for _, rule := range m.ignoreRestart {
		if rule.Route != req.Route {
			continue
		}
		if rule.Method == "" || strings.EqualFold(rule.Method, req.Method) {
			return true
		}
	}
	return false
}
