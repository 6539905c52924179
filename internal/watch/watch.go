// watch.go — Watch-rule engine (spec §4.6): holds rules, evaluates every
// event, buffers matches newest-first. The hub calls Evaluate on its
// ingestion path; the engine holds no reference to the hub (spec §9
// "Cyclic references" — the hub owns the engine, never the other way).
package watch

import (
	"strings"
	"sync"
	"time"

	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/glob"
	"github.com/daibug/daibug/internal/ring"
)

const watchedCapacity = 200

// Engine holds watch rules and the matched-event buffer.
type Engine struct {
	mu      sync.Mutex
	rules   []event.WatchRule
	ids     *event.RuleIDFactory
	matched *ring.Ring[event.WatchedEvent]
	now     func() time.Time
}

// New creates an Engine. now is injectable for deterministic tests.
func New(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		ids:     event.NewRuleIDFactory(now),
		matched: ring.New[event.WatchedEvent](watchedCapacity),
		now:     now,
	}
}

// AddRule assigns an id and createdAt, stores a defensive copy of
// conditions, and returns the stored rule.
func (e *Engine) AddRule(label string, source *event.Source, cond event.Conditions) event.WatchRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := event.WatchRule{
		ID:         e.ids.Next(),
		Label:      label,
		Source:     source,
		Conditions: copyConditions(cond),
		CreatedAt:  e.now().UnixMilli(),
		Active:     true,
	}
	e.rules = append(e.rules, r)
	return r
}

// RemoveRule deletes the rule with the given id. Returns whether one was removed.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// ListRules returns defensive copies of all rules.
func (e *Engine) ListRules() []event.WatchRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]event.WatchRule, len(e.rules))
	for i, r := range e.rules {
		cp := r
		cp.Conditions = copyConditions(r.Conditions)
		out[i] = cp
	}
	return out
}

// Watched returns up to 200 newest-first matched entries.
func (e *Engine) Watched() []event.WatchedEvent {
	arr := e.matched.ToArray() // oldest-first internally
	out := make([]event.WatchedEvent, len(arr))
	for i, v := range arr {
		out[len(arr)-1-i] = v
	}
	return out
}

// ClearWatched empties the matched-event buffer.
func (e *Engine) ClearWatched() {
	e.matched.Clear()
}

// Evaluate checks ev against every active rule. Matching rules get an
// entry inserted into the matched buffer. On the first match, a copy of ev
// is annotated (watched=true, watchRuleLabel, watchRuleId of that first
// rule); ev itself is not mutated. Returns the (possibly annotated) copy so
// the hub can store and broadcast the annotated version.
func (e *Engine) Evaluate(ev event.Event) event.Event {
	e.mu.Lock()
	rules := make([]event.WatchRule, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	annotated := false
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if r.Source != nil && *r.Source != ev.Source {
			continue
		}
		if !satisfies(r.Conditions, ev) {
			continue
		}

		if !annotated {
			ev = ev.Clone()
			ev.Payload["watched"] = true
			ev.Payload["watchRuleLabel"] = r.Label
			ev.Payload["watchRuleId"] = r.ID
			annotated = true
		}

		we := event.WatchedEvent{
			Event:       ev,
			MatchedRule: event.WatchRuleRef{ID: r.ID, Label: r.Label},
			MatchedAt:   e.now().UnixMilli(),
		}
		e.matched.Push(we)
	}
	return ev
}

func copyConditions(c event.Conditions) event.Conditions {
	out := c
	if c.StatusCodes != nil {
		out.StatusCodes = append([]int(nil), c.StatusCodes...)
	}
	if c.Methods != nil {
		out.Methods = append([]string(nil), c.Methods...)
	}
	if c.Levels != nil {
		out.Levels = append([]event.Level(nil), c.Levels...)
	}
	if c.PayloadContains != nil {
		out.PayloadContains = deepCopyMap(c.PayloadContains)
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = deepCopyMap(t)
		case []any:
			arr := make([]any, len(t))
			copy(arr, t)
			out[k] = arr
		default:
			out[k] = v
		}
	}
	return out
}

// satisfies evaluates every specified condition against ev; unspecified
// conditions are vacuously satisfied (spec §4.6).
func satisfies(c event.Conditions, ev event.Event) bool {
	if len(c.StatusCodes) > 0 && !statusMatches(c.StatusCodes, ev.Payload) {
		return false
	}
	if c.URLPattern != "" && !urlMatches(c.URLPattern, ev.Payload) {
		return false
	}
	if len(c.Methods) > 0 && !methodMatches(c.Methods, ev.Payload) {
		return false
	}
	if len(c.Levels) > 0 && !levelMatches(c.Levels, ev.Level) {
		return false
	}
	if c.MessageContains != "" && !messageContains(c.MessageContains, ev.Payload) {
		return false
	}
	if len(c.PayloadContains) > 0 && !partialMatch(c.PayloadContains, ev.Payload) {
		return false
	}
	return true
}

func statusMatches(codes []int, payload event.Payload) bool {
	n, ok := asNumber(payload["status"])
	if !ok {
		return false
	}
	for _, c := range codes {
		if int(n) == c {
			return true
		}
	}
	return false
}

func urlMatches(pattern string, payload event.Payload) bool {
	u, ok := payload["url"].(string)
	if !ok {
		return false
	}
	m, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	return m.Match(u)
}

func methodMatches(methods []string, payload event.Payload) bool {
	m, ok := payload["method"].(string)
	if !ok {
		return false
	}
	upper := strings.ToUpper(m)
	for _, candidate := range methods {
		if strings.ToUpper(candidate) == upper {
			return true
		}
	}
	return false
}

func levelMatches(levels []event.Level, level event.Level) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func messageContains(substr string, payload event.Payload) bool {
	msg, ok := payload["message"].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(msg), strings.ToLower(substr))
}

// partialMatch implements structural partial matching: every key in
// expected must exist in actual, with scalar equality, array prefix
// equality by index, and recursive partial match for nested mappings.
func partialMatch(expected map[string]any, actual map[string]any) bool {
	for k, ev := range expected {
		av, ok := actual[k]
		if !ok {
			return false
		}
		if !valueMatches(ev, av) {
			return false
		}
	}
	return true
}

func valueMatches(expected, actual any) bool {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		return partialMatch(e, a)
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) < len(e) {
			return false
		}
		for i, item := range e {
			if !valueMatches(item, a[i]) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(expected, actual)
	}
}

func scalarEqual(a, b any) bool {
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
