// summary.go — Deterministic summary computation (spec §3, §4.7).
package session

import (
	"sort"

	"github.com/daibug/daibug/internal/event"
)

// sortedEvents returns a copy of events ordered by (ts, id lexically).
func sortedEvents(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TS != out[j].TS {
			return out[i].TS < out[j].TS
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ComputeSummary computes the Summary deterministically over sorted events.
func ComputeSummary(events []event.Event, interactions []event.Interaction, startedAt int64) Summary {
	ordered := sortedEvents(events)

	s := Summary{InteractionCount: len(interactions)}
	errCounts := make(map[string]int)

	var first, last int64
	haveFirst := false

	for _, e := range ordered {
		s.TotalEvents++
		if !haveFirst {
			first = e.TS
			haveFirst = true
		}
		last = e.TS

		switch e.Level {
		case event.LevelError:
			s.ErrorCount++
			if msg, ok := e.Payload["message"].(string); ok {
				errCounts[msg]++
			}
		case event.LevelWarn:
			s.WarnCount++
		}

		if e.Source == event.SourceBrowserNetwork {
			s.NetworkRequests++
			if status, ok := asInt(e.Payload["status"]); ok && (status < 200 || status >= 400) {
				s.FailedRequests++
			}
		}
	}

	if haveFirst {
		s.Duration = last - first
	} else if startedAt > 0 {
		s.Duration = 0
	}

	s.TopErrors = topErrors(errCounts, 5)
	return s
}

func topErrors(counts map[string]int, limit int) []string {
	type kv struct {
		msg   string
		count int
	}
	list := make([]kv, 0, len(counts))
	for k, v := range counts {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].msg < list[j].msg
	})
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.msg
	}
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
