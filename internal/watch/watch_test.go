package watch

import (
	"testing"
	"time"

	"github.com/daibug/daibug/internal/event"
	"github.com/stretchr/testify/require"
)

func networkEvent(status int, url, method string) event.Event {
	return event.Event{
		ID:     "evt_1_001",
		TS:     1,
		Source: event.SourceBrowserNetwork,
		Level:  event.LevelInfo,
		Payload: event.Payload{
			"status": float64(status),
			"url":    url,
			"method": method,
		},
	}
}

func TestAddRuleAssignsIDAndActivates(t *testing.T) {
	e := New(nil)
	cond := event.Conditions{StatusCodes: []int{401}, URLPattern: "/api/**"}
	r := e.AddRule("auth failures", nil, cond)
	require.NotEmpty(t, r.ID)
	require.True(t, r.Active)
}

func TestEvaluateMatchInsertsWatchedEntry(t *testing.T) {
	e := New(nil)
	e.AddRule("auth failures", nil, event.Conditions{StatusCodes: []int{401}, URLPattern: "/api/**"})

	matched := networkEvent(401, "/api/user", "GET")
	e.Evaluate(matched)

	entries := e.Watched()
	require.Len(t, entries, 1)
	require.Equal(t, "auth failures", entries[0].MatchedRule.Label)

	unmatched := networkEvent(200, "/api/user", "GET")
	e.Evaluate(unmatched)
	require.Len(t, e.Watched(), 1)
}

func TestEvaluateAnnotatesPayload(t *testing.T) {
	e := New(nil)
	r := e.AddRule("auth failures", nil, event.Conditions{StatusCodes: []int{401}})
	out := e.Evaluate(networkEvent(401, "/api/user", "GET"))
	require.Equal(t, true, out.Payload["watched"])
	require.Equal(t, r.Label, out.Payload["watchRuleLabel"])
	require.Equal(t, r.ID, out.Payload["watchRuleId"])
}

func TestOneEventCanMatchMultipleRules(t *testing.T) {
	e := New(nil)
	e.AddRule("rule-a", nil, event.Conditions{StatusCodes: []int{401}})
	e.AddRule("rule-b", nil, event.Conditions{URLPattern: "/api/**"})
	e.Evaluate(networkEvent(401, "/api/user", "GET"))
	require.Len(t, e.Watched(), 2)
}

func TestSourceConstraintSkipsNonMatchingSource(t *testing.T) {
	e := New(nil)
	src := event.SourceBrowserConsole
	e.AddRule("console only", &src, event.Conditions{Levels: []event.Level{event.LevelError}})
	e.Evaluate(event.Event{Source: event.SourceBrowserNetwork, Level: event.LevelError, Payload: event.Payload{}})
	require.Empty(t, e.Watched())
}

func TestRemoveRule(t *testing.T) {
	e := New(nil)
	r := e.AddRule("x", nil, event.Conditions{MessageContains: "boom"})
	require.True(t, e.RemoveRule(r.ID))
	require.False(t, e.RemoveRule(r.ID))
	require.Empty(t, e.ListRules())
}

func TestWatchedBufferCappedAt200(t *testing.T) {
	e := New(nil)
	e.AddRule("all errors", nil, event.Conditions{Levels: []event.Level{event.LevelError}})
	for i := 0; i < 500; i++ {
		e.Evaluate(event.Event{Source: event.SourceBrowserConsole, Level: event.LevelError, Payload: event.Payload{}})
	}
	require.Len(t, e.Watched(), 200)
}

func TestPayloadContainsPartialMatch(t *testing.T) {
	e := New(nil)
	e.AddRule("checkout failures", nil, event.Conditions{
		PayloadContains: map[string]any{
			"error": map[string]any{"code": float64(500)},
			"tags":  []any{"checkout"},
		},
	})
	ev := event.Event{
		Source: event.SourceBrowserNetwork,
		Level:  event.LevelError,
		Payload: event.Payload{
			"error": map[string]any{"code": float64(500), "extra": "ignored"},
			"tags":  []any{"checkout", "payments"},
		},
	}
	e.Evaluate(ev)
	require.Len(t, e.Watched(), 1)
}

func TestWatchedNewestFirst(t *testing.T) {
	fixed := time.UnixMilli(1000)
	e := New(func() time.Time { return fixed })
	e.AddRule("r", nil, event.Conditions{Levels: []event.Level{event.LevelError}})
	ev1 := event.Event{ID: "1", Source: event.SourceBrowserConsole, Level: event.LevelError, Payload: event.Payload{}}
	ev2 := event.Event{ID: "2", Source: event.SourceBrowserConsole, Level: event.LevelError, Payload: event.Payload{}}
	e.Evaluate(ev1)
	e.Evaluate(ev2)
	got := e.Watched()
	require.Equal(t, "2", got[0].Event.ID)
	require.Equal(t, "1", got[1].Event.ID)
}
