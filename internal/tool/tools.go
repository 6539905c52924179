// tools.go — Concrete tool definitions and handlers (spec §4.11).
package tool

import (
	"net/url"
	"regexp"
	"time"

	"github.com/daibug/daibug/internal/daibugerr"
	"github.com/daibug/daibug/internal/event"
)

const (
	defaultGetEventsLimit   = 50
	maxGetEventsLimit       = 500
	defaultReplayLimit      = 50
	maxReplayLimit          = 200
	defaultEvaluateTimeout  = 300 * time.Millisecond
	defaultCommandTimeout   = 3 * time.Second
	maxCommandTimeout       = 10 * time.Second
)

// RegisterAll installs every tool named in spec.md §4.11 onto r.
func RegisterAll(r *Registry, b Backend) {
	registerQueryTools(r, b)
	registerCommandResponseTools(r, b)
	registerWatchSessionTools(r, b)
}

func registerQueryTools(r *Registry, b Backend) {
	r.Register(Definition{
		Name:        "get_events",
		Description: "Return recent captured events, optionally filtered by source, level, tab, or time.",
		InputSchema: objectSchema(map[string]any{
			"source":  stringProp("Exact source filter, e.g. browser:console"),
			"level":   stringProp("Exact level filter"),
			"since":   numberProp("Only events with ts at or after this"),
			"tab_id":  stringProp("Keep events without a tabId, or whose tabId matches"),
			"limit":   numberProp("Max entries, default 50, capped at 500"),
		}, nil),
	}, func(args map[string]any) string {
		filter := EventFilter{Limit: clampInt(intArg(args, "limit", defaultGetEventsLimit), 1, maxGetEventsLimit)}
		if s, ok := stringArg(args, "source"); ok {
			src := event.Source(s)
			filter.Source = &src
		}
		if l, ok := stringArg(args, "level"); ok {
			lvl := event.Level(l)
			filter.Level = &lvl
		}
		if since, ok := intArgOK(args, "since"); ok {
			s64 := int64(since)
			filter.Since = &s64
		}
		if tabID, ok := stringArg(args, "tab_id"); ok {
			filter.TabID = &tabID
		}
		return okJSON(map[string]any{"events": b.GetEvents(filter)})
	})

	r.Register(Definition{
		Name:        "get_network_log",
		Description: "Return browser:network events since this tool's last call, using a per-call advancing cursor.",
		InputSchema: objectSchema(map[string]any{
			"include_successful": boolProp("Include 2xx-3xx responses, default true"),
			"include_failed":     boolProp("Include 4xx/5xx/error responses, default true"),
		}, nil),
	}, newNetworkLogHandler(b))

	r.Register(Definition{
		Name:        "replay_interactions",
		Description: "Return the recorded interaction ring.",
		InputSchema: objectSchema(map[string]any{
			"limit": numberProp("Max entries, default 50, capped at 200"),
		}, nil),
	}, func(args map[string]any) string {
		limit := clampInt(intArg(args, "limit", defaultReplayLimit), 1, maxReplayLimit)
		return okJSON(map[string]any{"interactions": b.ReplayInteractions(limit)})
	})

	r.Register(Definition{
		Name:        "clear_events",
		Description: "Empty the event ring.",
		InputSchema: objectSchema(nil, nil),
	}, func(args map[string]any) string {
		ts := b.ClearEvents()
		return okJSON(map[string]any{"cleared": true, "timestamp": ts})
	})
}

// newNetworkLogHandler closes over mutable cursor state, per spec §4.11's
// "per-tool advancing cursor" — this state lives for the lifetime of the
// registered handler, not per call.
func newNetworkLogHandler(b Backend) Handler {
	var lastTS int64
	var seeded bool

	return func(args map[string]any) string {
		includeSuccessful := boolArg(args, "include_successful", true)
		includeFailed := boolArg(args, "include_failed", true)

		var since int64
		if seeded {
			since = lastTS
		}
		events := b.NetworkEventsSince(since)

		out := make([]event.Event, 0, len(events))
		for _, e := range events {
			status, _ := asInt(e.Payload["status"])
			successful := status >= 200 && status < 400
			if successful && !includeSuccessful {
				continue
			}
			if !successful && !includeFailed {
				continue
			}
			out = append(out, e)
			if e.TS > lastTS || !seeded {
				lastTS = e.TS
				seeded = true
			}
		}
		return okJSON(map[string]any{"events": out})
	}
}

func registerCommandResponseTools(r *Registry, b Backend) {
	r.Register(Definition{
		Name:        "snapshot_dom",
		Description: "Request a DOM snapshot from the connected browser tab.",
		InputSchema: objectSchema(map[string]any{
			"selector": stringProp("Optional CSS selector to scope the snapshot"),
			"timeout":  numberProp("Max wait in ms, default 3000, capped at 10000"),
		}, nil),
	}, func(args map[string]any) string {
		extra := map[string]any{}
		if sel, ok := stringArg(args, "selector"); ok {
			extra["selector"] = sel
		}
		return broadcastAndAwait(b, args, "snapshot_dom", extra, func(e event.Event) bool {
			t, _ := e.Payload["type"].(string)
			return e.Source == event.SourceBrowserDOM && t == "dom_snapshot"
		})
	})

	r.Register(Definition{
		Name:        "get_component_state",
		Description: "Request the current React component tree from the connected browser tab.",
		InputSchema: objectSchema(map[string]any{
			"timeout": numberProp("Max wait in ms, default 3000, capped at 10000"),
		}, nil),
	}, func(args map[string]any) string {
		return broadcastAndAwait(b, args, "capture_react", nil, func(e event.Event) bool {
			t, _ := e.Payload["type"].(string)
			return e.Source == event.SourceBrowserDOM && (t == "react_tree" || t == "react-tree")
		})
	})

	r.Register(Definition{
		Name:        "capture_storage",
		Description: "Request a storage snapshot from the connected browser tab.",
		InputSchema: objectSchema(map[string]any{
			"timeout": numberProp("Max wait in ms, default 3000, capped at 10000"),
		}, nil),
	}, func(args map[string]any) string {
		return broadcastAndAwait(b, args, "capture_storage", nil, func(e event.Event) bool {
			t, _ := e.Payload["type"].(string)
			return e.Source == event.SourceBrowserStorage && t == "storage_snapshot"
		})
	})

	r.Register(Definition{
		Name:        "evaluate_in_browser",
		Description: "Evaluate a JavaScript expression in the connected browser tab. Network access is restricted to localhost.",
		InputSchema: objectSchema(map[string]any{
			"expression": stringProp("JavaScript expression to evaluate"),
			"timeout":    numberProp("Max wait in ms, default 300, capped at 10000"),
		}, []string{"expression"}),
	}, func(args map[string]any) string {
		expr, ok := stringArg(args, "expression")
		if !ok || expr == "" {
			return errorJSON("expression is required")
		}
		if violation := sandboxViolation(expr); violation != "" {
			return errorJSON(violation)
		}
		evalID := b.NewEvaluationID()
		timeout := timeoutArg(args, defaultEvaluateTimeout)
		if err := b.SendToolCommand("evaluate", map[string]any{"evaluationId": evalID, "expression": expr}); err != nil {
			return errorJSON(err.Error())
		}
		ev, err := b.AwaitCorrelated(timeout, func(e event.Event) bool {
			id, _ := e.Payload["evaluationId"].(string)
			return id == evalID
		})
		if err != nil {
			return errorJSON(err.Error())
		}
		if errMsg, ok := ev.Payload["error"].(string); ok && errMsg != "" {
			return errorJSON(errMsg)
		}
		return okJSON(map[string]any{"result": ev.Payload["result"]})
	})
}

var (
	fetchPattern = regexp.MustCompile(`fetch\s*\(\s*['"]([^'"]+)['"]`)
	openPattern  = regexp.MustCompile(`\.open\s*\(\s*['"][^'"]*['"]\s*,\s*['"]([^'"]+)['"]`)
)

// sandboxViolation returns a non-empty error message if expr targets a
// non-loopback host (spec §4.11 "sandbox check").
func sandboxViolation(expr string) string {
	targets := append(matchGroup1(fetchPattern, expr), matchGroup1(openPattern, expr)...)
	for _, raw := range targets {
		if isNonLoopbackTarget(raw) {
			return "Sandbox violation: network requests to non-localhost URLs are not allowed"
		}
	}
	return ""
}

func matchGroup1(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

func isNonLoopbackTarget(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false // relative paths and unparseable fragments are not network targets
	}
	host := u.Hostname()
	return host != "localhost" && host != "127.0.0.1"
}

func broadcastAndAwait(b Backend, args map[string]any, command string, extra map[string]any, match func(event.Event) bool) string {
	timeout := timeoutArg(args, defaultCommandTimeout)
	if err := b.SendToolCommand(command, extra); err != nil {
		return errorJSON(err.Error())
	}
	ev, err := b.AwaitCorrelated(timeout, match)
	if err != nil {
		return errorJSON(err.Error())
	}
	return okJSON(ev.Payload)
}

func timeoutArg(args map[string]any, fallback time.Duration) time.Duration {
	ms, ok := intArgOK(args, "timeout")
	if !ok || ms <= 0 {
		return fallback
	}
	d := time.Duration(ms) * time.Millisecond
	if d > maxCommandTimeout {
		return maxCommandTimeout
	}
	return d
}

func registerWatchSessionTools(r *Registry, b Backend) {
	r.Register(Definition{
		Name:        "add_watch_rule",
		Description: "Register a watch rule that tags matching future events.",
		InputSchema: objectSchema(map[string]any{
			"label":            stringProp("Human-readable rule label"),
			"source":           stringProp("Restrict matches to this event source"),
			"status_codes":     arrayProp("number", "Match these HTTP status codes"),
			"url_pattern":      stringProp("Glob matched against payload.url"),
			"methods":          arrayProp("string", "Match these HTTP methods"),
			"levels":           arrayProp("string", "Match these event levels"),
			"message_contains": stringProp("Substring match against payload.message"),
		}, []string{"label"}),
	}, func(args map[string]any) string {
		label, ok := stringArg(args, "label")
		if !ok || label == "" {
			return errorJSON("label is required")
		}
		cond := event.Conditions{
			URLPattern:      firstString(args, "url_pattern"),
			MessageContains: firstString(args, "message_contains"),
			StatusCodes:     intSliceArg(args, "status_codes"),
			Methods:         stringSliceArg(args, "methods"),
			Levels:          levelSliceArg(args, "levels"),
		}
		if cond.Empty() {
			return errorJSON("at least one condition is required")
		}
		var source *event.Source
		if s, ok := stringArg(args, "source"); ok && s != "" {
			src := event.Source(s)
			source = &src
		}
		rule, err := b.AddWatchRule(label, source, cond)
		if err != nil {
			return errorJSON(err.Error())
		}
		return okJSON(rule)
	})

	r.Register(Definition{
		Name:        "remove_watch_rule",
		Description: "Remove a watch rule by id.",
		InputSchema: objectSchema(map[string]any{"id": stringProp("Rule id")}, []string{"id"}),
	}, func(args map[string]any) string {
		id, ok := stringArg(args, "id")
		if !ok || id == "" {
			return errorJSON("id is required")
		}
		if !b.RemoveWatchRule(id) {
			return errorJSON(daibugerr.New(daibugerr.NotFound, "no watch rule %q", id).Error())
		}
		return okJSON(map[string]bool{"removed": true})
	})

	r.Register(Definition{
		Name:        "list_watch_rules",
		Description: "List all registered watch rules.",
		InputSchema: objectSchema(nil, nil),
	}, func(args map[string]any) string {
		return okJSON(map[string]any{"rules": b.ListWatchRules()})
	})

	r.Register(Definition{
		Name:        "get_watched_events",
		Description: "Return matched watch events, newest first.",
		InputSchema: objectSchema(map[string]any{
			"limit":   numberProp("Max entries to return"),
			"rule_id": stringProp("Restrict to a single rule"),
		}, nil),
	}, func(args map[string]any) string {
		limit := intArg(args, "limit", 200)
		ruleID, _ := stringArg(args, "rule_id")
		return okJSON(map[string]any{"events": b.ListWatchedEvents(limit, ruleID)})
	})

	r.Register(Definition{
		Name:        "clear_watched_events",
		Description: "Empty the watched-event buffer.",
		InputSchema: objectSchema(nil, nil),
	}, func(args map[string]any) string {
		b.ClearWatchedEvents()
		return okJSON(map[string]bool{"cleared": true})
	})

	r.Register(Definition{
		Name:        "start_session",
		Description: "Clear the event ring and begin a fresh recorded session.",
		InputSchema: objectSchema(map[string]any{"label": stringProp("Optional session label")}, nil),
	}, func(args map[string]any) string {
		label, _ := stringArg(args, "label")
		return okJSON(b.StartSession(label))
	})

	r.Register(Definition{
		Name:        "stop_session",
		Description: "Freeze the active recorded session.",
		InputSchema: objectSchema(nil, nil),
	}, func(args map[string]any) string {
		return okJSON(b.StopSession())
	})

	r.Register(Definition{
		Name:        "export_session",
		Description: "Write the active or last-stopped session to a JSON file.",
		InputSchema: objectSchema(map[string]any{"path": stringProp("Destination file path")}, []string{"path"}),
	}, func(args map[string]any) string {
		path, ok := stringArg(args, "path")
		if !ok || path == "" {
			return errorJSON("path is required")
		}
		if err := b.ExportSession(path); err != nil {
			return errorJSON(err.Error())
		}
		return okJSON(map[string]bool{"exported": true})
	})

	r.Register(Definition{
		Name:        "import_session",
		Description: "Read a session JSON file.",
		InputSchema: objectSchema(map[string]any{"path": stringProp("Source file path")}, []string{"path"}),
	}, func(args map[string]any) string {
		path, ok := stringArg(args, "path")
		if !ok || path == "" {
			return errorJSON("path is required")
		}
		s, err := b.ImportSession(path)
		if err != nil {
			return errorJSON(err.Error())
		}
		return okJSON(s)
	})

	r.Register(Definition{
		Name:        "diff_sessions",
		Description: "Compare two session JSON files.",
		InputSchema: objectSchema(map[string]any{
			"path_a": stringProp("First session file"),
			"path_b": stringProp("Second session file"),
		}, []string{"path_a", "path_b"}),
	}, func(args map[string]any) string {
		pathA, okA := stringArg(args, "path_a")
		pathB, okB := stringArg(args, "path_b")
		if !okA || !okB || pathA == "" || pathB == "" {
			return errorJSON("path_a and path_b are required")
		}
		d, err := b.DiffSessions(pathA, pathB)
		if err != nil {
			return errorJSON(err.Error())
		}
		return okJSON(d)
	})

	r.Register(Definition{
		Name:        "get_session_summary",
		Description: "Return the active or last-stopped session's computed summary.",
		InputSchema: objectSchema(nil, nil),
	}, func(args map[string]any) string {
		summary, ok := b.SessionSummary()
		if !ok {
			return errorJSON(daibugerr.New(daibugerr.NotFound, "no session has been started").Error())
		}
		return okJSON(summary)
	})
}
