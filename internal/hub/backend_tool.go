// backend_tool.go — Hub's implementation of tool.Backend (spec §4.11).
package hub

import (
	"encoding/json"

	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/session"
	"github.com/daibug/daibug/internal/tool"
)

// GetEvents filters the event ring by the given criteria (spec §4.11
// get_events), newest constraints first, oldest-to-newest ordering
// preserved from the ring.
func (h *Hub) GetEvents(filter tool.EventFilter) []event.Event {
	all := h.eventRing.ToArray()
	out := make([]event.Event, 0, len(all))
	for _, ev := range all {
		if filter.Source != nil && ev.Source != *filter.Source {
			continue
		}
		if filter.Level != nil && ev.Level != *filter.Level {
			continue
		}
		if filter.Since != nil && ev.TS < *filter.Since {
			continue
		}
		if filter.TabID != nil {
			if tabID, ok := ev.Payload["tabId"].(string); ok && tabID != *filter.TabID {
				continue
			}
		}
		out = append(out, ev)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// NetworkEventsSince returns browser:network events with ts > ts, oldest
// first, for get_network_log's advancing cursor.
func (h *Hub) NetworkEventsSince(ts int64) []event.Event {
	all := h.eventRing.ToArray()
	out := make([]event.Event, 0, len(all))
	for _, ev := range all {
		if ev.Source != event.SourceBrowserNetwork {
			continue
		}
		if ev.TS <= ts {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// ClearEvents empties the event ring and returns the time of the clear in
// ms since epoch (spec §4.11 clear_events "timestamp").
func (h *Hub) ClearEvents() int64 {
	h.eventRing.Clear()
	return h.now().UnixMilli()
}

// ReplayInteractions returns up to limit most-recent interactions,
// oldest-first (spec §4.11 replay_interactions).
func (h *Hub) ReplayInteractions(limit int) []event.Interaction {
	all := h.interRing.ToArray()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// SendToolCommand sends a command frame with extra fields merged in, used
// by command/response tools that need to pass an evaluation id or args
// (spec §4.11).
func (h *Hub) SendToolCommand(command string, extra map[string]any) error {
	frame := map[string]any{"type": "command", "command": command}
	for k, v := range extra {
		frame[k] = v
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	h.ws.Broadcast(data)
	return nil
}

func (h *Hub) AddWatchRule(label string, source *event.Source, cond event.Conditions) (event.WatchRule, error) {
	return h.watchEngine.AddRule(label, source, cond), nil
}

func (h *Hub) RemoveWatchRule(id string) bool {
	return h.watchEngine.RemoveRule(id)
}

func (h *Hub) ListWatchRules() []event.WatchRule {
	return h.watchEngine.ListRules()
}

// ListWatchedEvents returns up to limit matched entries, optionally filtered
// to one rule id (spec §4.11 get_watched_events).
func (h *Hub) ListWatchedEvents(limit int, ruleID string) []event.WatchedEvent {
	all := h.watchEngine.Watched()
	out := make([]event.WatchedEvent, 0, len(all))
	for _, we := range all {
		if ruleID != "" && we.MatchedRule.ID != ruleID {
			continue
		}
		out = append(out, we)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (h *Hub) ClearWatchedEvents() {
	h.watchEngine.ClearWatched()
}

// StartSession clears the event ring and starts the recorder fresh (spec
// §4.7, §4.11 start_session: "clears events and starts fresh").
func (h *Hub) StartSession(label string) session.Session {
	h.eventRing.Clear()
	framework, _ := h.detector.Locked()
	env := session.Environment{
		Framework: string(framework),
		Cmd:       label,
		StartedAt: h.now().UnixMilli(),
	}
	h.recorder.Start(env, h.cfg, nil)
	return h.recorder.GetSnapshot()
}

func (h *Hub) StopSession() session.Session {
	h.recorder.Stop()
	return h.recorder.GetSnapshot()
}

func (h *Hub) ExportSession(path string) error {
	return session.Export(h.recorder.GetSnapshot(), path, h.redactor)
}

func (h *Hub) ImportSession(path string) (session.Session, error) {
	return session.Import(path)
}

func (h *Hub) DiffSessions(pathA, pathB string) (session.Diff, error) {
	a, err := session.Import(pathA)
	if err != nil {
		return session.Diff{}, err
	}
	b, err := session.Import(pathB)
	if err != nil {
		return session.Diff{}, err
	}
	return session.CompareSessions(a, b), nil
}

func (h *Hub) SessionSummary() (session.Summary, bool) {
	if !h.recorder.EverStarted() {
		return session.Summary{}, false
	}
	return h.recorder.GetSnapshot().Summary, true
}
