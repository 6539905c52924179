// backend_http.go — Hub's implementation of httpserver.Backend (spec §4.10).
package hub

import "encoding/json"

// Events filters the event ring by source/level and clamps to limit
// (0 means unlimited), returning the total match count before clamping.
func (h *Hub) Events(source, level string, limit int) ([]any, int) {
	all := h.eventRing.ToArray()
	matched := make([]any, 0, len(all))
	for _, ev := range all {
		if source != "" && string(ev.Source) != source {
			continue
		}
		if level != "" && string(ev.Level) != level {
			continue
		}
		matched = append(matched, ev)
	}
	total := len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, total
}

// Status reports connection/child/framework state for /status.
func (h *Hub) Status() (int, bool, string) {
	framework, _ := h.detector.Locked()
	return h.ws.ConnectedClients(), h.supervisor.IsRunning(), string(framework)
}

// Tabs returns the connected-tab registry as []any for /tabs.
func (h *Hub) Tabs() []any {
	tabs := h.TabList()
	out := make([]any, len(tabs))
	for i, t := range tabs {
		out[i] = t
	}
	return out
}

// WatchRules lists every registered watch rule for /watch-rules.
func (h *Hub) WatchRules() []any {
	rules := h.watchEngine.ListRules()
	out := make([]any, len(rules))
	for i, r := range rules {
		out[i] = r
	}
	return out
}

// WatchedEvents lists matched-rule entries for /watched-events.
func (h *Hub) WatchedEvents() []any {
	watched := h.watchEngine.Watched()
	out := make([]any, len(watched))
	for i, w := range watched {
		out[i] = w
	}
	return out
}

// Config returns the hub's effective configuration for /config.
func (h *Hub) Config() any { return h.cfg }

// SessionStatus reports the recorder's current state for /session.
func (h *Hub) SessionStatus() (bool, any) {
	if !h.recorder.EverStarted() {
		return false, nil
	}
	snap := h.recorder.GetSnapshot()
	return h.recorder.Active(), snap.Summary
}

// BroadcastCommand sends a command frame to every connected browser client
// (spec §4.10 POST /command).
func (h *Hub) BroadcastCommand(command string) error {
	frame, err := json.Marshal(map[string]any{"type": "command", "command": command})
	if err != nil {
		return err
	}
	h.ws.Broadcast(frame)
	return nil
}
