// ingest.go — The hub's single serialized ingestion path (spec §4.12, §5):
// tab registry update, event construction, redaction, watch evaluation,
// ring insertion, correlated-wait delivery, WS broadcast, subscriber
// fan-out, all in that order for every event.
package hub

import (
	"encoding/json"

	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/wsserver"
)

func (h *Hub) enqueueIngest(source event.Source, level event.Level, payload event.Payload) {
	select {
	case h.ingest <- ingestRequest{source: source, level: level, payload: payload}:
	default:
		h.log.Warn().Msg("ingestion queue full, dropping event")
	}
}

func (h *Hub) runIngestLoop() {
	for req := range h.ingest {
		h.processIngest(req)
	}
}

func (h *Hub) processIngest(req ingestRequest) {
	if tabID, ok := req.payload["tabId"].(string); ok {
		h.upsertTab(tabID, req.payload)
	}

	ev, err := h.eventFactory.Create(req.source, req.level, req.payload)
	if err != nil {
		h.log.Debug().Err(err).Msg("dropping malformed inbound event")
		return
	}

	ev = h.redactor.Redact(ev)
	ev = h.watchEngine.Evaluate(ev)

	h.eventRing.Push(ev)
	if h.met != nil {
		h.met.EventsIngested.WithLabelValues(string(ev.Source)).Inc()
		h.met.RingOccupancy.Set(float64(h.eventRing.Size()))
		if matched, _ := ev.Payload["watched"].(bool); matched {
			h.met.WatchMatches.Inc()
		}
	}

	h.waiters.deliver(ev)

	if frame, err := json.Marshal(ev); err == nil {
		h.ws.Broadcast(frame)
	}
	if h.met != nil {
		h.met.ConnectedClients.Set(float64(h.ws.ConnectedClients()))
	}

	h.fanOut(ev)
}

func (h *Hub) fanOut(ev event.Event) {
	h.subMu.Lock()
	subs := append([]func(event.Event){}, h.subscribers...)
	h.subMu.Unlock()

	for _, sub := range subs {
		h.safeDeliver(sub, ev)
	}
}

// safeDeliver isolates a panicking subscriber so the ingestion path never
// fails because of one (spec §4.12).
func (h *Hub) safeDeliver(sub func(event.Event), ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn().Interface("panic", r).Msg("subscriber panicked, isolating")
		}
	}()
	sub(ev)
}

func (h *Hub) recorderSubscriber(ev event.Event) {
	h.recorder.RecordEvent(ev)
	if ev.Source != event.SourceBrowserStorage {
		return
	}
	snap, ok := storageSnapshotFromPayload(ev)
	if ok {
		h.recorder.RecordStorageSnapshot(snap)
	}
}

func storageSnapshotFromPayload(ev event.Event) (event.StorageSnapshot, bool) {
	typ, _ := ev.Payload["type"].(string)
	if typ != "storage_snapshot" {
		return event.StorageSnapshot{}, false
	}
	local := stringMapFromAny(ev.Payload["localStorage"])
	session := stringMapFromAny(ev.Payload["sessionStorage"])
	url, _ := ev.Payload["url"].(string)
	var tabID *string
	if t, ok := ev.Payload["tabId"].(string); ok {
		tabID = &t
	}
	return event.StorageSnapshot{
		TS:             ev.TS,
		URL:            url,
		TabID:          tabID,
		LocalStorage:   local,
		SessionStorage: session,
	}, true
}

func stringMapFromAny(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

// handleInbound demuxes a WS inbound message onto the ingestion path,
// the interaction ring, or the tab registry (spec §4.9).
func (h *Hub) handleInbound(in wsserver.Inbound) {
	switch in.Kind {
	case "browser_event":
		h.enqueueIngest(event.Source(in.Event.Source), event.Level(in.Event.Level), event.Payload(in.Event.Payload))

	case "browser_interaction":
		inter := h.interFactory.Create(event.Interaction{
			Type:   in.Inter.InteractionType,
			Target: in.Inter.Target,
			Value:  in.Inter.Value,
			URL:    in.Inter.URL,
			X:      in.Inter.X,
			Y:      in.Inter.Y,
		})
		h.interRing.Push(inter)
		h.recorder.RecordInteraction(inter)

	case "browser_tab_info":
		h.upsertTabInfo(in.Tab.TabID, in.Tab.TabURL, in.Tab.TabTitle)

	case "browser_storage":
		h.enqueueIngest(event.SourceBrowserStorage, event.LevelInfo, event.Payload(in.Store.Payload))
	}
}
