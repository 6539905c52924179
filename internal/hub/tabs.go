// tabs.go — Tab registry (spec §3 "Tab info", §4.9 browser_tab_info):
// upsert by tabId, preserving the original connectedAt across updates.
package hub

import "github.com/daibug/daibug/internal/event"

func (h *Hub) upsertTab(tabID string, payload map[string]any) {
	url, _ := payload["tabUrl"].(string)
	title, _ := payload["tabTitle"].(string)
	h.upsertTabInfo(tabID, url, title)
}

func (h *Hub) upsertTabInfo(tabID, url, title string) {
	if tabID == "" {
		return
	}
	h.tabsMu.Lock()
	defer h.tabsMu.Unlock()

	existing, ok := h.tabs[tabID]
	connectedAt := h.now().UnixMilli()
	if ok {
		connectedAt = existing.ConnectedAt
	}
	h.tabs[tabID] = event.TabInfo{TabID: tabID, URL: url, Title: title, ConnectedAt: connectedAt}
}

// TabList returns a defensive copy of the tab registry (spec §4.10 /tabs).
func (h *Hub) TabList() []event.TabInfo {
	h.tabsMu.Lock()
	defer h.tabsMu.Unlock()
	out := make([]event.TabInfo, 0, len(h.tabs))
	for _, t := range h.tabs {
		out = append(out, t)
	}
	return out
}
