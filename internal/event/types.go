// types.go — Closed-set data model for daibug's event stream (spec §3).
// Source and Level are tagged variants: branch on the tag, never type-switch
// on a hierarchy (see DESIGN.md "Multi-tag, variant events").
package event

// Source identifies where an event originated.
type Source string

const (
	SourceVite            Source = "vite"
	SourceNext             Source = "next"
	SourceDevServer         Source = "devserver"
	SourceBrowserConsole    Source = "browser:console"
	SourceBrowserNetwork    Source = "browser:network"
	SourceBrowserDOM        Source = "browser:dom"
	SourceBrowserStorage    Source = "browser:storage"
)

// ValidSources is the closed enumeration accepted by the event factory.
var ValidSources = map[Source]bool{
	SourceVite:           true,
	SourceNext:           true,
	SourceDevServer:      true,
	SourceBrowserConsole: true,
	SourceBrowserNetwork: true,
	SourceBrowserDOM:     true,
	SourceBrowserStorage: true,
}

// Level is the severity tag for an event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
)

// ValidLevels is the closed enumeration accepted by the event factory.
var ValidLevels = map[Level]bool{
	LevelInfo:  true,
	LevelWarn:  true,
	LevelError: true,
	LevelDebug: true,
}

// Payload is a JSON-object-shaped value: mapping string to arbitrary JSON.
// Never nil, never a scalar — enforced by Factory.Create.
type Payload map[string]any

// Event is immutable after construction.
type Event struct {
	ID      string  `json:"id"`
	TS      int64   `json:"ts"`
	Source  Source  `json:"source"`
	Level   Level   `json:"level"`
	Payload Payload `json:"payload"`
}

// Clone returns a copy of e whose Payload is a shallow copy, so callers that
// mutate the returned event's top-level payload keys cannot affect e.
func (e Event) Clone() Event {
	p := make(Payload, len(e.Payload))
	for k, v := range e.Payload {
		p[k] = v
	}
	e.Payload = p
	return e
}

// Interaction is a recorded browser interaction. Stored only in the
// interaction ring — never enters the event ring.
type Interaction struct {
	ID     string  `json:"id"`
	TS     int64   `json:"ts"`
	Type   string  `json:"type"`
	Target *string `json:"target,omitempty"`
	Value  *string `json:"value,omitempty"`
	URL    *string `json:"url,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
}

// WatchRuleRef is the minimal rule reference carried on a WatchedEvent.
type WatchRuleRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Conditions is the set of predicates a WatchRule evaluates (spec §4.6).
// Every field is optional; at least one must be set (enforced by callers).
type Conditions struct {
	StatusCodes     []int           `json:"statusCodes,omitempty"`
	URLPattern      string          `json:"urlPattern,omitempty"`
	Methods         []string        `json:"methods,omitempty"`
	Levels          []Level         `json:"levels,omitempty"`
	MessageContains string          `json:"messageContains,omitempty"`
	PayloadContains map[string]any  `json:"payloadContains,omitempty"`
}

// Empty reports whether no condition is set.
func (c Conditions) Empty() bool {
	return len(c.StatusCodes) == 0 && c.URLPattern == "" && len(c.Methods) == 0 &&
		len(c.Levels) == 0 && c.MessageContains == "" && len(c.PayloadContains) == 0
}

// WatchRule is a user-defined predicate over events (spec §4.6).
type WatchRule struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Source     *Source    `json:"source,omitempty"`
	Conditions Conditions `json:"conditions"`
	CreatedAt  int64      `json:"createdAt"`
	Active     bool       `json:"active"`
}

// WatchedEvent is a single rule match, stored newest-first, capped at 200.
type WatchedEvent struct {
	Event       Event        `json:"event"`
	MatchedRule WatchRuleRef `json:"matchedRule"`
	MatchedAt   int64        `json:"matchedAt"`
}

// StorageSnapshot is a point-in-time capture of browser storage.
type StorageSnapshot struct {
	TS              int64             `json:"ts"`
	URL             string            `json:"url"`
	TabID           *string           `json:"tabId,omitempty"`
	LocalStorage    map[string]string `json:"localStorage"`
	SessionStorage  map[string]string `json:"sessionStorage"`
	Cookies         map[string]string `json:"cookies,omitempty"`
}

// TabInfo identifies a connected browser tab.
type TabInfo struct {
	TabID       string `json:"tabId"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	ConnectedAt int64  `json:"connectedAt"`
}
