// types.go — Session entity (spec §3, §6.4).
package session

import "github.com/daibug/daibug/internal/event"

const FormatVersion = "1.0"

// Environment captures the runtime context a session was recorded in.
type Environment struct {
	Framework     string `json:"framework"`
	NodeVersion   string `json:"nodeVersion"`
	Platform      string `json:"platform"`
	DaibugVersion string `json:"daibugVersion"`
	Cmd           string `json:"cmd"`
	StartedAt     int64  `json:"startedAt"`
}

// Summary is computed deterministically over sorted events (spec §3).
type Summary struct {
	TotalEvents      int      `json:"totalEvents"`
	ErrorCount       int      `json:"errorCount"`
	WarnCount        int      `json:"warnCount"`
	NetworkRequests  int      `json:"networkRequests"`
	FailedRequests   int      `json:"failedRequests"`
	InteractionCount int      `json:"interactionCount"`
	Duration         int64    `json:"duration"`
	TopErrors        []string `json:"topErrors"`
}

// Session is the full recorded/exported unit (spec §3, §6.4).
type Session struct {
	Version          string                   `json:"version"`
	ID               string                   `json:"id"`
	ExportedAt       int64                    `json:"exportedAt"`
	Environment      Environment              `json:"environment"`
	Config           any                      `json:"config"`
	Events           []event.Event            `json:"events"`
	Interactions     []event.Interaction      `json:"interactions"`
	WatchedEvents    []event.WatchedEvent     `json:"watchedEvents"`
	StorageSnapshots []event.StorageSnapshot  `json:"storageSnapshots"`
	Summary          Summary                  `json:"summary"`
}

// EventDiffEntry records a field-level difference for one event id.
type EventDiffEntry struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"`
}

// EventsDiff is the eventwise comparison (spec §4.7).
type EventsDiff struct {
	OnlyInA   []string         `json:"onlyInA"`
	OnlyInB   []string         `json:"onlyInB"`
	Different []EventDiffEntry `json:"different"`
}

func (d EventsDiff) Empty() bool {
	return len(d.OnlyInA) == 0 && len(d.OnlyInB) == 0 && len(d.Different) == 0
}

// InteractionDiffEntry records the first index whose signature differs.
type InteractionDiffEntry struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

type InteractionsDiff struct {
	OnlyInA   []string                `json:"onlyInA"`
	OnlyInB   []string                `json:"onlyInB"`
	Different []InteractionDiffEntry  `json:"different"`
}

func (d InteractionsDiff) Empty() bool {
	return len(d.OnlyInA) == 0 && len(d.OnlyInB) == 0 && len(d.Different) == 0
}

// StatusDifference is one URL whose first-seen status diverged between A and B.
type StatusDifference struct {
	URL     string `json:"url"`
	StatusA int    `json:"statusA"`
	StatusB int    `json:"statusB"`
}

type NetworkDiff struct {
	EndpointsOnlyInA  []string           `json:"endpointsOnlyInA"`
	EndpointsOnlyInB  []string           `json:"endpointsOnlyInB"`
	StatusDifferences []StatusDifference `json:"statusDifferences"`
}

func (d NetworkDiff) Empty() bool {
	return len(d.EndpointsOnlyInA) == 0 && len(d.EndpointsOnlyInB) == 0 && len(d.StatusDifferences) == 0
}

// StorageKeyDiff records a key whose flattened value diverged.
type StorageKeyDiff struct {
	Key    string `json:"key"`
	ValueA string `json:"valueA,omitempty"`
	ValueB string `json:"valueB,omitempty"`
}

type StorageDiff struct {
	OnlyInA   []string         `json:"onlyInA"`
	OnlyInB   []string         `json:"onlyInB"`
	Different []StorageKeyDiff `json:"different"`
}

func (d StorageDiff) Empty() bool {
	return len(d.OnlyInA) == 0 && len(d.OnlyInB) == 0 && len(d.Different) == 0
}

// Diff is the full SessionDiff result (spec §4.7).
type Diff struct {
	Events       EventsDiff        `json:"eventsDiff"`
	Interactions InteractionsDiff  `json:"interactionsDiff"`
	Network      NetworkDiff       `json:"networkDiff"`
	Storage      StorageDiff       `json:"storageDiff"`
	Identical    bool              `json:"identical"`
	DivergesAt   *int64            `json:"divergesAt,omitempty"`
}
