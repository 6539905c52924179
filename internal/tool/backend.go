package tool

import (
	"time"

	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/session"
)

// EventFilter narrows GetEvents (spec §4.11 get_events).
type EventFilter struct {
	Source *event.Source
	Level  *event.Level
	Since  *int64
	TabID  *string
	Limit  int
}

// Backend is the narrow surface tool handlers call into. The hub
// implements it; handlers never reach into hub internals directly
// (spec §9 "Cyclic references" applies here too).
type Backend interface {
	GetEvents(filter EventFilter) []event.Event
	NetworkEventsSince(ts int64) []event.Event
	ClearEvents() int64
	ReplayInteractions(limit int) []event.Interaction

	SendToolCommand(command string, extra map[string]any) error
	AwaitCorrelated(timeout time.Duration, match func(event.Event) bool) (event.Event, error)
	NewEvaluationID() string

	AddWatchRule(label string, source *event.Source, cond event.Conditions) (event.WatchRule, error)
	RemoveWatchRule(id string) bool
	ListWatchRules() []event.WatchRule
	ListWatchedEvents(limit int, ruleID string) []event.WatchedEvent
	ClearWatchedEvents()

	StartSession(label string) session.Session
	StopSession() session.Session
	ExportSession(path string) error
	ImportSession(path string) (session.Session, error)
	DiffSessions(pathA, pathB string) (session.Diff, error)
	SessionSummary() (session.Summary, bool)
}
