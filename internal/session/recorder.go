// recorder.go — Session recorder (spec §4.7). Subscribes through the hub's
// subscription API (see internal/hub) rather than holding a back-reference
// to the hub, per spec §9 "Cyclic references".
package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/daibug/daibug/internal/event"
)

// Recorder accumulates events/interactions/watched events/storage
// snapshots from the moment Start is called until Stop freezes them.
type Recorder struct {
	mu sync.Mutex

	id          string
	environment Environment
	config      any
	startedAt   int64

	active bool
	ever   bool // Start has been called at least once

	events           []event.Event
	interactions     []event.Interaction
	watchedEvents    []event.WatchedEvent
	storageSnapshots []event.StorageSnapshot

	now func() time.Time
}

// NewRecorder creates an idle Recorder. now is injectable for deterministic tests.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Start begins recording: it seeds the recorder with events already in the
// hub's ring at this instant, then records everything delivered after.
func (r *Recorder) Start(environment Environment, config any, existing []event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.id = "session_" + strconv.FormatInt(r.now().UnixMilli(), 10)
	r.environment = environment
	r.config = config
	r.startedAt = r.now().UnixMilli()
	r.active = true
	r.ever = true

	r.events = append([]event.Event(nil), existing...)
	r.interactions = nil
	r.watchedEvents = nil
	r.storageSnapshots = nil
}

// Stop freezes the recorder's observed state. Further Record* calls are no-ops.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}

// Active reports whether recording is currently in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// EverStarted reports whether Start has ever been called.
func (r *Recorder) EverStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ever
}

func (r *Recorder) RecordEvent(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.events = append(r.events, ev)
}

func (r *Recorder) RecordInteraction(in event.Interaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.interactions = append(r.interactions, in)
}

func (r *Recorder) RecordWatched(we event.WatchedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.watchedEvents = append(r.watchedEvents, we)
}

func (r *Recorder) RecordStorageSnapshot(s event.StorageSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.storageSnapshots = append(r.storageSnapshots, s)
}

// GetSnapshot returns the current (if active) or frozen (if stopped) Session.
func (r *Recorder) GetSnapshot() Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := append([]event.Event(nil), r.events...)
	interactions := append([]event.Interaction(nil), r.interactions...)
	watched := append([]event.WatchedEvent(nil), r.watchedEvents...)
	storage := append([]event.StorageSnapshot(nil), r.storageSnapshots...)

	return Session{
		Version:          FormatVersion,
		ID:               r.id,
		ExportedAt:       r.now().UnixMilli(),
		Environment:      r.environment,
		Config:           r.config,
		Events:           events,
		Interactions:     interactions,
		WatchedEvents:    watched,
		StorageSnapshots: storage,
		Summary:          ComputeSummary(events, interactions, r.startedAt),
	}
}
