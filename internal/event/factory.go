// factory.go — Event factory (spec §4.2): validates and assigns ids.
// Callers must serialize calls per producer; the hub serializes all event
// creation on its single ingestion path (spec §5).
package event

import (
	"time"

	"github.com/daibug/daibug/internal/daibugerr"
)

// Factory creates Events with monotonic, tick-scoped ids.
type Factory struct {
	ids *idGen
}

// NewFactory creates an event Factory. now is injectable for deterministic
// tests; nil uses time.Now.
func NewFactory(now func() time.Time) *Factory {
	return &Factory{ids: newIDGen("evt", now)}
}

// Create builds a validated Event or returns an INVALID_KIND error.
func (f *Factory) Create(source Source, level Level, payload Payload) (Event, error) {
	if !ValidSources[source] {
		return Event{}, daibugerr.New(daibugerr.InvalidKind, "unknown event source %q", source)
	}
	if !ValidLevels[level] {
		return Event{}, daibugerr.New(daibugerr.InvalidKind, "unknown event level %q", level)
	}
	if payload == nil {
		return Event{}, daibugerr.New(daibugerr.InvalidKind, "payload must be a non-nil mapping")
	}

	id, ts := f.ids.next()
	clone := make(Payload, len(payload))
	for k, v := range payload {
		clone[k] = v
	}
	return Event{ID: id, TS: ts, Source: source, Level: level, Payload: clone}, nil
}

// InteractionFactory creates Interactions with their own independent
// id sequence (prefix "int").
type InteractionFactory struct {
	ids *idGen
}

func NewInteractionFactory(now func() time.Time) *InteractionFactory {
	return &InteractionFactory{ids: newIDGen("int", now)}
}

// Create builds an Interaction, filling in id and ts; all other fields are
// taken verbatim from in (type, target, value, url, x, y).
func (f *InteractionFactory) Create(in Interaction) Interaction {
	id, ts := f.ids.next()
	in.ID = id
	in.TS = ts
	return in
}

// RuleIDFactory mints rule_<ms>_<seq> ids for the watch engine.
type RuleIDFactory struct {
	ids *idGen
}

func NewRuleIDFactory(now func() time.Time) *RuleIDFactory {
	return &RuleIDFactory{ids: newIDGen("rule", now)}
}

func (f *RuleIDFactory) Next() string {
	id, _ := f.ids.next()
	return id
}
