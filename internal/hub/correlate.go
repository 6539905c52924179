// correlate.go — Correlated command/response waiting (spec §4.11, §5):
// a command/response tool broadcasts a command, then blocks until an
// event matching its predicate arrives on the ingestion path, or its
// timeout fires. stop() cancels every outstanding waiter.
package hub

import (
	"sync"
	"time"

	"github.com/daibug/daibug/internal/daibugerr"
	"github.com/daibug/daibug/internal/event"
)

type waiter struct {
	match func(event.Event) bool
	ch    chan event.Event
}

type waiterRegistry struct {
	mu      sync.Mutex
	waiters []*waiter
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{}
}

func (r *waiterRegistry) register(match func(event.Event) bool) *waiter {
	w := &waiter{match: match, ch: make(chan event.Event, 1)}
	r.mu.Lock()
	r.waiters = append(r.waiters, w)
	r.mu.Unlock()
	return w
}

func (r *waiterRegistry) remove(target *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.waiters {
		if w == target {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// deliver hands ev to every waiter whose predicate matches. Matched
// waiters fire once and are not removed here — the awaiting goroutine
// removes itself after receiving.
func (r *waiterRegistry) deliver(ev event.Event) {
	r.mu.Lock()
	matched := make([]*waiter, 0)
	for _, w := range r.waiters {
		if w.match(ev) {
			matched = append(matched, w)
		}
	}
	r.mu.Unlock()

	for _, w := range matched {
		select {
		case w.ch <- ev:
		default:
		}
	}
}

func (r *waiterRegistry) cancelAll() {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()
	for _, w := range waiters {
		close(w.ch)
	}
}

// AwaitCorrelated blocks until an event matching match arrives or timeout
// elapses, returning COMMAND_TIMEOUT in the latter case (spec §7).
func (h *Hub) AwaitCorrelated(timeout time.Duration, match func(event.Event) bool) (event.Event, error) {
	w := h.waiters.register(match)
	defer h.waiters.remove(w)

	select {
	case ev, ok := <-w.ch:
		if !ok {
			return event.Event{}, daibugerr.New(daibugerr.CommandTimeout, "hub stopped while awaiting correlated event")
		}
		return ev, nil
	case <-time.After(timeout):
		return event.Event{}, daibugerr.New(daibugerr.CommandTimeout, "timed out waiting for correlated event")
	}
}
