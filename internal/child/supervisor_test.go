package child

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/daibug/daibug/internal/detector"
	"github.com/daibug/daibug/internal/event"
	"github.com/stretchr/testify/require"
)

type capturedEvent struct {
	source  event.Source
	level   event.Level
	payload event.Payload
}

type capture struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (c *capture) emit(source event.Source, level event.Level, payload event.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, capturedEvent{source, level, payload})
}

func (c *capture) snapshot() []capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedEvent(nil), c.events...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.FailNow(t, "condition not met before timeout")
}

func TestSupervisorClassifiesStdoutLines(t *testing.T) {
	c := &capture{}
	s := New(detector.New(), c.emit, nil)
	err := s.Spawn(context.Background(), `echo "VITE v5.0.0 ready in 120 ms"`)
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool { return len(c.snapshot()) > 0 })
	events := c.snapshot()
	require.Equal(t, event.SourceVite, events[0].source)
	require.Equal(t, event.LevelInfo, events[0].level)
}

func TestSupervisorStderrIsWarnLevel(t *testing.T) {
	c := &capture{}
	s := New(detector.New(), c.emit, nil)
	err := s.Spawn(context.Background(), `echo "oops" 1>&2`)
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool { return len(c.snapshot()) > 0 })
	events := c.snapshot()
	require.Equal(t, event.LevelWarn, events[0].level)
}

func TestSupervisorReportsNonZeroExit(t *testing.T) {
	c := &capture{}
	s := New(detector.New(), c.emit, nil)
	err := s.Spawn(context.Background(), `exit 7`)
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool { return !s.IsRunning() })
	waitFor(t, 2*time.Second, func() bool {
		for _, e := range c.snapshot() {
			if e.level == event.LevelError {
				return true
			}
		}
		return false
	})
	events := c.snapshot()
	found := false
	for _, e := range events {
		if e.level == event.LevelError {
			found = true
			require.Equal(t, 7, e.payload["exitCode"])
		}
	}
	require.True(t, found)
}

func TestSupervisorMissingBinaryIsNotASpawnError(t *testing.T) {
	c := &capture{}
	s := New(detector.New(), c.emit, nil)
	err := s.Spawn(context.Background(), `this-binary-does-not-exist-anywhere-xyz`)
	// sh -c starting succeeds even if the target binary is missing; the
	// shell itself reports the failure as a non-zero exit, not a Start error.
	require.NoError(t, err)
	waitFor(t, 2*time.Second, func() bool { return !s.IsRunning() })
}

func TestSupervisorShutdownTerminatesProcess(t *testing.T) {
	c := &capture{}
	s := New(detector.New(), c.emit, nil)
	err := s.Spawn(context.Background(), `sleep 30`)
	require.NoError(t, err)
	require.True(t, s.IsRunning())

	start := time.Now()
	s.Shutdown()
	require.Less(t, time.Since(start), 2*time.Second)
	require.False(t, s.IsRunning())
}
