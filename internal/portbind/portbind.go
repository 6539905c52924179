// Package portbind implements the loopback port-bind-retry-then-fallback
// policy shared by the WebSocket and HTTP endpoints (spec §4.9/§4.10),
// grounded on the teacher's retry-with-backoff idiom used for child-process
// readiness polling in cmd/dev-console/bridge.go.
package portbind

import (
	"fmt"
	"net"
	"time"

	"github.com/daibug/daibug/internal/daibugerr"
)

const (
	// SameThresholdAttempts is how many times the same port is retried
	// before falling forward to subsequent ports.
	SameThresholdAttempts = 5
	// RetryBackoff is the pause between same-port retry attempts.
	RetryBackoff = 120 * time.Millisecond
	// MaxPort is the top of the usable TCP port range.
	MaxPort = 65535
)

// Listen binds a TCP listener on loopback starting at port, retrying the
// same port up to SameThresholdAttempts times with RetryBackoff between
// attempts, then walking forward port-by-port (skipping skipPort, used so
// the HTTP and WS endpoints never collide) until the port space is
// exhausted. Returns the listener and the port actually bound.
func Listen(port, skipPort int) (net.Listener, int, error) {
	if ln, err := listenWithRetry(port, skipPort); err == nil {
		return ln, ln.Addr().(*net.TCPAddr).Port, nil
	}

	for candidate := port + 1; candidate <= MaxPort; candidate++ {
		if candidate == skipPort {
			continue
		}
		if ln, err := net.Listen("tcp", addr(candidate)); err == nil {
			return ln, candidate, nil
		}
	}
	return nil, 0, daibugerr.New(daibugerr.PortExhausted, "no loopback port available starting from %d", port)
}

func listenWithRetry(port, skipPort int) (net.Listener, error) {
	if port == skipPort {
		return nil, fmt.Errorf("port %d reserved by sibling endpoint", port)
	}
	var lastErr error
	for attempt := 0; attempt < SameThresholdAttempts; attempt++ {
		ln, err := net.Listen("tcp", addr(port))
		if err == nil {
			return ln, nil
		}
		lastErr = err
		if attempt < SameThresholdAttempts-1 {
			time.Sleep(RetryBackoff)
		}
	}
	return nil, lastErr
}

func addr(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}
