// Package hub wires every daibug component into the long-running process
// described by spec.md §4.12: lifecycle, ports, config, registries, and
// the single serialized ingestion path everything else reports onto.
// Grounded on the teacher's cmd/dev-console/bridge.go orchestration shape
// (bind listeners, spawn child, own shutdown) but restructured onto an
// explicit ingestion channel instead of the teacher's direct-call wiring,
// since spec §5 requires one serialized logical thread for event
// construction/redaction/ring-insertion/broadcast/fan-out.
package hub

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/daibug/daibug/internal/child"
	"github.com/daibug/daibug/internal/config"
	"github.com/daibug/daibug/internal/daibugerr"
	"github.com/daibug/daibug/internal/detector"
	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/httpserver"
	"github.com/daibug/daibug/internal/metrics"
	"github.com/daibug/daibug/internal/portbind"
	"github.com/daibug/daibug/internal/redact"
	"github.com/daibug/daibug/internal/ring"
	"github.com/daibug/daibug/internal/session"
	"github.com/daibug/daibug/internal/watch"
	"github.com/daibug/daibug/internal/wsserver"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	eventRingCapacity       = 500
	interactionRingCapacity = 200
	drainWait               = 700 * time.Millisecond
	drainPoll               = 25 * time.Millisecond
	ingestQueueDepth        = 1024
)

type ingestRequest struct {
	source  event.Source
	level   event.Level
	payload event.Payload
	tabID   *string
}

// Hub is the long-running daibug process (spec §4.12). Zero value is not
// usable; construct with New.
type Hub struct {
	cfg config.Config
	log zerolog.Logger
	met *metrics.Metrics

	eventFactory *event.Factory
	interFactory *event.InteractionFactory
	detector     *detector.Detector
	redactor     *redact.Engine
	watchEngine  *watch.Engine
	recorder     *session.Recorder
	supervisor   *child.Supervisor

	eventRing *ring.Ring[event.Event]
	interRing *ring.Ring[event.Interaction]

	tabsMu sync.Mutex
	tabs   map[string]event.TabInfo

	ws         *wsserver.Server
	httpLn     net.Listener
	wsLn       net.Listener
	httpSrv    *http.Server
	httpPort   int
	wsPort     int

	ingest  chan ingestRequest
	wsStop  chan struct{}
	stopped chan struct{}

	subMu       sync.Mutex
	subscribers []func(event.Event)

	waiters *waiterRegistry

	now func() time.Time

	mu      sync.Mutex
	running bool
}

// New constructs a Hub from cfg. now is injectable for deterministic tests.
func New(cfg config.Config, log zerolog.Logger, met *metrics.Metrics, now func() time.Time) *Hub {
	if now == nil {
		now = time.Now
	}
	det := detector.New()
	h := &Hub{
		cfg:          cfg,
		log:          log.With().Str("component", "hub").Logger(),
		met:          met,
		eventFactory: event.NewFactory(now),
		interFactory: event.NewInteractionFactory(now),
		detector:     det,
		redactor:     redact.New(cfg.Redact.Fields, cfg.Redact.URLPatterns),
		watchEngine:  watch.New(now),
		recorder:     session.NewRecorder(now),
		eventRing:    ring.New[event.Event](eventRingCapacity),
		interRing:    ring.New[event.Interaction](interactionRingCapacity),
		tabs:         make(map[string]event.TabInfo),
		waiters:      newWaiterRegistry(),
		now:          now,
	}
	h.supervisor = child.New(det, h.enqueueIngest, h.recordChildRestart)
	h.ws = wsserver.New(h.log, h.handleInbound)
	return h
}

// Subscribe installs a subscriber invoked with every ingested event, in
// registration order (spec §5 "subscriber-registration order"). Panics
// inside subscribers are recovered so the ingestion path is never broken
// by one (spec §4.12).
func (h *Hub) Subscribe(fn func(event.Event)) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subscribers = append(h.subscribers, fn)
}

// Start binds the HTTP and WS endpoints, starts the child supervisor and
// watch engine, optionally auto-starts the session recorder, registers
// config-declared watch rules, and waits briefly for startup output to
// drain (spec §4.12).
func (h *Hub) Start(ctx context.Context, cmdline string) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return daibugerr.New(daibugerr.AlreadyStarted, "hub already started")
	}
	h.running = true
	h.mu.Unlock()

	h.Subscribe(h.recorderSubscriber)

	httpLn, httpPort, err := portbind.Listen(h.cfg.Hub.HTTPPort, h.cfg.Hub.WSPort)
	if err != nil {
		return err
	}
	wsLn, wsPort, err := portbind.Listen(h.cfg.Hub.WSPort, httpPort)
	if err != nil {
		httpLn.Close()
		return err
	}
	h.httpLn, h.httpPort = httpLn, httpPort
	h.wsLn, h.wsPort = wsLn, wsPort

	h.httpSrv = &http.Server{Handler: httpserver.NewRouter(h)}
	go func() { _ = h.httpSrv.Serve(h.httpLn) }()

	filterFrame, err := json.Marshal(map[string]any{
		"type":    "command",
		"command": "set_console_filter",
		"include": h.cfg.Console.Include,
	})
	if err != nil {
		httpLn.Close()
		wsLn.Close()
		return err
	}

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		h.ws.HandleUpgrade(w, r, filterFrame)
	})
	wsHTTPSrv := &http.Server{Handler: wsMux}
	go func() { _ = wsHTTPSrv.Serve(h.wsLn) }()
	h.wsStop = make(chan struct{})
	go h.ws.Run(h.wsStop)

	h.ingest = make(chan ingestRequest, ingestQueueDepth)
	h.stopped = make(chan struct{})
	go h.runIngestLoop()

	for _, spec := range h.cfg.Watch {
		cond := conditionsFromSpec(spec)
		var source *event.Source
		if spec.Source != "" {
			s := event.Source(spec.Source)
			source = &s
		}
		if !cond.Empty() {
			h.watchEngine.AddRule(spec.Label, source, cond)
		}
	}

	if h.cfg.Session.AutoStart {
		h.recorder.Start(h.sessionEnvironment(cmdline), h.cfg, h.eventRing.ToArray())
	}

	if cmdline != "" {
		if err := h.supervisor.Spawn(ctx, cmdline); err != nil {
			h.log.Warn().Err(err).Msg("failed to spawn dev-server child")
		}
	}

	h.waitForDrain()
	return nil
}

func (h *Hub) sessionEnvironment(cmdline string) session.Environment {
	return session.Environment{Cmd: cmdline}
}

func (h *Hub) waitForDrain() {
	deadline := time.Now().Add(drainWait)
	for time.Now().Before(deadline) {
		if h.eventRing.Size() > 0 {
			return
		}
		time.Sleep(drainPoll)
	}
}

// Stop freezes the session recorder, closes the WS and HTTP endpoints,
// and shuts down the child with a graceful-then-force-kill ceiling.
// Idempotent after the first call (spec §4.12).
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		started := h.stopped != nil
		h.mu.Unlock()
		if started {
			return nil
		}
		return daibugerr.New(daibugerr.NotStarted, "hub was never started")
	}
	h.running = false
	h.mu.Unlock()

	h.recorder.Stop()
	h.waiters.cancelAll()

	if h.wsStop != nil {
		close(h.wsStop)
	}
	if h.wsLn != nil {
		h.wsLn.Close()
	}
	if h.httpSrv != nil {
		_ = h.httpSrv.Close()
	}
	h.supervisor.Shutdown()

	if h.stopped != nil {
		close(h.stopped)
	}
	return nil
}

// Ports returns the resolved HTTP/WS ports (spec §4.10 /ports).
func (h *Hub) Ports() (int, int) { return h.httpPort, h.wsPort }

// recordChildRestart is the supervisor's onRestart hook (SPEC_FULL.md C16).
func (h *Hub) recordChildRestart() {
	if h.met != nil {
		h.met.ChildRestarts.Inc()
	}
}

func conditionsFromSpec(spec config.WatchRuleSpec) event.Conditions {
	levels := make([]event.Level, 0, len(spec.Levels))
	for _, l := range spec.Levels {
		levels = append(levels, event.Level(l))
	}
	return event.Conditions{
		StatusCodes:     spec.StatusCodes,
		URLPattern:      spec.URLPattern,
		Methods:         spec.Methods,
		Levels:          levels,
		MessageContains: spec.MessageContains,
	}
}

// NewEvaluationID returns a fresh correlation id for evaluate_in_browser
// (spec §4.11).
func (h *Hub) NewEvaluationID() string {
	return uuid.NewString()
}
