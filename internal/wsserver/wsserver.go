// Package wsserver implements daibug's WebSocket endpoint (spec §4.9):
// inbound message demuxing, per-client bounded send queues with
// drop-on-backpressure, and broadcast fan-out. Grounded on the
// register/unregister/broadcast-channel hub shape and the readPump/writePump
// ping-pong pattern from other_examples' strongdm/leash websocket hub, but
// without that hub's on-connect historical backlog send — spec §4.9 is
// explicit that new connections receive no backlog, only live broadcasts.
package wsserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeDeadline   = 5 * time.Second
	pongWait        = 60 * time.Second
	pingInterval    = 30 * time.Second
	sendQueueDepth  = 256
	maxQueuedBytes  = 1 << 20 // 1 MiB, spec §5 backpressure bound
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inbound is one demuxed inbound message, already tagged by kind.
type Inbound struct {
	Kind  string
	Event BrowserEvent
	Inter BrowserInteraction
	Tab   BrowserTabInfo
	Store BrowserStorage
}

// BrowserEvent is the {source, level, payload} shape shared by
// browser_event and the legacy bare-object form (spec §4.9).
type BrowserEvent struct {
	Source  string         `json:"source"`
	Level   string         `json:"level"`
	Payload map[string]any `json:"payload"`
}

// BrowserInteraction is the browser_interaction inbound shape.
type BrowserInteraction struct {
	InteractionType string   `json:"interactionType"`
	Target          *string  `json:"target"`
	Value           *string  `json:"value"`
	URL             *string  `json:"url"`
	X               *float64 `json:"x"`
	Y               *float64 `json:"y"`
}

// BrowserTabInfo is the browser_tab_info inbound shape.
type BrowserTabInfo struct {
	TabID    string `json:"tabId"`
	TabURL   string `json:"tabUrl"`
	TabTitle string `json:"tabTitle"`
}

// BrowserStorage is the browser_storage inbound shape.
type BrowserStorage struct {
	Payload map[string]any `json:"payload"`
}

type envelope struct {
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Level           string          `json:"level"`
	Payload         json.RawMessage `json:"payload"`
	InteractionType string          `json:"interactionType"`
	Target          *string         `json:"target"`
	Value           *string         `json:"value"`
	URL             *string         `json:"url"`
	X               *float64        `json:"x"`
	Y               *float64        `json:"y"`
	TabID           string          `json:"tabId"`
	TabURL          string          `json:"tabUrl"`
	TabTitle        string          `json:"tabTitle"`
}

// Handler is invoked once per demuxed inbound message.
type Handler func(Inbound)

// Server is daibug's WebSocket hub.
type Server struct {
	log zerolog.Logger

	clients    map[string]*client
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	mu         sync.RWMutex

	onMessage Handler
}

type client struct {
	id      string
	conn    *gws.Conn
	send    chan []byte
	queued  int
	mu      sync.Mutex
	closed  chan struct{}
	closeMu sync.Mutex
}

// New creates a Server. onMessage receives every successfully-demuxed
// inbound frame; unrecognized `type` values are silently dropped per
// spec §4.9.
func New(log zerolog.Logger, onMessage Handler) *Server {
	return &Server{
		log:        log.With().Str("component", "wsserver").Logger(),
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendQueueDepth),
		onMessage:  onMessage,
	}
}

// Run drives the hub's registration/broadcast loop until stop is closed.
func (s *Server) Run(stop <-chan struct{}) {
	for {
		select {
		case c := <-s.register:
			s.mu.Lock()
			s.clients[c.id] = c
			s.mu.Unlock()

		case c := <-s.unregister:
			s.removeClient(c.id)

		case frame := <-s.broadcast:
			for _, c := range s.snapshot() {
				s.enqueue(c, frame)
			}

		case <-stop:
			for _, c := range s.snapshot() {
				c.close()
			}
			return
		}
	}
}

// ConnectedClients reports the count of clients whose handshake completed
// and which are still registered (spec §4.10 /status).
func (s *Server) ConnectedClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) snapshot() []*client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.mu.Unlock()
	if ok {
		c.close()
	}
}

// enqueue drops the whole client, not just the frame, once its queue
// exceeds the backpressure bound (spec §5: "slow clients may be dropped").
func (s *Server) enqueue(c *client, frame []byte) {
	c.mu.Lock()
	queued := c.queued + len(frame)
	c.mu.Unlock()

	if queued > maxQueuedBytes {
		s.log.Warn().Str("client", c.id).Msg("dropping slow websocket client, send queue exceeded bound")
		s.removeClient(c.id)
		return
	}

	select {
	case c.send <- frame:
		c.mu.Lock()
		c.queued += len(frame)
		c.mu.Unlock()
	default:
		s.log.Warn().Str("client", c.id).Msg("dropping slow websocket client, send channel full")
		s.removeClient(c.id)
	}
}

// Broadcast writes one JSON frame to every open client (spec §4.9's
// event broadcast and §4.10's command broadcast share this path).
func (s *Server) Broadcast(frame []byte) {
	select {
	case s.broadcast <- frame:
	default:
		s.log.Warn().Msg("broadcast channel full, dropping frame")
	}
}

// HandleUpgrade upgrades an HTTP connection and starts the client's pumps.
// A per-connect one-shot console-filter command frame is sent first if
// filterFrame is non-nil (spec §4.9).
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request, filterFrame []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendQueueDepth),
		closed: make(chan struct{}),
	}

	if filterFrame != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(gws.TextMessage, filterFrame); err != nil {
			conn.Close()
			return
		}
	}

	s.register <- c
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() { s.unregister <- c }()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != gws.TextMessage {
			continue
		}
		s.demux(payload)
	}
}

func (s *Server) demux(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Debug().Err(err).Msg("dropping malformed websocket frame")
		return
	}

	if env.Type == "" && env.Source != "" {
		env.Type = "browser_event" // legacy bare-object form (spec §4.9)
	}

	switch env.Type {
	case "browser_event":
		var payload map[string]any
		_ = json.Unmarshal(env.Payload, &payload)
		s.dispatch(Inbound{Kind: "browser_event", Event: BrowserEvent{Source: env.Source, Level: env.Level, Payload: payload}})

	case "browser_interaction":
		s.dispatch(Inbound{Kind: "browser_interaction", Inter: BrowserInteraction{
			InteractionType: env.InteractionType, Target: env.Target, Value: env.Value, URL: env.URL, X: env.X, Y: env.Y,
		}})

	case "browser_tab_info":
		s.dispatch(Inbound{Kind: "browser_tab_info", Tab: BrowserTabInfo{TabID: env.TabID, TabURL: env.TabURL, TabTitle: env.TabTitle}})

	case "browser_storage":
		var payload map[string]any
		_ = json.Unmarshal(env.Payload, &payload)
		s.dispatch(Inbound{Kind: "browser_storage", Store: BrowserStorage{Payload: payload}})

	default:
		// unknown type, silently dropped per spec §4.9
	}
}

func (s *Server) dispatch(in Inbound) {
	if s.onMessage == nil {
		return
	}
	s.onMessage(in)
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			c.mu.Lock()
			c.queued -= len(message)
			c.mu.Unlock()
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}

func (c *client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.send)
		_ = c.conn.Close()
	}
}
