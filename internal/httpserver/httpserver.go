// Package httpserver implements daibug's HTTP API (spec §4.10), grounded
// on the chi.Router registration style used across the retrieval pack's
// gateway services (RegisterHTTP(r chi.Router) with r.Get/r.Post).
package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Backend is the narrow surface the HTTP handlers read from and act on.
// The hub implements it; handlers never reach into hub internals directly.
type Backend interface {
	Events(source, level string, limit int) (events []any, total int)
	Status() (connectedClients int, isDevServerRunning bool, detectedFramework string)
	Ports() (httpPort, wsPort int)
	Tabs() []any
	WatchRules() []any
	WatchedEvents() []any
	Config() any
	SessionStatus() (active bool, summary any)
	BroadcastCommand(command string) error
}

// NewRouter builds the chi router for daibug's HTTP surface.
func NewRouter(b Backend) http.Handler {
	r := chi.NewRouter()

	r.Get("/events", handleEvents(b))
	r.Get("/status", handleStatus(b))
	r.Get("/ports", handlePorts(b))
	r.Get("/tabs", handleTabs(b))
	r.Get("/watch-rules", handleWatchRules(b))
	r.Get("/watched-events", handleWatchedEvents(b))
	r.Get("/config", handleConfig(b))
	r.Get("/session", handleSession(b))
	r.Post("/command", handleCommand(b))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleEvents(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.URL.Query().Get("source")
		level := r.URL.Query().Get("level")
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
				limit = n
			}
		}
		events, total := b.Events(source, level, limit)
		writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": total})
	}
}

func handleStatus(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connected, running, framework := b.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"connectedClients":   connected,
			"isDevServerRunning": running,
			"detectedFramework":  framework,
		})
	}
}

func handlePorts(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpPort, wsPort := b.Ports()
		writeJSON(w, http.StatusOK, map[string]any{"httpPort": httpPort, "wsPort": wsPort})
	}
}

func handleTabs(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tabs": b.Tabs()})
	}
}

func handleWatchRules(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"rules": b.WatchRules()})
	}
}

func handleWatchedEvents(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"events": b.WatchedEvents()})
	}
}

func handleConfig(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.Config())
	}
}

func handleSession(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, summary := b.SessionStatus()
		body := map[string]any{"active": active}
		if summary != nil {
			body["summary"] = summary
		}
		writeJSON(w, http.StatusOK, body)
	}
}

var allowedCommands = map[string]bool{
	"snapshot_dom":    true,
	"capture_react":   true,
	"capture_storage": true,
}

func handleCommand(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Command string `json:"command"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if !allowedCommands[body.Command] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown command " + body.Command})
			return
		}
		if err := b.BroadcastCommand(body.Command); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}
