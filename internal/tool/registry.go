// Package tool implements daibug's tool surface (spec §4.11): a registry
// of named, schema-described tools whose handlers return a single JSON
// text fragment, grounded on the teacher's MCPTool{Name,Description,
// InputSchema} shape (internal/mcp/protocol.go) and its per-package Deps
// interface pattern (internal/mcp/deps.go) — here collapsed into one
// Backend interface since daibug's tool set is one cohesive surface
// rather than many independently-versioned packages.
package tool

import "encoding/json"

// Definition describes one callable tool, mirroring the MCP protocol's
// tool listing shape so a future MCP transport can serve it unchanged.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Handler executes a tool call and returns its result as a JSON text
// fragment. Handlers never return a Go error for domain failures — those
// are encoded as {"error": "..."} in the returned text (spec §4.11).
type Handler func(args map[string]any) string

// entry pairs a Definition with its Handler.
type entry struct {
	def     Definition
	handler Handler
}

// Registry holds the set of tools available at a point in the hub's
// lifecycle (the always-available set, plus watch/session tools once
// their backends exist).
type Registry struct {
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. Re-registering a name replaces it in place,
// preserving its original position in List.
func (r *Registry) Register(def Definition, handler Handler) {
	if _, exists := r.entries[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.entries[def.Name] = entry{def: def, handler: handler}
}

// List returns tool definitions in registration order.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].def)
	}
	return out
}

// Call invokes the named tool. An unknown name returns the same
// {"error":...} shape a handler would produce for a validation failure.
func (r *Registry) Call(name string, args map[string]any) string {
	e, ok := r.entries[name]
	if !ok {
		return errorJSON("unknown tool " + name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return e.handler(args)
}

func errorJSON(message string) string {
	data, _ := json.Marshal(map[string]string{"error": message})
	return string(data)
}

func okJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return errorJSON(err.Error())
	}
	return string(data)
}
