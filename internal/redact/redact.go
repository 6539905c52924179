// redact.go — Deep-clone redaction of sensitive payload fields (spec §4.4).
// Structured after the teacher's internal/redaction/redaction.go: a
// constructed-once engine, safe for concurrent reuse. The teacher redacts
// by regex scanning of flattened MCP text content; daibug's events are
// structured JSON payloads, so the engine instead walks the object graph
// and redacts by key name, which is what spec.md actually requires.
package redact

import (
	"strings"

	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/glob"
)

const (
	redactedValue        = "[REDACTED]"
	redactedEndpointValue = "[REDACTED - sensitive endpoint]"
)

// Engine applies field- and URL-pattern-based redaction to events.
type Engine struct {
	fields      map[string]bool // lower-cased field names
	urlPatterns []*glob.Matcher
}

// New builds an Engine from the given sensitive field names (matched
// case-insensitively) and URL glob patterns. Patterns that fail to compile
// are skipped.
func New(fields []string, urlPatterns []string) *Engine {
	e := &Engine{fields: make(map[string]bool, len(fields))}
	for _, f := range fields {
		e.fields[strings.ToLower(f)] = true
	}
	for _, p := range urlPatterns {
		if m, err := glob.Compile(p); err == nil {
			e.urlPatterns = append(e.urlPatterns, m)
		}
	}
	return e
}

// Redact returns a redacted copy of ev. The input event is never mutated.
func (e *Engine) Redact(ev event.Event) event.Event {
	out := ev.Clone()
	out.Payload = e.redactMapping(out.Payload)

	if ev.Source == event.SourceBrowserNetwork {
		out.Payload = e.redactNetworkBodies(out.Payload)
	}
	if ev.Source == event.SourceBrowserStorage {
		out.Payload = e.redactStorageValue(out.Payload)
	}
	return out
}

// redactMapping walks a mapping, replacing values whose key matches a
// sensitive field name (case-insensitive), recursing through nested
// mappings and arrays. Never mutates its input.
func (e *Engine) redactMapping(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if e.fields[strings.ToLower(k)] {
			out[k] = redactedValue
			continue
		}
		out[k] = e.redactValue(v)
	}
	return out
}

func (e *Engine) redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return e.redactMapping(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = e.redactValue(item)
		}
		return out
	default:
		return v
	}
}

// redactNetworkBodies replaces requestBody/responseBody with the sentinel
// string when payload.url matches any configured URL pattern. The URL
// itself is preserved.
func (e *Engine) redactNetworkBodies(payload map[string]any) map[string]any {
	rawURL, ok := payload["url"].(string)
	if !ok || !e.matchesAnyURL(rawURL) {
		return payload
	}
	if _, has := payload["requestBody"]; has {
		payload["requestBody"] = redactedEndpointValue
	}
	if _, has := payload["responseBody"]; has {
		payload["responseBody"] = redactedEndpointValue
	}
	return payload
}

// redactStorageValue replaces value/previousValue when payload.key is a
// sensitive field name.
func (e *Engine) redactStorageValue(payload map[string]any) map[string]any {
	key, ok := payload["key"].(string)
	if !ok || !e.fields[strings.ToLower(key)] {
		return payload
	}
	if _, has := payload["value"]; has {
		payload["value"] = redactedValue
	}
	if _, has := payload["previousValue"]; has {
		payload["previousValue"] = redactedValue
	}
	return payload
}

func (e *Engine) matchesAnyURL(rawURL string) bool {
	for _, m := range e.urlPatterns {
		if m.Match(rawURL) {
			return true
		}
	}
	return false
}

// RedactStorageMap applies field-name redaction to a flat string->string
// storage map (localStorage/sessionStorage), for use by the session
// recorder's export boundary (spec §4.7).
func (e *Engine) RedactStorageMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if e.fields[strings.ToLower(k)] {
			out[k] = redactedValue
			continue
		}
		out[k] = v
	}
	return out
}
