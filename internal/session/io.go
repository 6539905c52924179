// io.go — Session export/import (spec §4.7, §6.4). Mirrors the teacher's
// internal/server/main_handlers.go file-write idiom (MkdirAll parent, write
// whole file) but for a single JSON document instead of an append log.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daibug/daibug/internal/daibugerr"
	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/redact"
)

// redactSession applies field redaction to storage snapshot values — the
// recorder is the redaction boundary for exported data (spec §4.7).
func redactSession(s Session, redactor *redact.Engine) Session {
	if redactor == nil {
		return s
	}
	snaps := make([]event.StorageSnapshot, len(s.StorageSnapshots))
	for i, snap := range s.StorageSnapshots {
		snaps[i] = snap
		snaps[i].LocalStorage = redactor.RedactStorageMap(snap.LocalStorage)
		snaps[i].SessionStorage = redactor.RedactStorageMap(snap.SessionStorage)
	}
	s.StorageSnapshots = snaps
	return s
}

// ExportToString serializes s to JSON with sensitive storage fields
// re-redacted via redactor (may be nil to skip re-redaction).
func ExportToString(s Session, redactor *redact.Engine) (string, error) {
	redacted := redactSession(s, redactor)
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	return string(data), nil
}

// Export writes the exported string to path, creating parent directories.
func Export(s Session, path string, redactor *redact.Engine) error {
	str, err := ExportToString(s, redactor)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(str), 0o644)
}

// ImportFromString validates and decodes a session JSON document.
func ImportFromString(data string) (Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Session{}, daibugerr.New(daibugerr.InvalidFormat, "invalid session JSON: %v", err)
	}
	if s.Version != FormatVersion {
		return Session{}, daibugerr.New(daibugerr.InvalidFormat, "unsupported session version %q", s.Version)
	}
	if s.ID == "" {
		return Session{}, daibugerr.New(daibugerr.InvalidFormat, "session id must not be empty")
	}
	return s, nil
}

// Import reads and validates a session file at path.
func Import(path string) (Session, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied via a tool call
	if err != nil {
		return Session{}, fmt.Errorf("reading session %s: %w", path, err)
	}
	return ImportFromString(string(data))
}
