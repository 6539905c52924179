// detector.go — Classifies dev-server stdout/stderr lines into framework
// tags (spec §4.3). Stateful: once a signature locks the tag, subsequent
// unsigned lines fall through to the lock.
package detector

import (
	"strings"

	"github.com/daibug/daibug/internal/event"
)

// Detector tracks the single locked framework tag, or none.
type Detector struct {
	locked    event.Source
	hasLocked bool
}

// New creates an unlocked Detector.
func New() *Detector {
	return &Detector{}
}

// DetectFromCommand pre-locks the detector from the launch command string,
// before any output line has arrived (spec §4.3 "Command-hint").
func (d *Detector) DetectFromCommand(cmd string) {
	if containsWord(cmd, "next") {
		d.lock(event.SourceNext)
		return
	}
	if containsWord(cmd, "vite") {
		d.lock(event.SourceVite)
	}
}

// Locked reports the currently locked tag, if any.
func (d *Detector) Locked() (event.Source, bool) {
	return d.locked, d.hasLocked
}

func (d *Detector) lock(s event.Source) {
	if !d.hasLocked {
		d.locked = s
		d.hasLocked = true
	}
}

// ClassifyLine classifies one line of dev-server output, per spec §4.3's
// numbered rules:
//  1. Next.js signature -> lock to "next".
//  2. Vite signature -> lock to "vite".
//  3. Already locked -> return the lock.
//  4. A bare http(s) URL with no lock -> lock to "devserver".
//  5. Otherwise, with no lock and no URL: the stateful detector (as used
//     inside the hub) falls back to "vite" for unlocked stdout, rather than
//     the stateless classifier's "devserver" fallback. This tie-break is
//     spec.md §9's Open Question (i), resolved here per the reference
//     behavior it names; see TestUnlockedPlainTextFallsBackToVite.
func (d *Detector) ClassifyLine(text string) event.Source {
	lower := strings.ToLower(text)

	if isNextSignature(text, lower) {
		d.lock(event.SourceNext)
		return event.SourceNext
	}
	if isViteSignature(text, lower) {
		d.lock(event.SourceVite)
		return event.SourceVite
	}
	if d.hasLocked {
		return d.locked
	}
	if containsURL(lower) {
		d.lock(event.SourceDevServer)
		return event.SourceDevServer
	}
	return event.SourceVite
}

// ClassifyLineStateless implements the stateless classifyOutput variant
// named in spec.md §9 (unknown text with no lock, no signature, no URL,
// used outside the hub's stateful context) — returns "devserver" rather
// than "vite". Kept distinct from ClassifyLine so both documented
// tie-breaks are independently testable, per spec.md §9 Open Question (i).
func ClassifyLineStateless(text string) event.Source {
	lower := strings.ToLower(text)
	if isNextSignature(text, lower) {
		return event.SourceNext
	}
	if isViteSignature(text, lower) {
		return event.SourceVite
	}
	if containsURL(lower) {
		return event.SourceDevServer
	}
	return event.SourceDevServer
}

func isNextSignature(original, lower string) bool {
	return strings.Contains(lower, "next.js") ||
		strings.Contains(lower, "next dev") ||
		strings.Contains(original, "Compiled /")
}

func isViteSignature(original, lower string) bool {
	return strings.Contains(original, "VITE") ||
		strings.Contains(lower, "vite") ||
		strings.Contains(original, "➜  Local:") ||
		strings.Contains(original, "➜ Local:")
}

func containsURL(lower string) bool {
	return strings.Contains(lower, "http://") || strings.Contains(lower, "https://")
}

// containsWord reports whether s contains word as a standalone token,
// bounded by non-alphanumeric characters (or string edges).
func containsWord(s, word string) bool {
	lower := strings.ToLower(s)
	word = strings.ToLower(word)
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isAlnum(lower[start-1])
		afterOK := end == len(lower) || !isAlnum(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
