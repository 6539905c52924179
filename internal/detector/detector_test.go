package detector

import (
	"testing"

	"github.com/daibug/daibug/internal/event"
	"github.com/stretchr/testify/require"
)

func TestNextSignatureLocks(t *testing.T) {
	d := New()
	require.Equal(t, event.SourceNext, d.ClassifyLine("- Next.js 14.2.0"))
	// subsequent unrelated line stays locked to next
	require.Equal(t, event.SourceNext, d.ClassifyLine("ready in 400ms"))
}

func TestViteSignatureLocks(t *testing.T) {
	d := New()
	require.Equal(t, event.SourceVite, d.ClassifyLine("  VITE v5.2.0  ready in 300 ms"))
	require.Equal(t, event.SourceVite, d.ClassifyLine("anything else now"))
}

func TestLowercaseViteLocks(t *testing.T) {
	d := New()
	require.Equal(t, event.SourceVite, d.ClassifyLine("starting vite dev server"))
}

func TestLocalMarkerLocksVite(t *testing.T) {
	d := New()
	require.Equal(t, event.SourceVite, d.ClassifyLine("  ➜  Local:   http://localhost:5173/"))
}

func TestURLLocksDevServerWhenUnlocked(t *testing.T) {
	d := New()
	require.Equal(t, event.SourceDevServer, d.ClassifyLine("Listening on http://localhost:3000"))
	require.Equal(t, event.SourceDevServer, d.ClassifyLine("some other line"))
}

// TestUnlockedPlainTextFallsBackToVite documents spec.md §9 Open Question
// (i): the stateful in-hub detector falls back to "vite" for unlocked,
// unsigned, URL-less stdout so early startup text is coherent.
func TestUnlockedPlainTextFallsBackToVite(t *testing.T) {
	d := New()
	require.Equal(t, event.SourceVite, d.ClassifyLine("installing dependencies..."))
}

func TestStatelessClassifierFallsBackToDevServer(t *testing.T) {
	require.Equal(t, event.SourceDevServer, ClassifyLineStateless("installing dependencies..."))
}

func TestDetectFromCommandPreLocksNext(t *testing.T) {
	d := New()
	d.DetectFromCommand("next dev --turbo")
	require.Equal(t, event.SourceNext, d.ClassifyLine("installing dependencies..."))
}

func TestDetectFromCommandPreLocksVite(t *testing.T) {
	d := New()
	d.DetectFromCommand("vite --host")
	require.Equal(t, event.SourceVite, d.ClassifyLine("anything"))
}

func TestDetectFromCommandNoHintLeavesUnlocked(t *testing.T) {
	d := New()
	d.DetectFromCommand("webpack serve")
	_, locked := d.Locked()
	require.False(t, locked)
}

func TestNextSignatureBeatsVitePriorityWhenBothAppear(t *testing.T) {
	d := New()
	require.Equal(t, event.SourceNext, d.ClassifyLine("Next.js running with vite-plugin enabled"))
}
