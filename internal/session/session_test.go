package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/daibug/daibug/internal/event"
	"github.com/daibug/daibug/internal/redact"
	"github.com/stretchr/testify/require"
)

func errEvent(ts int64, id, msg string) event.Event {
	return event.Event{ID: id, TS: ts, Source: event.SourceBrowserConsole, Level: event.LevelError, Payload: event.Payload{"message": msg}}
}

func netEvent(ts int64, id, url string, status int) event.Event {
	return event.Event{ID: id, TS: ts, Source: event.SourceBrowserNetwork, Level: event.LevelInfo, Payload: event.Payload{"url": url, "status": float64(status)}}
}

func TestRecorderStartSeedsExistingEvents(t *testing.T) {
	r := NewRecorder(nil)
	existing := []event.Event{errEvent(1, "evt_1", "boom")}
	r.Start(Environment{}, nil, existing)
	r.RecordEvent(errEvent(2, "evt_2", "bang"))

	snap := r.GetSnapshot()
	require.Len(t, snap.Events, 2)
	require.Equal(t, FormatVersion, snap.Version)
}

func TestRecorderStopFreezesFurtherRecording(t *testing.T) {
	r := NewRecorder(nil)
	r.Start(Environment{}, nil, nil)
	r.RecordEvent(errEvent(1, "evt_1", "x"))
	r.Stop()
	r.RecordEvent(errEvent(2, "evt_2", "y"))

	snap := r.GetSnapshot()
	require.Len(t, snap.Events, 1)
	require.False(t, r.Active())
}

func TestComputeSummaryDeterministic(t *testing.T) {
	events := []event.Event{
		netEvent(100, "evt_b", "/api/x", 500),
		errEvent(50, "evt_a", "boom"),
		errEvent(60, "evt_c", "boom"),
	}
	s := ComputeSummary(events, nil, 0)
	require.Equal(t, 3, s.TotalEvents)
	require.Equal(t, 2, s.ErrorCount)
	require.Equal(t, 1, s.NetworkRequests)
	require.Equal(t, 1, s.FailedRequests)
	require.Equal(t, []string{"boom"}, s.TopErrors)
	require.Equal(t, int64(50), s.Duration) // 100-50
}

func TestExportImportRoundTrip(t *testing.T) {
	r := NewRecorder(nil)
	r.Start(Environment{Framework: "vite", DaibugVersion: "1.0.0"}, nil, nil)
	r.RecordEvent(errEvent(1, "evt_1", "boom"))
	r.Stop()

	snap := r.GetSnapshot()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, Export(snap, path, nil))

	imported, err := Import(path)
	require.NoError(t, err)
	require.Equal(t, snap.ID, imported.ID)
	require.Equal(t, FormatVersion, imported.Version)
}

func TestImportRejectsWrongVersion(t *testing.T) {
	_, err := ImportFromString(`{"version":"2.0","id":"session_1"}`)
	require.Error(t, err)
}

func TestImportRejectsEmptyID(t *testing.T) {
	_, err := ImportFromString(`{"version":"1.0","id":""}`)
	require.Error(t, err)
}

func TestExportRedactsStorageValues(t *testing.T) {
	r := NewRecorder(nil)
	r.Start(Environment{}, nil, nil)
	r.RecordStorageSnapshot(event.StorageSnapshot{
		TS:             1,
		URL:            "http://localhost",
		LocalStorage:   map[string]string{"authToken": "secret", "theme": "dark"},
		SessionStorage: map[string]string{},
	})
	r.Stop()

	redactor := redact.New([]string{"authToken"}, nil)
	str, err := ExportToString(r.GetSnapshot(), redactor)
	require.NoError(t, err)
	require.Contains(t, str, "[REDACTED]")
	require.NotContains(t, str, "\"secret\"")
	require.Contains(t, str, "dark")
}

func TestDiffIdenticalSessionIsIdentical(t *testing.T) {
	s := Session{
		Events: []event.Event{errEvent(1, "evt_1", "boom")},
	}
	d := CompareSessions(s, s)
	require.True(t, d.Identical)
	require.Nil(t, d.DivergesAt)
	require.True(t, d.Events.Empty())
}

func TestDiffNetworkStatusDivergence(t *testing.T) {
	a := Session{Events: []event.Event{netEvent(1, "evt_a", "/api/checkout", 200)}}
	b := Session{Events: []event.Event{netEvent(1, "evt_b", "/api/checkout", 500)}}

	d := CompareSessions(a, b)
	require.False(t, d.Identical)
	require.Equal(t, []StatusDifference{{URL: "/api/checkout", StatusA: 200, StatusB: 500}}, d.Network.StatusDifferences)
}

func TestDiffEventOnlyInA(t *testing.T) {
	a := Session{Events: []event.Event{errEvent(1, "evt_1", "x")}}
	b := Session{Events: []event.Event{}}
	d := CompareSessions(a, b)
	require.Equal(t, []string{"evt_1"}, d.Events.OnlyInA)
}

func TestDiffStorageFlattenedAcrossSnapshots(t *testing.T) {
	a := Session{StorageSnapshots: []event.StorageSnapshot{
		{LocalStorage: map[string]string{"theme": "dark"}, SessionStorage: map[string]string{}},
	}}
	b := Session{StorageSnapshots: []event.StorageSnapshot{
		{LocalStorage: map[string]string{"theme": "light"}, SessionStorage: map[string]string{}},
	}}
	d := CompareSessions(a, b)
	require.Equal(t, []StorageKeyDiff{{Key: "theme", ValueA: "dark", ValueB: "light"}}, d.Storage.Different)
}

func TestDiffInteractionsFirstMismatch(t *testing.T) {
	click := "click"
	typeA := "type"
	a := Session{Interactions: []event.Interaction{
		{ID: "int_1", Type: click},
		{ID: "int_2", Type: click},
	}}
	b := Session{Interactions: []event.Interaction{
		{ID: "int_1", Type: click},
		{ID: "int_2", Type: typeA},
	}}
	d := CompareSessions(a, b)
	require.Len(t, d.Interactions.Different, 1)
	require.Equal(t, 1, d.Interactions.Different[0].Index)
}

func TestRecorderIDDerivesFromStartTime(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	r := NewRecorder(func() time.Time { return fixed })
	r.Start(Environment{}, nil, nil)
	require.Equal(t, "session_1700000000000", r.GetSnapshot().ID)
}
