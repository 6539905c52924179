package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	events       []any
	total        int
	broadcastErr error
	broadcast    []string
}

func (f *fakeBackend) Events(source, level string, limit int) ([]any, int) { return f.events, f.total }
func (f *fakeBackend) Status() (int, bool, string)                         { return 2, true, "vite" }
func (f *fakeBackend) Ports() (int, int)                                   { return 5000, 4999 }
func (f *fakeBackend) Tabs() []any                                         { return []any{} }
func (f *fakeBackend) WatchRules() []any                                   { return []any{} }
func (f *fakeBackend) WatchedEvents() []any                                { return []any{} }
func (f *fakeBackend) Config() any                                         { return map[string]string{"ok": "yes"} }
func (f *fakeBackend) SessionStatus() (bool, any)                          { return false, nil }
func (f *fakeBackend) BroadcastCommand(command string) error {
	f.broadcast = append(f.broadcast, command)
	return f.broadcastErr
}

func TestGetEventsReturnsBackendData(t *testing.T) {
	b := &fakeBackend{events: []any{map[string]string{"id": "evt_1"}}, total: 1}
	req := httptest.NewRequest(http.MethodGet, "/events?source=browser:console", nil)
	rec := httptest.NewRecorder()
	NewRouter(b).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(1), body["total"])
}

func TestUnknownPathReturns404(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	NewRouter(&fakeBackend{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWrongMethodReturns405(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	rec := httptest.NewRecorder()
	NewRouter(&fakeBackend{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCommandBroadcastsAndReturns202(t *testing.T) {
	b := &fakeBackend{}
	body, _ := json.Marshal(map[string]string{"command": "snapshot_dom"})
	req := httptest.NewRequest(http.MethodPost, "/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(b).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"snapshot_dom"}, b.broadcast)
}

func TestCommandUnknownReturns400(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"command": "delete_everything"})
	req := httptest.NewRequest(http.MethodPost, "/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(&fakeBackend{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandInvalidJSONReturns400(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/command", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	NewRouter(&fakeBackend{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandBroadcastErrorReturns500(t *testing.T) {
	b := &fakeBackend{broadcastErr: errors.New("ws closed")}
	body, _ := json.Marshal(map[string]string{"command": "capture_storage"})
	req := httptest.NewRequest(http.MethodPost, "/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(b).ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPortsEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ports", nil)
	rec := httptest.NewRecorder()
	NewRouter(&fakeBackend{}).ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(5000), body["httpPort"])
	require.Equal(t, float64(4999), body["wsPort"])
}
