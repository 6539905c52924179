package wsserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, onMessage Handler) (*Server, string, func()) {
	t.Helper()
	s := New(zerolog.Nop(), onMessage)
	stop := make(chan struct{})
	go s.Run(stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.HandleUpgrade(w, r, nil)
	})
	httpSrv := httptest.NewServer(mux)
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"

	cleanup := func() {
		close(stop)
		httpSrv.Close()
	}
	return s, wsURL, cleanup
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestBroadcastReachesConnectedClient(t *testing.T) {
	s, url, cleanup := newTestServer(t, nil)
	defer cleanup()

	conn := dial(t, url)
	defer conn.Close()

	waitForClients(t, s, 1)
	s.Broadcast([]byte(`{"id":"evt_1"}`))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, `{"id":"evt_1"}`, string(msg))
}

func TestLegacyBareObjectTreatedAsBrowserEvent(t *testing.T) {
	var mu sync.Mutex
	var got []Inbound
	s, url, cleanup := newTestServer(t, func(in Inbound) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, in)
	})
	defer cleanup()

	conn := dial(t, url)
	defer conn.Close()
	waitForClients(t, s, 1)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"source":"browser:console","level":"info","payload":{"message":"hi"}}`)))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "browser_event", got[0].Kind)
	require.Equal(t, "browser:console", got[0].Event.Source)
}

func TestUnknownMessageTypeIsDropped(t *testing.T) {
	var mu sync.Mutex
	var got []Inbound
	s, url, cleanup := newTestServer(t, func(in Inbound) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, in)
	})
	defer cleanup()

	conn := dial(t, url)
	defer conn.Close()
	waitForClients(t, s, 1)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"type":"mystery_unknown"}`)))
	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"type":"browser_tab_info","tabId":"t1","tabUrl":"/x","tabTitle":"X"}`)))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "browser_tab_info", got[0].Kind)
	require.Equal(t, "t1", got[0].Tab.TabID)
}

func TestConnectedClientsCount(t *testing.T) {
	s, url, cleanup := newTestServer(t, nil)
	defer cleanup()

	conn := dial(t, url)
	defer conn.Close()
	waitForClients(t, s, 1)
	require.Equal(t, 1, s.ConnectedClients())
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	waitFor(t, func() bool { return s.ConnectedClients() == n })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.FailNow(t, "condition not met before timeout")
}
