package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/subtrack/subtrack/pkg/types"
	"github.com/subtrack/subtrack/server/internal/snapshot"
	"github.com/subtrack/subtrack/server/internal/store"
	wsHub "github.com/subtrack/subtrack/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// --- helpers ----------------------------------------------------------------

// testClock is a store clock the test can move forward.
type testClock struct{ offset atomic.Int64 }

func (c *testClock) now() time.Time { return base.Add(time.Duration(c.offset.Load())) }

func (c *testClock) advance(d time.Duration) { c.offset.Add(int64(d)) }

func newStore(t *testing.T, c *testClock) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), snapshot.NewMemory(),
		store.WithLocation(time.UTC), store.WithClock(c.now))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return st
}

// startHub starts a test HTTP server with the hub mounted at its prefix.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// base URL, the hub, and a cancel function.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.Handle(wsHub.Prefix, hub)
	srv := httptest.NewServer(mux)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http") + wsHub.Prefix
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, raw)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateBreakdown(t *testing.T) {
	c := &testClock{}
	st := newStore(t, c)
	st.Upsert(context.Background(), "vip", store.Spec{Permanent: true}) //nolint:errcheck
	wsURL, _, _ := startHub(t, st)

	m := readMessage(t, dial(t, wsURL+"vip"))
	if m.Event != "remaining" {
		t.Errorf("event: got %q, want remaining", m.Event)
	}
	if m.Data.UID != "vip" {
		t.Errorf("uid: got %q, want vip", m.Data.UID)
	}
	if m.Data.RemainingTime.Days != 99999 {
		t.Errorf("days: got %d, want 99999", m.Data.RemainingTime.Days)
	}
}

func TestHub_UnknownUID_Sentinel(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(t, &testClock{}))

	m := readMessage(t, dial(t, wsURL+"ghost"))
	want := types.RemainingTime{Days: 999, Hours: 23, Minutes: 59, Seconds: 59}
	if m.Data.RemainingTime != want {
		t.Errorf("got %+v, want %+v", m.Data.RemainingTime, want)
	}
}

func TestHub_CountsDownOnTick(t *testing.T) {
	c := &testClock{}
	st := newStore(t, c)
	st.Upsert(context.Background(), "abc", store.Spec{Amount: 1, Unit: store.Days}) //nolint:errcheck
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL+"abc")
	first := readMessage(t, conn)
	if first.Data.RemainingTime.Days != 1 {
		t.Fatalf("initial: got %+v, want 1 day", first.Data.RemainingTime)
	}

	c.advance(2 * time.Hour)

	// Ticks before the advance may still be buffered; read until it shows up.
	want := types.RemainingTime{Hours: 22}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m := readMessage(t, conn); m.Data.RemainingTime == want {
			return
		}
	}
	t.Errorf("never observed %+v after advancing the clock", want)
}

func TestHub_ClientsWatchDifferentUIDs(t *testing.T) {
	st := newStore(t, &testClock{})
	st.Upsert(context.Background(), "a", store.Spec{Permanent: true})              //nolint:errcheck
	st.Upsert(context.Background(), "b", store.Spec{Amount: 5, Unit: store.Days}) //nolint:errcheck
	wsURL, _, _ := startHub(t, st)

	ca := dial(t, wsURL+"a")
	cb := dial(t, wsURL+"b")

	if m := readMessage(t, ca); m.Data.UID != "a" || m.Data.RemainingTime.Days != 99999 {
		t.Errorf("client a: got %+v", m.Data)
	}
	if m := readMessage(t, cb); m.Data.UID != "b" || m.Data.RemainingTime.Days != 5 {
		t.Errorf("client b: got %+v", m.Data)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore(t, &testClock{}))

	conn := dial(t, wsURL+"x")
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore(t, &testClock{}))

	conn := dial(t, wsURL+"x")
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_MissingUID_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(t, &testClock{}), testInterval)
	mux := http.NewServeMux()
	mux.Handle(wsHub.Prefix, hub)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + wsHub.Prefix)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(t, &testClock{}), testInterval)
	mux := http.NewServeMux()
	mux.Handle(wsHub.Prefix, hub)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Plain HTTP GET without WebSocket upgrade headers.
	resp, err := http.Get(srv.URL + wsHub.Prefix + "abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHub_NestedPath_Returns404(t *testing.T) {
	hub := wsHub.New(newStore(t, &testClock{}), testInterval)
	mux := http.NewServeMux()
	mux.Handle(wsHub.Prefix, hub)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + wsHub.Prefix + "a/b")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
