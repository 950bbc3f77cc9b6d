package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"go.uber.org/zap"

	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/feed"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/gateway"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/hub"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/ingest"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/store"
	"github.com/ikggod/stock-dashboard/cmd/relayd/internal/testutils"
)

func startServer(t *testing.T) (*httptest.Server, *testutils.MockSession) {
	session := testutils.NewMockSession()
	st := store.New()
	ing := ingest.New(func(symbols []string) (feed.Session, error) {
		return session, nil
	}, st, zap.NewNop())
	if err := ing.Start([]string{"005930"}); err != nil {
		t.Fatalf("Failed to start ingestor: %v", err)
	}
	t.Cleanup(ing.Stop)

	wsHub := hub.NewHub(st, 10*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go wsHub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		client := gateway.NewClient(conn, wsHub, zap.NewNop())
		client.Start()
	}))

	return server, session
}

func connectWS(t *testing.T, serverURL string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(serverURL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	return wsConn
}

func TestEndToEnd_FullFlow(t *testing.T) {
	server, session := startServer(t)
	defer server.Close()

	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	subMsg := `{"type": "subscribe", "stock_code": "005930"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(subMsg))

	go func() {
		time.Sleep(50 * time.Millisecond)
		session.Push([]byte(`{"MKSC_SHRN_ISCD":"005930","STCK_PRPR":"70000","PRDY_VRSS":"500","PRDY_CTRT":"0.72","ACML_VOL":"1234567","STCK_CNTG_HOUR":"093015"}`))
	}()

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive broadcast: %v", err)
	}
	if !strings.Contains(string(msg), `"stock_code":"005930"`) || !strings.Contains(string(msg), "70000") {
		t.Errorf("Expected quote for 005930 at 70000, got: %s", msg)
	}

	unsubMsg := `{"type": "unsubscribe", "stock_code": "005930"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(unsubMsg))
	// Drain whatever was already in flight, then expect silence.
	deadline := time.Now().Add(200 * time.Millisecond)
	for {
		wsConn.SetReadDeadline(deadline)
		if _, _, err := wsConn.ReadMessage(); err != nil {
			break
		}
	}

	session.Push([]byte(`{"MKSC_SHRN_ISCD":"005930","STCK_PRPR":"71000"}`))
	wsConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, msg, err := wsConn.ReadMessage(); err == nil {
		t.Errorf("Received broadcast after unsubscribe: %s", msg)
	}
}

func TestEndToEnd_SnapshotOnSubscribe(t *testing.T) {
	server, session := startServer(t)
	defer server.Close()

	// Tick lands before anyone is connected.
	session.Push([]byte(`{"MKSC_SHRN_ISCD":"005930","STCK_PRPR":"70000","STCK_CNTG_HOUR":"093015"}`))
	time.Sleep(100 * time.Millisecond)

	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","stock_code":"005930"}`))

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive snapshot: %v", err)
	}
	if !strings.Contains(string(msg), "70000") {
		t.Errorf("Expected snapshot at 70000, got: %s", msg)
	}
}

func TestEndToEnd_InvalidJSON(t *testing.T) {
	server, _ := startServer(t)
	defer server.Close()
	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{ "type": "subsc`))

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive error frame: %v", err)
	}
	if !strings.Contains(string(msg), "error") {
		t.Errorf("Expected error message for bad JSON, got: %s", msg)
	}

	// Connection stays usable after the bad frame.
	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","stock_code":"005930"}`))
	if err := wsConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unsubscribe","stock_code":"005930"}`)); err != nil {
		t.Errorf("Connection closed after malformed command: %v", err)
	}
}

func TestEndToEnd_MaxMessageSize(t *testing.T) {
	server, _ := startServer(t)
	defer server.Close()
	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	hugeMsg := `{"type":"subscribe","stock_code":"` + strings.Repeat("a", 8*1024) + `"}`

	err := wsConn.WriteMessage(websocket.TextMessage, []byte(hugeMsg))
	// Depending on timing, write might succeed, but Read should fail (Disconnect)
	if err == nil {
		wsConn.SetReadDeadline(time.Now().Add(1 * time.Second))
		_, _, err := wsConn.ReadMessage()
		if err == nil {
			t.Error("Server should have closed connection for huge message, but it stayed open")
		}
	}
}
