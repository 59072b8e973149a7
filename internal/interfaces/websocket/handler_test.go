package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/diagnostics"
)

func dialTestServer(t *testing.T, srv *httptest.Server, loopID string) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	u.Scheme = "ws"
	u.RawQuery = "loop_id=" + loopID

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHubDeliversOnlyToSubscribedLoop(t *testing.T) {
	logger := zap.NewNop()
	hub := NewHub(logger)
	handler := NewHandler(hub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer srv.Close()

	connA := dialTestServer(t, srv, "loop-a")
	defer connA.Close()
	connB := dialTestServer(t, srv, "loop-b")
	defer connB.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 registered clients, got %d", hub.ClientCount())
	}

	hub.Publish(diagnostics.Record{Kind: diagnostics.KindIterationStarted, LoopID: "loop-a", Fields: map[string]any{"n": 1}})

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := connA.ReadMessage()
	if err != nil {
		t.Fatalf("expected loop-a client to receive a message: %v", err)
	}
	if !strings.Contains(string(msg), "loop-a") {
		t.Fatalf("expected message to reference loop-a, got %s", msg)
	}

	connB.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Fatalf("expected loop-b client to receive nothing for a loop-a record")
	}
}
