package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkustermann/pub-dartlang-dart/pkg/realtime"
)

func dialFeed(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	u.Scheme = "ws"
	u.Path = "/api/feed"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}

	// The first frame is the init message.
	var init map[string]any
	if err := conn.ReadJSON(&init); err != nil {
		t.Fatalf("read init: %v", err)
	}
	if init["type"] != "init" {
		t.Fatalf("first message = %v, want init", init)
	}
	return conn
}

func TestHandleFeedStreamsEvents(t *testing.T) {
	hub := realtime.NewHub(8)
	srv := NewServer(Options{Hub: hub})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	conn := dialFeed(t, ts)
	defer func() {
		if err := conn.Close(); err != nil {
			t.Logf("closing conn: %v", err)
		}
	}()

	// The hub sees the listener once the upgrade completed.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Size() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Size() != 1 {
		t.Fatalf("Size = %d, want 1 registered listener", hub.Size())
	}

	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	hub.Broadcast(realtime.VersionEvent{Package: "http_client", Version: "1.2.0", CreatedAt: published})

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}

	var event realtime.VersionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Package != "http_client" || event.Version != "1.2.0" {
		t.Errorf("event = %+v", event)
	}
	if !event.CreatedAt.Equal(published) {
		t.Errorf("CreatedAt = %v, want %v", event.CreatedAt, published)
	}
}

func TestHandleFeedWithoutHub(t *testing.T) {
	srv := NewServer(Options{})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	req := httptest.NewRequest("GET", "/api/feed", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
