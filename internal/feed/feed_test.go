package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

func wsBaseURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/listen" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("path"); got != "alerts" {
			t.Errorf("expected path=alerts, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("expected limit=10, got %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"id":"a1"}]`))
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"id":"a2"},{"id":"a1"}]`))
		// Hold the connection open until the client hangs up.
		conn.ReadMessage()
	}))
	defer server.Close()

	sub, err := Subscribe(context.Background(), wsBaseURL(server), Query{
		Path: "alerts", OrderBy: "timestamp", Descending: true, Limit: 10,
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	first := recvSnapshot(t, sub)
	var one []map[string]string
	if err := json.Unmarshal(first, &one); err != nil {
		t.Fatalf("decode first snapshot: %v", err)
	}
	if len(one) != 1 || one[0]["id"] != "a1" {
		t.Fatalf("unexpected first snapshot: %s", first)
	}

	second := recvSnapshot(t, sub)
	var two []map[string]string
	if err := json.Unmarshal(second, &two); err != nil {
		t.Fatalf("decode second snapshot: %v", err)
	}
	if len(two) != 2 || two[0]["id"] != "a2" {
		t.Fatalf("unexpected second snapshot: %s", second)
	}
}

func TestSubscribeEmptyPath(t *testing.T) {
	if _, err := Subscribe(context.Background(), "ws://127.0.0.1:1", Query{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSubscribeDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Subscribe(ctx, "ws://127.0.0.1:1", Query{Path: "alerts"}); err == nil {
		t.Fatal("expected dial failure")
	}
}

func TestServerDropDeliversExactlyOneError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"arenaScore":100}`))
		conn.Close()
	}))
	defer server.Close()

	sub, err := Subscribe(context.Background(), wsBaseURL(server), Query{Path: "users/u1"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	recvSnapshot(t, sub)

	select {
	case err := <-sub.Err():
		if err == nil {
			t.Fatal("expected non-nil feed error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed error")
	}

	// The snapshot channel closes and no second error ever arrives.
	select {
	case _, open := <-sub.Snapshots():
		if open {
			t.Fatal("expected snapshot channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot channel close")
	}
	select {
	case err := <-sub.Err():
		t.Fatalf("unexpected second error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseIsIdempotentAndSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	sub, err := Subscribe(context.Background(), wsBaseURL(server), Query{Path: "users/u1"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sub.Close()
	sub.Close()

	select {
	case err := <-sub.Err():
		t.Fatalf("close must not surface an error, got %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func recvSnapshot(t *testing.T, sub *Subscription) json.RawMessage {
	t.Helper()
	select {
	case snap, open := <-sub.Snapshots():
		if !open {
			t.Fatal("snapshot channel closed early")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
