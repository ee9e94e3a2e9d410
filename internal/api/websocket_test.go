package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialWS connects a test WebSocket client to the server's full handler.
func dialWS(t *testing.T, s *Server, header http.Header) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, srv
}

// roundTrip sends one block request and reads its reply. Because replies
// are answered through the same hub-registered client, a completed round
// trip also proves the client is registered for broadcasts.
func roundTrip(t *testing.T, conn *websocket.Conn, req BlockRequest) BlockResponse {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp BlockResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", frame, err)
	}
	return resp
}

func TestWebSocketStreamBlocks(t *testing.T) {
	s := newTestServer(t, Config{})
	conn, _ := dialWS(t, s, nil)

	resp := roundTrip(t, conn, BlockRequest{ID: "1", Block: "X1 F5 G1"})
	if resp.Type != "block" || resp.ID != "1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Result == nil || len(resp.Result.Commands) != 1 {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
	if resp.Result.Commands[0].Code != "G1" {
		t.Errorf("expected G1, got %q", resp.Result.Commands[0].Code)
	}

	// Errors answer on the same connection without closing it.
	resp = roundTrip(t, conn, BlockRequest{ID: "2", Block: "G2 G3 X1 F5"})
	if resp.Type != "error" || resp.ID != "2" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Error == nil || resp.Error.Code != "MODAL_CONFLICT" {
		t.Errorf("expected MODAL_CONFLICT, got %+v", resp.Error)
	}

	// The connection still serves after an error.
	resp = roundTrip(t, conn, BlockRequest{ID: "3", Block: "G0 X2"})
	if resp.Type != "block" || resp.ID != "3" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestWebSocketStrictOverride(t *testing.T) {
	s := newTestServer(t, Config{})
	conn, _ := dialWS(t, s, nil)

	strict := true
	resp := roundTrip(t, conn, BlockRequest{ID: "1", Block: "G33 X1", Strict: &strict})
	if resp.Type != "error" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Error == nil || resp.Error.Code != "UNKNOWN_CODE" {
		t.Errorf("expected UNKNOWN_CODE, got %+v", resp.Error)
	}
}

func TestWebSocketJobEvents(t *testing.T) {
	s := newTestServer(t, Config{})
	conn, _ := dialWS(t, s, nil)

	// Prove registration before creating the job, so no event is missed.
	if resp := roundTrip(t, conn, BlockRequest{ID: "reg", Block: "G21"}); resp.Type != "block" {
		t.Fatalf("registration round trip failed: %+v", resp)
	}

	req := postJSON(t, "/v1/jobs", NormalizeRequest{Program: "G21\nG1 X1 F5\n"})
	w := httptest.NewRecorder()
	s.handleJobs(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create job: %d", w.Code)
	}
	var created Job
	decodeInto(t, decodeResponse(t, w), &created)

	// Queued frames may coalesce, newline separated.
	var statuses []string
	progress := -1
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for progress != 100 {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read events (saw %v): %v", statuses, err)
		}
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			if len(line) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				t.Fatalf("unmarshal event %q: %v", line, err)
			}
			if ev.Type != "job" || ev.JobID != created.ID {
				continue
			}
			statuses = append(statuses, ev.Status)
			if ev.Status == string(JobStatusCompleted) {
				progress = ev.Progress
			}
		}
	}

	if statuses[0] != string(JobStatusPending) {
		t.Errorf("expected the first event to be pending, got %v", statuses)
	}
	if statuses[len(statuses)-1] != string(JobStatusCompleted) {
		t.Errorf("expected the last event to be completed, got %v", statuses)
	}
}

func TestWebSocketOriginDenied(t *testing.T) {
	s := newTestServer(t, Config{AllowedOrigins: []string{"https://app.example.com"}})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail for a disallowed origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", resp.StatusCode)
	}
}

func TestWebSocketOriginAllowed(t *testing.T) {
	s := newTestServer(t, Config{AllowedOrigins: []string{"https://app.example.com"}})
	conn, _ := dialWS(t, s, http.Header{"Origin": []string{"https://app.example.com"}})

	resp := roundTrip(t, conn, BlockRequest{ID: "1", Block: "G21"})
	if resp.Type != "block" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientService(t *testing.T) {
	s := newTestServer(t, Config{})
	c := &Client{server: s}

	tests := []struct {
		name     string
		payload  string
		wantType string
		wantCode string
	}{
		{"invalid json", "{not json", "error", "INVALID_JSON"},
		{"missing block", `{"id": "1"}`, "error", "MISSING_PARAMS"},
		{"unknown dialect", `{"block": "G21", "dialect": "fanuc"}`, "error", "UNKNOWN_DIALECT"},
		{"conflict", `{"block": "G2 G3 X1 F5"}`, "error", "MODAL_CONFLICT"},
		{"success", `{"id": "7", "block": "G21"}`, "block", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := c.service([]byte(tc.payload))
			if resp.Type != tc.wantType {
				t.Fatalf("type = %q, want %q", resp.Type, tc.wantType)
			}
			if tc.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tc.wantCode {
					t.Errorf("expected %s, got %+v", tc.wantCode, resp.Error)
				}
				return
			}
			if resp.Result == nil || resp.ID != "7" {
				t.Errorf("unexpected success response: %+v", resp)
			}
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		allowed  []string
		expected bool
	}{
		{"no origin header", "", []string{"https://a.example.com"}, true},
		{"empty allow list", "https://anywhere.example.com", nil, true},
		{"exact match", "https://a.example.com", []string{"https://a.example.com"}, true},
		{"wildcard entry", "https://b.example.com", []string{"*"}, true},
		{"no match", "https://b.example.com", []string{"https://a.example.com"}, false},
		{"scheme mismatch", "http://a.example.com", []string{"https://a.example.com"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := originAllowed(tc.origin, tc.allowed); got != tc.expected {
				t.Errorf("originAllowed(%q, %v) = %v, want %v", tc.origin, tc.allowed, got, tc.expected)
			}
		})
	}
}

func TestHubStopIdempotent(t *testing.T) {
	h := NewHub()
	go h.Run()

	h.Stop()
	h.Stop()

	// Broadcast after Stop must not panic or block.
	h.Broadcast(Event{Type: "job", JobID: "x", Status: "completed"})
}

func TestHubBroadcastNoClients(t *testing.T) {
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Stop)

	h.Broadcast(Event{Type: "job", JobID: "x", Status: "running", Progress: 10})
}
