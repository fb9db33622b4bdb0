package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"interview_room/native/internal/domain"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, ice []domain.ICEServer) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(3)
	srv := httptest.NewServer(NewServer("", hub, ice).Handler())
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + room
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, room string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients(room) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients in %q, got %d", n, room, hub.Clients(room))
		}
		time.Sleep(time.Millisecond)
	}
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Errorf("expected nothing, got %s", data)
	}
}

func TestRelay_ForwardsSignalingVerbatimToOthers(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	a := dial(t, srv, "interview42")
	b := dial(t, srv, "interview42")
	waitClients(t, hub, "interview42", 2)

	offer := `{"type":"offer","sdp":{"type":"offer","sdp":"X"}}`
	if err := a.WriteMessage(websocket.TextMessage, []byte(offer)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := read(t, b); got != offer {
		t.Errorf("expected verbatim offer, got %s", got)
	}
	expectSilence(t, a)
}

func TestRelay_RoomsAreIsolated(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	a := dial(t, srv, "room-a")
	other := dial(t, srv, "room-b")
	waitClients(t, hub, "room-a", 1)
	waitClients(t, hub, "room-b", 1)

	a.WriteMessage(websocket.TextMessage, []byte(`{"type":"candidate","candidate":"c"}`))

	expectSilence(t, other)
	if hub.Rooms() != 2 {
		t.Errorf("expected 2 rooms, got %d", hub.Rooms())
	}
}

func TestRelay_EmptyRoomIsRemoved(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	a := dial(t, srv, "short-lived")
	waitClients(t, hub, "short-lived", 1)

	a.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Rooms() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected room removed, %d rooms left", hub.Rooms())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRelay_CaptionsAreNormalizedAndRecorded(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	a := dial(t, srv, "r")
	b := dial(t, srv, "r")
	waitClients(t, hub, "r", 2)

	a.WriteMessage(websocket.TextMessage, []byte(`{"type":"caption","text":"   ","sender":"Candidate"}`))
	a.WriteMessage(websocket.TextMessage, []byte(`{"type":"caption","text":"  I built the billing pipeline ","sender":"Candidate","extra":1}`))
	a.WriteMessage(websocket.TextMessage, []byte(`{"type":"caption","text":"who is this"}`))

	var first, second captionFrame
	json.Unmarshal([]byte(read(t, b)), &first)
	json.Unmarshal([]byte(read(t, b)), &second)

	if first != (captionFrame{Type: "caption", Text: "I built the billing pipeline", Sender: "Candidate"}) {
		t.Errorf("unexpected caption: %+v", first)
	}
	if second.Sender != "Unknown" || second.Text != "who is this" {
		t.Errorf("expected Unknown sender, got %+v", second)
	}

	lines := hub.Transcript("r")
	if len(lines) != 2 || lines[0].Text != "I built the billing pipeline" {
		t.Errorf("unexpected transcript: %+v", lines)
	}
}

func TestRelay_TranscriptIsBounded(t *testing.T) {
	hub := NewHub(3)
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		hub.record("r", domain.CaptionLine{Sender: domain.RoleCandidate, Text: text})
	}

	lines := hub.Transcript("r")
	if len(lines) != 3 || lines[0].Text != "3" || lines[2].Text != "5" {
		t.Errorf("expected last 3 lines, got %+v", lines)
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	hub.record("panel", domain.CaptionLine{Sender: domain.RoleRecruiter, Text: "welcome"})

	resp, err := http.Get(srv.URL + "/api/transcript?room=panel")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Room  string `json:"room"`
		Lines []struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
		} `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Room != "panel" || len(body.Lines) != 1 || body.Lines[0].Sender != "Recruiter" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestTURNCredentialsEndpoint(t *testing.T) {
	ice := []domain.ICEServer{
		{URLs: domain.URLList{"stun:stun.l.google.com:19302"}},
		{URLs: domain.URLList{"turn:turn.example.com:3478"}, Username: "u", Credential: "p"},
	}
	srv, _ := newTestServer(t, ice)

	resp, err := http.Get(srv.URL + "/api/get_turn_credentials")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	var body struct {
		ICEServers []domain.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.ICEServers) != 2 || body.ICEServers[1].Username != "u" {
		t.Errorf("unexpected servers: %+v", body.ICEServers)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), recoverMiddleware(), requestLoggerMiddleware())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
