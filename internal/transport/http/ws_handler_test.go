package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-sync/internal/app"
	"trivia-sync/internal/domain"
	"trivia-sync/internal/infra/memory"
	"trivia-sync/internal/protocol"
	"trivia-sync/internal/tracker"
)

func TestWebSocketDisplayFlow(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "role=display&id=tab-1")
	readUntil(t, conn, protocol.TypeStateSnapshot)

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeStartGame}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	start := readUntil(t, conn, protocol.TypeStartGame)
	if start.Sender != domain.RoleControl || len(start.Deck) != 3 {
		t.Fatalf("unexpected START_GAME %+v", start)
	}
	sel := readUntil(t, conn, protocol.TypeSelectQuestion)
	if sel.QuestionID != "q-1" {
		t.Fatalf("expected first question q-1, got %q", sel.QuestionID)
	}
}

func TestWebSocketAckRecordsPresence(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "id=tab-2")
	snap := readUntil(t, conn, protocol.TypeStateSnapshot)
	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeAckSnapshot, Version: snap.Version}); err != nil {
		t.Fatalf("write ack: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var displays []domain.DisplayPresence
		getJSON(t, server.URL+"/displays", &displays)
		if len(displays) == 1 && displays[0].DisplayID == "tab-2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("display presence never recorded")
}

func TestWebSocketRejectsUnknownFrames(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "")
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SHOUT"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 20; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var frame errorFrame
		if json.Unmarshal(data, &frame) == nil && frame.Error != "" {
			if !strings.Contains(frame.Error, "SHOUT") {
				t.Fatalf("unexpected error frame %q", frame.Error)
			}
			return
		}
	}
	t.Fatalf("no error frame received")
}

func TestWebSocketRejectsBadRole(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/ws?role=referee")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestForwardFiltersByRole(t *testing.T) {
	fromControl := protocol.Message{Type: protocol.TypeStartGame, Sender: domain.RoleControl, SenderID: "control-1"}
	fromDisplay := protocol.Message{Type: protocol.TypeHello, Sender: domain.RoleDisplay, SenderID: "tab-9"}
	own := protocol.Message{Type: protocol.TypeHello, Sender: domain.RoleDisplay, SenderID: "tab-1"}

	if !forward(domain.RoleDisplay, "tab-1", fromControl) {
		t.Fatalf("display should receive control events")
	}
	if forward(domain.RoleDisplay, "tab-1", fromDisplay) {
		t.Fatalf("display should not receive other displays' traffic")
	}
	if !forward(domain.RoleControl, "panel", fromDisplay) {
		t.Fatalf("control panel should see display traffic")
	}
	if forward(domain.RoleDisplay, "tab-1", own) {
		t.Fatalf("own messages should not echo back")
	}
}

func TestQueueGivesUpWhenWriterIsGone(t *testing.T) {
	send := make(chan any, 1)
	writerDone := make(chan struct{})

	if !queue(send, writerDone, errorFrame{Error: "first"}) {
		t.Fatalf("expected frame queued while the writer runs")
	}
	close(writerDone)

	result := make(chan bool, 1)
	go func() { result <- queue(send, writerDone, errorFrame{Error: "second"}) }()
	select {
	case ok := <-result:
		if ok {
			t.Fatalf("expected full queue with no writer to be abandoned")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("queue blocked after the writer exited")
	}
}

func TestRouterStateAndQR(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	var snap protocol.Snapshot
	getJSON(t, server.URL+"/state", &snap)
	if snap.Status != domain.StatusLobby || len(snap.Questions) != 3 || len(snap.Teams) != 2 {
		t.Fatalf("unexpected state %+v", snap)
	}

	resp, err = http.Get(server.URL + "/display/qr")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected png, got %q", ct)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Controller) {
	t.Helper()
	channel := memory.NewChannel()
	ctrl := app.NewController(
		channel,
		tracker.New(memory.NewUsedStore()),
		memory.NewPresenceStore(time.Minute),
		app.Options{SenderID: "control-1", TickInterval: 20 * time.Millisecond, SnapshotInterval: 100 * time.Millisecond},
	)
	ctx, cancel := context.WithCancel(context.Background())
	ctrl.LoadData(ctx, sampleGame(), sampleBank())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()

	server := httptest.NewServer(NewRouter(channel, ctrl, ""))
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		_ = channel.Close()
	})
	return server, ctrl
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	if query != "" {
		u += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want protocol.MessageType) protocol.Message {
	t.Helper()
	for i := 0; i < 200; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("never received %s", want)
	return protocol.Message{}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func sampleGame() domain.GameData {
	settings := domain.DefaultSettings()
	settings.SampleRandomized = false
	return domain.GameData{
		Teams: []domain.Team{
			{ID: "t-azules", Name: "Azules"},
			{ID: "t-rojos", Name: "Rojos"},
		},
		Settings: settings,
	}
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID:         "default",
		Categories: []domain.Category{{ID: "c-1", Name: "Historia"}},
		Questions: []domain.Question{
			{ID: "q-1", CategoryID: "c-1", Text: "¿En qué año cayó el muro de Berlín?", Answer: "1989", Points: 100},
			{ID: "q-2", CategoryID: "c-1", Text: "¿Quién pintó La Gioconda?", Answer: "Leonardo da Vinci", Points: 100},
			{ID: "q-3", CategoryID: "c-1", Text: "¿Capital de Australia?", Answer: "Canberra", Points: 100},
		},
	}
}
