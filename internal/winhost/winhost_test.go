package winhost

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FScoward/funhou-sub000/internal/bridge"
)

func newTestHost(t *testing.T) (*Host, *httptest.Server) {
	t.Helper()
	h := New(nil)
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return h, srv
}

func dialWindow(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/window/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitConnected(t *testing.T, h *Host, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		_, ok := h.windows[id]
		h.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("window %s never connected", id)
}

func TestSendToWindowDeliversJSON(t *testing.T) {
	h, srv := newTestHost(t)
	conn := dialWindow(t, srv, "session-1")
	waitConnected(t, h, "session-1")

	want := bridge.Message{Type: bridge.MessageOutput, Data: []byte("hello")}
	if err := h.SendToWindow("session-1", want); err != nil {
		t.Fatalf("SendToWindow: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	got, err := unmarshalMessage(data)
	if err != nil {
		t.Fatalf("unmarshalMessage: %v", err)
	}
	if got.Type != bridge.MessageOutput || string(got.Data) != "hello" {
		t.Errorf("got %+v, want type=%s data=hello", got, bridge.MessageOutput)
	}
}

func TestSendToUnconnectedWindowFails(t *testing.T) {
	h, _ := newTestHost(t)
	err := h.SendToWindow("session-gone", bridge.Message{Type: bridge.MessageOutput})
	if err == nil {
		t.Fatal("expected error sending to unconnected window")
	}
}

func TestListenFromWindowReceivesMessages(t *testing.T) {
	h, srv := newTestHost(t)

	var mu sync.Mutex
	var got []bridge.Message
	h.ListenFromWindow("session-2", func(msg bridge.Message) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	conn := dialWindow(t, srv, "session-2")
	waitConnected(t, h, "session-2")

	data, err := marshalMessage(bridge.Message{Type: bridge.MessageInput, Data: []byte("ls\r")})
	if err != nil {
		t.Fatalf("marshalMessage: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if got[0].Type != bridge.MessageInput || string(got[0].Data) != "ls\r" {
		t.Errorf("got %+v, want input ls\\r", got[0])
	}
}

func TestUnlistenStopsDelivery(t *testing.T) {
	h, srv := newTestHost(t)

	var mu sync.Mutex
	count := 0
	unlisten := h.ListenFromWindow("session-3", func(bridge.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unlisten()

	conn := dialWindow(t, srv, "session-3")
	waitConnected(t, h, "session-3")

	data, _ := marshalMessage(bridge.Message{Type: bridge.MessageReady})
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("removed listener received %d messages", count)
	}
}

func TestInvalidMessageIsIgnored(t *testing.T) {
	h, srv := newTestHost(t)

	var mu sync.Mutex
	var got []bridge.Message
	h.ListenFromWindow("session-4", func(msg bridge.Message) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	conn := dialWindow(t, srv, "session-4")
	waitConnected(t, h, "session-4")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	data, _ := marshalMessage(bridge.Message{Type: bridge.MessageResize, Cols: 80, Rows: 24})
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Type != bridge.MessageResize {
		t.Errorf("got %+v, want single resize message", got)
	}
}

func TestClientCloseFiresOnWindowClosed(t *testing.T) {
	h, srv := newTestHost(t)

	closed := make(chan string, 1)
	h.OnWindowClosed(func(id string) { closed <- id })

	conn := dialWindow(t, srv, "session-5")
	waitConnected(t, h, "session-5")
	conn.Close()

	select {
	case id := <-closed:
		if id != "session-5" {
			t.Errorf("closed window id = %q, want session-5", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnWindowClosed never fired")
	}
}

func TestCloseWindowDisconnectsClient(t *testing.T) {
	h, srv := newTestHost(t)
	conn := dialWindow(t, srv, "session-6")
	waitConnected(t, h, "session-6")

	h.CloseWindow("session-6")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after CloseWindow")
	}

	if err := h.SendToWindow("session-6", bridge.Message{Type: bridge.MessageOutput}); err == nil {
		t.Error("expected error sending after CloseWindow")
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	h, srv := newTestHost(t)
	old := dialWindow(t, srv, "session-7")
	waitConnected(t, h, "session-7")

	h.mu.Lock()
	first := h.windows["session-7"]
	h.mu.Unlock()

	_ = dialWindow(t, srv, "session-7")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		replaced := h.windows["session-7"] != nil && h.windows["session-7"] != first
		h.mu.Unlock()
		if replaced {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := h.SendToWindow("session-7", bridge.Message{Type: bridge.MessageOutput, Data: []byte("x")}); err != nil {
		t.Fatalf("SendToWindow after reconnect: %v", err)
	}

	old.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := old.ReadMessage(); err == nil {
		t.Error("old connection still readable after replacement")
	}
}
