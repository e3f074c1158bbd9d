// Package winhost implements the bridge's window transport over a local
// WebSocket endpoint. Each separate OS window the desktop shell opens
// connects back to /window/{id} and exchanges bridge messages as JSON; the
// shell itself only needs to know how to open a window pointed at a URL.
package winhost

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"

	"github.com/FScoward/funhou-sub000/internal/bridge"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendQueueCap  = 256
)

var upgrader = websocket.Upgrader{
	// Windows connect from the local shell only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WindowOpener is the shell-side capability that actually creates, closes
// and focuses OS windows. The host tells it which window id to open; the
// opened window is expected to connect to /window/{id}.
type WindowOpener interface {
	OpenWindow(id, title string) error
	CloseWindow(id string)
	FocusWindow(id string) bool
}

// NopOpener satisfies WindowOpener for headless hosts and tests, where
// windows connect on their own.
type NopOpener struct{}

func (NopOpener) OpenWindow(id, title string) error { return nil }
func (NopOpener) CloseWindow(id string)             {}
func (NopOpener) FocusWindow(id string) bool        { return false }

type windowConn struct {
	conn *websocket.Conn
	send chan []byte
}

// Host is a WebSocket hub implementing bridge.WindowTransport.
type Host struct {
	mu        sync.Mutex
	opener    WindowOpener
	windows   map[string]*windowConn
	listeners map[string]map[int]func(bridge.Message)
	nextSub   int
	onClosed  []func(windowID string)
}

var _ bridge.WindowTransport = (*Host)(nil)

// New creates a Host delegating OS window management to opener.
func New(opener WindowOpener) *Host {
	if opener == nil {
		opener = NopOpener{}
	}
	return &Host{
		opener:    opener,
		windows:   make(map[string]*windowConn),
		listeners: make(map[string]map[int]func(bridge.Message)),
	}
}

// OnWindowClosed registers a callback fired when a window's connection goes
// away, whatever the reason. The bridge uses it to tear down its relay.
func (h *Host) OnWindowClosed(cb func(windowID string)) {
	h.mu.Lock()
	h.onClosed = append(h.onClosed, cb)
	h.mu.Unlock()
}

// Handler returns the HTTP handler windows connect to.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/window/", h.handleWindow)
	return mux
}

// CreateWindow asks the shell to open the window. The relay starts once the
// window has connected and sent its ready message.
func (h *Host) CreateWindow(id, title string) error {
	return h.opener.OpenWindow(id, title)
}

// CloseWindow drops the window's connection and tells the shell to close it.
func (h *Host) CloseWindow(id string) {
	h.mu.Lock()
	wc := h.windows[id]
	delete(h.windows, id)
	h.mu.Unlock()

	if wc != nil {
		wc.conn.Close()
	}
	h.opener.CloseWindow(id)
}

// FocusWindow brings the window to front, if the shell can.
func (h *Host) FocusWindow(id string) bool {
	return h.opener.FocusWindow(id)
}

// SendToWindow queues a message for the window. A window that has not
// connected (or whose queue is full) drops the message; the ready handshake
// means the bridge only streams to connected windows.
func (h *Host) SendToWindow(id string, msg bridge.Message) error {
	data, err := marshalMessage(msg)
	if err != nil {
		return err
	}

	// The send stays under the lock so it cannot race the channel close
	// in dropWindow.
	h.mu.Lock()
	defer h.mu.Unlock()
	wc := h.windows[id]
	if wc == nil {
		return errors.Errorf("winhost: window %s not connected", id)
	}
	select {
	case wc.send <- data:
		return nil
	default:
		return errors.Errorf("winhost: window %s send queue full", id)
	}
}

// ListenFromWindow registers a callback for messages arriving from the
// window. The returned function removes exactly this registration.
func (h *Host) ListenFromWindow(id string, cb func(bridge.Message)) func() {
	h.mu.Lock()
	if h.listeners[id] == nil {
		h.listeners[id] = make(map[int]func(bridge.Message))
	}
	subID := h.nextSub
	h.nextSub++
	h.listeners[id][subID] = cb
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		if subs, ok := h.listeners[id]; ok {
			delete(subs, subID)
			if len(subs) == 0 {
				delete(h.listeners, id)
			}
		}
		h.mu.Unlock()
	}
}

// handleWindow upgrades a window's connection and starts its pumps.
func (h *Host) handleWindow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/window/")
	if id == "" {
		http.Error(w, "missing window id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("winhost: upgrade %s: %v", id, err)
		return
	}

	wc := &windowConn{conn: conn, send: make(chan []byte, sendQueueCap)}

	h.mu.Lock()
	if old := h.windows[id]; old != nil {
		old.conn.Close()
	}
	h.windows[id] = wc
	h.mu.Unlock()

	go h.writePump(wc)
	go h.readPump(id, wc)
}

func (h *Host) readPump(id string, wc *windowConn) {
	defer h.dropWindow(id, wc)

	wc.conn.SetReadDeadline(time.Now().Add(readDeadline))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("winhost: window %s read: %v", id, err)
			}
			return
		}

		msg, err := unmarshalMessage(data)
		if err != nil {
			log.Printf("winhost: window %s sent invalid message: %v", id, err)
			continue
		}
		h.dispatch(id, msg)
	}
}

func (h *Host) writePump(wc *windowConn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		wc.conn.Close()
	}()

	for {
		select {
		case data, ok := <-wc.send:
			wc.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				wc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			wc.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Host) dispatch(id string, msg bridge.Message) {
	h.mu.Lock()
	cbs := make([]func(bridge.Message), 0, len(h.listeners[id]))
	for _, cb := range h.listeners[id] {
		cbs = append(cbs, cb)
	}
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(msg)
	}
}

// dropWindow cleans up after a window's connection ends. Only the relay is
// affected; the session owning the process never is.
func (h *Host) dropWindow(id string, wc *windowConn) {
	wc.conn.Close()

	h.mu.Lock()
	current := h.windows[id] == wc
	if current {
		delete(h.windows, id)
	}
	close(wc.send)
	onClosed := append([]func(string){}, h.onClosed...)
	h.mu.Unlock()

	if current {
		for _, cb := range onClosed {
			cb(id)
		}
	}
}
