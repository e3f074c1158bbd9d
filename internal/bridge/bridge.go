// Package bridge relays a session's output, input, resize and terminate
// events between the process-owning host and separate OS windows. It is
// purely a transport: window lifecycle never touches process lifecycle.
package bridge

import (
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-errors/errors"

	"github.com/FScoward/funhou-sub000/internal/mux"
)

// MessageType tags a window transport message.
type MessageType string

const (
	MessageOutput    MessageType = "output"
	MessageInput     MessageType = "input"
	MessageResize    MessageType = "resize"
	MessageReady     MessageType = "ready"
	MessageTerminate MessageType = "terminate"
	MessageBuffer    MessageType = "buffer"
	MessageStatus    MessageType = "status"
)

// Message is the flat envelope exchanged with a window. Data carries raw
// terminal bytes for output/input/buffer; Cols/Rows accompany resize;
// Status/Err accompany status.
type Message struct {
	Type   MessageType `json:"type"`
	Data   []byte      `json:"data,omitempty"`
	Cols   uint16      `json:"cols,omitempty"`
	Rows   uint16      `json:"rows,omitempty"`
	Status string      `json:"status,omitempty"`
	Err    string      `json:"error,omitempty"`
}

// WindowTransport is the OS-window capability the host environment provides:
// create/close/focus a named window and exchange messages with it. The
// bridge never learns how windows are actually drawn.
type WindowTransport interface {
	CreateWindow(id, title string) error
	CloseWindow(id string)
	FocusWindow(id string) bool
	SendToWindow(id string, msg Message) error
	ListenFromWindow(id string, cb func(Message)) (unlisten func())
}

// SessionHub is the slice of the multiplexer contract the bridge drives.
type SessionHub interface {
	GetSession(id string) (mux.Session, bool)
	AttachToOutput(id string, cb func([]byte)) (snapshot [][]byte, unsubscribe func())
	SubscribeToStatus(id string, cb func(mux.StatusEvent)) (unsubscribe func())
	WriteToSession(id string, data []byte)
	ResizeSession(id string, cols, rows uint16)
	TerminateSession(id string, graceful bool)
}

// relay is the per-session forwarding state. Ephemeral and bridge-local:
// derived from window lifecycle, never the source of truth for the process.
type relay struct {
	windowID      string
	unlistenInput func()
	unsubOutput   func()
	unsubStatus   func()
}

// Bridge wires sessions to windows over a WindowTransport.
type Bridge struct {
	mu        sync.Mutex
	hub       SessionHub
	transport WindowTransport
	relays    map[string]*relay // session id -> relay
}

// New creates a Bridge over the given hub and transport.
func New(hub SessionHub, transport WindowTransport) *Bridge {
	return &Bridge{
		hub:       hub,
		transport: transport,
		relays:    make(map[string]*relay),
	}
}

// windowID names the OS window dedicated to a session.
func windowID(sessionID string) string {
	return "session-" + sessionID
}

// SessionIDFromWindow recovers the session id from a window name created by
// the bridge. Used by hosts that learn about window closure first.
func SessionIDFromWindow(winID string) (string, bool) {
	id := strings.TrimPrefix(winID, "session-")
	if id == winID || id == "" {
		return "", false
	}
	return id, true
}

// OpenInWindow creates (or focuses) the dedicated window for a session and
// starts relaying. Idempotent per session: re-opening while already open
// reuses the existing relay instead of duplicating it.
func (b *Bridge) OpenInWindow(sessionID string) error {
	b.mu.Lock()
	if r, ok := b.relays[sessionID]; ok {
		b.mu.Unlock()
		b.transport.FocusWindow(r.windowID)
		return nil
	}
	b.mu.Unlock()

	sess, ok := b.hub.GetSession(sessionID)
	if !ok {
		return errors.Errorf("bridge: unknown session %s", sessionID)
	}

	winID := windowID(sessionID)
	title := sess.Name
	if title == "" {
		title = filepath.Base(sess.Cwd)
	}
	if err := b.transport.CreateWindow(winID, title); err != nil {
		return errors.Errorf("bridge: create window for session %s: %v", sessionID, err)
	}

	// The relay must be findable before the listener is live, or a ready
	// arriving immediately would be dropped and the window never replayed.
	r := &relay{windowID: winID}
	b.mu.Lock()
	// A concurrent OpenInWindow may have won; keep the first relay.
	if existing, ok := b.relays[sessionID]; ok {
		b.mu.Unlock()
		b.transport.FocusWindow(existing.windowID)
		return nil
	}
	b.relays[sessionID] = r
	b.mu.Unlock()

	unlisten := b.transport.ListenFromWindow(winID, func(msg Message) {
		b.handleWindowMessage(sessionID, winID, msg)
	})

	b.mu.Lock()
	if cur, ok := b.relays[sessionID]; ok && cur == r {
		r.unlistenInput = unlisten
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	// The relay was torn down while the listener was being registered.
	unlisten()
	return nil
}

// handleWindowMessage routes one message from a window. Input and resize go
// straight to the multiplexer; ready starts (or restarts) output forwarding
// with a one-time buffer replay; terminate asks for a graceful shutdown.
func (b *Bridge) handleWindowMessage(sessionID, winID string, msg Message) {
	switch msg.Type {
	case MessageReady:
		b.startForwarding(sessionID, winID)
	case MessageInput:
		b.hub.WriteToSession(sessionID, msg.Data)
	case MessageResize:
		b.hub.ResizeSession(sessionID, msg.Cols, msg.Rows)
	case MessageTerminate:
		b.hub.TerminateSession(sessionID, true)
	}
}

// startForwarding pushes the buffer snapshot once, then streams subsequent
// chunks and status changes. A repeated ready (window reload) re-replays
// from scratch rather than double-registering.
func (b *Bridge) startForwarding(sessionID, winID string) {
	b.mu.Lock()
	r, ok := b.relays[sessionID]
	if !ok {
		b.mu.Unlock()
		return
	}
	oldOutput, oldStatus := r.unsubOutput, r.unsubStatus
	r.unsubOutput, r.unsubStatus = nil, nil
	b.mu.Unlock()

	if oldOutput != nil {
		oldOutput()
	}
	if oldStatus != nil {
		oldStatus()
	}

	// Chunks that land between the attach and the buffer message are held
	// back so the window always sees the replay first, then live output in
	// order. sendMu serializes the flush with late arrivals.
	var sendMu sync.Mutex
	var queued [][]byte
	replayed := false
	snapshot, unsubOutput := b.hub.AttachToOutput(sessionID, func(chunk []byte) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if !replayed {
			queued = append(queued, chunk)
			return
		}
		b.send(winID, Message{Type: MessageOutput, Data: chunk})
	})
	unsubStatus := b.hub.SubscribeToStatus(sessionID, func(ev mux.StatusEvent) {
		b.send(winID, Message{Type: MessageStatus, Status: string(ev.Status), Err: ev.Err})
	})

	var replay []byte
	for _, chunk := range snapshot {
		replay = append(replay, chunk...)
	}
	sendMu.Lock()
	b.send(winID, Message{Type: MessageBuffer, Data: replay})
	for _, chunk := range queued {
		b.send(winID, Message{Type: MessageOutput, Data: chunk})
	}
	queued = nil
	replayed = true
	sendMu.Unlock()

	if sess, ok := b.hub.GetSession(sessionID); ok {
		b.send(winID, Message{Type: MessageStatus, Status: string(sess.Status), Err: sess.Err})
	}

	b.mu.Lock()
	if cur, ok := b.relays[sessionID]; ok && cur == r {
		r.unsubOutput = unsubOutput
		r.unsubStatus = unsubStatus
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	// The relay was torn down while we were attaching.
	unsubOutput()
	unsubStatus()
}

func (b *Bridge) send(winID string, msg Message) {
	if err := b.transport.SendToWindow(winID, msg); err != nil {
		log.Printf("bridge: send %s to %s: %v", msg.Type, winID, err)
	}
}

// MinimizeToDock closes the session's window and tears down the relay. The
// session and its process are untouched; the dock keeps rendering from the
// multiplexer directly.
func (b *Bridge) MinimizeToDock(sessionID string) {
	if r := b.takeRelay(sessionID); r != nil {
		b.teardown(r)
		b.transport.CloseWindow(r.windowID)
	}
}

// HandleWindowClosed tears down the relay after the OS window already went
// away (user closed it). Process lifecycle is unaffected.
func (b *Bridge) HandleWindowClosed(sessionID string) {
	if r := b.takeRelay(sessionID); r != nil {
		b.teardown(r)
	}
}

// IsWindowOpen reports whether a relay currently exists for the session.
// Bridge-local derived state, never read back from the Session.
func (b *Bridge) IsWindowOpen(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.relays[sessionID]
	return ok
}

// Close tears down every relay and closes the associated windows.
func (b *Bridge) Close() {
	b.mu.Lock()
	relays := b.relays
	b.relays = make(map[string]*relay)
	b.mu.Unlock()

	for _, r := range relays {
		b.teardown(r)
		b.transport.CloseWindow(r.windowID)
	}
}

func (b *Bridge) takeRelay(sessionID string) *relay {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.relays[sessionID]
	if !ok {
		return nil
	}
	delete(b.relays, sessionID)
	return r
}

func (b *Bridge) teardown(r *relay) {
	if r.unsubOutput != nil {
		r.unsubOutput()
	}
	if r.unsubStatus != nil {
		r.unsubStatus()
	}
	if r.unlistenInput != nil {
		r.unlistenInput()
	}
}
