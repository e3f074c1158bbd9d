// Package mux owns interactive CLI sessions end-to-end: process spawn and
// resume, output capture with a bounded replay buffer, status inference from
// raw terminal output, input routing, resize, and negotiated termination.
// Any number of consumers can attach to the same session concurrently; the
// underlying process exists exactly once.
package mux

import (
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FScoward/funhou-sub000/internal/termfilter"
)

const (
	// DefaultBufferCap bounds the replay buffer; on overflow the oldest
	// half is dropped.
	DefaultBufferCap = 10000

	// DefaultIdleTimeout is how long a session must stay quiet, measured
	// from the most recent output chunk, before it settles into
	// waiting_input or asking_question.
	DefaultIdleTimeout = 2000 * time.Millisecond

	// DefaultStatusThrottle caps activity re-notifications while running
	// to one per interval per session. Buffer appends and output fan-out
	// are never throttled.
	DefaultStatusThrottle = 100 * time.Millisecond
)

// Timing of the negotiated shutdown sequence. The wrapped CLI traps the
// usual signals, so termination walks it out through its own UI: escape any
// open prompt, interrupt twice, ask it to exit (giving it time to persist
// its state), exit the enclosing shell, then kill whatever is left.
const (
	escapeDelay      = 100 * time.Millisecond
	interruptDelay   = 200 * time.Millisecond
	cliExitDelay     = 3000 * time.Millisecond
	shellExitDelay   = 300 * time.Millisecond
	cliExitCommand   = "/exit\r"
	shellExitCommand = "exit\r"
)

// Options configures a Multiplexer. Zero values fall back to the defaults
// above; Spawn is required for sessions to ever leave initializing.
type Options struct {
	Spawn          SpawnFunc
	PromptMarkers  []string
	BufferCap      int
	IdleTimeout    time.Duration
	StatusThrottle time.Duration
}

// DefaultPromptMarkers are phrases the wrapped CLI prints only while showing
// a multiple-choice prompt. If the CLI's wording changes, detection degrades
// to waiting_input; the list is configurable for that reason.
var DefaultPromptMarkers = []string{
	"❯ 1.",
	"Do you want",
	"Enter to confirm",
	"Esc to cancel",
}

// Multiplexer is the owning registry of sessions. The session map is the
// single shared mutable resource; every mutation goes through its methods.
type Multiplexer struct {
	mu       sync.RWMutex
	sessions map[string]*session
	nextSeq  int
	opts     Options

	// sleep is swapped out by tests to fast-forward the shutdown sequence.
	sleep func(time.Duration)
}

// New creates a Multiplexer with the given options.
func New(opts Options) *Multiplexer {
	if opts.BufferCap <= 0 {
		opts.BufferCap = DefaultBufferCap
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.StatusThrottle <= 0 {
		opts.StatusThrottle = DefaultStatusThrottle
	}
	if opts.PromptMarkers == nil {
		opts.PromptMarkers = DefaultPromptMarkers
	}
	return &Multiplexer{
		sessions: make(map[string]*session),
		opts:     opts,
		sleep:    time.Sleep,
	}
}

// CreateRequest describes a session to create. Cols/Rows default to 80x24.
type CreateRequest struct {
	Cwd                string
	ExternalSessionRef string
	Name               string
	Cols, Rows         uint16
}

// CreateSession allocates a session, spawns (or resumes, when
// ExternalSessionRef is set) the wrapped process and wires its output into
// the filter, buffer and status pipeline. Launch failure is not an error
// return: the session lands in error status with a message, so callers can
// still look it up and render it.
func (m *Multiplexer) CreateSession(req CreateRequest) string {
	if req.Cols == 0 {
		req.Cols = 80
	}
	if req.Rows == 0 {
		req.Rows = 24
	}

	now := time.Now()
	s := &session{
		id:           uuid.NewString(),
		cwd:          req.Cwd,
		createdAt:    now,
		status:       StatusInitializing,
		externalRef:  req.ExternalSessionRef,
		name:         req.Name,
		lastActivity: now,
		subs:         make(map[int]func([]byte)),
		statusSubs:   make(map[int]func(StatusEvent)),
	}

	m.mu.Lock()
	s.seq = m.nextSeq
	m.nextSeq++
	m.sessions[s.id] = s
	m.mu.Unlock()

	if err := validateCwd(req.Cwd); err != nil {
		m.failSession(s, err.Error())
		return s.id
	}
	if m.opts.Spawn == nil {
		m.failSession(s, "no process spawner configured")
		return s.id
	}

	handle, err := m.opts.Spawn(req.Cwd, req.Cols, req.Rows, req.ExternalSessionRef)
	if err != nil {
		log.Printf("mux: session %s: launch failed: %v", s.id, err)
		m.failSession(s, err.Error())
		return s.id
	}

	s.mu.Lock()
	s.handle = handle
	m.setStatusLocked(s, StatusRunning)
	s.mu.Unlock()

	handle.OnData(func(chunk []byte) {
		m.handleOutput(s, chunk)
	})

	return s.id
}

func validateCwd(cwd string) error {
	if cwd == "" {
		return errEmptyCwd
	}
	info, err := os.Stat(cwd)
	if err != nil {
		return errUnreachableCwd
	}
	if !info.IsDir() {
		return errUnreachableCwd
	}
	return nil
}

// failSession parks a session in error status. Never retried.
func (m *Multiplexer) failSession(s *session, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.errMsg = msg
	m.setStatusLocked(s, StatusError)
}

// handleOutput is the single data-arrival path for one session. The PTY
// delivers chunks as one ordered stream, so buffer append, status update and
// fan-out stay consistent without further coordination: append happens
// before fan-out for every chunk, under the session lock.
func (m *Multiplexer) handleOutput(s *session, chunk []byte) {
	filtered := termfilter.FilterIncomingResponses(chunk)
	if len(filtered) == 0 {
		return
	}

	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}

	s.appendChunk(filtered, m.opts.BufferCap)
	s.lastActivity = time.Now()
	if !s.promptSeen && termfilter.ContainsPromptMarker(string(filtered), m.opts.PromptMarkers) {
		s.promptSeen = true
	}
	m.setStatusLocked(s, StatusRunning)
	m.restartIdleTimerLocked(s)

	subs := make([]func([]byte), 0, len(s.subs))
	for _, cb := range s.subs {
		subs = append(subs, cb)
	}
	s.mu.Unlock()

	for _, cb := range subs {
		cb(filtered)
	}
}

// restartIdleTimerLocked (re)arms the idle timer from the most recent chunk.
func (m *Multiplexer) restartIdleTimerLocked(s *session) {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(m.opts.IdleTimeout, func() {
		m.settleIdle(s)
	})
}

// settleIdle fires when a session has produced no output for the idle
// window. A prompt marker seen since the last settle means the CLI is
// asking the user a question; otherwise it is just waiting for input. The
// marker flag resets either way.
func (m *Multiplexer) settleIdle(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asked := s.promptSeen
	s.promptSeen = false

	if s.status != StatusRunning {
		return
	}
	if asked {
		m.setStatusLocked(s, StatusAskingQuestion)
	} else {
		m.setStatusLocked(s, StatusWaitingInput)
	}
}

// setStatusLocked updates the status field and notifies status subscribers.
// Terminal states are absorbing. Re-entrant running updates keep the field
// fresh but are only delivered once per throttle interval; genuine
// transitions are always delivered. Must be called with s.mu held.
func (m *Multiplexer) setStatusLocked(s *session, next Status) {
	if s.status.Terminal() {
		return
	}
	s.status = next

	now := time.Now()
	if next == s.lastDelivered && now.Sub(s.lastNotifyAt) < m.opts.StatusThrottle {
		return
	}
	s.lastNotifyAt = now
	s.lastDelivered = next

	ev := StatusEvent{SessionID: s.id, Status: next, Err: s.errMsg, At: now}
	for _, cb := range s.statusSubs {
		cb(ev)
	}
}

// GetSession returns a snapshot of the session, if known. Pure lookup.
func (m *Multiplexer) GetSession(id string) (Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), true
}

// GetActiveSessions lists every session whose status is not stopped, oldest
// first. Stopped sessions stay in the registry so their buffers remain
// inspectable, but they are no longer active.
func (m *Multiplexer) GetActiveSessions() []Session {
	m.mu.RLock()
	records := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		records = append(records, s)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	out := make([]Session, 0, len(records))
	for _, s := range records {
		s.mu.Lock()
		if s.status != StatusStopped {
			out = append(out, s.snapshot())
		}
		s.mu.Unlock()
	}
	return out
}

// WriteToSession forwards bytes to the session's process. Input to an
// unknown or dead session is silently dropped: UI races with teardown are
// expected and are not an error condition. Outgoing terminal capability
// queries are scrubbed so the wrapped CLI never sees them.
func (m *Multiplexer) WriteToSession(id string, data []byte) {
	handle := m.liveHandle(id)
	if handle == nil {
		return
	}
	data = termfilter.FilterOutgoingQueries(data)
	if len(data) == 0 {
		return
	}
	if err := handle.Write(data); err != nil {
		log.Printf("mux: session %s: dropped write: %v", id, err)
	}
}

// ResizeSession forwards a resize to the live process; no-op otherwise.
func (m *Multiplexer) ResizeSession(id string, cols, rows uint16) {
	handle := m.liveHandle(id)
	if handle == nil {
		return
	}
	if err := handle.Resize(cols, rows); err != nil {
		log.Printf("mux: session %s: resize failed: %v", id, err)
	}
}

// liveHandle returns the session's process handle if one exists and is
// alive, nil otherwise.
func (m *Multiplexer) liveHandle(id string) ProcessHandle {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() || s.handle == nil || !s.handle.Alive() {
		return nil
	}
	return s.handle
}

// SubscribeToOutput registers a callback invoked with every filtered output
// chunk in arrival order. Subscribers are independent: none observes the
// others, and unsubscribing one leaves the rest untouched. Callbacks run on
// the session's delivery path and must not call back into the Multiplexer
// for the same session.
func (m *Multiplexer) SubscribeToOutput(id string, cb func([]byte)) (unsubscribe func()) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return func() {}
	}

	s.mu.Lock()
	subID := s.nextSub
	s.nextSub++
	s.subs[subID] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, subID)
		s.mu.Unlock()
	}
}

// AttachToOutput atomically snapshots the replay buffer and registers a
// subscriber, so a consumer attaching mid-stream observes every chunk
// exactly once: first through the returned snapshot, then through the
// callback. Detaching and re-attaching never loses buffered output.
func (m *Multiplexer) AttachToOutput(id string, cb func([]byte)) (snapshot [][]byte, unsubscribe func()) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, func() {}
	}

	s.mu.Lock()
	snapshot = s.bufferSnapshot()
	subID := s.nextSub
	s.nextSub++
	s.subs[subID] = cb
	s.mu.Unlock()

	return snapshot, func() {
		s.mu.Lock()
		delete(s.subs, subID)
		s.mu.Unlock()
	}
}

// GetSessionOutput returns the current replay buffer. Not a live view:
// callers that also need subsequent chunks should use AttachToOutput.
func (m *Multiplexer) GetSessionOutput(id string) [][]byte {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferSnapshot()
}

// SubscribeToStatus registers a callback for the session's throttled status
// events. Callbacks run on the session's event path and must not call back
// into the Multiplexer for the same session.
func (m *Multiplexer) SubscribeToStatus(id string, cb func(StatusEvent)) (unsubscribe func()) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return func() {}
	}

	s.mu.Lock()
	subID := s.nextStatusSub
	s.nextStatusSub++
	s.statusSubs[subID] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.statusSubs, subID)
		s.mu.Unlock()
	}
}

// UpdateSessionName sets the session's human label. No process side effects.
func (m *Multiplexer) UpdateSessionName(id, name string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// UpdateSessionExternalRef records the resumable conversation id for a
// session, typically discovered after launch from the CLI's own logs.
func (m *Multiplexer) UpdateSessionExternalRef(id, ref string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.externalRef = ref
	s.mu.Unlock()
}

// TerminateSession ends a session's process and marks it stopped.
// Termination is total and idempotent: the forced kill runs even when every
// graceful step fails, terminating an already-stopped session is a safe
// no-op, and a process that is already gone counts as killed.
func (m *Multiplexer) TerminateSession(id string, graceful bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.status == StatusStopped || s.terminating {
		s.mu.Unlock()
		return
	}
	s.terminating = true
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	handle := s.handle
	s.mu.Unlock()

	if handle != nil && graceful && handle.Alive() {
		m.runShutdownSequence(id, handle)
	}

	if handle != nil {
		if err := handle.Kill(); err != nil {
			// The process being gone already is success, and the
			// Kill contract treats it as such; anything else is
			// logged and the session still ends up stopped.
			log.Printf("mux: session %s: kill: %v", id, err)
		}
	}

	s.mu.Lock()
	s.handle = nil
	s.promptSeen = false
	m.setStatusLocked(s, StatusStopped)
	s.mu.Unlock()
}

// runShutdownSequence walks the interactive CLI out gently before the kill:
// escape, two interrupts, the CLI's own exit command with time to persist
// its state, then a shell exit. Step failures are logged and swallowed; the
// caller force-kills afterwards regardless.
func (m *Multiplexer) runShutdownSequence(id string, handle ProcessHandle) {
	step := func(name string, data []byte, wait time.Duration) {
		if err := handle.Write(data); err != nil {
			log.Printf("mux: session %s: shutdown step %s: %v", id, name, err)
		}
		m.sleep(wait)
	}

	step("escape", []byte{0x1b}, escapeDelay)
	step("interrupt", []byte{0x03}, interruptDelay)
	step("interrupt", []byte{0x03}, interruptDelay)
	step("cli exit", []byte(cliExitCommand), cliExitDelay)
	step("shell exit", []byte(shellExitCommand), shellExitDelay)
}

// Shutdown terminates every active session. Used on host teardown.
func (m *Multiplexer) Shutdown(graceful bool) {
	for _, s := range m.GetActiveSessions() {
		m.TerminateSession(s.ID, graceful)
	}
}
