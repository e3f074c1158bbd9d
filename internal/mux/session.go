package mux

import (
	"sync"
	"time"
)

// Status is the inferred high-level state of a session. It is derived from
// the shape and timing of the raw terminal output, not from any structured
// signal of the wrapped process.
type Status string

const (
	// StatusInitializing is set at creation, before the process handle exists.
	StatusInitializing Status = "initializing"
	// StatusRunning means the process is producing output.
	StatusRunning Status = "running"
	// StatusWaitingInput means the process has been quiet past the idle
	// window with no interactive prompt on screen.
	StatusWaitingInput Status = "waiting_input"
	// StatusAskingQuestion means the process went quiet after printing a
	// multiple-choice prompt.
	StatusAskingQuestion Status = "asking_question"
	// StatusStopped is set only by explicit termination. Terminal.
	StatusStopped Status = "stopped"
	// StatusError is set on launch or runtime failure. Terminal.
	StatusError Status = "error"
)

// Terminal reports whether the status is absorbing: no input can move a
// stopped or errored session back to any other state.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusError
}

// Session is a point-in-time snapshot of one managed session. Mutation only
// happens through Multiplexer operations; callers never share live state.
type Session struct {
	ID                 string
	Status             Status
	Cwd                string
	ExternalSessionRef string
	Name               string
	CreatedAt          time.Time
	LastActivityAt     time.Time
	Err                string
}

// StatusEvent is delivered to status subscribers. Activity re-notifications
// while running are throttled; actual status transitions are not dropped.
type StatusEvent struct {
	SessionID string
	Status    Status
	Err       string
	At        time.Time
}

// session is the live record owned by the Multiplexer. All fields are
// guarded by mu; output handling, subscription and termination for one
// session serialize on it, while distinct sessions run fully in parallel.
type session struct {
	id        string
	seq       int
	cwd       string
	createdAt time.Time

	mu           sync.Mutex
	status       Status
	externalRef  string
	name         string
	lastActivity time.Time
	errMsg       string

	handle      ProcessHandle
	terminating bool

	buffer  [][]byte
	subs    map[int]func([]byte)
	nextSub int

	statusSubs    map[int]func(StatusEvent)
	nextStatusSub int

	promptSeen    bool
	idleTimer     *time.Timer
	lastNotifyAt  time.Time
	lastDelivered Status
}

// snapshot must be called with s.mu held.
func (s *session) snapshot() Session {
	return Session{
		ID:                 s.id,
		Status:             s.status,
		Cwd:                s.cwd,
		ExternalSessionRef: s.externalRef,
		Name:               s.name,
		CreatedAt:          s.createdAt,
		LastActivityAt:     s.lastActivity,
		Err:                s.errMsg,
	}
}

// appendChunk adds a filtered output chunk to the replay buffer, trimming
// the oldest half once the cap is exceeded. Chunks are never mutated after
// append, only dropped from the front. Must be called with s.mu held.
func (s *session) appendChunk(chunk []byte, limit int) {
	s.buffer = append(s.buffer, chunk)
	if len(s.buffer) > limit {
		keep := limit / 2
		trimmed := make([][]byte, keep)
		copy(trimmed, s.buffer[len(s.buffer)-keep:])
		s.buffer = trimmed
	}
}

// bufferSnapshot copies the chunk list (not the bytes: chunks are immutable
// once appended). Must be called with s.mu held.
func (s *session) bufferSnapshot() [][]byte {
	out := make([][]byte, len(s.buffer))
	copy(out, s.buffer)
	return out
}
