// Package term provides a thread-safe terminal emulation surface for
// rendering session output. The multiplexer fans out raw PTY bytes; a
// Surface consumes them and keeps a renderable screen, so viewers that
// attach late or redraw on demand do not need the process to repaint.
package term

import (
	"io"
	"strings"
	"sync"

	"github.com/vito/midterm"
)

// Surface is a screen built from a session's raw output bytes. All access
// goes through the mutex; the emulator itself is not safe for concurrent
// use.
type Surface struct {
	mu sync.Mutex
	vt *midterm.Terminal
}

// NewSurface creates a surface with the given dimensions.
func NewSurface(rows, cols int) *Surface {
	return &Surface{vt: midterm.NewTerminal(rows, cols)}
}

// Write feeds raw output bytes into the screen. Its signature matches
// io.Writer so a Surface can sit directly behind an output subscription.
func (s *Surface) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vt.Write(data)
}

// Replay feeds a buffered history, chunk by chunk in order, as a single
// locked operation. Used when attaching to a session that already has
// output.
func (s *Surface) Replay(chunks [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.vt.Write(chunk)
	}
}

// Resize changes the screen dimensions.
func (s *Surface) Resize(rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vt.Resize(rows, cols)
}

// Render writes the current screen content, with ANSI styling, to w. A
// zero-sized surface renders nothing.
func (s *Surface) Render(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vt.Height <= 0 || s.vt.Width <= 0 {
		return nil
	}
	return s.vt.Render(w)
}

// RenderString returns the current screen content as a string.
func (s *Surface) RenderString() (string, error) {
	var b strings.Builder
	if err := s.Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Cursor returns the current cursor position.
func (s *Surface) Cursor() (x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vt.Cursor.X, s.vt.Cursor.Y
}

// Dimensions returns the screen size.
func (s *Surface) Dimensions() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vt.Height, s.vt.Width
}
