// Package ptyproc wraps a spawned OS process behind a pseudo-terminal and
// exposes it as a push-style byte stream with write, resize and kill.
package ptyproc

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/go-errors/errors"
)

// readBufSize matches the chunk size the desktop host reads with; output is
// delivered as arbitrary-sized chunks with no inherent framing.
const readBufSize = 1024

// Options configures a spawned PTY process.
type Options struct {
	// Shell is the program to run inside the PTY, typically the user's
	// login shell. The interactive CLI is started via InitialCommand so
	// the session drops back to a usable shell when it exits.
	Shell string

	// Cwd is the working directory for the process. Immutable after spawn.
	Cwd string

	// Cols and Rows set the initial terminal size.
	Cols, Rows uint16

	// InitialCommand, if non-empty, is written to the PTY as a command
	// line immediately after the shell starts.
	InitialCommand string

	// Env overrides the environment when non-nil.
	Env []string
}

// Handle is exclusive ownership of one live PTY process.
type Handle struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	pty       *os.File
	callbacks map[int]func([]byte)
	nextCB    int
	exited    bool
	done      chan struct{}
}

// Spawn starts the shell under a new PTY sized to opts and begins pumping
// its output to registered callbacks.
func Spawn(opts Options) (*Handle, error) {
	if opts.Shell == "" {
		return nil, errors.New("ptyproc: no shell configured")
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}

	cmd := exec.Command(opts.Shell)
	cmd.Dir = opts.Cwd
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: opts.Rows,
		Cols: opts.Cols,
	})
	if err != nil {
		return nil, errors.Errorf("start pty: %v", err)
	}

	h := &Handle{
		cmd:       cmd,
		pty:       ptmx,
		callbacks: make(map[int]func([]byte)),
		done:      make(chan struct{}),
	}

	go h.readLoop()

	if opts.InitialCommand != "" {
		if err := h.Write([]byte(opts.InitialCommand + "\n")); err != nil {
			h.Kill()
			return nil, errors.Errorf("write initial command: %v", err)
		}
	}

	return h, nil
}

// readLoop pumps PTY output to callbacks until the process side closes.
// It is the sole owner of the child reap: Wait is called here and nowhere
// else, and done closes only after the child has been reaped.
func (h *Handle) readLoop() {
	buf := make([]byte, readBufSize)
	for {
		n, err := h.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.dispatch(chunk)
		}
		if err != nil {
			break
		}
	}

	h.mu.Lock()
	h.exited = true
	h.mu.Unlock()

	if h.cmd.Process != nil {
		h.cmd.Wait()
	}
	close(h.done)
}

func (h *Handle) dispatch(chunk []byte) {
	h.mu.Lock()
	cbs := make([]func([]byte), 0, len(h.callbacks))
	for _, cb := range h.callbacks {
		cbs = append(cbs, cb)
	}
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(chunk)
	}
}

// OnData registers a callback invoked with every output chunk in arrival
// order. The returned function removes exactly this registration.
func (h *Handle) OnData(cb func([]byte)) func() {
	h.mu.Lock()
	id := h.nextCB
	h.nextCB++
	h.callbacks[id] = cb
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.callbacks, id)
		h.mu.Unlock()
	}
}

// Write sends bytes to the process's input.
func (h *Handle) Write(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return errors.New("ptyproc: process exited")
	}
	_, err := h.pty.Write(data)
	return err
}

// Resize changes the PTY window size.
func (h *Handle) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return nil
	}
	return pty.Setsize(h.pty, &pty.Winsize{Rows: rows, Cols: cols})
}

// Alive reports whether the process is still running.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.exited
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Kill forcibly terminates the process and releases the PTY. Killing a
// process that has already exited is a no-op, not an error.
func (h *Handle) Kill() error {
	h.mu.Lock()
	if h.exited {
		h.mu.Unlock()
		<-h.done
		return nil
	}
	h.exited = true
	cmd := h.cmd
	ptmx := h.pty
	h.mu.Unlock()

	// Closing the master side unblocks the read loop, which reaps the
	// child and closes done.
	ptmx.Close()

	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			<-h.done
			return err
		}
	}
	<-h.done
	return nil
}
