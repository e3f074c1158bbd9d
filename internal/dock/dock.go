// Package dock provides the compact terminal UI for monitoring sessions.
// It shows every live session with its status in a list, and can attach to
// one session at a time, rendering its output and forwarding keystrokes.
package dock

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jesseduffield/gocui"

	"github.com/FScoward/funhou-sub000/internal/config"
	"github.com/FScoward/funhou-sub000/internal/mux"
	"github.com/FScoward/funhou-sub000/internal/term"
)

const (
	listWidth       = 36
	statusBarHeight = 2
	refreshInterval = 500 * time.Millisecond
)

// SessionSource is the session API the dock consumes. *mux.Multiplexer
// satisfies it.
type SessionSource interface {
	GetActiveSessions() []mux.Session
	GetSession(id string) (mux.Session, bool)
	AttachToOutput(id string, cb func([]byte)) (snapshot [][]byte, unsubscribe func())
	WriteToSession(id string, data []byte)
	ResizeSession(id string, cols, rows uint16)
	TerminateSession(id string, graceful bool)
}

// Dock is the session monitor application.
type Dock struct {
	gui    *gocui.Gui
	cfg    *config.Config
	source SessionSource

	keys bindings

	sessions []mux.Session
	selected int

	attachedID string
	surface    *term.Surface
	detachFn   func()

	lastCols, lastRows int

	stopCh chan struct{}
}

// bindings holds the parsed keybindings.
type bindings struct {
	quit      config.Key
	navDown   config.Key
	navUp     config.Key
	attach    config.Key
	detach    config.Key
	terminate config.Key
	refresh   config.Key
}

// New creates a dock for the given session source.
func New(cfg *config.Config, source SessionSource) (*Dock, error) {
	keys, err := parseBindings(&cfg.Keys)
	if err != nil {
		return nil, err
	}

	g, err := gocui.NewGui(gocui.NewGuiOpts{
		OutputMode: gocui.OutputTrue,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing GUI: %w", err)
	}

	return &Dock{
		gui:    g,
		cfg:    cfg,
		source: source,
		keys:   keys,
		stopCh: make(chan struct{}),
	}, nil
}

func parseBindings(keys *config.KeyBindings) (bindings, error) {
	var b bindings
	var err error
	if b.quit, err = config.ParseKey(keys.Quit); err != nil {
		return b, fmt.Errorf("quit binding: %w", err)
	}
	if b.navDown, err = config.ParseKey(keys.NavDown); err != nil {
		return b, fmt.Errorf("nav_down binding: %w", err)
	}
	if b.navUp, err = config.ParseKey(keys.NavUp); err != nil {
		return b, fmt.Errorf("nav_up binding: %w", err)
	}
	if b.attach, err = config.ParseKey(keys.Attach); err != nil {
		return b, fmt.Errorf("attach binding: %w", err)
	}
	if b.detach, err = config.ParseKey(keys.Detach); err != nil {
		return b, fmt.Errorf("detach binding: %w", err)
	}
	if b.terminate, err = config.ParseKey(keys.Terminate); err != nil {
		return b, fmt.Errorf("terminate binding: %w", err)
	}
	if b.refresh, err = config.ParseKey(keys.Refresh); err != nil {
		return b, fmt.Errorf("refresh binding: %w", err)
	}
	return b, nil
}

// Run starts the main event loop and blocks until quit.
func (d *Dock) Run() error {
	defer d.Close()

	d.sessions = d.source.GetActiveSessions()

	d.gui.SetManagerFunc(d.layout)

	if err := d.setupKeybindings(); err != nil {
		return fmt.Errorf("setting up keybindings: %w", err)
	}

	go d.pollSessions()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			d.gui.Update(func(g *gocui.Gui) error {
				return gocui.ErrQuit
			})
		case <-d.stopCh:
		}
	}()

	if err := d.gui.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) && err.Error() != "quit" {
		return fmt.Errorf("main loop: %w", err)
	}
	return nil
}

// Close cleans up all resources.
func (d *Dock) Close() {
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
	d.detach()
	d.gui.Close()
}

// pollSessions keeps the session list current.
func (d *Dock) pollSessions() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.refresh()
		}
	}
}

// refresh reloads the session list and schedules a redraw. It runs on the
// gui goroutine when one is running.
func (d *Dock) refresh() {
	d.gui.Update(func(g *gocui.Gui) error {
		d.sessions = d.source.GetActiveSessions()
		if d.selected >= len(d.sessions) {
			d.selected = len(d.sessions) - 1
		}
		if d.selected < 0 {
			d.selected = 0
		}
		// Attached session may have gone away
		if d.attachedID != "" {
			if sess, ok := d.source.GetSession(d.attachedID); !ok || sess.Status.Terminal() {
				d.detach()
			}
		}
		return nil
	})
}

// layout arranges the session list, terminal view and status bar.
func (d *Dock) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	listView, err := g.SetView("sessions", 0, 0, listWidth, maxY-statusBarHeight, 0)
	if err != nil && !errors.Is(err, gocui.ErrUnknownView) && err.Error() != "unknown view" {
		return err
	}
	d.renderList(listView)

	termView, err := g.SetView("terminal", listWidth+1, 0, maxX-1, maxY-statusBarHeight, 0)
	if err != nil && !errors.Is(err, gocui.ErrUnknownView) && err.Error() != "unknown view" {
		return err
	}
	d.renderTerminalView(termView)

	statusView, err := g.SetView("status-bar", -1, maxY-statusBarHeight, maxX, maxY, 0)
	if err != nil && !errors.Is(err, gocui.ErrUnknownView) && err.Error() != "unknown view" {
		return err
	}
	d.renderStatusBar(statusView)

	if d.attachedID != "" {
		g.SetCurrentView("terminal")
	} else {
		g.SetCurrentView("sessions")
	}
	g.Cursor = false

	return nil
}

func (d *Dock) renderList(v *gocui.View) {
	v.Title = " sessions "
	v.Frame = true
	v.Wrap = false
	v.Clear()

	if len(d.sessions) == 0 {
		fmt.Fprintln(v, ColorDim+"  no sessions"+ColorReset)
		return
	}
	width, _ := v.Size()
	for i, sess := range d.sessions {
		fmt.Fprintln(v, SessionLine(&d.cfg.Theme, sess, width, i == d.selected))
	}
}

func (d *Dock) renderTerminalView(v *gocui.View) {
	v.Frame = true
	v.Wrap = false
	v.Autoscroll = false

	if d.attachedID == "" {
		v.Title = " output "
		v.FrameColor = gocui.ColorDefault
		v.Editable = false
		v.Clear()
		fmt.Fprint(v, ColorDim+"  press enter to attach to the selected session"+ColorReset)
		return
	}

	sess, _ := d.source.GetSession(d.attachedID)
	name := sess.Name
	if name == "" {
		name = sess.Cwd
	}
	v.Title = fmt.Sprintf(" %s [%s] ", name, sess.Status)
	v.FrameColor = gocui.ColorGreen
	v.TitleColor = gocui.ColorGreen
	v.Editable = true
	v.Editor = gocui.EditorFunc(d.terminalEditor)

	cols, rows := v.Size()
	if cols > 0 && rows > 0 && (cols != d.lastCols || rows != d.lastRows) {
		d.surface.Resize(rows, cols)
		d.source.ResizeSession(d.attachedID, uint16(cols), uint16(rows))
		d.lastCols, d.lastRows = cols, rows
	}

	v.Clear()
	RenderTerminal(v, d.surface)
}

func (d *Dock) renderStatusBar(v *gocui.View) {
	v.Frame = false
	v.FgColor = gocui.ColorBlack
	v.BgColor = gocui.ColorWhite
	v.Clear()

	keys := &d.cfg.Keys
	if d.attachedID != "" {
		fmt.Fprintf(v, " attached  %s: detach", keys.Detach)
		return
	}
	fmt.Fprintf(v, " %s/%s: navigate  %s: attach  %s: terminate  %s: refresh  %s: quit",
		keys.NavDown, keys.NavUp, keys.Attach, keys.Terminate, keys.Refresh, keys.Quit)
}

// terminalEditor forwards keystrokes to the attached session.
func (d *Dock) terminalEditor(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	if d.attachedID == "" {
		return false
	}
	data, ok := keyBytes(key, ch, mod)
	if !ok {
		return false
	}
	d.source.WriteToSession(d.attachedID, data)
	return true
}

func (d *Dock) setupKeybindings() error {
	bind := func(k config.Key, handler func() error) error {
		var keyVal any
		if k.IsRune() {
			keyVal = k.Rune()
		} else {
			keyVal = k.GocuiKey()
		}
		return d.gui.SetKeybinding("", keyVal, k.Mod, func(g *gocui.Gui, v *gocui.View) error {
			return handler()
		})
	}

	// List-mode actions forward their key to the session when attached,
	// so typing q or j into the CLI keeps working.
	forwardOr := func(k config.Key, action func() error) func() error {
		return func() error {
			if d.attachedID != "" && k.IsRune() {
				d.source.WriteToSession(d.attachedID, []byte(string(k.Rune())))
				return nil
			}
			return action()
		}
	}

	if err := bind(d.keys.quit, forwardOr(d.keys.quit, func() error {
		return gocui.ErrQuit
	})); err != nil {
		return err
	}

	if err := bind(d.keys.navDown, forwardOr(d.keys.navDown, func() error {
		d.moveSelection(1)
		return nil
	})); err != nil {
		return err
	}
	if err := bind(d.keys.navUp, forwardOr(d.keys.navUp, func() error {
		d.moveSelection(-1)
		return nil
	})); err != nil {
		return err
	}

	if err := bind(d.keys.attach, func() error {
		if d.attachedID != "" {
			if data, ok := keyBytes(d.keys.attach.GocuiKey(), d.keys.attach.Rune(), gocui.ModNone); ok {
				d.source.WriteToSession(d.attachedID, data)
			}
			return nil
		}
		d.attach()
		return nil
	}); err != nil {
		return err
	}

	if err := bind(d.keys.detach, func() error {
		d.detach()
		return nil
	}); err != nil {
		return err
	}

	if err := bind(d.keys.terminate, forwardOr(d.keys.terminate, func() error {
		if d.selected < len(d.sessions) {
			d.source.TerminateSession(d.sessions[d.selected].ID, true)
			d.refresh()
		}
		return nil
	})); err != nil {
		return err
	}

	if err := bind(d.keys.refresh, forwardOr(d.keys.refresh, func() error {
		d.refresh()
		return nil
	})); err != nil {
		return err
	}

	return nil
}

func (d *Dock) moveSelection(delta int) {
	if len(d.sessions) == 0 {
		return
	}
	d.selected += delta
	if d.selected < 0 {
		d.selected = 0
	}
	if d.selected >= len(d.sessions) {
		d.selected = len(d.sessions) - 1
	}
}

// attach subscribes to the selected session's output and replays its buffer
// into a fresh terminal surface.
func (d *Dock) attach() {
	if d.selected >= len(d.sessions) {
		return
	}
	sess := d.sessions[d.selected]
	if sess.Status.Terminal() {
		return
	}

	rows, cols := 24, 80
	if v, err := d.gui.View("terminal"); err == nil {
		if w, h := v.Size(); w > 0 && h > 0 {
			cols, rows = w, h
		}
	}

	surface, unsub := attachSurface(d.source, sess.ID, rows, cols, func() {
		d.gui.Update(func(g *gocui.Gui) error { return nil })
	})

	d.attachedID = sess.ID
	d.surface = surface
	d.detachFn = unsub
	d.lastCols, d.lastRows = cols, rows
	d.source.ResizeSession(sess.ID, uint16(cols), uint16(rows))
}

// attachSurface subscribes to a session's output and replays its buffered
// history into a fresh surface. Chunks arriving while the replay is still
// in progress are held back, so the surface always sees history before
// live output. redraw is called after each live chunk lands.
func attachSurface(source SessionSource, id string, rows, cols int, redraw func()) (*term.Surface, func()) {
	surface := term.NewSurface(rows, cols)

	var replayMu sync.Mutex
	var queued [][]byte
	replayed := false
	snapshot, unsub := source.AttachToOutput(id, func(data []byte) {
		replayMu.Lock()
		if !replayed {
			queued = append(queued, data)
			replayMu.Unlock()
			return
		}
		replayMu.Unlock()
		surface.Write(data)
		redraw()
	})
	replayMu.Lock()
	surface.Replay(snapshot)
	surface.Replay(queued)
	queued = nil
	replayed = true
	replayMu.Unlock()

	return surface, unsub
}

// detach drops the output subscription. The session keeps running.
func (d *Dock) detach() {
	if d.detachFn != nil {
		d.detachFn()
		d.detachFn = nil
	}
	d.attachedID = ""
	d.surface = nil
	d.lastCols, d.lastRows = 0, 0
}
