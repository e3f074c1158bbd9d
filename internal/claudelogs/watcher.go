package claudelogs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-errors/errors"
)

// pollInterval backs up fsnotify in case events are missed.
const pollInterval = 500 * time.Millisecond

// Watcher reports session log files appearing or growing under one project
// directory. The multiplexer's owner uses it to learn the CLI's session id
// for a freshly spawned process, since the CLI only reveals the id through
// its log file.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu        sync.Mutex
	seen      map[string]time.Time
	callbacks []func(sessionID, path string)
}

// WatchProject starts watching the log directory for cwd. The directory is
// created if the CLI has not written to it yet.
func (s *Store) WatchProject(cwd string) (*Watcher, error) {
	dir, err := s.ProjectDirFor(cwd)
	if err != nil {
		// The CLI creates the directory on first write; watch the
		// encoded path so we catch that first write.
		encoded := strings.ReplaceAll(cwd, "/", "-")
		encoded = strings.ReplaceAll(encoded, ".", "-")
		dir = filepath.Join(s.dir, encoded)
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return nil, errors.Errorf("claudelogs: create project directory: %v", mkErr)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("claudelogs: start watcher: %v", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errors.Errorf("claudelogs: watch %s: %v", dir, err)
	}

	w := &Watcher{
		dir:     dir,
		watcher: fw,
		stopCh:  make(chan struct{}),
		seen:    make(map[string]time.Time),
	}
	w.scan(false)
	go w.run()
	return w, nil
}

// OnSession registers a callback fired when a session log file is created
// or updated. The callback receives the session id (the file stem) and the
// file path. Existing files at watch start do not fire.
func (w *Watcher) OnSession(cb func(sessionID, path string)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// Close stops the watcher.
func (w *Watcher) Close() {
	select {
	case <-w.stopCh:
		return
	default:
	}
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) run() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && filepath.Ext(event.Name) == ".jsonl" {
				w.handleFile(event.Name)
			}

		case <-ticker.C:
			w.scan(true)

		case <-w.watcher.Errors:
		}
	}
}

// scan walks the directory and records every log file's mod time. With
// notify set, files that are new or grew since the last scan fire callbacks.
func (w *Watcher) scan(notify bool) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		w.mu.Lock()
		prev, known := w.seen[path]
		w.seen[path] = info.ModTime()
		w.mu.Unlock()

		if notify && (!known || info.ModTime().After(prev)) {
			w.fire(path)
		}
	}
}

func (w *Watcher) handleFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.seen[path] = info.ModTime()
	w.mu.Unlock()
	w.fire(path)
}

func (w *Watcher) fire(path string) {
	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")

	w.mu.Lock()
	cbs := append([]func(string, string){}, w.callbacks...)
	w.mu.Unlock()

	for _, cb := range cbs {
		cb(sessionID, path)
	}
}
