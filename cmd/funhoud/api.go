package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/FScoward/funhou-sub000/internal/bridge"
	"github.com/FScoward/funhou-sub000/internal/claudelogs"
	"github.com/FScoward/funhou-sub000/internal/mux"
)

// api is the control surface the desktop shell drives sessions through.
// Window traffic itself goes over the WebSocket endpoint; this API only
// creates, opens, and terminates.
type api struct {
	handler *http.ServeMux
	mux     *mux.Multiplexer
	br      *bridge.Bridge
	store   *claudelogs.Store

	mu       sync.Mutex
	watchers []*claudelogs.Watcher
}

func newAPI(m *mux.Multiplexer, br *bridge.Bridge, store *claudelogs.Store) *api {
	a := &api{
		handler: http.NewServeMux(),
		mux:     m,
		br:      br,
		store:   store,
	}

	a.handler.HandleFunc("GET /sessions", a.listSessions)
	a.handler.HandleFunc("POST /sessions", a.createSession)
	a.handler.HandleFunc("POST /sessions/{id}/open", a.openSession)
	a.handler.HandleFunc("POST /sessions/{id}/minimize", a.minimizeSession)
	a.handler.HandleFunc("DELETE /sessions/{id}", a.terminateSession)
	a.handler.HandleFunc("GET /projects", a.listProjects)
	a.handler.HandleFunc("GET /projects/sessions", a.listProjectSessions)

	return a
}

func (a *api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close stops any running log watchers.
func (a *api) Close() {
	a.mu.Lock()
	watchers := a.watchers
	a.watchers = nil
	a.mu.Unlock()
	for _, w := range watchers {
		w.Close()
	}
}

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.mux.GetActiveSessions())
}

type createSessionRequest struct {
	Cwd                string `json:"cwd"`
	Name               string `json:"name"`
	ExternalSessionRef string `json:"external_session_ref"`
	Cols               uint16 `json:"cols"`
	Rows               uint16 `json:"rows"`
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id := a.mux.CreateSession(mux.CreateRequest{
		Cwd:                req.Cwd,
		ExternalSessionRef: req.ExternalSessionRef,
		Name:               req.Name,
		Cols:               req.Cols,
		Rows:               req.Rows,
	})

	// A fresh session has no external ref until the CLI writes its log
	// file; watch for it so later resumes work.
	if req.ExternalSessionRef == "" && a.store != nil {
		a.trackSessionRef(id, req.Cwd)
	}

	writeJSON(w, map[string]string{"id": id})
}

// trackSessionRef watches the project's log directory and records the first
// session id that appears after the spawn.
func (a *api) trackSessionRef(id, cwd string) {
	watcher, err := a.store.WatchProject(cwd)
	if err != nil {
		log.Printf("api: cannot watch logs for %s: %v", cwd, err)
		return
	}

	a.mu.Lock()
	a.watchers = append(a.watchers, watcher)
	a.mu.Unlock()

	var once sync.Once
	watcher.OnSession(func(sessionID, path string) {
		once.Do(func() {
			a.mux.UpdateSessionExternalRef(id, sessionID)
			watcher.Close()
		})
	})
}

func (a *api) openSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.br.OpenInWindow(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) minimizeSession(w http.ResponseWriter, r *http.Request) {
	a.br.MinimizeToDock(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) terminateSession(w http.ResponseWriter, r *http.Request) {
	a.mux.TerminateSession(r.PathValue("id"), true)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listProjects(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "session log discovery unavailable", http.StatusServiceUnavailable)
		return
	}
	projects, err := a.store.ListProjects()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, projects)
}

func (a *api) listProjectSessions(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "session log discovery unavailable", http.StatusServiceUnavailable)
		return
	}
	cwd := r.URL.Query().Get("cwd")
	if cwd == "" {
		http.Error(w, "missing cwd parameter", http.StatusBadRequest)
		return
	}
	sessions, err := a.store.ListSessions(cwd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, sessions)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
