package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FScoward/funhou-sub000/internal/bridge"
	"github.com/FScoward/funhou-sub000/internal/mux"
)

type fakeHandle struct {
	alive bool
	kills int
}

func (h *fakeHandle) Write(data []byte) error                  { return nil }
func (h *fakeHandle) Resize(cols, rows uint16) error           { return nil }
func (h *fakeHandle) Kill() error                              { h.kills++; h.alive = false; return nil }
func (h *fakeHandle) OnData(cb func([]byte)) (remove func())   { return func() {} }
func (h *fakeHandle) Alive() bool                              { return h.alive }

type fakeTransport struct {
	created []string
	closed  []string
}

func (t *fakeTransport) CreateWindow(id, title string) error { t.created = append(t.created, id); return nil }
func (t *fakeTransport) CloseWindow(id string)               { t.closed = append(t.closed, id) }
func (t *fakeTransport) FocusWindow(id string) bool          { return true }
func (t *fakeTransport) SendToWindow(id string, msg bridge.Message) error { return nil }
func (t *fakeTransport) ListenFromWindow(id string, cb func(bridge.Message)) func() {
	return func() {}
}

func newTestAPI(t *testing.T) (*api, *httptest.Server, *fakeTransport) {
	t.Helper()
	m := mux.New(mux.Options{
		Spawn: func(cwd string, cols, rows uint16, resumeRef string) (mux.ProcessHandle, error) {
			return &fakeHandle{alive: true}, nil
		},
	})
	transport := &fakeTransport{}
	br := bridge.New(m, transport)
	a := newAPI(m, br, nil)
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	t.Cleanup(a.Close)
	return a, srv, transport
}

func createTestSession(t *testing.T, srv *httptest.Server, cwd string) string {
	t.Helper()
	body := `{"cwd":"` + cwd + `","name":"test","cols":80,"rows":24}`
	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /sessions: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if out["id"] == "" {
		t.Fatal("create response missing id")
	}
	return out["id"]
}

func TestCreateAndListSessions(t *testing.T) {
	_, srv, _ := newTestAPI(t)
	id := createTestSession(t, srv, t.TempDir())

	resp, err := http.Get(srv.URL + "/sessions")
	if err != nil {
		t.Fatalf("GET /sessions: %v", err)
	}
	defer resp.Body.Close()

	var sessions []mux.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != id {
		t.Errorf("sessions = %+v, want one session with id %s", sessions, id)
	}
	if sessions[0].Status != mux.StatusRunning {
		t.Errorf("status = %s, want running", sessions[0].Status)
	}
}

func TestOpenSessionCreatesWindow(t *testing.T) {
	_, srv, transport := newTestAPI(t)
	id := createTestSession(t, srv, t.TempDir())

	resp, err := http.Post(srv.URL+"/sessions/"+id+"/open", "application/json", nil)
	if err != nil {
		t.Fatalf("POST open: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("open status = %d, want 204", resp.StatusCode)
	}
	if len(transport.created) != 1 {
		t.Errorf("created windows = %v, want one", transport.created)
	}
}

func TestOpenUnknownSessionFails(t *testing.T) {
	_, srv, _ := newTestAPI(t)

	resp, err := http.Post(srv.URL+"/sessions/nope/open", "application/json", nil)
	if err != nil {
		t.Fatalf("POST open: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("open status = %d, want 404", resp.StatusCode)
	}
}

func TestTerminateSession(t *testing.T) {
	_, srv, _ := newTestAPI(t)
	id := createTestSession(t, srv, t.TempDir())

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}

	listResp, err := http.Get(srv.URL + "/sessions")
	if err != nil {
		t.Fatal(err)
	}
	defer listResp.Body.Close()
	var sessions []mux.Session
	if err := json.NewDecoder(listResp.Body).Decode(&sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions after terminate = %+v, want none", sessions)
	}
}

func TestProjectsUnavailableWithoutStore(t *testing.T) {
	_, srv, _ := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/projects")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("projects status = %d, want 503", resp.StatusCode)
	}
}
