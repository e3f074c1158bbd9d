// Package claudelogs reads Claude Code's on-disk session logs under
// ~/.claude/projects. Each project directory holds one JSONL transcript per
// session, named by the CLI's own session id; those ids are what sessions
// get resumed with.
package claudelogs

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-errors/errors"
)

// Entry is a single line of a session transcript.
type Entry struct {
	Type        string   `json:"type"`
	SessionID   string   `json:"sessionId"`
	Message     *Message `json:"message"`
	Timestamp   string   `json:"timestamp"`
	Cwd         string   `json:"cwd"`
	GitBranch   string   `json:"gitBranch"`
	UUID        string   `json:"uuid"`
	IsSidechain bool     `json:"isSidechain"`
}

// Message is the message field of a transcript entry. Content is either a
// plain string or an array of content blocks.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ConversationMessage is a displayable message extracted from a transcript.
type ConversationMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// SessionSummary describes one resumable session in a project.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	ProjectPath  string `json:"project_path"`
	Cwd          string `json:"cwd,omitempty"`
	GitBranch    string `json:"git_branch,omitempty"`
	FirstMessage string `json:"first_message,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	MessageCount int    `json:"message_count"`
}

// ProjectInfo describes one project directory holding session logs.
type ProjectInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	SessionCount int       `json:"session_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// summaryScanLines is how many leading lines of a transcript are inspected
// for the session summary fields.
const summaryScanLines = 10

// Store reads session logs from a projects directory.
type Store struct {
	dir string
}

// New returns a Store rooted at ~/.claude/projects.
func New() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Errorf("claudelogs: resolve home directory: %v", err)
	}
	return NewAt(filepath.Join(home, ".claude", "projects")), nil
}

// NewAt returns a Store rooted at dir. Used by tests and non-default installs.
func NewAt(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the projects directory the store reads from.
func (s *Store) Dir() string { return s.dir }

// ListProjects returns every project directory containing at least one
// session log, newest first.
func (s *Store) ListProjects() ([]ProjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Errorf("claudelogs: read projects directory: %v", err)
	}

	var projects []ProjectInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(s.dir, entry.Name())

		count := 0
		var newest time.Time
		files, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, f := range files {
			if filepath.Ext(f.Name()) != ".jsonl" {
				continue
			}
			count++
			if info, err := f.Info(); err == nil && info.ModTime().After(newest) {
				newest = info.ModTime()
			}
		}
		if count == 0 {
			continue
		}

		projects = append(projects, ProjectInfo{
			// Directory names encode the project path with separators
			// flattened to dashes.
			Name:         strings.ReplaceAll(entry.Name(), "-", "/"),
			Path:         dirPath,
			SessionCount: count,
			LastUpdated:  newest,
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LastUpdated.After(projects[j].LastUpdated)
	})
	return projects, nil
}

// ProjectDirFor maps a working directory to its log directory, mirroring the
// CLI's own encoding: path separators and dots become dashes. Paths already
// inside the projects directory pass through unchanged.
func (s *Store) ProjectDirFor(cwd string) (string, error) {
	if strings.HasPrefix(cwd, s.dir) {
		return cwd, nil
	}
	encoded := strings.ReplaceAll(cwd, "/", "-")
	encoded = strings.ReplaceAll(encoded, ".", "-")
	dir := filepath.Join(s.dir, encoded)
	if _, err := os.Stat(dir); err != nil {
		return "", errors.Errorf("claudelogs: no project directory for %s", cwd)
	}
	return dir, nil
}

// ListSessions returns the resumable sessions for a project, newest first.
// projectPath may be either the working directory or the log directory
// itself. Sidechain sessions are skipped since they cannot be resumed.
func (s *Store) ListSessions(projectPath string) ([]SessionSummary, error) {
	dir, err := s.ProjectDirFor(projectPath)
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Errorf("claudelogs: read project directory: %v", err)
	}

	var sessions []SessionSummary
	for _, f := range files {
		if filepath.Ext(f.Name()) != ".jsonl" {
			continue
		}
		summary, ok, err := s.summarize(filepath.Join(dir, f.Name()), projectPath)
		if err != nil {
			return nil, err
		}
		if ok {
			sessions = append(sessions, summary)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp > sessions[j].Timestamp
	})
	return sessions, nil
}

// LatestSession returns the most recent session for a working directory, or
// ok=false when the project has no resumable sessions.
func (s *Store) LatestSession(cwd string) (SessionSummary, bool, error) {
	sessions, err := s.ListSessions(cwd)
	if err != nil {
		return SessionSummary{}, false, err
	}
	if len(sessions) == 0 {
		return SessionSummary{}, false, nil
	}
	return sessions[0], true, nil
}

// ReadConversation returns the user and assistant messages of a session.
// Sidechain sessions are rejected.
func (s *Store) ReadConversation(projectPath, sessionID string) ([]ConversationMessage, error) {
	dir, err := s.ProjectDirFor(projectPath)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, sessionID+".jsonl")

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("claudelogs: open session %s: %v", sessionID, err)
	}
	defer file.Close()

	var messages []ConversationMessage
	first := true

	scanner := newLineScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if first {
			first = false
			if entry.IsSidechain {
				return nil, errors.Errorf("claudelogs: session %s is a sidechain and cannot be resumed", sessionID)
			}
		}

		if entry.Type != "user" && entry.Type != "assistant" {
			continue
		}
		if entry.Message == nil {
			continue
		}
		text, ok := extractText(entry.Message.Content)
		if !ok {
			continue
		}

		role := entry.Message.Role
		if role == "" {
			role = entry.Type
		}
		messages = append(messages, ConversationMessage{
			Role:      role,
			Content:   text,
			Timestamp: entry.Timestamp,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Errorf("claudelogs: read session %s: %v", sessionID, err)
	}
	return messages, nil
}

// summarize builds a SessionSummary from one transcript file. ok=false means
// the session is a sidechain and should be skipped.
func (s *Store) summarize(path, projectPath string) (SessionSummary, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return SessionSummary{}, false, errors.Errorf("claudelogs: open %s: %v", path, err)
	}
	defer file.Close()

	summary := SessionSummary{
		SessionID:   strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		ProjectPath: projectPath,
	}

	lineNum := 0
	scanner := newLineScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineNum++

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if lineNum == 1 && entry.IsSidechain {
			return SessionSummary{}, false, nil
		}

		if lineNum <= summaryScanLines {
			if summary.Cwd == "" {
				summary.Cwd = entry.Cwd
			}
			if entry.Type == "user" && summary.FirstMessage == "" {
				if entry.Message != nil {
					if text, ok := extractText(entry.Message.Content); ok {
						summary.FirstMessage = text
					}
				}
				summary.Timestamp = entry.Timestamp
				summary.GitBranch = entry.GitBranch
			}
		}

		if entry.Type == "user" || entry.Type == "assistant" {
			summary.MessageCount++
		}
	}

	if err := scanner.Err(); err != nil {
		return SessionSummary{}, false, errors.Errorf("claudelogs: read %s: %v", path, err)
	}
	return summary, true, nil
}

// extractText pulls displayable text out of a message content field, which
// is either a JSON string or an array of typed blocks.
func extractText(content json.RawMessage) (string, bool) {
	if len(content) == 0 {
		return "", false
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return text, true
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &blocks); err != nil {
		return "", false
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	// Transcript lines carry whole tool results and can get large.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return scanner
}
